package testing

import (
	"time"

	"github.com/imamik/edgefleet/internal/config"
	"github.com/imamik/edgefleet/internal/registry"
)

// NodeBuilder provides a fluent interface for constructing registry nodes.
// Each method returns a new builder (immutable) for chaining.
type NodeBuilder struct {
	node registry.Node
}

// NewNodeBuilder creates an edge node with password credentials.
func NewNodeBuilder(name string) *NodeBuilder {
	return &NodeBuilder{node: registry.Node{
		Name:     name,
		Address:  "192.168.0.10",
		Username: "pi",
		Secret:   "raspberry",
		Kind:     registry.KindEdge,
	}}
}

// WithAddress sets the IPv4 address.
func (b *NodeBuilder) WithAddress(address string) *NodeBuilder {
	n := b.clone()
	n.node.Address = address
	return n
}

// WithUsername sets the SSH user.
func (b *NodeBuilder) WithUsername(username string) *NodeBuilder {
	n := b.clone()
	n.node.Username = username
	return n
}

// WithKeyPath switches the credential to a private key file.
func (b *NodeBuilder) WithKeyPath(path string) *NodeBuilder {
	n := b.clone()
	n.node.Secret = ""
	n.node.KeyPath = path
	return n
}

// Constrained marks the node as an IoT-class device.
func (b *NodeBuilder) Constrained() *NodeBuilder {
	n := b.clone()
	n.node.Kind = registry.KindConstrained
	return n
}

// Master flags the node as the control-plane host.
func (b *NodeBuilder) Master() *NodeBuilder {
	n := b.clone()
	n.node.IsMaster = true
	return n
}

// Build returns the constructed node.
func (b *NodeBuilder) Build() registry.Node {
	return b.node
}

func (b *NodeBuilder) clone() *NodeBuilder {
	return &NodeBuilder{node: b.node}
}

// SampleFleet returns a master, an edge server and a constrained device.
func SampleFleet() []registry.Node {
	return []registry.Node{
		NewNodeBuilder("nuc2").WithAddress("192.168.0.147").WithUsername("nuc2").Master().Build(),
		NewNodeBuilder("nuc1").WithAddress("192.168.0.146").WithUsername("nuc1").Build(),
		NewNodeBuilder("pi-1").WithAddress("192.168.0.12").Constrained().Build(),
	}
}

// ConfigBuilder provides a fluent interface for constructing test configs.
// Each method returns a new builder (immutable) for chaining.
type ConfigBuilder struct {
	cfg config.Config
}

// NewConfigBuilder starts from the defaults with no settle delay and no
// monitoring stack.
func NewConfigBuilder() *ConfigBuilder {
	cfg := *config.Default()
	cfg.Master.SettleDelay = 0
	cfg.Manifests.RecreatePause = 0
	cfg.Monitoring.Enabled = false
	return &ConfigBuilder{cfg: cfg}
}

// WithRegistryPath sets the registry database path.
func (b *ConfigBuilder) WithRegistryPath(path string) *ConfigBuilder {
	n := b.clone()
	n.cfg.Registry.Path = path
	return n
}

// WithFilesDir sets the deployment files directory.
func (b *ConfigBuilder) WithFilesDir(dir string) *ConfigBuilder {
	n := b.clone()
	n.cfg.Files.Dir = dir
	return n
}

// WithMonitoring enables or disables the monitoring stack.
func (b *ConfigBuilder) WithMonitoring(enabled bool) *ConfigBuilder {
	n := b.clone()
	n.cfg.Monitoring.Enabled = enabled
	return n
}

// WithConcurrency sets the worker join concurrency.
func (b *ConfigBuilder) WithConcurrency(c int) *ConfigBuilder {
	n := b.clone()
	n.cfg.Workers.Concurrency = c
	return n
}

// WithSettleDelay sets the post-install delay.
func (b *ConfigBuilder) WithSettleDelay(d time.Duration) *ConfigBuilder {
	n := b.clone()
	n.cfg.Master.SettleDelay = d
	return n
}

// WithListen sets the HTTP listen address.
func (b *ConfigBuilder) WithListen(addr string) *ConfigBuilder {
	n := b.clone()
	n.cfg.Server.Listen = addr
	return n
}

// WithBackup points registry backups at bucket.
func (b *ConfigBuilder) WithBackup(bucket, endpoint string) *ConfigBuilder {
	n := b.clone()
	n.cfg.Backup.Bucket = bucket
	n.cfg.Backup.Endpoint = endpoint
	n.cfg.Backup.Region = "us-east-1"
	return n
}

// Build returns the constructed config.
func (b *ConfigBuilder) Build() *config.Config {
	cfg := b.cfg // copy
	return &cfg
}

// config.Config holds no slices or maps, a value copy is deep.
func (b *ConfigBuilder) clone() *ConfigBuilder {
	return &ConfigBuilder{cfg: b.cfg}
}
