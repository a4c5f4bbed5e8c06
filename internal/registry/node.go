package registry

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind classifies a fleet machine.
type Kind string

const (
	// KindEdge is a general-purpose edge server (Ubuntu, amd64).
	KindEdge Kind = "edge"
	// KindConstrained is a constrained IoT device (Raspberry Pi class).
	KindConstrained Kind = "constrained"
)

// Node role labels applied at join time. Workload manifests select on them.
const (
	RoleEdge = "edge"
	RoleIoT  = "iot"
)

var addressPattern = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)

// ParseKind parses a kind name. "iot" is accepted for constrained devices.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(KindEdge):
		return KindEdge, nil
	case string(KindConstrained), RoleIoT:
		return KindConstrained, nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q (expected edge or constrained)", ErrInvalidNode, s)
	}
}

// Node is a registry entry: the desired membership of one machine.
type Node struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Username string `json:"username"`
	Secret   string `json:"secret,omitempty"`
	KeyPath  string `json:"key_path,omitempty"`
	Kind     Kind   `json:"kind"`
	IsMaster bool   `json:"is_master"`
}

// Role returns the role label the node joins with.
func (n Node) Role() string {
	if n.Kind == KindConstrained {
		return RoleIoT
	}
	return RoleEdge
}

// Validate checks required fields and the address format.
func (n Node) Validate() error {
	var missing []string
	if n.Name == "" {
		missing = append(missing, "name")
	}
	if n.Address == "" {
		missing = append(missing, "address")
	}
	if n.Username == "" {
		missing = append(missing, "username")
	}
	if n.Secret == "" && n.KeyPath == "" {
		missing = append(missing, "secret or key_path")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", ErrInvalidNode, strings.Join(missing, ", "))
	}

	if err := ValidateAddress(n.Address); err != nil {
		return err
	}
	if _, err := ParseKind(string(n.Kind)); err != nil {
		return err
	}
	return nil
}

// ValidateAddress accepts four dot-separated numeric octets (0-255).
func ValidateAddress(address string) error {
	if !addressPattern.MatchString(address) {
		return fmt.Errorf("%w: invalid IP address format %q", ErrInvalidNode, address)
	}
	for _, octet := range strings.Split(address, ".") {
		if v, _ := strconv.Atoi(octet); v > 255 {
			return fmt.Errorf("%w: octet %s out of range in %q", ErrInvalidNode, octet, address)
		}
	}
	return nil
}
