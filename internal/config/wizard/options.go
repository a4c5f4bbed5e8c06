package wizard

import (
	"github.com/charmbracelet/huh"

	"github.com/imamik/edgefleet/internal/registry"
)

// KindOption describes a selectable node kind.
type KindOption struct {
	Value       registry.Kind
	Label       string
	Description string
}

// Kinds lists the node kinds offered by the node wizard.
var Kinds = []KindOption{
	{Value: registry.KindEdge, Label: "Edge server", Description: "Ubuntu amd64 host, runs docker-ce"},
	{Value: registry.KindConstrained, Label: "IoT device", Description: "Raspberry Pi class device"},
}

// AuthPassword and AuthKey select how the node authenticates.
const (
	AuthPassword = "password"
	AuthKey      = "key"
)

// AuthOptions lists the supported SSH authentication modes.
var AuthOptions = []huh.Option[string]{
	huh.NewOption("Password", AuthPassword),
	huh.NewOption("Private key file", AuthKey),
}

// KindsToOptions converts Kinds to huh select options.
func KindsToOptions() []huh.Option[registry.Kind] {
	opts := make([]huh.Option[registry.Kind], len(Kinds))
	for i, k := range Kinds {
		opts[i] = huh.NewOption(k.Label+" - "+k.Description, k.Value)
	}
	return opts
}
