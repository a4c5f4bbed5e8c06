package labels

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLabelBuilder(t *testing.T) {
	t.Parallel()

	labels := NewLabelBuilder().Build()
	assert.Equal(t, map[string]string{KeyManagedBy: ManagedByEdgefleet}, labels)
}

func TestLabelBuilder_Build(t *testing.T) {
	t.Parallel()

	lb := NewLabelBuilder().WithRole("iot").WithName("pi-1")
	labels := lb.Build()

	assert.Equal(t, "iot", labels[KeyRole])
	assert.Equal(t, "pi-1", labels[KeyName])

	// Build returns a copy.
	labels[KeyRole] = "edge"
	assert.Equal(t, "iot", lb.Build()[KeyRole])
}

func TestLabelBuilder_AgentFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		lb   *LabelBuilder
		want string
	}{
		{
			name: "role and name first",
			lb:   NewLabelBuilder().WithName("pi-1").WithRole("iot"),
			want: "--node-label role=iot --node-label name=pi-1 --node-label edgefleet.io/managed-by=edgefleet",
		},
		{
			name: "managed-by only",
			lb:   NewLabelBuilder(),
			want: "--node-label edgefleet.io/managed-by=edgefleet",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.lb.AgentFlags())
		})
	}
}
