package registry

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no node has the requested name.
	ErrNotFound = errors.New("node not found")
	// ErrInvalidNode is returned for malformed node records.
	ErrInvalidNode = errors.New("invalid node")
	// ErrMasterProtected is returned when removing the active master.
	ErrMasterProtected = errors.New("cannot delete master node")
)

// Store is the node registry. Every call runs in its own transaction.
type Store interface {
	// Add validates and upserts a node. When the node is flagged as master,
	// any previous master is cleared in the same transaction.
	Add(ctx context.Context, node Node) error

	// Get returns the node with the given name or ErrNotFound.
	Get(ctx context.Context, name string) (Node, error)

	// List returns all nodes ordered by name.
	List(ctx context.Context) ([]Node, error)

	// Remove deletes a node. It refuses to delete the current master.
	Remove(ctx context.Context, name string) error

	// CurrentMaster returns the node flagged as master, if any.
	CurrentMaster(ctx context.Context) (Node, bool, error)
}
