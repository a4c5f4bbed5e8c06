package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/imamik/edgefleet/internal/registry"
)

// maxNodeBody bounds POST /api/nodes bodies.
const maxNodeBody = 64 << 10

func (s *Server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	fleet, err := s.cfg.Nodes.Fleet(r.Context())
	if err != nil {
		s.log.Error(err, "failed to build fleet view")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, fleet)
}

func (s *Server) handleAddNode(w http.ResponseWriter, r *http.Request) {
	var node registry.Node
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxNodeBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&node); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid node: %w", err))
		return
	}

	kind, err := registry.ParseKind(string(node.Kind))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	node.Kind = kind

	if err := s.cfg.Registry.Add(r.Context(), node); err != nil {
		if errors.Is(err, registry.ErrInvalidNode) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		s.log.Error(err, "failed to add node", "node", node.Name)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.log.Info("node registered", "node", node.Name, "address", node.Address, "kind", node.Kind, "master", node.IsMaster)
	node.Secret = ""
	writeJSON(w, http.StatusCreated, node)
}

func (s *Server) handleRemoveNode(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	err := s.cfg.Nodes.RemoveNode(r.Context(), name)
	switch {
	case err == nil:
		s.log.Info("node removed", "node", name)
		writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Node %s removed", name)})
	case errors.Is(err, registry.ErrMasterProtected):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, registry.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	default:
		s.log.Error(err, "failed to remove node", "node", name)
		writeError(w, http.StatusInternalServerError, err)
	}
}
