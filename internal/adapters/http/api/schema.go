package api

import (
	"net/http"

	"github.com/safer-strategy/data-transformation-tool/internal/domain/schema"
)

// SchemaHandler serves the active schema document.
type SchemaHandler struct {
	registry *schema.Registry
}

// NewSchemaHandler creates a new schema handler.
func NewSchemaHandler(registry *schema.Registry) *SchemaHandler {
	return &SchemaHandler{registry: registry}
}

// HandleSchema handles GET /schema requests.
func (h *SchemaHandler) HandleSchema(w http.ResponseWriter, _ *http.Request) {
	out, err := h.registry.Marshal()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	_, _ = w.Write(out)
}
