package ingest

import (
	"slices"

	"github.com/avencia/ingestd/internal/models"
)

// Registry is a static kind-to-processor lookup table.
type Registry struct {
	processors map[models.SourceKind]Processor
}

// NewRegistry builds a registry from the given processors. A later
// processor for the same kind replaces the earlier one.
func NewRegistry(processors ...Processor) *Registry {
	r := &Registry{processors: make(map[models.SourceKind]Processor, len(processors))}
	for _, p := range processors {
		r.processors[p.Kind()] = p
	}
	return r
}

// Lookup returns the processor for a kind, or nil when the kind is
// unsupported.
func (r *Registry) Lookup(kind models.SourceKind) Processor {
	return r.processors[kind]
}

// IsSupported reports whether a processor is registered for the kind.
func (r *Registry) IsSupported(kind models.SourceKind) bool {
	_, ok := r.processors[kind]
	return ok
}

// SupportedKinds returns the registered kinds in stable order.
func (r *Registry) SupportedKinds() []models.SourceKind {
	kinds := make([]models.SourceKind, 0, len(r.processors))
	for k := range r.processors {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}
