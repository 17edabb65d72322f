package service

import (
	"sort"

	"browser-harness/internal/application/port/output"
	"browser-harness/internal/domain/entity"
)

var _ output.ActionRegistry = (*ActionRegistryImpl)(nil)

type ActionRegistryImpl struct {
	actions map[entity.ActionKind]output.ActionPort
}

func NewActionRegistry() *ActionRegistryImpl {
	return &ActionRegistryImpl{
		actions: make(map[entity.ActionKind]output.ActionPort),
	}
}

func (r *ActionRegistryImpl) Register(action output.ActionPort) {
	r.actions[action.Kind()] = action
}

func (r *ActionRegistryImpl) Get(kind entity.ActionKind) (output.ActionPort, bool) {
	action, ok := r.actions[kind]
	return action, ok
}

func (r *ActionRegistryImpl) All() []output.ActionPort {
	result := make([]output.ActionPort, 0, len(r.actions))
	for _, kind := range r.Kinds() {
		result = append(result, r.actions[kind])
	}
	return result
}

// Kinds lists registered kinds in lexical order.
func (r *ActionRegistryImpl) Kinds() []entity.ActionKind {
	result := make([]entity.ActionKind, 0, len(r.actions))
	for kind := range r.actions {
		result = append(result, kind)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}
