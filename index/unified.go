package index

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mow-search/mow/schema"
)

// UnifiedIndex is the registry mapping model names to their declared
// indexes. Engines derive their native schema from the merged field set.
// Safe for concurrent use.
type UnifiedIndex struct {
	mu      sync.RWMutex
	indexes map[string]Index
}

// NewUnified builds a registry from the given indexes.
func NewUnified(indexes ...Index) (*UnifiedIndex, error) {
	u := &UnifiedIndex{indexes: make(map[string]Index, len(indexes))}
	for _, idx := range indexes {
		if err := u.Register(idx); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// Register adds an index. Duplicate models are rejected.
func (u *UnifiedIndex) Register(idx Index) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	model := idx.Model()
	if _, exists := u.indexes[model]; exists {
		return fmt.Errorf("model %q is already registered", model)
	}
	u.indexes[model] = idx
	return nil
}

// IndexFor returns the index registered for model.
func (u *UnifiedIndex) IndexFor(model string) (Index, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	idx, ok := u.indexes[model]
	return idx, ok
}

// Models returns the registered model names, sorted.
func (u *UnifiedIndex) Models() []string {
	u.mu.RLock()
	defer u.mu.RUnlock()

	out := make([]string, 0, len(u.indexes))
	for model := range u.indexes {
		out = append(out, model)
	}
	sort.Strings(out)
	return out
}

// AllFields returns every declared field across all registered indexes.
func (u *UnifiedIndex) AllFields() []schema.Field {
	u.mu.RLock()
	defer u.mu.RUnlock()

	var out []schema.Field
	for _, model := range u.modelsLocked() {
		out = append(out, u.indexes[model].Fields()...)
	}
	return out
}

// Schema builds the merged schema across all registered indexes. Same-name
// fields with different kinds make the merge fail.
func (u *UnifiedIndex) Schema() (*schema.Schema, error) {
	fields := u.AllFields()
	if len(fields) == 0 {
		return nil, fmt.Errorf("no indexes registered")
	}
	s, err := schema.Build(fields)
	if err != nil {
		return nil, fmt.Errorf("unified schema: %w", err)
	}
	return s, nil
}

// DocumentFieldName returns the shared document field name.
func (u *UnifiedIndex) DocumentFieldName() (string, error) {
	s, err := u.Schema()
	if err != nil {
		return "", err
	}
	return s.DocumentField(), nil
}

func (u *UnifiedIndex) modelsLocked() []string {
	out := make([]string, 0, len(u.indexes))
	for model := range u.indexes {
		out = append(out, model)
	}
	sort.Strings(out)
	return out
}
