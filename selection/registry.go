package selection

import (
	"reflect"

	"github.com/YuminosukeSato/studentperf/core/model"
	"github.com/YuminosukeSato/studentperf/pkg/errors"
)

// SearchSpace maps a hyperparameter name to its candidate values.
type SearchSpace map[string][]interface{}

// Copy returns a copy that shares no slices with s.
func (s SearchSpace) Copy() SearchSpace {
	out := make(SearchSpace, len(s))
	for k, v := range s {
		out[k] = append([]interface{}(nil), v...)
	}
	return out
}

// Size returns the number of configurations in the cartesian product.
func (s SearchSpace) Size() int {
	n := 1
	for _, v := range s {
		n *= len(v)
	}
	return n
}

// Entry is one registered candidate.
type Entry struct {
	Name      string
	Prototype model.Regressor
	Space     SearchSpace
}

// Registry is an ordered set of candidates. Iteration order is registration
// order.
type Registry struct {
	entries []Entry
	index   map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register appends a candidate. Names must be unique and non-empty.
func (r *Registry) Register(name string, prototype model.Regressor, space SearchSpace) error {
	if name == "" {
		return errors.NewValidationError("name", "must not be empty", name)
	}
	if _, dup := r.index[name]; dup {
		return errors.NewValidationError("name", "already registered", name)
	}
	if prototype == nil {
		return errors.NewValidationError("prototype", "must not be nil", name)
	}
	// Clone はハイパーパラメータをすべて引き継がなければならない
	if want, got := prototype.GetParams(), prototype.Clone().GetParams(); !reflect.DeepEqual(want, got) {
		return errors.NewValidationError("prototype", "clone does not preserve hyperparameters "+got.String(), name)
	}
	for param, values := range space {
		if len(values) == 0 {
			return errors.NewValidationError(param, "search space has no values", name)
		}
	}
	r.index[name] = len(r.entries)
	r.entries = append(r.entries, Entry{Name: name, Prototype: prototype, Space: space.Copy()})
	return nil
}

// Entries returns the candidates in registration order.
func (r *Registry) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// Get looks up a candidate by name.
func (r *Registry) Get(name string) (Entry, bool) {
	i, ok := r.index[name]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}

// Len returns the number of candidates.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Names returns the candidate names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.Name
	}
	return names
}
