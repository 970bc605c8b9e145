// Package funcs holds the activation, cost and feature-transform functions a
// layered network refers to by name, and the registries that resolve them.
package funcs

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// ErrUnknownFunction is returned when a name is not registered.
var ErrUnknownFunction = errors.New("unknown function")

type registry[T any] struct {
	mu    sync.RWMutex
	kind  string
	items map[string]T
}

func newRegistry[T any](kind string) *registry[T] {
	return &registry[T]{kind: kind, items: map[string]T{}}
}

func (r *registry[T]) register(name string, v T) error {
	if name == "" {
		return errors.Errorf("%s: empty name", r.kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[name]; ok {
		return errors.Errorf("%s %q already registered", r.kind, name)
	}
	r.items[name] = v
	return nil
}

func (r *registry[T]) lookup(name string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.items[name]
	if !ok {
		var zero T
		return zero, errors.Wrapf(ErrUnknownFunction, "%s %q", r.kind, name)
	}
	return v, nil
}

func (r *registry[T]) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.items))
	for k := range r.items {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var (
	activators   = newRegistry[Activator]("activation")
	costers      = newRegistry[Coster]("cost function")
	transformers = newRegistry[Transformer]("feature transformer")
)

func init() {
	for _, a := range []Activator{Identity{}, Sigmoid{}, Tanh{}, ReLU{}, Softplus{}, Softmax{}} {
		mustRegister(RegisterActivator(a))
	}
	for _, c := range []Coster{SquaredError{}, CrossEntropy{}, CategoricalCrossEntropy{}} {
		mustRegister(RegisterCoster(c))
	}
	for _, t := range []Transformer{IdentityTransformer{}, UnitNorm{}} {
		mustRegister(RegisterTransformer(t))
	}
}

func mustRegister(err error) {
	if err != nil {
		panic(err)
	}
}

// RegisterActivator makes a available under a.String(). Registering a name
// twice is an error.
func RegisterActivator(a Activator) error { return activators.register(a.String(), a) }

// LookupActivator resolves an activation function by name.
func LookupActivator(name string) (Activator, error) { return activators.lookup(name) }

// Activators lists the registered activation names.
func Activators() []string { return activators.names() }

// RegisterCoster makes c available under c.String().
func RegisterCoster(c Coster) error { return costers.register(c.String(), c) }

// LookupCoster resolves a cost function by name.
func LookupCoster(name string) (Coster, error) { return costers.lookup(name) }

// RegisterTransformer makes t available under t.String().
func RegisterTransformer(t Transformer) error { return transformers.register(t.String(), t) }

// LookupTransformer resolves a feature transformer by name.
func LookupTransformer(name string) (Transformer, error) { return transformers.lookup(name) }
