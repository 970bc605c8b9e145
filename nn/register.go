package nn

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Names of the built-in neuron classes.
const (
	StandardClass = "standard"
	MaxClass      = "max"
	AnnealedClass = "annealed"
)

var (
	neuronMu      sync.RWMutex
	neuronClasses = map[string]func() Neuron{}
)

func init() {
	list := map[string]func() Neuron{
		StandardClass: func() Neuron { return new(StandardNeuron) },
		MaxClass:      func() Neuron { return new(MaxNeuron) },
		AnnealedClass: func() Neuron { return new(AnnealedNeuron) },
	}
	for name, f := range list {
		if err := RegisterNeuron(name, f); err != nil {
			panic(err)
		}
	}
}

// RegisterNeuron makes a neuron variant available under name. The constructor
// must return a fresh neuron on every call.
func RegisterNeuron(name string, create func() Neuron) error {
	if name == "" || create == nil {
		return errors.New("neuron class needs a name and a constructor")
	}
	neuronMu.Lock()
	defer neuronMu.Unlock()
	if _, ok := neuronClasses[name]; ok {
		return errors.Errorf("neuron class %q already registered", name)
	}
	neuronClasses[name] = create
	return nil
}

// NewNeuron creates a neuron of the named class.
func NewNeuron(class string) (Neuron, error) {
	neuronMu.RLock()
	create, ok := neuronClasses[class]
	neuronMu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrUnknownNeuronClass, "%q", class)
	}
	n := create()
	if n == nil {
		return nil, errors.Errorf("neuron class %q returned nil", class)
	}
	return n, nil
}

// RegisteredNeuronClasses lists the registered class names.
func RegisteredNeuronClasses() []string {
	neuronMu.RLock()
	defer neuronMu.RUnlock()
	out := make([]string, 0, len(neuronClasses))
	for k := range neuronClasses {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
