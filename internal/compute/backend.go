package compute

import "fmt"

// Backend runs data-parallel loops. For splits [0, n) into chunks, calls fn
// once per chunk and returns only after every chunk has finished, so
// consecutive For calls are separated by a full barrier.
type Backend interface {
	Name() string
	Workers() int
	For(n int, fn func(start, end int))
}

var activeBackend Backend = NewCPUBackend(0)

func SetBackend(b Backend) {
	activeBackend = b
}

func GetBackend() Backend {
	return activeBackend
}

// New selects a backend by name ("cpu" or "serial"). workers <= 0 uses
// every available CPU.
func New(name string, workers int) (Backend, error) {
	switch name {
	case "serial":
		return NewSerialBackend(), nil
	case "cpu", "":
		return NewCPUBackend(workers), nil
	default:
		return nil, fmt.Errorf("unknown backend: %s", name)
	}
}

type SerialBackend struct{}

func NewSerialBackend() *SerialBackend {
	return &SerialBackend{}
}

func (s *SerialBackend) Name() string { return "serial" }
func (s *SerialBackend) Workers() int { return 1 }

func (s *SerialBackend) For(n int, fn func(start, end int)) {
	if n > 0 {
		fn(0, n)
	}
}
