//go:build nogpu

package decode

// NewGPUBackend always fails in builds without GPU support.
func NewGPUBackend() (Backend, error) {
	return nil, ErrGPUUnavailable
}
