package decode

import (
	"runtime"
	"sync"
)

// CPUBackend decodes on the CPU in parallel horizontal stripes. Workers only
// live for the duration of one call.
type CPUBackend struct {
	workers int
}

// NewCPUBackend creates a CPU backend. workers <= 0 selects one stripe per
// hardware thread minus the caller's, and never fewer than one.
func NewCPUBackend(workers int) *CPUBackend {
	if workers <= 0 {
		workers = runtime.NumCPU() - 1
	}
	return &CPUBackend{workers: max(workers, 1)}
}

// Name implements Backend.
func (b *CPUBackend) Name() string { return "cpu" }

// Workers returns the configured stripe count.
func (b *CPUBackend) Workers() int { return b.workers }

// Close implements Backend.
func (b *CPUBackend) Close() error { return nil }

// DecodeYUV422 implements Backend.
func (b *CPUBackend) DecodeYUV422(src []byte, width, height, stride int, order Order, dst []byte) error {
	rOff := order.swapOffset()
	rowOut := width * 3
	b.run(height, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			yuv422Row(src[y*stride:y*stride+width*2], dst[y*rowOut:(y+1)*rowOut], rOff)
		}
	})
	return nil
}

// run calls fn once per stripe and waits for all of them.
func (b *CPUBackend) run(height int, fn func(y0, y1 int)) {
	stripes := Stripes(height, b.workers)
	if len(stripes) == 1 {
		fn(stripes[0][0], stripes[0][1])
		return
	}
	var wg sync.WaitGroup
	for _, s := range stripes {
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			fn(y0, y1)
		}(s[0], s[1])
	}
	wg.Wait()
}

// Stripes splits [0, height) into n contiguous half-open row ranges that
// tile it exactly. n is capped at height.
func Stripes(height, n int) [][2]int {
	if height <= 0 {
		return nil
	}
	n = max(1, min(n, height))
	out := make([][2]int, n)
	for i := range n {
		out[i] = [2]int{i * height / n, (i + 1) * height / n}
	}
	return out
}
