//go:build !nogpu

package decode

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

//go:embed shaders/yuv422.wgsl
var yuv422ShaderWGSL string

const (
	workgroupSize   = 64
	maxGroupsPerDim = 65535
	paramsSize      = 16
	fenceTimeout    = 5 * time.Second
)

// GPUBackend runs the 4:2:2 kernel as a wgpu/hal compute dispatch.
type GPUBackend struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	adapter  string

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline
}

// NewGPUBackend opens the first discrete or integrated Vulkan adapter and
// builds the decode pipeline.
func NewGPUBackend() (Backend, error) {
	b := &GPUBackend{}
	if err := b.init(); err != nil {
		b.destroy()
		return nil, fmt.Errorf("%w: %w", ErrGPUUnavailable, err)
	}
	return b, nil
}

// CompileYUV422Shader compiles the embedded WGSL kernel to SPIR-V words.
func CompileYUV422Shader() ([]uint32, error) {
	spirvBytes, err := naga.Compile(yuv422ShaderWGSL)
	if err != nil {
		return nil, fmt.Errorf("compile yuv422 shader: %w", err)
	}
	// SPIR-V is little-endian 32-bit words
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirvBytes[i*4:])
	}
	return words, nil
}

func (b *GPUBackend) init() error {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	b.instance = instance

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return fmt.Errorf("no GPU adapters found")
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return fmt.Errorf("open device: %w", err)
	}
	b.device = openDev.Device
	b.queue = openDev.Queue
	b.adapter = selected.Info.Name

	return b.createPipeline()
}

func (b *GPUBackend) createPipeline() error {
	spirv, err := CompileYUV422Shader()
	if err != nil {
		return err
	}
	b.shader, err = b.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "yuv422",
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return fmt.Errorf("create shader module: %w", err)
	}

	b.bindLayout, err = b.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "yuv422_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}

	b.pipeLayout, err = b.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: "yuv422_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{b.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}

	b.pipeline, err = b.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: "yuv422_pipeline", Layout: b.pipeLayout,
		Compute: hal.ComputeState{Module: b.shader, EntryPoint: "main"},
	})
	if err != nil {
		return fmt.Errorf("create compute pipeline: %w", err)
	}
	return nil
}

// Name implements Backend.
func (b *GPUBackend) Name() string {
	if b.adapter == "" {
		return "gpu"
	}
	return "gpu:" + b.adapter
}

// Close implements Backend.
func (b *GPUBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.destroy()
	return nil
}

func (b *GPUBackend) destroy() {
	if b.device != nil {
		if b.pipeline != nil {
			b.device.DestroyComputePipeline(b.pipeline)
		}
		if b.pipeLayout != nil {
			b.device.DestroyPipelineLayout(b.pipeLayout)
		}
		if b.bindLayout != nil {
			b.device.DestroyBindGroupLayout(b.bindLayout)
		}
		if b.shader != nil {
			b.device.DestroyShaderModule(b.shader)
		}
		b.device.Destroy()
	}
	if b.instance != nil {
		b.instance.Destroy()
	}
	b.pipeline, b.pipeLayout, b.bindLayout, b.shader = nil, nil, nil, nil
	b.device, b.queue, b.instance = nil, nil, nil
}

// DecodeYUV422 implements Backend.
func (b *GPUBackend) DecodeYUV422(src []byte, width, height, stride int, order Order, dst []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.device == nil {
		return ErrGPUUnavailable
	}

	pairs := width * height / 2
	if pairs == 0 {
		return nil
	}
	packed := packRows(src, width, height, stride)
	srcSize := uint64(pairs * 4)
	dstSize := uint64(pairs * 8)

	groups := (pairs + workgroupSize - 1) / workgroupSize
	groupsX := min(groups, maxGroupsPerDim)
	groupsY := (groups + groupsX - 1) / groupsX

	params := make([]byte, paramsSize)
	binary.LittleEndian.PutUint32(params[0:], uint32(pairs))              //nolint:gosec // bounded by frame size
	binary.LittleEndian.PutUint32(params[4:], uint32(order.swapOffset())) //nolint:gosec // 0 or 2
	binary.LittleEndian.PutUint32(params[8:], uint32(groupsX))            //nolint:gosec // <= 65535

	uniformBuf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "yuv422_params", Size: paramsSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create uniform buffer: %w", err)
	}
	defer b.device.DestroyBuffer(uniformBuf)

	srcBuf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "yuv422_src", Size: srcSize,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create source buffer: %w", err)
	}
	defer b.device.DestroyBuffer(srcBuf)

	dstBuf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "yuv422_dst", Size: dstSize,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("create output buffer: %w", err)
	}
	defer b.device.DestroyBuffer(dstBuf)

	stagingBuf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "yuv422_staging", Size: dstSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create staging buffer: %w", err)
	}
	defer b.device.DestroyBuffer(stagingBuf)

	b.queue.WriteBuffer(uniformBuf, 0, params)
	b.queue.WriteBuffer(srcBuf, 0, packed)

	bindGroup, err := b.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: "yuv422_bind", Layout: b.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: uniformBuf.NativeHandle(), Offset: 0, Size: paramsSize}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: srcBuf.NativeHandle(), Offset: 0, Size: srcSize}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: dstBuf.NativeHandle(), Offset: 0, Size: dstSize}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group: %w", err)
	}
	defer b.device.DestroyBindGroup(bindGroup)

	encoder, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "yuv422_encoder"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("yuv422"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "yuv422_pass"})
	pass.SetPipeline(b.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.Dispatch(uint32(groupsX), uint32(groupsY), 1) //nolint:gosec // bounded above
	pass.End()
	encoder.CopyBufferToBuffer(dstBuf, stagingBuf, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: dstSize},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer b.device.FreeCommandBuffer(cmdBuf)

	fence, err := b.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer b.device.DestroyFence(fence)
	if err := b.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	fenceOK, err := b.device.Wait(fence, 1, fenceTimeout)
	if err != nil || !fenceOK {
		return fmt.Errorf("wait for GPU: ok=%v err=%w", fenceOK, err)
	}

	readback := make([]byte, dstSize)
	if err := b.queue.ReadBuffer(stagingBuf, 0, readback); err != nil {
		return fmt.Errorf("readback: %w", err)
	}
	unpackRGB(readback, dst, width*height)
	return nil
}

// packRows drops row padding so texel pair i sits at word i.
func packRows(src []byte, width, height, stride int) []byte {
	row := width * 2
	if stride == row {
		return src[:row*height]
	}
	out := make([]byte, row*height)
	for y := 0; y < height; y++ {
		copy(out[y*row:(y+1)*row], src[y*stride:])
	}
	return out
}

// unpackRGB converts one packed word per pixel into three bytes.
func unpackRGB(words, dst []byte, pixels int) {
	for i := 0; i < pixels; i++ {
		copy(dst[i*3:i*3+3], words[i*4:i*4+3])
	}
}
