package compute

import (
	"fmt"
	"time"

	"github.com/cogentcore/webgpu/wgpu"
)

// uniformAlign is the allocation granularity used for constants buffers.
const uniformAlign = 16

// wgpuDevice is the Device implementation backed by a real GPU through
// WebGPU. Kernels compile to compute pipelines cached by name; constants
// travel through a small per-binding-set uniform buffer since WebGPU has no
// push constants.
type wgpuDevice struct {
	instance    *wgpu.Instance
	adapter     *wgpu.Adapter
	device      *wgpu.Device
	queue       *wgpu.Queue
	pipelines   map[string]*wgpuPipeline
	syncTimeout time.Duration
	syncRetries int
}

var _ Device = &wgpuDevice{}

type wgpuPipeline struct {
	pipeline *wgpu.ComputePipeline
	layout   *wgpu.BindGroupLayout
}

// NewWgpuDevice creates a GPU-backed device. No surface or window is
// involved; the adapter is requested headless for compute only.
//
// Parameters:
//   - opts: optional configuration
//
// Returns:
//   - Device: the GPU device
//   - error: adapter or device acquisition failure
func NewWgpuDevice(opts ...WgpuDeviceOption) (Device, error) {
	d := &wgpuDevice{
		instance:    wgpu.CreateInstance(nil),
		pipelines:   make(map[string]*wgpuPipeline),
		syncTimeout: defaultSyncTimeout,
		syncRetries: defaultSyncRetries,
	}
	cfg := wgpuDeviceConfig{}
	for _, opt := range opts {
		opt(&cfg, d)
	}

	a, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: cfg.forceFallbackAdapter,
	})
	if err != nil {
		return nil, fmt.Errorf("requesting adapter: %w", err)
	}
	d.adapter = a

	dev, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Fluid Compute Device",
	})
	if err != nil {
		return nil, fmt.Errorf("requesting device: %w", err)
	}
	d.device = dev
	d.queue = dev.GetQueue()

	return d, nil
}

type wgpuBuffer struct {
	label  string
	usage  BufferUsage
	stride uint64
	cap    uint64
	buf    *wgpu.Buffer
}

var _ Buffer = &wgpuBuffer{}

func (b *wgpuBuffer) Label() string  { return b.label }
func (b *wgpuBuffer) Stride() uint64 { return b.stride }
func (b *wgpuBuffer) Cap() uint64    { return b.cap }
func (b *wgpuBuffer) Size() uint64   { return b.stride * b.cap }
func (b *wgpuBuffer) Release()       { b.buf.Release() }

type wgpuBindingSet struct {
	label     string
	kernel    *Kernel
	bindGroup *wgpu.BindGroup
	constants *wgpu.Buffer
}

var _ BindingSet = &wgpuBindingSet{}

func (s *wgpuBindingSet) Release() {
	s.bindGroup.Release()
	if s.constants != nil {
		s.constants.Release()
	}
}

func (d *wgpuDevice) NewBuffer(label string, usage BufferUsage, stride, capacity uint64) (Buffer, error) {
	var wgpuUsage wgpu.BufferUsage
	switch usage {
	case BufferUsageStorage:
		wgpuUsage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst
	case BufferUsageVertex:
		wgpuUsage = wgpu.BufferUsageStorage | wgpu.BufferUsageVertex | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst
	case BufferUsageStaging:
		wgpuUsage = wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst
	}

	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  stride * capacity,
		Usage: wgpuUsage,
	})
	if err != nil {
		return nil, &AllocationError{Label: label, Bytes: stride * capacity, Err: err}
	}
	return &wgpuBuffer{label: label, usage: usage, stride: stride, cap: capacity, buf: buf}, nil
}

// pipelineFor returns the cached compute pipeline for a kernel, compiling
// it on first use. The bind group layout is derived from the kernel source:
// all storage bindings first, then the uniform constants binding if the
// kernel declares one.
func (d *wgpuDevice) pipelineFor(k *Kernel) (*wgpuPipeline, error) {
	if p, ok := d.pipelines[k.Name]; ok {
		return p, nil
	}

	module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: k.Name,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: k.Source,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("compiling %q: %w", k.Name, err)
	}

	storage := StorageBindings(k)
	entries := make([]wgpu.BindGroupLayoutEntry, 0, storage+1)
	for i := 0; i < storage; i++ {
		entries = append(entries, wgpu.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: wgpu.ShaderStageCompute,
			Buffer: wgpu.BufferBindingLayout{
				Type: wgpu.BufferBindingTypeStorage,
			},
		})
	}
	if hasUniformBinding(k.Source) {
		entries = append(entries, wgpu.BindGroupLayoutEntry{
			Binding:    uint32(storage),
			Visibility: wgpu.ShaderStageCompute,
			Buffer: wgpu.BufferBindingLayout{
				Type: wgpu.BufferBindingTypeUniform,
			},
		})
	}

	bgl, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   k.Name + " Layout",
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("layout for %q: %w", k.Name, err)
	}

	pipelineLayout, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            k.Name + " Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{bgl},
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline layout for %q: %w", k.Name, err)
	}

	created, err := d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  k.Name + " Compute Pipeline",
		Layout: pipelineLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: k.Entry,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline for %q: %w", k.Name, err)
	}

	p := &wgpuPipeline{pipeline: created, layout: bgl}
	d.pipelines[k.Name] = p
	return p, nil
}

func (d *wgpuDevice) NewBindingSet(label string, kernel *Kernel, buffers ...Buffer) (BindingSet, error) {
	want := StorageBindings(kernel)
	if len(buffers) != want {
		return nil, &BindingCountError{Kernel: kernel.Name, Want: want, Got: len(buffers)}
	}
	p, err := d.pipelineFor(kernel)
	if err != nil {
		return nil, err
	}

	entries := make([]wgpu.BindGroupEntry, 0, len(buffers)+1)
	for i, b := range buffers {
		wb, ok := b.(*wgpuBuffer)
		if !ok {
			return nil, fmt.Errorf("binding set %q: buffer %d was not created by this device", label, i)
		}
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: uint32(i),
			Buffer:  wb.buf,
			Offset:  0,
			Size:    wgpu.WholeSize,
		})
	}

	var constants *wgpu.Buffer
	if kernel.Constants > 0 {
		size := (kernel.Constants + uniformAlign - 1) / uniformAlign * uniformAlign
		constants, err = d.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: label + " Constants",
			Size:  size,
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return nil, &AllocationError{Label: label + " Constants", Bytes: size, Err: err}
		}
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: uint32(len(buffers)),
			Buffer:  constants,
			Offset:  0,
			Size:    wgpu.WholeSize,
		})
	}

	bindGroup, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   label + " Bind Group",
		Layout:  p.layout,
		Entries: entries,
	})
	if err != nil {
		if constants != nil {
			constants.Release()
		}
		return nil, fmt.Errorf("bind group %q: %w", label, err)
	}

	return &wgpuBindingSet{label: label, kernel: kernel, bindGroup: bindGroup, constants: constants}, nil
}

func (d *wgpuDevice) Execute(tasks ...*Task) error {
	for _, t := range tasks {
		if err := d.dispatch(t); err != nil {
			return err
		}
	}
	return nil
}

func (d *wgpuDevice) dispatch(t *Task) error {
	set, ok := t.Bindings.(*wgpuBindingSet)
	if !ok {
		return fmt.Errorf("dispatch %q: binding set was not created by this device", t.Kernel.Name)
	}
	if set.kernel != t.Kernel {
		return fmt.Errorf("dispatch %q: binding set was created for kernel %q", t.Kernel.Name, set.kernel.Name)
	}
	if uint64(len(t.Constants)) != t.Kernel.Constants {
		return fmt.Errorf("dispatch %q: constants block is %d bytes, want %d", t.Kernel.Name, len(t.Constants), t.Kernel.Constants)
	}

	p, err := d.pipelineFor(t.Kernel)
	if err != nil {
		return err
	}

	if set.constants != nil {
		d.queue.WriteBuffer(set.constants, 0, t.Constants)
	}

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("dispatch %q: %w", t.Kernel.Name, err)
	}
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(p.pipeline)
	pass.SetBindGroup(0, set.bindGroup, nil)
	pass.DispatchWorkgroups(t.Groups[0], max(t.Groups[1], 1), max(t.Groups[2], 1))
	pass.End()

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		encoder.Release()
		return fmt.Errorf("dispatch %q: %w", t.Kernel.Name, err)
	}
	d.queue.Submit(commandBuffer)
	commandBuffer.Release()
	encoder.Release()

	return d.await(t.Kernel.Name, 0)
}

// await blocks until the queue drains, funneling the wait through the shared
// timeout/retry policy.
func (d *wgpuDevice) await(stage string, bufferBytes uint64) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.device.Poll(true, nil)
	}()
	return awaitDone(done, stage, bufferBytes, d.syncTimeout, d.syncRetries)
}

func (d *wgpuDevice) WriteBuffer(dst Buffer, offset uint64, data []byte) error {
	wb, ok := dst.(*wgpuBuffer)
	if !ok {
		return fmt.Errorf("write to %q: buffer was not created by this device", dst.Label())
	}
	byteOff := offset * wb.stride
	if byteOff+uint64(len(data)) > wb.Size() {
		return fmt.Errorf("write to %q: %d bytes at element %d overruns %d byte buffer", wb.label, len(data), offset, wb.Size())
	}
	d.queue.WriteBuffer(wb.buf, byteOff, data)
	return nil
}

func (d *wgpuDevice) CopyBuffer(src, dst Buffer, regions ...CopyRegion) error {
	sb, okS := src.(*wgpuBuffer)
	db, okD := dst.(*wgpuBuffer)
	if !okS || !okD {
		return fmt.Errorf("copy %q -> %q: buffers were not created by this device", src.Label(), dst.Label())
	}
	if sb.stride != db.stride {
		return fmt.Errorf("copy %q -> %q: stride mismatch (%d vs %d)", sb.label, db.label, sb.stride, db.stride)
	}

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("copy %q -> %q: %w", sb.label, db.label, err)
	}
	var total uint64
	for _, r := range regions {
		if r.Count == 0 {
			continue
		}
		if r.SrcOffset+r.Count > sb.cap || r.DstOffset+r.Count > db.cap {
			encoder.Release()
			return fmt.Errorf("copy %q -> %q: region {%d %d %d} out of range", sb.label, db.label, r.SrcOffset, r.DstOffset, r.Count)
		}
		n := r.Count * sb.stride
		encoder.CopyBufferToBuffer(sb.buf, r.SrcOffset*sb.stride, db.buf, r.DstOffset*db.stride, n)
		total += n
	}
	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		encoder.Release()
		return fmt.Errorf("copy %q -> %q: %w", sb.label, db.label, err)
	}
	d.queue.Submit(commandBuffer)
	commandBuffer.Release()
	encoder.Release()

	return d.await("copy "+sb.label+" -> "+db.label, total)
}

func (d *wgpuDevice) ReadBuffer(src Buffer, offset uint64, out []byte) error {
	wb, ok := src.(*wgpuBuffer)
	if !ok {
		return fmt.Errorf("read from %q: buffer was not created by this device", src.Label())
	}
	byteOff := offset * wb.stride
	size := uint64(len(out))
	if byteOff+size > wb.Size() {
		return fmt.Errorf("read from %q: %d bytes at element %d overruns %d byte buffer", wb.label, len(out), offset, wb.Size())
	}

	readback, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: wb.label + " Readback",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return &AllocationError{Label: wb.label + " Readback", Bytes: size, Err: err}
	}
	defer readback.Release()

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("read from %q: %w", wb.label, err)
	}
	encoder.CopyBufferToBuffer(wb.buf, byteOff, readback, 0, size)
	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		encoder.Release()
		return fmt.Errorf("read from %q: %w", wb.label, err)
	}
	d.queue.Submit(commandBuffer)
	commandBuffer.Release()
	encoder.Release()

	var mapStatus wgpu.BufferMapAsyncStatus
	if err := readback.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		mapStatus = status
	}); err != nil {
		return fmt.Errorf("read from %q: %w", wb.label, err)
	}
	if err := d.await("read "+wb.label, size); err != nil {
		return err
	}
	if mapStatus != wgpu.BufferMapAsyncStatusSuccess {
		return fmt.Errorf("read from %q: map failed with status %d", wb.label, mapStatus)
	}

	copy(out, readback.GetMappedRange(0, uint(size)))
	readback.Unmap()
	return nil
}

func (d *wgpuDevice) Release() {
	for _, p := range d.pipelines {
		p.pipeline.Release()
		p.layout.Release()
	}
	d.pipelines = nil
	if d.device != nil {
		d.device.Release()
	}
	if d.adapter != nil {
		d.adapter.Release()
	}
	if d.instance != nil {
		d.instance.Release()
	}
}
