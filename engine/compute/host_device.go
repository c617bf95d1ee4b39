package compute

import (
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

// hostDevice is the headless Device implementation. Buffers are plain host
// memory and dispatches execute each kernel's host mirror over a dynamic
// worker pool, one pool task per workgroup, with a WaitGroup barrier per
// dispatch. It exists so the full pipeline can run, and be tested, on
// machines with no GPU at all.
type hostDevice struct {
	pool        worker.DynamicWorkerPool
	syncTimeout time.Duration
	syncRetries int
	released    bool
}

var _ Device = &hostDevice{}

// NewHostDevice creates a headless device. By default the dispatch pool is
// sized by the option defaults in HostDeviceOption; pass options to tune it.
//
// Parameters:
//   - opts: optional configuration
//
// Returns:
//   - Device: the headless device
func NewHostDevice(opts ...HostDeviceOption) Device {
	d := &hostDevice{
		syncTimeout: defaultSyncTimeout,
		syncRetries: defaultSyncRetries,
	}
	cfg := hostDeviceConfig{workers: defaultHostWorkers, queueDepth: defaultHostQueueDepth}
	for _, opt := range opts {
		opt(&cfg, d)
	}
	d.pool = worker.NewDynamicWorkerPool(cfg.workers, cfg.queueDepth, 1*time.Second)
	return d
}

type hostBuffer struct {
	label  string
	usage  BufferUsage
	stride uint64
	cap    uint64
	data   []byte
}

var _ Buffer = &hostBuffer{}

func (b *hostBuffer) Label() string  { return b.label }
func (b *hostBuffer) Stride() uint64 { return b.stride }
func (b *hostBuffer) Cap() uint64    { return b.cap }
func (b *hostBuffer) Size() uint64   { return b.stride * b.cap }
func (b *hostBuffer) Release()       { b.data = nil }

type hostBindingSet struct {
	label   string
	kernel  *Kernel
	buffers []*hostBuffer
}

var _ BindingSet = &hostBindingSet{}

func (s *hostBindingSet) Release() { s.buffers = nil }

func (d *hostDevice) NewBuffer(label string, usage BufferUsage, stride, capacity uint64) (Buffer, error) {
	if stride == 0 || capacity == 0 {
		return nil, &AllocationError{Label: label, Bytes: stride * capacity}
	}
	return &hostBuffer{
		label:  label,
		usage:  usage,
		stride: stride,
		cap:    capacity,
		data:   make([]byte, stride*capacity),
	}, nil
}

func (d *hostDevice) NewBindingSet(label string, kernel *Kernel, buffers ...Buffer) (BindingSet, error) {
	want := StorageBindings(kernel)
	if len(buffers) != want {
		return nil, &BindingCountError{Kernel: kernel.Name, Want: want, Got: len(buffers)}
	}
	hbs := make([]*hostBuffer, len(buffers))
	for i, b := range buffers {
		hb, ok := b.(*hostBuffer)
		if !ok {
			return nil, fmt.Errorf("binding set %q: buffer %d was not created by this device", label, i)
		}
		hbs[i] = hb
	}
	return &hostBindingSet{label: label, kernel: kernel, buffers: hbs}, nil
}

func (d *hostDevice) Execute(tasks ...*Task) error {
	for _, t := range tasks {
		if err := d.dispatch(t); err != nil {
			return err
		}
	}
	return nil
}

// dispatch runs one task to completion. Workgroups are submitted to the pool
// as independent tasks; invocations within a workgroup run sequentially in
// submission order, which is what the sequential-scan kernels rely on.
func (d *hostDevice) dispatch(t *Task) error {
	set, ok := t.Bindings.(*hostBindingSet)
	if !ok {
		return fmt.Errorf("dispatch %q: binding set was not created by this device", t.Kernel.Name)
	}
	if set.kernel != t.Kernel {
		return fmt.Errorf("dispatch %q: binding set was created for kernel %q", t.Kernel.Name, set.kernel.Name)
	}
	if uint64(len(t.Constants)) != t.Kernel.Constants {
		return fmt.Errorf("dispatch %q: constants block is %d bytes, want %d", t.Kernel.Name, len(t.Constants), t.Kernel.Constants)
	}

	bindings := make([][]byte, len(set.buffers))
	var totalBytes uint64
	for i, b := range set.buffers {
		bindings[i] = b.data
		totalBytes += b.Size()
	}

	groups := t.Groups[0] * max(t.Groups[1], 1) * max(t.Groups[2], 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for g := uint32(0); g < groups; g++ {
			wg.Add(1)
			group := g
			d.pool.SubmitTask(worker.Task{
				ID: int(group),
				Do: func() (any, error) {
					defer wg.Done()
					inv := Invocation{
						Group:     group,
						Groups:    groups,
						Bindings:  bindings,
						Constants: t.Constants,
					}
					for local := uint32(0); local < WorkgroupSize; local++ {
						inv.Index = group*WorkgroupSize + local
						t.Kernel.Host(&inv)
					}
					return nil, nil
				},
			})
		}
		wg.Wait()
	}()
	return awaitDone(done, t.Kernel.Name, totalBytes, d.syncTimeout, d.syncRetries)
}

func (d *hostDevice) WriteBuffer(dst Buffer, offset uint64, data []byte) error {
	hb, ok := dst.(*hostBuffer)
	if !ok {
		return fmt.Errorf("write to %q: buffer was not created by this device", dst.Label())
	}
	byteOff := offset * hb.stride
	if byteOff+uint64(len(data)) > hb.Size() {
		return fmt.Errorf("write to %q: %d bytes at element %d overruns %d byte buffer", hb.label, len(data), offset, hb.Size())
	}
	copy(hb.data[byteOff:], data)
	return nil
}

func (d *hostDevice) CopyBuffer(src, dst Buffer, regions ...CopyRegion) error {
	sb, okS := src.(*hostBuffer)
	db, okD := dst.(*hostBuffer)
	if !okS || !okD {
		return fmt.Errorf("copy %q -> %q: buffers were not created by this device", src.Label(), dst.Label())
	}
	if sb.stride != db.stride {
		return fmt.Errorf("copy %q -> %q: stride mismatch (%d vs %d)", sb.label, db.label, sb.stride, db.stride)
	}
	for _, r := range regions {
		if r.Count == 0 {
			continue
		}
		if r.SrcOffset+r.Count > sb.cap || r.DstOffset+r.Count > db.cap {
			return fmt.Errorf("copy %q -> %q: region {%d %d %d} out of range", sb.label, db.label, r.SrcOffset, r.DstOffset, r.Count)
		}
		n := r.Count * sb.stride
		copy(db.data[r.DstOffset*db.stride:][:n], sb.data[r.SrcOffset*sb.stride:][:n])
	}
	return nil
}

func (d *hostDevice) ReadBuffer(src Buffer, offset uint64, out []byte) error {
	hb, ok := src.(*hostBuffer)
	if !ok {
		return fmt.Errorf("read from %q: buffer was not created by this device", src.Label())
	}
	byteOff := offset * hb.stride
	if byteOff+uint64(len(out)) > hb.Size() {
		return fmt.Errorf("read from %q: %d bytes at element %d overruns %d byte buffer", hb.label, len(out), offset, hb.Size())
	}
	copy(out, hb.data[byteOff:])
	return nil
}

// Release marks the device unusable. The worker pool reaps its goroutines
// via its idle timeout, so there is nothing to tear down eagerly.
func (d *hostDevice) Release() {
	d.released = true
}
