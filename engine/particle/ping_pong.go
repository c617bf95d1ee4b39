package particle

import "github.com/hydrosim/hydro-go/engine/compute"

// PingPong pairs a front store the simulation and a renderer read from with
// a back store that spawn batches accumulate into. Committing copies the
// back population into the front so a frame never observes a half-replaced
// population.
type PingPong interface {
	// Front returns the store the simulation steps over.
	Front() Store
	// Back returns the store spawn batches are staged into.
	Back() Store
	// Commit copies the back population into the front. An empty back store
	// makes this a no-op.
	Commit() error
	// Release frees both stores.
	Release()
}

type pingPong struct {
	front Store
	back  Store
}

var _ PingPong = &pingPong{}

// NewPingPong allocates a front/back store pair with identical capacity.
//
// Parameters:
//   - device: the compute device to allocate on
//   - opts: options applied to both stores (labels are overridden per side)
//
// Returns:
//   - PingPong: the pair
//   - error: buffer allocation failure
func NewPingPong(device compute.Device, opts ...StoreOption) (PingPong, error) {
	front, err := NewStore(device, append(opts, WithLabel("particles front"))...)
	if err != nil {
		return nil, err
	}
	back, err := NewStore(device, append(opts, WithLabel("particles back"))...)
	if err != nil {
		front.Release()
		return nil, err
	}
	return &pingPong{front: front, back: back}, nil
}

func (p *pingPong) Front() Store { return p.front }
func (p *pingPong) Back() Store  { return p.back }

func (p *pingPong) Commit() error {
	return p.front.SwapFrom(p.back)
}

func (p *pingPong) Release() {
	p.front.Release()
	p.back.Release()
}
