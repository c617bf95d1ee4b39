package simulation

import "github.com/hydrosim/hydro-go/engine/compute"

// Stage identifies one dispatch slot of the per-frame pipeline. The binding
// cache is keyed by stage, so every dispatch that can carry distinct buffer
// identities needs its own value.
type Stage int

const (
	StageApplyGravity Stage = iota
	StagePredictPosition
	StageMortonHash
	StageClearHistogram
	StageRadixHistogram
	StageRadixPrefixSum
	StageRadixScatter
	StageClearCellIndex
	StageBuildCellIndex
	StageNeighborSearch
	StageDensity
	StageLambda
	StageDisplacement
	StageApplyDisplacement
	StageUpdatePosition
	stageCount
)

var stageNames = [stageCount]string{
	"apply gravity",
	"predict position",
	"morton hash",
	"clear histogram",
	"radix histogram",
	"radix prefix sum",
	"radix scatter",
	"clear cell index",
	"build cell index",
	"neighbor search",
	"density",
	"lambda",
	"displacement",
	"apply displacement",
	"update position",
}

func (s Stage) String() string {
	if s < 0 || s >= stageCount {
		return "unknown stage"
	}
	return stageNames[s]
}

// bindingCache holds one BindingSet per pipeline stage. Sets are created on
// first use and reused until invalidated; the radix sort invalidates the
// whole cache after each buffer role swap since any stage bound to the hash
// or index buffers would otherwise dispatch against stale roles.
type bindingCache struct {
	device compute.Device
	sets   [stageCount]compute.BindingSet
}

func newBindingCache(device compute.Device) *bindingCache {
	return &bindingCache{device: device}
}

// bindings returns the cached set for a stage, creating it from the given
// buffers when absent.
func (c *bindingCache) bindings(stage Stage, kernel *compute.Kernel, buffers ...compute.Buffer) (compute.BindingSet, error) {
	if set := c.sets[stage]; set != nil {
		return set, nil
	}
	set, err := c.device.NewBindingSet(stage.String(), kernel, buffers...)
	if err != nil {
		return nil, err
	}
	c.sets[stage] = set
	return set, nil
}

// invalidate drops the cached sets for the given stages.
func (c *bindingCache) invalidate(stages ...Stage) {
	for _, s := range stages {
		if c.sets[s] != nil {
			c.sets[s].Release()
			c.sets[s] = nil
		}
	}
}

// invalidateAll drops every cached set.
func (c *bindingCache) invalidateAll() {
	for s := Stage(0); s < stageCount; s++ {
		c.invalidate(s)
	}
}

func (c *bindingCache) release() {
	c.invalidateAll()
}
