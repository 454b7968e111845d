package buffer

import (
	"fmt"

	"coredb/types"
)

// Parallel shards a logical buffer pool across several Instances, each
// owning a disjoint slice of the page-id space (page_id % numInstances ==
// instance_index). Routing by page id means every operation on an existing
// page goes straight to its owning shard with no coordination between
// shards; only NewPage needs a pool-wide decision, and that decision is a
// plain round robin over a rotating start index, not a size- or load-aware
// choice.
type Parallel struct {
	instances  []*Instance
	startIndex int
}

// NewParallel builds a Parallel pool of numInstances shards, each of size
// poolSizePerInstance, backed by the disks returned from newDisk for each
// shard index.
func NewParallel(poolSizePerInstance, numInstances int, newDisk func(shardIndex int) (DiskManager, error)) (*Parallel, error) {
	instances := make([]*Instance, numInstances)
	for i := 0; i < numInstances; i++ {
		disk, err := newDisk(i)
		if err != nil {
			return nil, fmt.Errorf("buffer: shard %d disk: %w", i, err)
		}
		instances[i] = NewShardedInstance(poolSizePerInstance, disk, numInstances, i)
	}
	return &Parallel{instances: instances}, nil
}

// shardFor returns the instance responsible for id.
func (p *Parallel) shardFor(id types.PageID) *Instance {
	idx := int(id) % len(p.instances)
	if idx < 0 {
		idx += len(p.instances)
	}
	return p.instances[idx]
}

// NewPage tries each shard starting from a rotating index until one can
// produce a fresh page, advancing the start index on every call whether it
// succeeds or fails, so allocation pressure spreads evenly across shards.
func (p *Parallel) NewPage() (*types.PageID, *Page, error) {
	n := len(p.instances)
	start := p.startIndex
	p.startIndex = (p.startIndex + 1) % n

	var lastErr error
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		id, page, err := p.instances[idx].NewPage()
		if err == nil {
			return id, page, nil
		}
		lastErr = err
	}
	return nil, nil, fmt.Errorf("buffer: all shards exhausted: %w", lastErr)
}

func (p *Parallel) FetchPage(id types.PageID) (*Page, error) {
	return p.shardFor(id).FetchPage(id)
}

func (p *Parallel) UnpinPage(id types.PageID, isDirty bool) bool {
	return p.shardFor(id).UnpinPage(id, isDirty)
}

func (p *Parallel) FlushPage(id types.PageID) bool {
	return p.shardFor(id).FlushPage(id)
}

func (p *Parallel) DeletePage(id types.PageID) error {
	return p.shardFor(id).DeletePage(id)
}

func (p *Parallel) FlushAll() {
	for _, inst := range p.instances {
		inst.FlushAll()
	}
}

func (p *Parallel) Stats() Stats {
	total := Stats{}
	for _, inst := range p.instances {
		s := inst.Stats()
		total.TotalPages += s.TotalPages
		total.PinnedPages += s.PinnedPages
		total.DirtyPages += s.DirtyPages
		total.Capacity += s.Capacity
	}
	return total
}
