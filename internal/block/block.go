// Package block owns the residual graph data of one block: per-node excess,
// distance label, per-arc residual capacity and terminal capacities, plus
// the cross-boundary inbox and the active-node FIFO the discharge engine
// runs on.
//
// A block's storage is exclusive to the worker currently claiming it; the
// inbox is the only cross-block shared mutable state and carries its own
// lock. Neighboring blocks of a claimed region are fringe-locked by the
// scheduler, which is what makes the direct label reads and sister-capacity
// writes in the discharge engine safe.
package block

import (
	"gridflow/internal/layout"
	"gridflow/pkg/domain"
)

// Block is the unit of scheduling: a rectangle of cells and their nodes.
type Block struct {
	ID  int
	Loc uint16

	// Per-node state, indexed by node subid.
	Excess []domain.Flow
	Label  []int32

	// Cap is indexed by sub*stride+e where stride is the layout MaxDegree.
	Cap []domain.Capacity

	// Terminal arcs. SrcCap/SnkCap are residual capacities; SrcUsed/SnkUsed
	// carry the flow already taken, so terminal pushes stay antisymmetric
	// and refundable.
	SrcCap  []domain.Capacity
	SrcUsed []domain.Capacity
	SnkCap  []domain.Capacity
	SnkUsed []domain.Capacity

	stride int

	inbox inbox
	queue bucketQueue
}

// NewBlocks allocates all blocks of a layout. Payload arrays are carved out
// of shared slabs covering blocksPerPage blocks each, so blocks that are
// scheduled together stay close in memory. bucketDensity is the label grain
// of the per-block active FIFO.
func NewBlocks(l *layout.Layout, blocksPerPage, bucketDensity int) []*Block {
	if blocksPerPage <= 0 {
		blocksPerPage = 1
	}

	n := l.NodesPerBlock
	capLen := n * l.MaxDegree
	blocks := make([]*Block, l.BlockCount)

	for base := 0; base < l.BlockCount; base += blocksPerPage {
		page := blocksPerPage
		if base+page > l.BlockCount {
			page = l.BlockCount - base
		}

		excess := make([]domain.Flow, page*n)
		label := make([]int32, page*n)
		caps := make([]domain.Capacity, page*capLen)
		srcCap := make([]domain.Capacity, page*n)
		srcUsed := make([]domain.Capacity, page*n)
		snkCap := make([]domain.Capacity, page*n)
		snkUsed := make([]domain.Capacity, page*n)

		for i := 0; i < page; i++ {
			id := base + i
			blocks[id] = &Block{
				ID:      id,
				Loc:     l.BlockLoc[id],
				Excess:  excess[i*n : (i+1)*n : (i+1)*n],
				Label:   label[i*n : (i+1)*n : (i+1)*n],
				Cap:     caps[i*capLen : (i+1)*capLen : (i+1)*capLen],
				SrcCap:  srcCap[i*n : (i+1)*n : (i+1)*n],
				SrcUsed: srcUsed[i*n : (i+1)*n : (i+1)*n],
				SnkCap:  snkCap[i*n : (i+1)*n : (i+1)*n],
				SnkUsed: snkUsed[i*n : (i+1)*n : (i+1)*n],
				stride:  l.MaxDegree,
				queue:   newBucketQueue(n, l.NodeCount, bucketDensity),
			}
		}
	}
	return blocks
}

// CapIdx returns the index of arc e of node sub in the Cap array.
func (b *Block) CapIdx(sub, e int) int {
	return sub*b.stride + e
}

// AddArcCapacity adds capacity to arc e of node sub, checking overflow.
func (b *Block) AddArcCapacity(sub, e int, c domain.Capacity) bool {
	v, ok := domain.AddCapacity(b.Cap[b.CapIdx(sub, e)], c)
	if !ok {
		return false
	}
	b.Cap[b.CapIdx(sub, e)] = v
	return true
}

// AddTerminal adds source and sink capacity to node sub, checking overflow.
func (b *Block) AddTerminal(sub int, src, snk domain.Capacity) bool {
	s, ok := domain.AddCapacity(b.SrcCap[sub], src)
	if !ok {
		return false
	}
	t, ok := domain.AddCapacity(b.SnkCap[sub], snk)
	if !ok {
		return false
	}
	b.SrcCap[sub] = s
	b.SnkCap[sub] = t
	return true
}

// SeedFromSource saturates the residual source arcs, turning terminal source
// capacity into node excess. This is the preflow initialization; it is also
// how a re-solve picks up capacity added after a previous run.
func (b *Block) SeedFromSource() {
	for sub := range b.SrcCap {
		if c := b.SrcCap[sub]; c > 0 {
			b.Excess[sub] += domain.Flow(c)
			b.SrcUsed[sub] += c
			b.SrcCap[sub] = 0
		}
	}
}

// RebuildQueue resets the active FIFO from the current excess and labels.
// Nodes are enqueued in ascending subid order for determinism.
func (b *Block) RebuildQueue(labelInf int32) {
	b.queue.reset()
	for sub := range b.Excess {
		if b.Excess[sub] > 0 && (b.Label[sub] < labelInf || b.SnkCap[sub] > 0) {
			b.queue.push(int32(sub), b.Label[sub])
		}
	}
}

// HasActiveNodes reports whether the block's FIFO holds work.
func (b *Block) HasActiveNodes() bool {
	return b.queue.size > 0
}

// PendingMessages reports whether undelivered inbox messages exist. Callers
// must hold the block via the scheduler or run during a barrier.
func (b *Block) PendingMessages() bool {
	return b.inbox.pending()
}

// Deliver appends a cross-boundary push message to the block's inbox.
func (b *Block) Deliver(m Message) {
	b.inbox.append(m)
}

// ApplyInbox drains the inbox and credits the carried excess. Nodes that
// become active are enqueued. Used by the discharge engine and by the
// global relabel barrier.
func (b *Block) ApplyInbox(labelInf int32, buf []Message) []Message {
	buf = b.inbox.drainInto(buf)
	for _, m := range buf {
		b.Excess[m.Sub] += m.Amount
		if b.Excess[m.Sub] > 0 && (b.Label[m.Sub] < labelInf || b.SnkCap[m.Sub] > 0) {
			b.queue.push(m.Sub, b.Label[m.Sub])
		}
	}
	return buf
}
