package region

import (
	"gridflow/internal/block"
	"gridflow/internal/layout"
	"gridflow/pkg/domain"
)

// nodeRef addresses a node globally as (block id, node subid).
type nodeRef struct {
	block int32
	sub   int32
}

// RelabelToSink overwrites every label with the exact distance to the sink
// in the residual graph: nodes with residual sink capacity get label 0, a
// node u gets label d+1 when it has a residual arc into a node labeled d.
// Unreached nodes get the unreachable sentinel (>= node count).
func RelabelToSink(l *layout.Layout, blocks []*block.Block) {
	reverseBFS(l, blocks, func(b *block.Block, sub int) bool {
		return b.SnkCap[sub] > 0
	})
}

// relabelToSource overwrites every label with the exact residual distance
// to a refundable terminal source arc; used by the excess-return drain.
func relabelToSource(l *layout.Layout, blocks []*block.Block) {
	reverseBFS(l, blocks, func(b *block.Block, sub int) bool {
		return b.SrcUsed[sub] > 0
	})
}

// reverseBFS computes, for every node, the length of the shortest residual
// path from it into the seed set. The traversal expands from the seeds over
// reversed residual arcs: the predecessor u of a frontier node v is any
// node whose arc toward v has positive residual capacity; that capacity
// lives at u under the sister index of v's arc toward u.
//
// Seeds are visited in ascending (block, subid) order, so the labeling is
// deterministic.
func reverseBFS(l *layout.Layout, blocks []*block.Block, seed func(b *block.Block, sub int) bool) {
	labelInf := int32(l.NodeCount)
	for _, b := range blocks {
		for sub := range b.Label {
			b.Label[sub] = labelInf
		}
	}

	queue := make([]nodeRef, 0, 1024)
	for _, b := range blocks {
		for sub := range b.Label {
			if seed(b, sub) {
				b.Label[sub] = 0
				queue = append(queue, nodeRef{block: int32(b.ID), sub: int32(sub)})
			}
		}
	}

	for head := 0; head < len(queue); head++ {
		cur := queue[head]
		b := blocks[cur.block]
		sub := int(cur.sub)
		next := b.Label[sub] + 1
		if next >= labelInf {
			continue
		}

		kind := l.KindOf(sub)
		loc := l.LocOf(sub)
		shifts := l.Shifts[kind][loc]
		mask := l.Masks[kind][loc][b.Loc]
		sisters := l.Sisters[kind]

		for e := 0; e < len(shifts); e++ {
			if mask&(1<<uint(e)) == 0 {
				continue
			}
			sh := &shifts[e]
			pb := b
			if sh.Crosses {
				pb = blocks[b.ID+sh.DeltaBlock]
			}
			psub := sub + sh.DeltaSub
			if pb.Label[psub] != labelInf {
				continue
			}
			// Residual arc from the predecessor back into cur.
			if pb.Cap[pb.CapIdx(psub, sisters[e])] <= 0 {
				continue
			}
			pb.Label[psub] = next
			queue = append(queue, nodeRef{block: int32(pb.ID), sub: int32(psub)})
		}
	}
}

// ReturnExcess converts the terminal preflow left by the workers into a
// feasible flow: excess stranded at sink-unreachable nodes is pushed back
// along residual arcs and refunded to the terminal source arcs it was drawn
// from. Runs sequentially after the active set has emptied.
func ReturnExcess(l *layout.Layout, blocks []*block.Block) {
	stranded := false
	for _, b := range blocks {
		for sub := range b.Excess {
			if b.Excess[sub] > 0 {
				stranded = true
				break
			}
		}
		if stranded {
			break
		}
	}
	if !stranded {
		return
	}

	relabelToSource(l, blocks)
	labelInf := int32(l.NodeCount)

	queue := make([]nodeRef, 0, 256)
	queued := make(map[nodeRef]bool)
	push := func(ref nodeRef) {
		if !queued[ref] {
			queued[ref] = true
			queue = append(queue, ref)
		}
	}
	for _, b := range blocks {
		for sub := range b.Excess {
			if b.Excess[sub] > 0 {
				push(nodeRef{block: int32(b.ID), sub: int32(sub)})
			}
		}
	}

	for head := 0; head < len(queue); head++ {
		cur := queue[head]
		delete(queued, cur)
		b := blocks[cur.block]
		sub := int(cur.sub)
		drainNode(l, blocks, b, sub, labelInf, push)
	}
}

// drainNode pushes one node's excess toward the source until it is gone or
// no residual arc leads back toward the source.
func drainNode(l *layout.Layout, blocks []*block.Block, b *block.Block, sub int, labelInf int32, push func(nodeRef)) {
	// Refund directly when the node drew from the source itself.
	if b.SrcUsed[sub] > 0 && b.Excess[sub] > 0 {
		delta := b.Excess[sub]
		if u := domain.Flow(b.SrcUsed[sub]); u < delta {
			delta = u
		}
		b.SrcUsed[sub] -= domain.Capacity(delta)
		b.SrcCap[sub] += domain.Capacity(delta)
		b.Excess[sub] -= delta
	}

	kind := l.KindOf(sub)
	loc := l.LocOf(sub)
	shifts := l.Shifts[kind][loc]
	mask := l.Masks[kind][loc][b.Loc]
	sisters := l.Sisters[kind]

	for b.Excess[sub] > 0 {
		pushed := false
		for e := 0; e < len(shifts) && b.Excess[sub] > 0; e++ {
			if mask&(1<<uint(e)) == 0 {
				continue
			}
			capIdx := b.CapIdx(sub, e)
			if b.Cap[capIdx] <= 0 {
				continue
			}
			sh := &shifts[e]
			nb := b
			if sh.Crosses {
				nb = blocks[b.ID+sh.DeltaBlock]
			}
			nsub := sub + sh.DeltaSub
			if b.Label[sub] != nb.Label[nsub]+1 {
				continue
			}
			delta := b.Excess[sub]
			if c := domain.Flow(b.Cap[capIdx]); c < delta {
				delta = c
			}
			b.Cap[capIdx] -= domain.Capacity(delta)
			nb.Cap[nb.CapIdx(nsub, sisters[e])] += domain.Capacity(delta)
			b.Excess[sub] -= delta
			nb.Excess[nsub] += delta
			push(nodeRef{block: int32(nb.ID), sub: int32(nsub)})
			pushed = true
		}

		if b.Excess[sub] == 0 || pushed {
			continue
		}

		// Relabel against source distances.
		minLabel := labelInf
		for e := 0; e < len(shifts); e++ {
			if mask&(1<<uint(e)) == 0 || b.Cap[b.CapIdx(sub, e)] <= 0 {
				continue
			}
			sh := &shifts[e]
			nb := b
			if sh.Crosses {
				nb = blocks[b.ID+sh.DeltaBlock]
			}
			if lv := nb.Label[sub+sh.DeltaSub]; lv < minLabel {
				minLabel = lv
			}
		}
		if minLabel >= labelInf {
			// No residual path back; the excess stays where it is.
			return
		}
		b.Label[sub] = minLabel + 1
	}
}
