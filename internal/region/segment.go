package region

import (
	"gridflow/internal/block"
	"gridflow/internal/layout"
)

// SourceReachable computes the source side of the minimum cut: a forward
// BFS from every node with residual terminal source capacity, following
// arcs with positive residual capacity. The result is indexed by
// blockID*NodesPerBlock + subid.
func SourceReachable(l *layout.Layout, blocks []*block.Block) []bool {
	reach := make([]bool, l.NodeCount)
	queue := make([]nodeRef, 0, 1024)

	for _, b := range blocks {
		for sub := range b.SrcCap {
			if b.SrcCap[sub] > 0 {
				reach[b.ID*l.NodesPerBlock+sub] = true
				queue = append(queue, nodeRef{block: int32(b.ID), sub: int32(sub)})
			}
		}
	}

	for head := 0; head < len(queue); head++ {
		cur := queue[head]
		b := blocks[cur.block]
		sub := int(cur.sub)

		kind := l.KindOf(sub)
		loc := l.LocOf(sub)
		shifts := l.Shifts[kind][loc]
		mask := l.Masks[kind][loc][b.Loc]

		for e := 0; e < len(shifts); e++ {
			if mask&(1<<uint(e)) == 0 {
				continue
			}
			if b.Cap[b.CapIdx(sub, e)] <= 0 {
				continue
			}
			sh := &shifts[e]
			nb := b
			if sh.Crosses {
				nb = blocks[b.ID+sh.DeltaBlock]
			}
			nsub := sub + sh.DeltaSub
			idx := nb.ID*l.NodesPerBlock + nsub
			if reach[idx] {
				continue
			}
			reach[idx] = true
			queue = append(queue, nodeRef{block: int32(nb.ID), sub: int32(nsub)})
		}
	}

	return reach
}
