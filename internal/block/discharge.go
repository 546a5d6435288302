package block

import (
	"gridflow/internal/layout"
	"gridflow/pkg/domain"
)

// Env is the shared, read-mostly context of a discharge: the layout tables,
// the block array (for boundary pushes into fringe-locked neighbors) and
// the work quantum.
type Env struct {
	Layout             *layout.Layout
	Blocks             []*Block
	DischargesPerBlock int
	LabelInf           int32
}

// Result accumulates the outcome of discharging one claimed block.
type Result struct {
	Absorbed    domain.Flow
	Discharges  int64
	Messages    int64
	Activated   []int
	StillActive bool

	msgBuf []Message
}

func (r *Result) activate(id int) {
	for _, v := range r.Activated {
		if v == id {
			return
		}
	}
	r.Activated = append(r.Activated, id)
}

// Reset clears the result for reuse while keeping its buffers.
func (r *Result) Reset() {
	r.Absorbed = 0
	r.Discharges = 0
	r.Messages = 0
	r.Activated = r.Activated[:0]
	r.StillActive = false
}

// Discharge runs the per-block inner loop: drain the inbox, then pop active
// nodes and push along admissible arcs in template order, relabeling when
// stuck, for at most DischargesPerBlock nodes. Cross-boundary pushes update
// the sister capacity on the neighbor directly and defer the excess credit
// through a message.
func (b *Block) Discharge(env *Env, res *Result) {
	res.msgBuf = b.ApplyInbox(env.LabelInf, res.msgBuf)

	for res.Discharges < int64(env.DischargesPerBlock) {
		sub, ok := b.queue.pop()
		if !ok {
			break
		}
		if b.Excess[sub] <= 0 {
			continue
		}
		b.dischargeNode(env, int(sub), res)
		res.Discharges++
	}

	res.StillActive = b.queue.size > 0
}

// dischargeNode pushes the node's excess until it is exhausted, the node is
// relabeled out of reach, or no admissible arc remains.
func (b *Block) dischargeNode(env *Env, sub int, res *Result) {
	l := env.Layout
	kind := l.KindOf(sub)
	loc := l.LocOf(sub)
	degree := l.Degree(kind)
	shifts := l.Shifts[kind][loc]
	mask := l.Masks[kind][loc][b.Loc]
	sisters := l.Sisters[kind]

	// The sink absorbs unconditionally; the flow accumulator advances only
	// here. Refunds to the source in the drain phase leave it unchanged.
	if b.SnkCap[sub] > 0 && b.Excess[sub] > 0 {
		delta := b.Excess[sub]
		if snk := domain.Flow(b.SnkCap[sub]); snk < delta {
			delta = snk
		}
		b.SnkCap[sub] -= domain.Capacity(delta)
		b.SnkUsed[sub] += domain.Capacity(delta)
		b.Excess[sub] -= delta
		res.Absorbed += delta
	}

	for b.Excess[sub] > 0 {
		labelU := b.Label[sub]
		if labelU >= env.LabelInf {
			return
		}

		pushed := false
		for e := 0; e < degree && b.Excess[sub] > 0; e++ {
			if mask&(1<<uint(e)) == 0 {
				continue
			}
			capIdx := b.CapIdx(sub, e)
			if b.Cap[capIdx] <= 0 {
				continue
			}

			sh := &shifts[e]
			if sh.Crosses {
				nb := env.Blocks[b.ID+sh.DeltaBlock]
				nsub := sub + sh.DeltaSub
				if labelU != nb.Label[nsub]+1 {
					continue
				}
				delta := b.Excess[sub]
				if c := domain.Flow(b.Cap[capIdx]); c < delta {
					delta = c
				}
				b.Cap[capIdx] -= domain.Capacity(delta)
				nb.Cap[nb.CapIdx(nsub, sisters[e])] += domain.Capacity(delta)
				b.Excess[sub] -= delta
				nb.Deliver(Message{Sub: int32(nsub), Amount: delta})
				res.Messages++
				res.activate(nb.ID)
				pushed = true
			} else {
				nsub := sub + sh.DeltaSub
				if labelU != b.Label[nsub]+1 {
					continue
				}
				delta := b.Excess[sub]
				if c := domain.Flow(b.Cap[capIdx]); c < delta {
					delta = c
				}
				b.Cap[capIdx] -= domain.Capacity(delta)
				b.Cap[b.CapIdx(nsub, sisters[e])] += domain.Capacity(delta)
				b.Excess[sub] -= delta
				b.Excess[nsub] += delta
				if b.Excess[nsub] > 0 && (b.Label[nsub] < env.LabelInf || b.SnkCap[nsub] > 0) {
					b.queue.push(int32(nsub), b.Label[nsub])
				}
				pushed = true
			}
		}

		if b.Excess[sub] == 0 {
			return
		}
		if pushed {
			continue
		}

		// No admissible arc: relabel, or strand the node until the next
		// global relabel when nothing is reachable.
		newLabel := b.relabel(env, sub, kind, degree, shifts, mask, sisters)
		b.Label[sub] = newLabel
		if newLabel >= env.LabelInf {
			return
		}
	}
}

// relabel returns 1 + min label over residual arcs, or LabelInf when the
// node has no residual outlet.
func (b *Block) relabel(env *Env, sub, kind, degree int, shifts []layout.Shift, mask uint32, sisters []int) int32 {
	minLabel := env.LabelInf
	for e := 0; e < degree; e++ {
		if mask&(1<<uint(e)) == 0 {
			continue
		}
		if b.Cap[b.CapIdx(sub, e)] <= 0 {
			continue
		}
		sh := &shifts[e]
		var lv int32
		if sh.Crosses {
			nb := env.Blocks[b.ID+sh.DeltaBlock]
			lv = nb.Label[sub+sh.DeltaSub]
		} else {
			lv = b.Label[sub+sh.DeltaSub]
		}
		if lv < minLabel {
			minLabel = lv
		}
	}
	if minLabel >= env.LabelInf || minLabel+1 >= env.LabelInf {
		return env.LabelInf
	}
	return minLabel + 1
}
