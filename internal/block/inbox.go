package block

import (
	"sync"

	"gridflow/pkg/domain"
)

// Message transfers the excess bookkeeping of a cross-boundary push. The
// sister arc's capacity is already incremented by the sender, so applying a
// message can never violate residual non-negativity.
type Message struct {
	Sub    int32
	Amount domain.Flow
}

// inbox is a mutex-protected message queue. Messages live from enqueue to
// the receiving block's next discharge (or the next global relabel barrier).
type inbox struct {
	mu   sync.Mutex
	msgs []Message
}

func (in *inbox) append(m Message) {
	in.mu.Lock()
	in.msgs = append(in.msgs, m)
	in.mu.Unlock()
}

// drainInto moves all pending messages into buf (reused across calls) and
// empties the inbox.
func (in *inbox) drainInto(buf []Message) []Message {
	in.mu.Lock()
	buf = append(buf[:0], in.msgs...)
	in.msgs = in.msgs[:0]
	in.mu.Unlock()
	return buf
}

func (in *inbox) pending() bool {
	in.mu.Lock()
	n := len(in.msgs)
	in.mu.Unlock()
	return n > 0
}
