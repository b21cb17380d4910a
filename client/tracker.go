package client

import (
	"context"
	"sync"

	"echonet-core/lite"
	"echonet-core/node"
)

// inboundReply is what a pending transaction's filter hands back once a
// matching Format-1 frame arrives.
type inboundReply struct {
	src   node.Address
	frame *lite.Frame
}

// pendingTransaction is a single in-flight request awaiting a reply. It
// is registered before the request is sent and completes exactly once,
// either from a matching inbound frame or from cancellation.
type pendingTransaction struct {
	tid     lite.TID
	srcAddr node.Address // filter: if non-empty, the reply must come from this address
	destEOJ lite.EOJ      // filter: the reply's SEOJ must equal the EOJ the request was sent to
	esvs    map[lite.ESV]bool

	done chan inboundReply
	once sync.Once
}

func (p *pendingTransaction) matches(src node.Address, f *lite.Frame) bool {
	if f.Format1 == nil || f.TID != p.tid {
		return false
	}
	if p.srcAddr != "" && p.srcAddr != src {
		return false
	}
	if f.Format1.SEOJ != p.destEOJ {
		return false
	}
	return p.esvs[f.Format1.ESV]
}

func (p *pendingTransaction) complete(reply inboundReply) {
	p.once.Do(func() { p.done <- reply })
}

func (p *pendingTransaction) cancelled() {
	p.once.Do(func() { close(p.done) })
}

// Tracker allocates transaction ids and correlates inbound replies with
// the outbound requests awaiting them.
type Tracker struct {
	mu      sync.Mutex
	nextTID lite.TID
	pending map[lite.TID]*pendingTransaction
}

// NewTracker builds an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{pending: make(map[lite.TID]*pendingTransaction)}
}

// NextTID allocates the next transaction id by pre-increment, wrapping
// at 16 bits. Callers allocate while holding the send mutex so that two
// in-flight transactions never share a TID.
func (t *Tracker) NextTID() lite.TID {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextTID++
	return t.nextTID
}

// Register installs a pending transaction's filter before the request
// that owns tid is sent.
func (t *Tracker) Register(tid lite.TID, srcAddr node.Address, destEOJ lite.EOJ, esvs []lite.ESV) *pendingTransaction {
	p := &pendingTransaction{
		tid:     tid,
		srcAddr: srcAddr,
		destEOJ: destEOJ,
		esvs:    make(map[lite.ESV]bool, len(esvs)),
		done:    make(chan inboundReply, 1),
	}
	for _, esv := range esvs {
		p.esvs[esv] = true
	}
	t.mu.Lock()
	t.pending[tid] = p
	t.mu.Unlock()
	return p
}

// Dispatch looks up the pending transaction registered under the inbound
// frame's TID, if any, and checks the frame against its filter; at most
// one transaction is registered per TID. It reports whether a pending
// transaction was completed.
func (t *Tracker) Dispatch(src node.Address, f *lite.Frame) bool {
	if f.Format1 == nil {
		return false
	}
	t.mu.Lock()
	p, ok := t.pending[f.TID]
	if !ok || !p.matches(src, f) {
		t.mu.Unlock()
		return false
	}
	delete(t.pending, f.TID)
	t.mu.Unlock()

	p.complete(inboundReply{src: src, frame: f})
	return true
}

// Cancel deregisters tid's pending transaction, if any, and completes
// its slot with a cancelled outcome. A reply that arrives afterward no
// longer finds a registered filter and is silently dropped by Dispatch.
func (t *Tracker) Cancel(tid lite.TID) {
	t.mu.Lock()
	p, ok := t.pending[tid]
	if ok {
		delete(t.pending, tid)
	}
	t.mu.Unlock()

	if ok {
		p.cancelled()
	}
}

// Await blocks until p's transaction completes or ctx is done, whichever
// comes first. A ctx cancellation cancels the transaction on the way out.
func (t *Tracker) Await(ctx context.Context, p *pendingTransaction) (node.Address, *lite.Frame, error) {
	select {
	case reply, ok := <-p.done:
		if !ok {
			return "", nil, ErrCancelled
		}
		return reply.src, reply.frame, nil
	case <-ctx.Done():
		t.Cancel(p.tid)
		if ctx.Err() == context.DeadlineExceeded {
			return "", nil, ErrTimeout
		}
		return "", nil, ErrCancelled
	}
}
