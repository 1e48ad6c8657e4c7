package ldapconn

import "sync"

// router demultiplexes inbound LDAPMessage envelopes to the pending
// operation that is waiting on each MessageID. It owns no socket state;
// Conn feeds it fully-framed messages from the reader goroutine.
type router struct {
	mu      sync.Mutex
	pending map[MessageID]pendingOp
	closed  bool

	// ignoreUnsolicited controls what happens to a response whose
	// MessageID has no pending operation. A response with MessageID 0
	// (such as the Notice of Disconnection) goes through the same policy.
	// See DialOptions.
	ignoreUnsolicited bool
	onUnsolicited     func(err error)
}

func newRouter(ignoreUnsolicited bool, onUnsolicited func(err error)) *router {
	return &router{
		pending:           make(map[MessageID]pendingOp),
		ignoreUnsolicited: ignoreUnsolicited,
		onUnsolicited:     onUnsolicited,
	}
}

// register records a pending operation under id. Returns
// ErrConnectionClosed if the router has already been torn down.
func (rt *router) register(id MessageID, op pendingOp) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.closed {
		return ErrConnectionClosed
	}
	rt.pending[id] = op
	return nil
}

// cancel removes and returns the pending operation for id, e.g. so
// Conn.Abandon can fail it locally without waiting on the server.
func (rt *router) cancel(id MessageID) (pendingOp, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	op, ok := rt.pending[id]
	if ok {
		delete(rt.pending, id)
	}
	return op, ok
}

// dispatch routes one inbound message to its pending operation, or
// handles it as an unsolicited/intermediate notification. It never
// returns an error for a well-formed but unexpected message; malformed
// responses are reported to the owning pending op instead of tearing
// down the whole connection, since one operation's bad response does
// not necessarily invalidate the others. Structural BER/PDU errors are
// expected to have already been caught by the framer before dispatch is
// called.
func (rt *router) dispatch(msg *Message) {
	tag := msg.ProtocolOp.Type

	// The Notice of Disconnection is always ID 0 and is not tied to any
	// pending operation.
	if msg.MessageID == 0 {
		rt.handleUnsolicited(msg)
		return
	}

	if tag == TypeIntermediateResponseOp {
		rt.mu.Lock()
		op, ok := rt.pending[msg.MessageID]
		rt.mu.Unlock()
		if !ok {
			rt.handleUnsolicited(msg)
			return
		}
		// Intermediate responses never terminate an operation by
		// themselves; only single-response ops can receive them
		// (extended operations), and they pass through untouched for
		// the caller to interpret via GetIntermediateResponse.
		if sp, ok := op.(*singlePending); ok {
			select {
			case sp.ch <- opResult{Op: msg.ProtocolOp}:
			default:
			}
		}
		return
	}

	rt.mu.Lock()
	op, ok := rt.pending[msg.MessageID]
	rt.mu.Unlock()

	if !ok {
		rt.handleUnsolicited(msg)
		return
	}
	if op.deliver(msg.ProtocolOp) {
		rt.mu.Lock()
		delete(rt.pending, msg.MessageID)
		rt.mu.Unlock()
	}
}

func (rt *router) handleUnsolicited(msg *Message) {
	err := ErrUnsolicitedResponse.WithInfo("message ID", msg.MessageID)
	if rt.ignoreUnsolicited {
		return
	}
	if rt.onUnsolicited != nil {
		rt.onUnsolicited(err)
	}
}

// count returns the number of operations still awaiting a response.
func (rt *router) count() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.pending)
}

// failAll aborts every pending operation with err and marks the router
// closed so further register calls fail fast.
func (rt *router) failAll(err error) {
	rt.mu.Lock()
	pending := rt.pending
	rt.pending = make(map[MessageID]pendingOp)
	rt.closed = true
	rt.mu.Unlock()
	for _, op := range pending {
		op.fail(err)
	}
}
