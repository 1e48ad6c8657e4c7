package ldapconn

import "sync"

// pendingOp is one in-flight operation awaiting a response. It is
// identified in the connection's pending map by MessageID and is handed
// every protocolOp the router demultiplexes to that ID until it reports
// itself terminal.
type pendingOp interface {
	// deliver hands the operation one incoming protocolOp. terminal
	// reports whether this was the last response the operation expects;
	// the connection manager removes it from the pending map when true.
	deliver(op BerRawElement) (terminal bool)
	// fail aborts the operation with err, e.g. because the connection
	// closed or was abandoned while the response was still outstanding.
	fail(err error)
}

// opResult is what a single-response operation resolves to: either the
// decoded response or a delivery error (fail, or a malformed response).
type opResult struct {
	Op  BerRawElement
	Err error
}

// singlePending is the pending-op shape for every operation that expects
// exactly one terminating response: bind, add, delete, modify, modifyDN,
// compare, extended.
type singlePending struct {
	mu       sync.Mutex
	finished bool
	ch       chan opResult
}

func newSinglePending() *singlePending {
	return &singlePending{ch: make(chan opResult, 1)}
}

func (p *singlePending) deliver(op BerRawElement) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return true
	}
	p.finished = true
	p.ch <- opResult{Op: op}
	close(p.ch)
	return true
}

func (p *singlePending) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return
	}
	p.finished = true
	p.ch <- opResult{Err: err}
	close(p.ch)
}

// wait blocks until the response arrives or ctx-independent fail() is
// called; callers needing deadlines select on this channel themselves.
func (p *singlePending) wait() opResult {
	return <-p.ch
}

// searchPending is the pending-op shape for search: it streams zero or
// more entries and referrals, then a single terminal result.
type searchPending struct {
	mu       sync.Mutex
	finished bool
	entries  chan *SearchResultEntry
	refs     chan SearchResultReference
	done     chan opResult
}

func newSearchPending() *searchPending {
	return &searchPending{
		entries: make(chan *SearchResultEntry, 16),
		refs:    make(chan SearchResultReference, 4),
		done:    make(chan opResult, 1),
	}
}

// finish delivers res on done and closes all three channels; it is a
// no-op if deliver or fail already finished this operation.
func (p *searchPending) finish(res opResult) {
	if p.finished {
		return
	}
	p.finished = true
	p.done <- res
	close(p.entries)
	close(p.refs)
	close(p.done)
}

func (p *searchPending) deliver(op BerRawElement) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return true
	}
	switch op.Type {
	case TypeSearchResultEntryOp:
		entry, err := GetSearchResultEntry(op.Data)
		if err != nil {
			p.finish(opResult{Err: err})
			return true
		}
		p.entries <- entry
		return false
	case TypeSearchResultReferenceOp:
		refs, err := GetSearchResultReference(op.Data)
		if err != nil {
			p.finish(opResult{Err: err})
			return true
		}
		p.refs <- refs
		return false
	case TypeSearchResultDoneOp:
		p.finish(opResult{Op: op})
		return true
	default:
		p.finish(opResult{Err: ErrMalformedPDU.WithInfo("unexpected search response type", op.Type)})
		return true
	}
}

func (p *searchPending) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finish(opResult{Err: err})
}
