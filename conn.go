package ldapconn

import (
	"bytes"
	"context"
	"crypto/tls"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DialOptions configures a client connection. The zero value dials a
// plain TCP connection with no TLS, a 3-second close-drain watchdog, a
// default no-op logger, and unsolicited responses treated as fatal.
type DialOptions struct {
	// TLSConfig, if non-nil, causes Dial to negotiate TLS on connect
	// using a clone of this config (the original is never mutated).
	TLSConfig *tls.Config

	// InsecureSkipVerify forces TLSConfig.InsecureSkipVerify on even if
	// the caller's TLSConfig didn't set it, and logs a Warn every time a
	// connection is established this way. There is no library-level
	// default that skips verification; this is the only opt-in path.
	InsecureSkipVerify bool

	// IgnoreUnsolicitedResponses, if true, silently drops any response
	// with a MessageID that doesn't match a pending operation instead of
	// tearing down the connection. The default tears the connection
	// down, since an unsolicited response other than a genuine Notice of
	// Disconnection usually means the connection's framing has drifted.
	IgnoreUnsolicitedResponses bool

	// Deadline bounds every operation submitted on this connection
	// (Bind, Search, Add, ...) when the caller's context carries no
	// deadline of its own. Zero means no default deadline.
	Deadline time.Duration

	// CloseDrainTimeout bounds how long a graceful Close waits for
	// in-flight operations to finish before closing the socket anyway.
	// Zero uses the package default of 3 seconds.
	CloseDrainTimeout time.Duration

	// Logger receives structured connection lifecycle events. Defaults
	// to a no-op logger.
	Logger Logger
}

func (o DialOptions) drainTimeout() time.Duration {
	if o.CloseDrainTimeout > 0 {
		return o.CloseDrainTimeout
	}
	return 3 * time.Second
}

func (o DialOptions) logger() Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return noopLogger{}
}

// Conn is a single asynchronous LDAP connection. All exported methods
// are safe to call concurrently from multiple goroutines; responses are
// demultiplexed by MessageID and delivered back to whichever call is
// waiting for them.
type Conn struct {
	netConn net.Conn
	id      string
	logger  Logger
	opts    DialOptions

	router *router

	idCounter uint32

	// flushGate gates the bind-pending invariant: a pending Bind holds
	// the write lock for the duration of the operation, so no other
	// operation's bytes reach the wire until the bind resolves.
	flushGate sync.RWMutex
	// writeMu serializes the actual socket write among concurrent
	// RLock holders (RWMutex alone only excludes writers from readers,
	// not readers from each other).
	writeMu sync.Mutex

	closeOnce sync.Once
	closed    atomic.Bool

	g      *errgroup.Group
	cancel context.CancelFunc
}

// Dial opens a connection to address ("host:port") and starts its
// background reader. Callers own the resulting Conn and must Close it.
func Dial(ctx context.Context, address string, opts DialOptions) (*Conn, error) {
	var d net.Dialer
	raw, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, ErrSocketError.WithInfo("dial", err.Error())
	}

	netConn := raw
	logger := opts.logger()
	connID := uuid.NewString()
	if opts.TLSConfig != nil {
		cfg := opts.TLSConfig.Clone()
		if opts.InsecureSkipVerify {
			cfg.InsecureSkipVerify = true
			logger.Warn("TLS certificate verification disabled", F("conn_id", connID), F("address", address))
		}
		tlsConn := tls.Client(raw, cfg)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			raw.Close()
			return nil, ErrSocketError.WithInfo("tls handshake", err.Error())
		}
		netConn = tlsConn
	}

	gctx, cancel := context.WithCancel(context.Background())
	g, _ := errgroup.WithContext(gctx)

	c := &Conn{
		netConn: netConn,
		id:      connID,
		logger:  logger,
		opts:    opts,
		g:       g,
		cancel:  cancel,
	}
	c.router = newRouter(opts.IgnoreUnsolicitedResponses, c.onUnsolicited)

	c.g.Go(c.readLoop)

	logger.Info("connection established", F("conn_id", connID), F("address", address))
	return c, nil
}

func (c *Conn) onUnsolicited(err error) {
	c.logger.Error("unsolicited response, closing connection", F("conn_id", c.id), F("error", err.Error()))
	c.closeImmediate(err)
}

// readLoop owns the socket read side for the lifetime of the
// connection. It is the only goroutine that calls net.Conn.Read.
func (c *Conn) readLoop() error {
	fr := &frameReader{}
	buf := make([]byte, 4096)
	for {
		n, err := c.netConn.Read(buf)
		if n > 0 {
			elmts, ferr := fr.Feed(buf[:n])
			for _, raw := range elmts {
				msg, perr := ParseLDAPMessage(raw)
				if perr != nil {
					c.logger.Error("malformed LDAP message", F("conn_id", c.id), F("error", perr.Error()))
					c.closeImmediate(ErrMalformedPDU)
					return perr
				}
				c.router.dispatch(msg)
			}
			if ferr != nil {
				c.logger.Error("malformed BER on wire", F("conn_id", c.id), F("error", ferr.Error()))
				c.closeImmediate(ferr)
				return ferr
			}
		}
		if err != nil {
			c.closeImmediate(ErrSocketError.WithInfo("read", err.Error()))
			return nil
		}
	}
}

// nextMessageID returns the next MessageID, wrapping back to 1 before it
// would exceed the protocol's maxInt bound. 0 is reserved for
// unsolicited notifications and is never assigned.
func (c *Conn) nextMessageID() MessageID {
	for {
		cur := atomic.LoadUint32(&c.idCounter)
		next := cur + 1
		if next > maxInt {
			next = 1
		}
		if atomic.CompareAndSwapUint32(&c.idCounter, cur, next) {
			return MessageID(next)
		}
	}
}

func (c *Conn) write(id MessageID, op BerRawElement, controls []Control) error {
	msg := &Message{MessageID: id, ProtocolOp: op, Controls: controls}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := bytes.NewReader(msg.EncodeWithHeader()).WriteTo(c.netConn)
	if err != nil {
		return ErrSocketError.WithInfo("write", err.Error())
	}
	return nil
}

func (c *Conn) deadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || c.opts.Deadline <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.opts.Deadline)
}

// call submits a non-bind, single-response operation and blocks for its
// result.
func (c *Conn) call(ctx context.Context, op BerRawElement, controls []Control) (BerRawElement, error) {
	if c.closed.Load() {
		return BerRawElement{}, ErrConnectionClosed
	}
	ctx, stop := c.deadline(ctx)
	defer stop()

	id := c.nextMessageID()
	pending := newSinglePending()
	if err := c.router.register(id, pending); err != nil {
		return BerRawElement{}, err
	}

	c.flushGate.RLock()
	err := c.write(id, op, controls)
	c.flushGate.RUnlock()
	if err != nil {
		c.router.cancel(id)
		return BerRawElement{}, err
	}

	select {
	case res := <-pending.ch:
		return res.Op, res.Err
	case <-ctx.Done():
		if p, ok := c.router.cancel(id); ok {
			p.fail(ErrOperationTimeout)
		}
		return BerRawElement{}, ErrOperationTimeout
	}
}

// Bind performs a bind operation, holding the flush gate for its
// duration so no other operation's request bytes reach the wire while
// authentication is outstanding.
func (c *Conn) Bind(ctx context.Context, req *BindRequest, controls ...Control) (*BindResult, error) {
	if c.closed.Load() {
		return nil, ErrConnectionClosed
	}
	ctx, stop := c.deadline(ctx)
	defer stop()

	id := c.nextMessageID()
	pending := newSinglePending()
	if err := c.router.register(id, pending); err != nil {
		return nil, err
	}

	c.flushGate.Lock()
	defer c.flushGate.Unlock()

	op := BerRawElement{Type: TypeBindRequestOp, Data: stripHeader(req.Encode())}
	if err := c.write(id, op, controls); err != nil {
		c.router.cancel(id)
		return nil, err
	}

	select {
	case res := <-pending.ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return GetBindResult(res.Op.Data)
	case <-ctx.Done():
		if p, ok := c.router.cancel(id); ok {
			p.fail(ErrOperationTimeout)
		}
		return nil, ErrOperationTimeout
	}
}

// stripHeader removes the outer tag+length of a fully-encoded element,
// returning its raw data as req.Encode() already applied the
// application-specific tag via BerEncodeElement. Op constructors return
// a complete element because callers may also want to inspect or log the
// wire form directly; Conn only needs the BerRawElement view to route
// through write, which re-adds the same header. Callers pair the
// stripped data with the op's Type constant.
func stripHeader(encoded []byte) []byte {
	elmt, _, ok, err := decodeTLV(encoded)
	if err != nil || !ok {
		return nil
	}
	return elmt.Data
}

// SearchHandle is what Search returns for streaming results. The
// handle's channels are closed once SearchResultDone arrives; callers
// should drain Entries and References even if they only care about
// Wait's result, because once a channel's buffer is full, delivery
// blocks the connection's reader goroutine.
type SearchHandle struct {
	Entries    <-chan *SearchResultEntry
	References <-chan SearchResultReference
	done       <-chan opResult
}

// Wait blocks until the search completes and returns the terminal
// Result, or an error if the operation could not be completed.
func (h *SearchHandle) Wait() (*Result, error) {
	res := <-h.done
	if res.Err != nil {
		return nil, res.Err
	}
	return GetResult(res.Op.Data)
}

func (c *Conn) Search(ctx context.Context, req *SearchRequest, controls ...Control) (*SearchHandle, error) {
	if c.closed.Load() {
		return nil, ErrConnectionClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, ErrOperationTimeout
	}
	encoded, err := req.Encode()
	if err != nil {
		return nil, err
	}

	id := c.nextMessageID()
	pending := newSearchPending()
	if err := c.router.register(id, pending); err != nil {
		return nil, err
	}

	op := BerRawElement{Type: TypeSearchRequestOp, Data: stripHeader(encoded)}
	c.flushGate.RLock()
	err = c.write(id, op, controls)
	c.flushGate.RUnlock()
	if err != nil {
		c.router.cancel(id)
		return nil, err
	}
	if _, ok := ctx.Deadline(); !ok && c.opts.Deadline > 0 {
		time.AfterFunc(c.opts.Deadline, func() {
			if p, ok := c.router.cancel(id); ok {
				p.fail(ErrOperationTimeout)
			}
		})
	}

	return &SearchHandle{Entries: pending.entries, References: pending.refs, done: pending.done}, nil
}

// Add submits an add request and waits for the response.
func (c *Conn) Add(ctx context.Context, req *AddRequest, controls ...Control) (*Result, error) {
	op := BerRawElement{Type: TypeAddRequestOp, Data: stripHeader(req.Encode())}
	raw, err := c.call(ctx, op, controls)
	if err != nil {
		return nil, err
	}
	return GetAddResponse(raw.Data)
}

// Delete submits a delete request and waits for the response.
func (c *Conn) Delete(ctx context.Context, req *DeleteRequest, controls ...Control) (*Result, error) {
	op := BerRawElement{Type: TypeDeleteRequestOp, Data: []byte(req.Entry)}
	raw, err := c.call(ctx, op, controls)
	if err != nil {
		return nil, err
	}
	return GetDeleteResponse(raw.Data)
}

// Modify submits a modify request and waits for the response.
func (c *Conn) Modify(ctx context.Context, req *ModifyRequest, controls ...Control) (*Result, error) {
	op := BerRawElement{Type: TypeModifyRequestOp, Data: stripHeader(req.Encode())}
	raw, err := c.call(ctx, op, controls)
	if err != nil {
		return nil, err
	}
	return GetModifyResponse(raw.Data)
}

// ModifyDN submits a modify-DN (rename/move) request and waits for the
// response.
func (c *Conn) ModifyDN(ctx context.Context, req *ModifyDNRequest, controls ...Control) (*Result, error) {
	op := BerRawElement{Type: TypeModifyDNRequestOp, Data: stripHeader(req.Encode())}
	raw, err := c.call(ctx, op, controls)
	if err != nil {
		return nil, err
	}
	return GetModifyDNResponse(raw.Data)
}

// Compare submits a compare request and waits for the response. The
// result's ResultCode is LDAPResultCompareTrue or LDAPResultCompareFalse
// on success.
func (c *Conn) Compare(ctx context.Context, req *CompareRequest, controls ...Control) (*Result, error) {
	op := BerRawElement{Type: TypeCompareRequestOp, Data: stripHeader(req.Encode())}
	raw, err := c.call(ctx, op, controls)
	if err != nil {
		return nil, err
	}
	return GetCompareResponse(raw.Data)
}

// Extended submits an extended request and waits for the response.
func (c *Conn) Extended(ctx context.Context, req *ExtendedRequest, controls ...Control) (*ExtendedResult, error) {
	op := BerRawElement{Type: TypeExtendedRequestOp, Data: stripHeader(req.Encode())}
	raw, err := c.call(ctx, op, controls)
	if err != nil {
		return nil, err
	}
	return GetExtendedResult(raw.Data)
}

// Abandon requests that the server stop processing the operation
// identified by id and locally fails that operation's pending call with
// ErrAbandoned. AbandonRequest itself carries no response.
func (c *Conn) Abandon(id MessageID, controls ...Control) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	if p, ok := c.router.cancel(id); ok {
		p.fail(ErrAbandoned)
	}
	req := NewAbandonRequest(id)
	op := BerRawElement{Type: TypeAbandonRequestOp, Data: stripHeader(req.Encode())}
	c.flushGate.RLock()
	defer c.flushGate.RUnlock()
	return c.write(c.nextMessageID(), op, controls)
}

// Close gracefully closes the connection: it stops accepting new
// operations, sends an UnbindRequest, and tears down the socket.
// Operations still in flight are failed with ErrConnectionClosed.
func (c *Conn) Close() error {
	return c.closeWith(false, ErrConnectionClosed)
}

// CloseImmediately tears the connection down without sending an
// UnbindRequest, for use when the connection is already known to be
// broken.
func (c *Conn) CloseImmediately() error {
	return c.closeWith(true, ErrConnectionClosed)
}

// closeImmediate is called from the reader goroutine, which closeWith
// waits for, so the teardown runs on a goroutine of its own.
func (c *Conn) closeImmediate(err error) {
	go c.closeWith(true, err)
}

func (c *Conn) closeWith(immediate bool, err error) error {
	var closeErr error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if !immediate {
			c.drain(c.opts.drainTimeout())
			op := BerRawElement{Type: TypeUnbindRequestOp, Data: nil}
			c.flushGate.RLock()
			c.write(c.nextMessageID(), op, nil)
			c.flushGate.RUnlock()
		}
		c.router.failAll(err)
		c.cancel()
		closeErr = c.netConn.Close()
		c.g.Wait()
		c.logger.Info("connection closed", F("conn_id", c.id), F("immediate", immediate))
	})
	return closeErr
}

// drain waits for in-flight operations to finish on their own, up to
// timeout, before the caller proceeds to unbind and tear the socket
// down regardless.
func (c *Conn) drain(timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for c.router.count() > 0 {
		if time.Now().After(deadline) {
			c.logger.Warn("close drain watchdog fired", F("conn_id", c.id), F("pending", c.router.count()))
			return
		}
		<-ticker.C
	}
}
