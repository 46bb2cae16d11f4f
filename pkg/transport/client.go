// Package transport is an ONC RPC client multiplexing concurrent calls over
// one pipelined TCP connection.
//
// Calls are framed up front, queued, and written by a single send loop;
// a receive loop reassembles reply records and hands each reply to the call
// registered under its xid. A manager goroutine owns the connection and
// re-dials after a loss. Every attempt of a call uses a new xid, so a late
// reply to an abandoned attempt is recognised and dropped.
package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/marmos91/nfsgate/internal/logger"
	"github.com/marmos91/nfsgate/internal/protocol/rpc"
	"github.com/marmos91/nfsgate/internal/ratelimiter"
	"go.uber.org/atomic"
)

// State is the connection state of a Client.
type State int32

const (
	StateConnecting State = iota
	StateConnected
	StateReconnecting
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateShutdown:
		return "SHUTDOWN"
	default:
		return "UNKNOWN"
	}
}

type result struct {
	reply *rpc.Reply
	err   error
}

// call is one attempt of a Service invocation. xid changes when the call is
// requeued after a connection loss, always under Client.mu.
type call struct {
	xid   uint32
	seq   uint64
	frame []byte
	done  chan result
}

// Client is safe for concurrent use.
type Client struct {
	config  Config
	limiter *ratelimiter.RateLimiter
	metrics Metrics

	xid      atomic.Uint32
	seq      atomic.Uint64
	state    atomic.Int32
	shutdown atomic.Bool

	mu      sync.Mutex
	pending map[uint32]*call
	queue   []*call
	conn    net.Conn

	wake     chan struct{}
	closing  chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New starts a client for config.Address. The connection is established in
// the background; calls issued before it is up are queued.
func New(config Config, metrics Metrics) (*Client, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config = config.withDefaults()
	if metrics == nil {
		metrics = noopMetrics{}
	}

	c := &Client{
		config:  config,
		limiter: ratelimiter.New(config.RateLimit, config.RateBurst),
		metrics: metrics,
		pending: make(map[uint32]*call),
		wake:    make(chan struct{}, 1),
		closing: make(chan struct{}),
	}
	c.xid.Store(uint32(rand.Intn(1024)) * 1_000_000)

	c.wg.Add(1)
	go c.run()
	return c, nil
}

// Address returns the server address.
func (c *Client) Address() string { return c.config.Address }

// MaxRecordSize returns the largest reply record the client accepts.
func (c *Client) MaxRecordSize() int { return c.config.MaxRecordSize }

// State returns the current connection state.
func (c *Client) State() State { return State(c.state.Load()) }

func (c *Client) setState(s State) {
	if c.shutdown.Load() {
		s = StateShutdown
	}
	c.state.Store(int32(s))
}

func (c *Client) nextXID() uint32 { return c.xid.Inc() }

// Service performs one remote procedure call and returns the accepted reply.
// Its Data field holds the procedure results.
//
// Each attempt waits CallTimeout for a reply. An unanswered attempt is
// discarded and the call is sent again under a fresh xid, up to MaxRetries
// attempts, after which ErrTimeout is returned. Denied replies yield
// *DeniedError and unsuccessful accepted replies *AcceptError.
func (c *Client) Service(ctx context.Context, program, version, procedure uint32, args []byte, cred rpc.Credentials) (*rpc.Reply, error) {
	if c.shutdown.Load() {
		return nil, ErrShutdown
	}

	start := time.Now()
	reply, err := c.service(ctx, program, version, procedure, args, cred)
	c.metrics.ObserveCall(program, procedure, time.Since(start), err)
	return reply, err
}

func (c *Client) service(ctx context.Context, program, version, procedure uint32, args []byte, cred rpc.Credentials) (*rpc.Reply, error) {
	timer := time.NewTimer(c.config.CallTimeout)
	defer timer.Stop()

	for attempt := 1; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 1 && c.shutdown.Load() {
			break
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		xid := c.nextXID()
		frame, err := rpc.EncodeCall(xid, program, version, procedure, cred, args)
		if err != nil {
			return nil, fmt.Errorf("encode call: %w", err)
		}
		cl := &call{xid: xid, seq: c.seq.Inc(), frame: frame, done: make(chan result, 1)}
		c.enqueue(cl)

		if attempt > 1 {
			timer.Reset(c.config.CallTimeout)
		}

		select {
		case res := <-cl.done:
			if attempt > 1 {
				logger.Debug("RPC xid=0x%x completed after %d attempts", xid, attempt)
			}
			if res.err != nil {
				return nil, res.err
			}
			if err := replyError(res.reply, program, procedure); err != nil {
				return nil, err
			}
			return res.reply, nil

		case <-ctx.Done():
			c.abandon(cl)
			return nil, ctx.Err()

		case <-timer.C:
			c.abandon(cl)
			c.metrics.RecordRetry(program, procedure)
			logger.Debug("RPC xid=0x%x program=%d procedure=%d: no reply after %v (attempt %d/%d)",
				xid, program, procedure, c.config.CallTimeout, attempt, c.config.MaxRetries)
		}
	}

	return nil, fmt.Errorf("%w: program %d procedure %d after %d attempts",
		ErrTimeout, program, procedure, c.config.MaxRetries)
}

// enqueue registers cl as pending and queues its frame for sending.
func (c *Client) enqueue(cl *call) {
	c.mu.Lock()
	c.pending[cl.xid] = cl
	c.queue = append(c.queue, cl)
	n := len(c.pending)
	c.mu.Unlock()

	c.metrics.SetPending(n)
	c.signal()
}

// abandon forgets an attempt. A reply arriving later is an orphan.
func (c *Client) abandon(cl *call) {
	c.mu.Lock()
	delete(c.pending, cl.xid)
	for i, queued := range c.queue {
		if queued == cl {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			break
		}
	}
	n := len(c.pending)
	c.mu.Unlock()

	c.metrics.SetPending(n)
}

// complete delivers a result to the call waiting on xid.
func (c *Client) complete(xid uint32, res result) bool {
	c.mu.Lock()
	cl, ok := c.pending[xid]
	if ok {
		delete(c.pending, xid)
	}
	n := len(c.pending)
	c.mu.Unlock()

	if !ok {
		return false
	}
	c.metrics.SetPending(n)
	cl.done <- res
	return true
}

func (c *Client) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Shutdown closes the connection and stops reconnecting. Calls issued
// afterwards fail with ErrShutdown; calls already waiting are not woken and
// fail at the end of their current attempt.
func (c *Client) Shutdown() error {
	c.stopOnce.Do(func() {
		logger.Info("Shutting down RPC client for %s", c.config.Address)
		c.shutdown.Store(true)
		c.state.Store(int32(StateShutdown))
		close(c.closing)

		c.mu.Lock()
		if c.conn != nil {
			_ = c.conn.Close()
		}
		c.mu.Unlock()
	})
	c.wg.Wait()
	return nil
}

// ============================================================================
// Connection management
// ============================================================================

func (c *Client) run() {
	defer c.wg.Done()

	c.setState(StateConnecting)
	for !c.shutdown.Load() {
		conn, err := c.dial()
		if err != nil {
			logger.Warn("RPC connect to %s failed: %v; retrying in %v", c.config.Address, err, c.config.ReconnectDelay)
			if !c.sleep(c.config.ReconnectDelay) {
				return
			}
			continue
		}

		err = c.serve(conn)
		if c.shutdown.Load() {
			return
		}

		c.setState(StateReconnecting)
		c.metrics.RecordReconnect()
		resent := c.resendPending()
		logger.Warn("RPC connection to %s lost: %v; reconnecting in %v (%d unanswered calls requeued)",
			c.config.Address, err, c.config.ReconnectDelay, resent)
		if !c.sleep(c.config.ReconnectDelay) {
			return
		}
		c.setState(StateConnecting)
	}
}

func (c *Client) dial() (net.Conn, error) {
	dialer := net.Dialer{Timeout: c.config.DialTimeout, KeepAlive: 30 * time.Second}
	conn, err := dialer.Dial("tcp", c.config.Address)
	if err != nil {
		return nil, &TransportError{Op: "dial", Addr: c.config.Address, Err: err}
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}
	return conn, nil
}

// serve runs the send and receive loops on conn until one of them fails or
// the client shuts down.
func (c *Client) serve(conn net.Conn) error {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	if c.shutdown.Load() {
		_ = conn.Close()
		return ErrShutdown
	}

	c.setState(StateConnected)
	logger.Info("RPC connected to %s", c.config.Address)

	errc := make(chan error, 2)
	stop := make(chan struct{})
	go func() { errc <- c.readLoop(conn) }()
	go func() { errc <- c.writeLoop(conn, stop) }()

	err := <-errc
	close(stop)
	_ = conn.Close()
	<-errc

	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()
	return err
}

// sleep waits for d unless the client shuts down first.
func (c *Client) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-c.closing:
		return false
	case <-timer.C:
		return true
	}
}

// writeLoop sends queued calls in FIFO order. It runs when signalled, on
// every idle tick, and once at start so calls queued while disconnected go
// out as soon as the connection is up.
func (c *Client) writeLoop(conn net.Conn, stop <-chan struct{}) error {
	ticker := time.NewTicker(c.config.IdleTick)
	defer ticker.Stop()

	for {
		if err := c.flushQueue(conn); err != nil {
			return err
		}
		select {
		case <-stop:
			return nil
		case <-c.closing:
			return ErrShutdown
		case <-c.wake:
		case <-ticker.C:
		}
	}
}

func (c *Client) flushQueue(conn net.Conn) error {
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.mu.Unlock()
			return nil
		}
		cl := c.queue[0]
		c.queue[0] = nil
		c.queue = c.queue[1:]
		c.mu.Unlock()

		_ = conn.SetWriteDeadline(time.Now().Add(c.config.CallTimeout))
		if _, err := conn.Write(cl.frame); err != nil {
			c.requeue(cl)
			return &TransportError{Op: "write", Addr: c.config.Address, Err: err}
		}
	}
}

// requeue puts an unsent call back at the head of the queue if its caller is
// still waiting for it.
func (c *Client) requeue(cl *call) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[cl.xid]; ok {
		c.queue = append([]*call{cl}, c.queue...)
	}
}

// resendPending requeues calls that were written to a lost connection and
// are still awaited. Each gets a fresh xid and goes out ahead of calls that
// were never sent. It must only run while no connection is being served.
func (c *Client) resendPending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	queued := make(map[*call]struct{}, len(c.queue))
	for _, cl := range c.queue {
		queued[cl] = struct{}{}
	}

	var sent []*call
	for _, cl := range c.pending {
		if _, ok := queued[cl]; !ok {
			sent = append(sent, cl)
		}
	}
	if len(sent) == 0 {
		return 0
	}
	sort.Slice(sent, func(i, j int) bool { return sent[i].seq < sent[j].seq })

	for _, cl := range sent {
		xid := c.nextXID()
		if err := rpc.SetCallXID(cl.frame, xid); err != nil {
			continue
		}
		delete(c.pending, cl.xid)
		logger.Debug("RPC xid=0x%x requeued as xid=0x%x after connection loss", cl.xid, xid)
		cl.xid = xid
		c.pending[xid] = cl
	}
	c.queue = append(sent, c.queue...)
	return len(sent)
}

func (c *Client) readLoop(conn net.Conn) error {
	records := rpc.NewRecordReader(bufio.NewReaderSize(conn, 64*1024), c.config.MaxRecordSize)

	for {
		record, err := records.ReadRecord()
		if err != nil {
			if c.shutdown.Load() {
				return ErrShutdown
			}
			return &TransportError{Op: "read", Addr: c.config.Address, Err: err}
		}

		reply, err := rpc.ParseReply(record)
		if err != nil {
			xid, peekErr := rpc.PeekXID(record)
			if peekErr != nil {
				return &TransportError{Op: "decode", Addr: c.config.Address, Err: err}
			}
			logger.Debug("RPC xid=0x%x: malformed reply: %v", xid, err)
			c.complete(xid, result{err: &TransportError{Op: "decode", Addr: c.config.Address, Err: err}})
			continue
		}

		if !c.complete(reply.XID, result{reply: reply}) {
			c.metrics.RecordOrphanReply()
			logger.Debug("RPC xid=0x%x: no pending call (late reply to an abandoned attempt?)", reply.XID)
		}
	}
}

// IsTransient reports whether err is a failure that a later call may not
// hit: a timeout or a connection level error.
func IsTransient(err error) bool {
	var transportErr *TransportError
	return errors.Is(err, ErrTimeout) || errors.As(err, &transportErr)
}
