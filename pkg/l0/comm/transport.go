package comm

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/golang/glog"

	fx "github.com/robotalks/vexlink/pkg/framework"
)

// Connector discovers the device and opens the link. Each call is a
// single attempt, Transport retries.
type Connector interface {
	Connect(context.Context) (io.ReadWriteCloser, error)
}

// ConnectFunc is func type of Connector.
type ConnectFunc func(context.Context) (io.ReadWriteCloser, error)

// Connect implements Connector.
func (f ConnectFunc) Connect(ctx context.Context) (io.ReadWriteCloser, error) {
	return f(ctx)
}

// ConnState is the state of the physical link.
type ConnState int

// Connection states.
const (
	Disconnected ConnState = iota
	Connected
)

// String implements fmt.Stringer.
func (s ConnState) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// BackoffConfig configures the reconnection spin.
type BackoffConfig struct {
	Initial time.Duration
	Max     time.Duration
}

// Defaults.
const (
	DefaultWriteInterval = 10 * time.Millisecond
	DefaultReadSize      = 1024
)

// DefaultBackoff is used when Transport.Backoff is zero.
var DefaultBackoff = BackoffConfig{Initial: 100 * time.Millisecond, Max: 5 * time.Second}

var errStopped = errors.New("transport stopped")

// Transport owns the physical link, runs the reader and writer loops
// and reconnects on any I/O failure.
type Transport struct {
	Registry      *Registry
	Connector     Connector
	Sink          io.Writer // receives bytes outside of frames
	WriteInterval time.Duration
	ReadSize      int
	Backoff       BackoffConfig
	Metrics       *Metrics

	connLock  sync.Mutex // serializes reconnection
	stateLock sync.RWMutex
	state     ConnState
	link      io.ReadWriteCloser
	gen       uint64
	readyCh   chan struct{}
}

// NewTransport creates a Transport.
func NewTransport(connector Connector) *Transport {
	return &Transport{
		Registry:      NewRegistry(),
		Connector:     connector,
		WriteInterval: DefaultWriteInterval,
		ReadSize:      DefaultReadSize,
		Backoff:       DefaultBackoff,
	}
}

// Register registers endpoints for routing.
func (t *Transport) Register(eps ...*Endpoint) error {
	return t.Registry.Register(eps...)
}

// Deregister removes endpoints.
func (t *Transport) Deregister(ids ...EndpointID) {
	t.Registry.Deregister(ids...)
}

// State gets the connection state.
func (t *Transport) State() ConnState {
	t.stateLock.RLock()
	defer t.stateLock.RUnlock()
	return t.state
}

// Ready returns a chan which is closed once the link is connected.
func (t *Transport) Ready() <-chan struct{} {
	t.stateLock.Lock()
	defer t.stateLock.Unlock()
	if t.readyCh == nil {
		t.readyCh = make(chan struct{})
		if t.state == Connected {
			close(t.readyCh)
		}
	}
	return t.readyCh
}

// Run runs the reader and writer loops until ctx is canceled.
func (t *Transport) Run(ctx context.Context) error {
	stopCh := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			t.disconnect(ctx.Err())
		case <-stopCh:
		}
	}()
	err := fx.RunAll(ctx,
		fx.NamedRun("link-reader", fx.RunFunc(t.readLoop)),
		fx.NamedRun("link-writer", fx.RunFunc(t.writeLoop)))
	close(stopCh)
	t.disconnect(errStopped)
	return err
}

func (t *Transport) readLoop(ctx context.Context) error {
	size := t.ReadSize
	if size <= 0 {
		size = DefaultReadSize
	}
	buf := make([]byte, size)
	var parser Parser
	var currGen uint64
	for {
		link, gen, err := t.ensureConnected(ctx)
		if err != nil {
			return err
		}
		if gen != currGen {
			parser.Reset()
			currGen = gen
		}
		n, err := link.Read(buf)
		if n > 0 {
			t.process(&parser, buf[:n])
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			t.fail(gen, &LinkError{Op: "read", Err: err})
		}
	}
}

func (t *Transport) process(parser *Parser, chunk []byte) {
	now := time.Now()
	var received, unknown int
	raw, corrupt := parser.Feed(chunk, func(f *Frame) {
		if t.Registry.route(f, now) {
			received++
			glog.V(2).Infof("RCV endpoint=%d len=%d", f.Endpoint, len(f.Payload))
			return
		}
		unknown++
		glog.V(2).Infof("DROP unknown endpoint=%d", f.Endpoint)
	})
	t.Metrics.received(received)
	t.Metrics.dropped(DropUnknownEndpoint, unknown)
	t.Metrics.dropped(DropCorrupt, corrupt)
	if corrupt > 0 {
		glog.V(1).Infof("dropped %d corrupt frames", corrupt)
	}
	if len(raw) > 0 {
		t.Metrics.raw(len(raw))
		if t.Sink != nil {
			if _, err := t.Sink.Write(raw); err != nil {
				glog.Warningf("diagnostic sink error: %v", err)
			}
		}
	}
}

func (t *Transport) writeLoop(ctx context.Context) error {
	interval := t.WriteInterval
	if interval <= 0 {
		interval = DefaultWriteInterval
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()
	var batch []byte
	for {
		link, gen, err := t.ensureConnected(ctx)
		if err != nil {
			return err
		}
		var count int
		var current bool
		batch, count, current = t.collectFor(gen, batch[:0])
		if !current {
			continue
		}
		if count > 0 {
			if _, err := link.Write(batch); err != nil {
				t.Metrics.dropped(DropWriteFailed, count)
				t.fail(gen, &LinkError{Op: "write", Err: err})
			} else {
				t.Metrics.sent(count)
				glog.V(2).Infof("SND %d frames, %d bytes", count, len(batch))
			}
		}
		timer.Reset(interval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// collect takes at most one message from each endpoint and encodes
// them into a single batch.
func (t *Transport) collect(batch []byte) ([]byte, int) {
	var count int
	for _, ep := range t.Registry.Endpoints() {
		data, ok := ep.nextOutbound()
		if !ok {
			continue
		}
		f := Frame{Endpoint: ep.id, Payload: data}
		var err error
		if batch, err = f.AppendTo(batch); err != nil {
			glog.Errorf("endpoint %d: %v", ep.id, err)
			continue
		}
		count++
	}
	return batch, count
}

// collectFor collects a batch only while gen is the connected link, so
// messages are never dequeued for a link already replaced.
func (t *Transport) collectFor(gen uint64, batch []byte) ([]byte, int, bool) {
	t.stateLock.RLock()
	defer t.stateLock.RUnlock()
	if t.gen != gen || t.state != Connected {
		return batch, 0, false
	}
	batch, count := t.collect(batch)
	return batch, count, true
}

func (t *Transport) current() (io.ReadWriteCloser, uint64, bool) {
	t.stateLock.RLock()
	defer t.stateLock.RUnlock()
	return t.link, t.gen, t.state == Connected
}

// ensureConnected returns the current link, or reconnects when there's
// none. Concurrent callers wait for a single reconnection.
func (t *Transport) ensureConnected(ctx context.Context) (io.ReadWriteCloser, uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if link, gen, ok := t.current(); ok {
		return link, gen, nil
	}
	t.connLock.Lock()
	defer t.connLock.Unlock()
	if link, gen, ok := t.current(); ok {
		return link, gen, nil
	}

	link, err := t.dial(ctx)
	if err != nil {
		return nil, 0, err
	}
	// calls written to the previous link will never be answered.
	t.Registry.resync()

	t.stateLock.Lock()
	t.gen++
	gen := t.gen
	t.link, t.state = link, Connected
	if t.readyCh != nil {
		close(t.readyCh)
	}
	t.stateLock.Unlock()

	t.Metrics.connected(true)
	glog.Infof("link connected")
	return link, gen, nil
}

func (t *Transport) dial(ctx context.Context) (io.ReadWriteCloser, error) {
	cfg := t.Backoff
	if cfg.Initial <= 0 {
		cfg.Initial = DefaultBackoff.Initial
	}
	if cfg.Max < cfg.Initial {
		cfg.Max = cfg.Initial
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.Initial
	b.MaxInterval = cfg.Max
	b.MaxElapsedTime = 0 // never give up

	var link io.ReadWriteCloser
	err := backoff.RetryNotify(func() error {
		t.Metrics.attempt()
		l, err := t.Connector.Connect(ctx)
		if err != nil {
			return err
		}
		link = l
		return nil
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		glog.V(1).Infof("connect failed: %v, retry in %v", err, next)
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		if link != nil {
			link.Close()
		}
		return nil, ctxErr
	}
	if err != nil {
		return nil, err
	}
	return link, nil
}

// fail transitions to Disconnected if gen is still the current link.
func (t *Transport) fail(gen uint64, err error) {
	t.stateLock.Lock()
	if t.gen != gen || t.state != Connected {
		t.stateLock.Unlock()
		return
	}
	link := t.link
	t.link, t.state = nil, Disconnected
	t.readyCh = nil
	t.stateLock.Unlock()

	link.Close()
	t.Metrics.connected(false)
	glog.Warningf("link disconnected: %v", err)
}

func (t *Transport) disconnect(err error) {
	t.stateLock.RLock()
	gen := t.gen
	t.stateLock.RUnlock()
	t.fail(gen, err)
}
