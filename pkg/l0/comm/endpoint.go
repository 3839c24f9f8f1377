package comm

import (
	"sync"
	"time"

	"github.com/golang/glog"
)

const (
	// maxInbound bounds responses kept for an endpoint nobody is waiting on.
	maxInbound = 64

	// DefaultLateWindow is how long a timed out call still claims its
	// late response.
	DefaultLateWindow = 2 * time.Second
)

// Endpoint is a logical correlation unit on the link. It's owned by the
// caller, and a Registry only keeps a reference for routing.
//
// Only one outstanding Call per Endpoint is supported, concurrent callers
// must use distinct endpoints.
//
// Responses are matched to calls in order: each response belongs to the
// oldest call not answered yet. A call that times out keeps its place
// for LateWindow, so its late response is discarded instead of being
// taken by the next call. When such a claim takes a response while a
// newer call is already on the wire, the response may belong to either
// of them: the newer call is then forgotten on timeout instead of
// claiming yet another response.
type Endpoint struct {
	LateWindow time.Duration

	id EndpointID

	outLock  sync.Mutex
	outbound []outMsg

	inLock      sync.Mutex
	inbound     []response
	inSignal    chan struct{}
	pending     []pendingCall
	issued      uint64
	lastWritten uint64
}

type outMsg struct {
	seq  uint64 // 0 for messages sent without a call
	data []byte
}

type response struct {
	seq  uint64 // 0 for unsolicited
	data []byte
}

type pendingCall struct {
	seq       uint64
	abandoned time.Time
	// superseded is set when an abandoned call took a response
	// after this one was written.
	superseded bool
}

// Call represents a request waiting for its response.
type Call struct {
	ep  *Endpoint
	seq uint64
}

// NewEndpoint creates an Endpoint.
func NewEndpoint(id EndpointID) *Endpoint {
	return &Endpoint{
		LateWindow: DefaultLateWindow,
		id:         id,
		inSignal:   make(chan struct{}, 1),
	}
}

// ID returns the endpoint id.
func (e *Endpoint) ID() EndpointID {
	return e.id
}

// Send enqueues a message without expecting a response.
func (e *Endpoint) Send(payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return ErrPayloadTooLarge
	}
	e.enqueue(0, payload)
	return nil
}

// Call enqueues a message and returns the Call to wait for the response.
func (e *Endpoint) Call(payload []byte) (*Call, error) {
	if len(payload) > MaxPayloadSize {
		return nil, ErrPayloadTooLarge
	}
	e.inLock.Lock()
	e.issued++
	c := &Call{ep: e, seq: e.issued}
	e.pending = append(e.pending, pendingCall{seq: c.seq})
	e.inLock.Unlock()
	e.enqueue(c.seq, payload)
	return c, nil
}

// Request sends a message and waits for the response.
func (e *Endpoint) Request(payload []byte, timeout time.Duration) ([]byte, error) {
	c, err := e.Call(payload)
	if err != nil {
		return nil, err
	}
	return c.Wait(timeout)
}

// Seq returns the sequence number assigned to the call.
func (c *Call) Seq() uint64 {
	return c.seq
}

// Wait blocks until the response arrives or timeout elapses. After
// ErrTimedOut the call is abandoned.
func (c *Call) Wait(timeout time.Duration) ([]byte, error) {
	data, err := c.Poll(timeout)
	if err == ErrTimedOut {
		c.ep.abandon(c.seq, time.Now())
	}
	return data, err
}

// Poll is like Wait but the call stays outstanding after ErrTimedOut.
func (c *Call) Poll(timeout time.Duration) ([]byte, error) {
	if data, ok := c.ep.take(c.seq); ok {
		return data, nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-c.ep.inSignal:
			if data, ok := c.ep.take(c.seq); ok {
				return data, nil
			}
		case <-timer.C:
			// last chance for a response racing with the timer.
			if data, ok := c.ep.take(c.seq); ok {
				return data, nil
			}
			return nil, ErrTimedOut
		}
	}
}

func (e *Endpoint) take(seq uint64) ([]byte, bool) {
	e.inLock.Lock()
	defer e.inLock.Unlock()
	n := 0
	for n < len(e.inbound) && e.inbound[n].seq < seq {
		glog.V(2).Infof("endpoint %d: discard stale response seq=%d", e.id, e.inbound[n].seq)
		n++
	}
	e.inbound = e.inbound[n:]
	if len(e.inbound) > 0 && e.inbound[0].seq == seq {
		data := e.inbound[0].data
		e.inbound = e.inbound[1:]
		return data, true
	}
	return nil, false
}

// abandon marks a timed out call, the window starts at the first timeout.
// A superseded call is forgotten right away.
func (e *Endpoint) abandon(seq uint64, now time.Time) {
	e.inLock.Lock()
	defer e.inLock.Unlock()
	for n := range e.pending {
		if e.pending[n].seq != seq {
			continue
		}
		if e.pending[n].superseded {
			e.pending = append(e.pending[:n], e.pending[n+1:]...)
		} else if e.pending[n].abandoned.IsZero() {
			e.pending[n].abandoned = now
		}
		return
	}
}

func (e *Endpoint) enqueue(seq uint64, payload []byte) {
	msg := outMsg{seq: seq, data: make([]byte, len(payload))}
	copy(msg.data, payload)
	e.outLock.Lock()
	e.outbound = append(e.outbound, msg)
	e.outLock.Unlock()
}

// nextOutbound dequeues the oldest outbound message.
func (e *Endpoint) nextOutbound() ([]byte, bool) {
	e.outLock.Lock()
	if len(e.outbound) == 0 {
		e.outLock.Unlock()
		return nil, false
	}
	msg := e.outbound[0]
	e.outbound[0] = outMsg{}
	e.outbound = e.outbound[1:]
	e.outLock.Unlock()

	if msg.seq != 0 {
		e.inLock.Lock()
		e.lastWritten = msg.seq
		e.inLock.Unlock()
	}
	return msg.data, true
}

// deliver assigns the payload to the oldest unanswered call and queues it.
func (e *Endpoint) deliver(payload []byte, now time.Time) {
	e.inLock.Lock()
	n := 0
	for n < len(e.pending) && e.expired(e.pending[n], now) {
		n++
	}
	e.pending = e.pending[n:]
	var seq uint64
	if len(e.pending) > 0 {
		if !e.pending[0].abandoned.IsZero() {
			for i := 1; i < len(e.pending) && e.pending[i].seq <= e.lastWritten; i++ {
				e.pending[i].superseded = true
			}
		}
		seq = e.pending[0].seq
		e.pending = e.pending[1:]
	}
	if len(e.inbound) >= maxInbound {
		e.inbound = e.inbound[1:]
	}
	e.inbound = append(e.inbound, response{seq: seq, data: payload})
	e.inLock.Unlock()
	select {
	case e.inSignal <- struct{}{}:
	default:
	}
}

func (e *Endpoint) expired(c pendingCall, now time.Time) bool {
	return !c.abandoned.IsZero() && now.Sub(c.abandoned) > e.LateWindow
}

// resync forgets calls already written to a link which is gone, their
// responses can't arrive anymore. Calls still queued stay pending.
func (e *Endpoint) resync() {
	e.inLock.Lock()
	defer e.inLock.Unlock()
	n := 0
	for n < len(e.pending) && e.pending[n].seq <= e.lastWritten {
		n++
	}
	e.pending = e.pending[n:]
}
