package comm

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drainOutbound(ep *Endpoint) (msgs []string) {
	for {
		data, ok := ep.nextOutbound()
		if !ok {
			return
		}
		msgs = append(msgs, string(data))
	}
}

func TestEndpointSendOrder(t *testing.T) {
	ep := NewEndpoint(3)
	require.Equal(t, EndpointID(3), ep.ID())
	for _, msg := range []string{"a", "b", "c"} {
		require.NoError(t, ep.Send([]byte(msg)))
	}
	require.Equal(t, []string{"a", "b", "c"}, drainOutbound(ep))
	require.Empty(t, drainOutbound(ep))
}

func TestEndpointSendCopiesPayload(t *testing.T) {
	ep := NewEndpoint(1)
	buf := []byte("abc")
	require.NoError(t, ep.Send(buf))
	buf[0] = 'x'
	require.Equal(t, []string{"abc"}, drainOutbound(ep))
}

func TestEndpointPayloadTooLarge(t *testing.T) {
	ep := NewEndpoint(1)
	big := make([]byte, MaxPayloadSize+1)
	require.Equal(t, ErrPayloadTooLarge, ep.Send(big))
	_, err := ep.Call(big)
	require.Equal(t, ErrPayloadTooLarge, err)
	_, err = ep.Request(big, time.Millisecond)
	require.Equal(t, ErrPayloadTooLarge, err)
	require.Empty(t, drainOutbound(ep))
}

func TestEndpointRequest(t *testing.T) {
	ep := NewEndpoint(1)
	go func() {
		for {
			if data, ok := ep.nextOutbound(); ok {
				ep.deliver(append([]byte("re:"), data...), time.Now())
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()
	data, err := ep.Request([]byte("ping"), time.Second)
	require.NoError(t, err)
	require.Equal(t, "re:ping", string(data))
}

func TestEndpointRequestTimeout(t *testing.T) {
	ep := NewEndpoint(1)
	const timeout = 50 * time.Millisecond
	start := time.Now()
	data, err := ep.Request([]byte("ping"), timeout)
	elapsed := time.Since(start)
	require.Equal(t, ErrTimedOut, err)
	require.Nil(t, data)
	assert.True(t, elapsed >= timeout, "returned too early: %v", elapsed)
	assert.True(t, elapsed < timeout+time.Second, "returned too late: %v", elapsed)
}

func TestEndpointLateResponseDiscarded(t *testing.T) {
	ep := NewEndpoint(1)
	_, err := ep.Request([]byte("first"), 10*time.Millisecond)
	require.Equal(t, ErrTimedOut, err)

	c, err := ep.Call([]byte("second"))
	require.NoError(t, err)
	require.Equal(t, []string{"first", "second"}, drainOutbound(ep))

	now := time.Now()
	ep.deliver([]byte("late first"), now)
	ep.deliver([]byte("second reply"), now)
	data, err := c.Wait(time.Second)
	require.NoError(t, err)
	require.Equal(t, "second reply", string(data))
}

func TestEndpointLateWindowExpires(t *testing.T) {
	ep := NewEndpoint(1)
	ep.LateWindow = 10 * time.Millisecond
	_, err := ep.Request([]byte("lost"), 5*time.Millisecond)
	require.Equal(t, ErrTimedOut, err)

	c, err := ep.Call([]byte("next"))
	require.NoError(t, err)
	ep.deliver([]byte("next reply"), time.Now().Add(time.Second))
	data, err := c.Wait(time.Second)
	require.NoError(t, err)
	require.Equal(t, "next reply", string(data))
}

func TestEndpointUnsolicitedDiscarded(t *testing.T) {
	ep := NewEndpoint(1)
	ep.deliver([]byte("noise"), time.Now())
	c, err := ep.Call([]byte("req"))
	require.NoError(t, err)
	ep.deliver([]byte("reply"), time.Now())
	data, err := c.Wait(time.Second)
	require.NoError(t, err)
	require.Equal(t, "reply", string(data))
}

func TestCallPollKeepsCallOutstanding(t *testing.T) {
	ep := NewEndpoint(1)
	ep.LateWindow = time.Millisecond
	c, err := ep.Call([]byte("req"))
	require.NoError(t, err)
	_, err = c.Poll(time.Millisecond)
	require.Equal(t, ErrTimedOut, err)

	ep.deliver([]byte("reply"), time.Now().Add(time.Hour))
	data, err := c.Poll(time.Second)
	require.NoError(t, err)
	require.Equal(t, "reply", string(data))
}

func TestEndpointResync(t *testing.T) {
	ep := NewEndpoint(1)
	written, err := ep.Call([]byte("written"))
	require.NoError(t, err)
	drainOutbound(ep)
	queued, err := ep.Call([]byte("queued"))
	require.NoError(t, err)

	ep.resync()
	ep.deliver([]byte("queued reply"), time.Now())

	data, err := queued.Wait(time.Second)
	require.NoError(t, err)
	require.Equal(t, "queued reply", string(data))
	_, err = written.Wait(time.Millisecond)
	require.Equal(t, ErrTimedOut, err)
}

func TestEndpointLostResponseRecovers(t *testing.T) {
	ep := NewEndpoint(1)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		first := true
		for {
			select {
			case <-stop:
				return
			default:
			}
			data, ok := ep.nextOutbound()
			if !ok {
				time.Sleep(time.Millisecond)
				continue
			}
			if first {
				first = false
				continue
			}
			ep.deliver(append([]byte("re:"), data...), time.Now())
		}
	}()

	const timeout = 100 * time.Millisecond
	_, err := ep.Request([]byte("req0"), timeout)
	require.Equal(t, ErrTimedOut, err)

	// the reply to req1 can't be told apart from a late reply to req0.
	_, err = ep.Request([]byte("req1"), timeout)
	require.Equal(t, ErrTimedOut, err)

	for i := 2; i < 10; i++ {
		msg := fmt.Sprintf("req%d", i)
		data, err := ep.Request([]byte(msg), timeout)
		require.NoError(t, err, msg)
		require.Equal(t, "re:"+msg, string(data))
	}
}

func TestEndpointSupersededCallKeepsOwnResponse(t *testing.T) {
	ep := NewEndpoint(1)
	_, err := ep.Request([]byte("slow"), time.Millisecond)
	require.Equal(t, ErrTimedOut, err)

	c, err := ep.Call([]byte("next"))
	require.NoError(t, err)
	drainOutbound(ep)

	now := time.Now()
	ep.deliver([]byte("slow reply"), now)
	ep.deliver([]byte("next reply"), now)
	data, err := c.Wait(time.Second)
	require.NoError(t, err)
	require.Equal(t, "next reply", string(data))
}

func TestEndpointSupersededCallForgotten(t *testing.T) {
	ep := NewEndpoint(1)
	_, err := ep.Request([]byte("lost"), time.Millisecond)
	require.Equal(t, ErrTimedOut, err)

	c, err := ep.Call([]byte("ambiguous"))
	require.NoError(t, err)
	drainOutbound(ep)
	ep.deliver([]byte("ambiguous reply"), time.Now())
	_, err = c.Wait(time.Millisecond)
	require.Equal(t, ErrTimedOut, err)

	ep.inLock.Lock()
	require.Empty(t, ep.pending)
	ep.inLock.Unlock()

	next, err := ep.Call([]byte("next"))
	require.NoError(t, err)
	ep.deliver([]byte("next reply"), time.Now())
	data, err := next.Wait(time.Second)
	require.NoError(t, err)
	require.Equal(t, "next reply", string(data))
}
