package comm

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// respondAll answers every outbound message of registered endpoints
// unless skip returns true, until stop is closed.
func respondAll(r *Registry, skip func([]byte) bool, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		for _, ep := range r.Endpoints() {
			data, ok := ep.nextOutbound()
			if !ok || skip(data) {
				continue
			}
			ep.deliver(append([]byte("re:"), data...), time.Now())
		}
		time.Sleep(100 * time.Microsecond)
	}
}

func TestMultiRequest(t *testing.T) {
	r := NewRegistry()
	stop := make(chan struct{})
	defer close(stop)
	go respondAll(r, func(data []byte) bool {
		return bytes.Equal(data, []byte("req2"))
	}, stop)

	requests := [][]byte{[]byte("req0"), []byte("req1"), []byte("req2"), []byte("req3"), []byte("req4")}
	const maxWait = 100 * time.Millisecond
	start := time.Now()
	results := r.MultiRequest(requests, maxWait)
	elapsed := time.Since(start)

	require.Len(t, results, len(requests))
	for n, result := range results {
		if n == 2 {
			assert.True(t, result.TimedOut())
			assert.Nil(t, result.Data)
			continue
		}
		require.NoError(t, result.Err)
		assert.Equal(t, "re:"+string(requests[n]), string(result.Data))
	}
	assert.True(t, elapsed >= maxWait, "returned before maxWait with a silent request: %v", elapsed)
	assert.True(t, elapsed < maxWait+time.Second)
	assert.Zero(t, r.Len(), "ephemeral endpoints must be deregistered")
}

func TestMultiRequestAllAnswered(t *testing.T) {
	r := NewRegistry()
	stop := make(chan struct{})
	defer close(stop)
	go respondAll(r, func([]byte) bool { return false }, stop)

	start := time.Now()
	results := r.MultiRequest([][]byte{[]byte("a"), []byte("b")}, 10*time.Second)
	assert.True(t, time.Since(start) < 5*time.Second, "must return once all are answered")
	require.Len(t, results, 2)
	assert.Equal(t, Result{Data: []byte("re:a")}, results[0])
	assert.Equal(t, Result{Data: []byte("re:b")}, results[1])
}

func TestMultiRequestErrors(t *testing.T) {
	r := NewRegistry()
	assert.Empty(t, r.MultiRequest(nil, time.Millisecond))

	results := r.MultiRequest([][]byte{make([]byte, MaxPayloadSize+1), []byte("x")}, 10*time.Millisecond)
	require.Len(t, results, 2)
	assert.Equal(t, ErrPayloadTooLarge, results[0].Err)
	assert.True(t, results[1].TimedOut())
	assert.Zero(t, r.Len())
}
