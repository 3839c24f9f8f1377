package comm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func endpointIDs(eps []*Endpoint) (ids []EndpointID) {
	for _, ep := range eps {
		ids = append(ids, ep.ID())
	}
	return
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewEndpoint(3), NewEndpoint(1)))
	require.NoError(t, r.Register(NewEndpoint(2)))
	assert.Equal(t, []EndpointID{3, 1, 2}, endpointIDs(r.Endpoints()))
	assert.Equal(t, 3, r.Len())

	require.Equal(t, ErrEndpointExists, r.Register(NewEndpoint(4), NewEndpoint(1)))
	assert.Nil(t, r.Lookup(4), "failed registration must add nothing")
	require.Equal(t, ErrEndpointExists, r.Register(NewEndpoint(5), NewEndpoint(5)))
	assert.Nil(t, r.Lookup(5))
	assert.Equal(t, 3, r.Len())
}

func TestRegistryDeregister(t *testing.T) {
	r := NewRegistry()
	ep := NewEndpoint(2)
	require.NoError(t, r.Register(NewEndpoint(1), ep, NewEndpoint(3)))
	require.Same(t, ep, r.Lookup(2))

	r.Deregister(2, 100)
	assert.Nil(t, r.Lookup(2))
	assert.Equal(t, []EndpointID{1, 3}, endpointIDs(r.Endpoints()))

	require.NoError(t, r.Register(ep))
	assert.Equal(t, []EndpointID{1, 3, 2}, endpointIDs(r.Endpoints()))
}

func TestRegistryEphemeral(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewEndpoint(EphemeralIDFirst+1)))
	eps, err := r.RegisterEphemeral(3)
	require.NoError(t, err)
	assert.Equal(t, []EndpointID{EphemeralIDFirst, EphemeralIDFirst + 2, EphemeralIDFirst + 3}, endpointIDs(eps))
	for _, ep := range eps {
		assert.Same(t, ep, r.Lookup(ep.ID()))
	}

	r.Deregister(endpointIDs(eps)...)
	eps, err = r.RegisterEphemeral(2)
	require.NoError(t, err)
	assert.Equal(t, []EndpointID{EphemeralIDFirst + 4, EphemeralIDFirst + 5}, endpointIDs(eps))
}

func TestRegistryEphemeralWrapAround(t *testing.T) {
	r := NewRegistry()
	r.nextEph = EphemeralIDLast
	eps, err := r.RegisterEphemeral(2)
	require.NoError(t, err)
	assert.Equal(t, []EndpointID{EphemeralIDLast, EphemeralIDFirst}, endpointIDs(eps))
}

func TestRegistryEphemeralExhausted(t *testing.T) {
	r := NewRegistry()
	size := int(EphemeralIDLast-EphemeralIDFirst) + 1
	_, err := r.RegisterEphemeral(size)
	require.NoError(t, err)
	_, err = r.RegisterEphemeral(1)
	require.Equal(t, ErrNoEphemeralID, err)
	assert.Equal(t, size, r.Len())
}

func TestRegistryRoute(t *testing.T) {
	r := NewRegistry()
	ep := NewEndpoint(7)
	require.NoError(t, r.Register(ep))
	c, err := ep.Call([]byte("req"))
	require.NoError(t, err)

	assert.False(t, r.route(&Frame{Endpoint: 8, Payload: []byte("other")}, time.Now()))
	assert.True(t, r.route(&Frame{Endpoint: 7, Payload: []byte("reply")}, time.Now()))
	data, err := c.Wait(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "reply", string(data))
}
