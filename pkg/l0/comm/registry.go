package comm

import (
	"sync"
	"time"
)

// Ephemeral endpoint ids are allocated from this range, away from ids
// used by long-lived endpoints.
const (
	EphemeralIDFirst EndpointID = 55000
	EphemeralIDLast  EndpointID = 0xfffe
)

// Registry maps endpoint ids to endpoints for routing.
type Registry struct {
	lock      sync.RWMutex
	endpoints map[EndpointID]*Endpoint
	order     []*Endpoint
	nextEph   EndpointID
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		endpoints: make(map[EndpointID]*Endpoint),
		nextEph:   EphemeralIDFirst,
	}
}

// Register adds endpoints. It fails if any id is already taken, in which
// case none of them are added.
func (r *Registry) Register(eps ...*Endpoint) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	for n, ep := range eps {
		if _, exist := r.endpoints[ep.id]; exist {
			return ErrEndpointExists
		}
		for _, other := range eps[:n] {
			if other.id == ep.id {
				return ErrEndpointExists
			}
		}
	}
	for _, ep := range eps {
		r.endpoints[ep.id] = ep
		r.order = append(r.order, ep)
	}
	return nil
}

// Deregister removes endpoints by id. Unknown ids are ignored.
func (r *Registry) Deregister(ids ...EndpointID) {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, id := range ids {
		ep, ok := r.endpoints[id]
		if !ok {
			continue
		}
		delete(r.endpoints, id)
		for n, item := range r.order {
			if item == ep {
				r.order = append(r.order[:n:n], r.order[n+1:]...)
				break
			}
		}
	}
}

// Lookup finds the endpoint by id.
func (r *Registry) Lookup(id EndpointID) *Endpoint {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.endpoints[id]
}

// Len returns the number of registered endpoints.
func (r *Registry) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.order)
}

// Endpoints returns registered endpoints in registration order.
func (r *Registry) Endpoints() []*Endpoint {
	r.lock.RLock()
	defer r.lock.RUnlock()
	eps := make([]*Endpoint, len(r.order))
	copy(eps, r.order)
	return eps
}

// RegisterEphemeral creates and registers n endpoints with unused ids
// from the ephemeral range.
func (r *Registry) RegisterEphemeral(n int) ([]*Endpoint, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	rangeSize := int(EphemeralIDLast-EphemeralIDFirst) + 1
	eps := make([]*Endpoint, 0, n)
	for tries := 0; len(eps) < n && tries < rangeSize; tries++ {
		id := r.nextEph
		if r.nextEph == EphemeralIDLast {
			r.nextEph = EphemeralIDFirst
		} else {
			r.nextEph++
		}
		if _, exist := r.endpoints[id]; !exist {
			eps = append(eps, NewEndpoint(id))
		}
	}
	if len(eps) < n {
		return nil, ErrNoEphemeralID
	}
	for _, ep := range eps {
		r.endpoints[ep.id] = ep
		r.order = append(r.order, ep)
	}
	return eps, nil
}

func (r *Registry) route(f *Frame, now time.Time) bool {
	ep := r.Lookup(f.Endpoint)
	if ep == nil {
		return false
	}
	ep.deliver(f.Payload, now)
	return true
}

func (r *Registry) resync() {
	for _, ep := range r.Endpoints() {
		ep.resync()
	}
}
