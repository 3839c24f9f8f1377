package comm

import (
	"time"

	"github.com/golang/glog"
)

// PollInterval is how long MultiRequest waits on one endpoint before
// moving to the next one.
var PollInterval = time.Millisecond

// Result is the result of one request in MultiRequest.
type Result struct {
	Err  error
	Data []byte
}

// TimedOut indicates no response was received.
func (r Result) TimedOut() bool {
	return r.Err == ErrTimedOut
}

// MultiRequest sends each request on its own ephemeral endpoint and
// collects the responses until all are answered or maxWait elapses.
// Results are in the same order as requests, unanswered ones carry
// ErrTimedOut.
func (r *Registry) MultiRequest(requests [][]byte, maxWait time.Duration) []Result {
	results := make([]Result, len(requests))
	if len(requests) == 0 {
		return results
	}
	eps, err := r.RegisterEphemeral(len(requests))
	if err != nil {
		for n := range results {
			results[n].Err = err
		}
		return results
	}
	ids := make([]EndpointID, len(eps))
	for n, ep := range eps {
		ids[n] = ep.id
	}
	defer r.Deregister(ids...)

	calls := make([]*Call, len(requests))
	pending := 0
	for n, req := range requests {
		if calls[n], err = eps[n].Call(req); err != nil {
			results[n].Err = err
			continue
		}
		results[n].Err = ErrTimedOut
		pending++
	}

	deadline := time.Now().Add(maxWait)
	for n := 0; pending > 0 && time.Now().Before(deadline); n = (n + 1) % len(calls) {
		if calls[n] == nil {
			continue
		}
		data, err := calls[n].Poll(PollInterval)
		if err != nil {
			continue
		}
		results[n] = Result{Data: data}
		calls[n] = nil
		pending--
	}
	if pending > 0 {
		glog.V(2).Infof("multi request: %d/%d unanswered after %v", pending, len(requests), maxWait)
	}
	return results
}
