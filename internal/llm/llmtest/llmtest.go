// Package llmtest provides a scripted llm.Generator for tests.
package llmtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/yairfalse/carta/internal/llm"
)

// Recorder records requests and answers them with Respond.
// When Respond is nil the reply is "reply N" with N the 1-based call number.
type Recorder struct {
	Respond func(n int, req llm.Request) (string, error)

	mu       sync.Mutex
	requests []llm.Request
}

// Generate records req and returns the scripted reply.
func (r *Recorder) Generate(_ context.Context, req llm.Request) (string, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	n := len(r.requests)
	r.mu.Unlock()

	if r.Respond == nil {
		return fmt.Sprintf("reply %d", n), nil
	}
	return r.Respond(n, req)
}

// Requests returns a copy of the recorded requests.
func (r *Recorder) Requests() []llm.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]llm.Request(nil), r.requests...)
}

// Calls returns the number of requests.
func (r *Recorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

// FailOn returns a Respond func failing on call n with err.
func FailOn(n int, err error) func(int, llm.Request) (string, error) {
	return func(call int, _ llm.Request) (string, error) {
		if call == n {
			return "", err
		}
		return fmt.Sprintf("reply %d", call), nil
	}
}
