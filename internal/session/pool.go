package session

import "sync"

// Pool hands out one worker per session id, creating them lazily. Workers
// created by the pool share the deps given at construction.
type Pool struct {
	mu      sync.Mutex
	deps    Deps
	workers map[string]*Worker
}

func NewPool(deps Deps) *Pool {
	return &Pool{
		deps:    deps,
		workers: make(map[string]*Worker),
	}
}

// Get returns the worker for the session, creating it on first use.
func (p *Pool) Get(sessionID string) (*Worker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w, ok := p.workers[sessionID]; ok {
		return w, nil
	}
	w, err := NewWorker(sessionID, p.deps)
	if err != nil {
		return nil, err
	}
	p.workers[sessionID] = w
	return w, nil
}

// Drop forgets the worker for a session. Its rotation memory is discarded;
// the durable log is untouched.
func (p *Pool) Drop(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.workers, sessionID)
}

// Len returns the number of live workers.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}
