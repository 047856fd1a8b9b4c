package flowrepo

import (
	"errors"
	"sync"
	"time"
)

// Login flows are short-lived; anything older than this is treated as gone.
const flowTimeout = 15 * time.Minute

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu    sync.RWMutex
	flows map[string]*Flow
}

// NewInMemoryRepo creates a new in-memory login flow repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		flows: make(map[string]*Flow),
	}
}

// Upsert stores or updates a login flow
func (r *InMemoryRepo) Upsert(state string, flow *Flow) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if flow == nil {
		return errors.New("flow cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Store a copy to prevent external modifications
	r.flows[state] = &Flow{
		Nonce:     flow.Nonce,
		ReturnURL: flow.ReturnURL,
		CreatedAt: flow.CreatedAt,
	}
	return nil
}

// Get retrieves a login flow by state parameter. Expired flows are treated as
// not found.
func (r *InMemoryRepo) Get(state string) (*Flow, error) {
	if state == "" {
		return nil, errors.New("state cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	flow, exists := r.flows[state]
	if !exists {
		return nil, errors.New("state not found")
	}
	if time.Since(flow.CreatedAt) > flowTimeout {
		return nil, errors.New("state expired")
	}

	return &Flow{
		Nonce:     flow.Nonce,
		ReturnURL: flow.ReturnURL,
		CreatedAt: flow.CreatedAt,
	}, nil
}

// Delete removes a login flow
func (r *InMemoryRepo) Delete(state string) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.flows, state)
	return nil
}
