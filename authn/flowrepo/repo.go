package flowrepo

import "time"

// Flow tracks one in-progress login between the redirect to the provider and
// the callback. Keyed by the state parameter.
type Flow struct {
	Nonce     string
	ReturnURL string
	CreatedAt time.Time
}

type Repo interface {
	Upsert(state string, flow *Flow) error
	Get(state string) (*Flow, error)
	Delete(state string) error
}
