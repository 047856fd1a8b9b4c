package sessions

// Repo stores identity sessions keyed by session ID. Implementations must
// serialize access so a request's mutation is persisted before its response
// is sent.
type Repo interface {
	Upsert(sessionID string, session Session) error
	Get(sessionID string) (Session, error)
	Delete(sessionID string) error
}
