package session

// Token is what a Session registers with the reactor as the Data for
// both its frontend and backend fd, so the worker's dispatch loop can
// recover which session and which side of it a readiness event is for.
type Token struct {
	Session   *Session
	IsBackend bool
}
