package command

// State is the lifecycle of one command hook. It is exactly one of
// Idle, Pending, Success or Failure.
type State interface {
	isState()
	// Status returns the variant name.
	Status() string
}

// Idle means nothing has been submitted since creation or the last Reset.
type Idle struct{}

// Pending means validation or the wallet call is in progress.
type Pending struct{}

// Success carries the broadcast transaction id. TxID is never empty.
type Success struct {
	TxID string
}

// Failure carries a human-readable message. Message is never empty.
type Failure struct {
	Kind    ErrorKind
	Message string
}

func (Idle) isState()    {}
func (Pending) isState() {}
func (Success) isState() {}
func (Failure) isState() {}

// Status names.
const (
	StatusIdle    = "idle"
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailure = "failure"
)

func (Idle) Status() string    { return StatusIdle }
func (Pending) Status() string { return StatusPending }
func (Success) Status() string { return StatusSuccess }
func (Failure) Status() string { return StatusFailure }

// IsPending reports whether s is Pending.
func IsPending(s State) bool {
	_, ok := s.(Pending)
	return ok
}

// TxID returns the transaction id if s is Success.
func TxID(s State) (string, bool) {
	succ, ok := s.(Success)
	return succ.TxID, ok
}

// Message returns the failure message if s is Failure.
func Message(s State) (string, bool) {
	f, ok := s.(Failure)
	return f.Message, ok
}
