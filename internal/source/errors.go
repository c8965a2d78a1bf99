package source

import "errors"

// ErrEndOfData signals the vendor's structured "invalid skip/limit combo"
// response. It never escapes FetchHosts; the paged client reacts to it with
// a shrink-retry and terminates the stream.
var ErrEndOfData = errors.New("api indicated end of data")

// endOfDataMessage is the sentinel phrase the inventory gateway embeds in
// error bodies when skip/limit points past the final host.
const endOfDataMessage = "Error invalid skip/limit combo (>number of hosts)"

// ConstraintError is a structured API constraint violation (bad limit,
// out-of-range parameter). It terminates the source stream.
type ConstraintError struct {
	Message string
}

func (e *ConstraintError) Error() string {
	return "api constraint violation: " + e.Message
}

// IsConstraint reports whether err is a ConstraintError.
func IsConstraint(err error) bool {
	var ce *ConstraintError
	return errors.As(err, &ce)
}
