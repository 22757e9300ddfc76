package enum

// JoinStatus represents the lifecycle state of a tracked member join.
// Pending is the only non-terminal state.
//
//go:generate go tool enumer -type=JoinStatus -trimprefix=JoinStatus
type JoinStatus int

const (
	// JoinStatusPending indicates the join has not yet been validated.
	JoinStatusPending JoinStatus = iota
	// JoinStatusValidated indicates the member stayed through the grace period.
	JoinStatusValidated
	// JoinStatusLeftEarly indicates the member left before validation.
	JoinStatusLeftEarly
)
