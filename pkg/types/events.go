package types

// FailureKind classifies why a work unit ended without exhausting its pages.
type FailureKind string

const (
	FailTransient        FailureKind = "transient_network"
	FailBlocked          FailureKind = "blocked"
	FailProtocolMismatch FailureKind = "protocol_mismatch"
	FailServerError      FailureKind = "server_error"
	FailRobots           FailureKind = "robots_disallowed"
)

// Event is one element of the run's output sequence. The sequence is lazy,
// finite and non-restartable; every failure surfaces here rather than as a
// process-level fault.
type Event interface {
	event()
}

// RecordEvent carries one normalized, deduplicated directory entry.
type RecordEvent struct {
	Unit   WorkUnit
	Record Record
}

// ProgressEvent marks the start of a work unit.
type ProgressEvent struct {
	Unit      WorkUnit
	UnitIndex int
	UnitCount int
}

// BlockEvent reports that a unit was abandoned after the target kept
// serving block signals.
type BlockEvent struct {
	Unit   WorkUnit
	Reason string
}

// ErrorEvent reports a unit-scoped failure. The run continues with the
// remaining units.
type ErrorEvent struct {
	Unit WorkUnit
	Kind FailureKind
	Err  error
}

func (RecordEvent) event()   {}
func (ProgressEvent) event() {}
func (BlockEvent) event()    {}
func (ErrorEvent) event()    {}
