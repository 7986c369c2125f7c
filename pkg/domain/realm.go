package domain

// Realm identifies where a frame's routine executes.
type Realm string

const (
	// RealmConcurrent runs the routine on a goroutine inside the current
	// process.
	RealmConcurrent Realm = "concurrent"
	// RealmParallel runs the routine in a child process. Frames in this
	// realm cannot start subframes.
	RealmParallel Realm = "parallel"
)

// Phase is the coarse lifecycle position of a frame. Phases only move
// forward: load, then active, then terminated.
type Phase string

const (
	// PhaseLoad covers construction and configuration, before Start.
	PhaseLoad Phase = "load"
	// PhaseActive covers the running circuit, from Start until the frame
	// publishes its result.
	PhaseActive Phase = "active"
	// PhaseTerminated means the result is published and final.
	PhaseTerminated Phase = "terminated"
)

// Before reports whether p precedes other in the lifecycle order.
func (p Phase) Before(other Phase) bool {
	return phaseRank(p) < phaseRank(other)
}

func phaseRank(p Phase) int {
	switch p {
	case PhaseLoad:
		return 0
	case PhaseActive:
		return 1
	case PhaseTerminated:
		return 2
	default:
		return -1
	}
}
