package cycle

import "fmt"

// State is a step of the posting cycle.
type State int

const (
	StateInit State = iota
	StateSelectingSubject
	StateSearchingBooks
	StateCheckingDedup
	StateAssemblingArtifact
	StatePublishing
	StateDone
	StateAbandoned
	StateFailed
)

var stateNames = [...]string{
	StateInit:               "init",
	StateSelectingSubject:   "selecting_subject",
	StateSearchingBooks:     "searching_books",
	StateCheckingDedup:      "checking_dedup",
	StateAssemblingArtifact: "assembling_artifact",
	StatePublishing:         "publishing",
	StateDone:               "done",
	StateAbandoned:          "abandoned",
	StateFailed:             "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether the cycle ends in s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateAbandoned || s == StateFailed
}
