package model

import "fmt"

// AttemptState is the retry state of one work item within a run.
type AttemptState string

const (
	AttemptPending    AttemptState = "pending"
	AttemptAttempting AttemptState = "attempting"
	AttemptSucceeded  AttemptState = "succeeded"
	AttemptExhausted  AttemptState = "exhausted"
	AttemptAborted    AttemptState = "aborted"
)

var allowedTransitions = map[AttemptState]map[AttemptState]bool{
	AttemptPending: {
		AttemptAttempting: true,
		AttemptAborted:    true, // abort before the first attempt started
	},
	AttemptAttempting: {
		AttemptAttempting: true, // retry
		AttemptSucceeded:  true,
		AttemptExhausted:  true,
		AttemptAborted:    true,
	},
	AttemptSucceeded: {},
	AttemptExhausted: {},
	AttemptAborted:   {},
}

func IsKnownState(s AttemptState) bool {
	_, ok := allowedTransitions[s]
	return ok
}

func IsTerminal(s AttemptState) bool {
	next, ok := allowedTransitions[s]
	return ok && len(next) == 0
}

func CanTransition(from, to AttemptState) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// Attempt tracks the retry state machine for a single entry.
type Attempt struct {
	VideoID string
	State   AttemptState
	Count   int
}

func NewAttempt(videoID string) Attempt {
	return Attempt{VideoID: videoID, State: AttemptPending}
}

func TransitionAttempt(a *Attempt, to AttemptState) error {
	from := a.State
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid attempt state transition: %q -> %q (video_id=%s attempt=%d)", from, to, a.VideoID, a.Count)
	}
	if to == AttemptAttempting {
		a.Count++
	}
	a.State = to
	return nil
}
