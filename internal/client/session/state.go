package session

import "github.com/sst2020/ai-teaching-assistant-sub000/internal/client/api"

// State is the authoritative in-memory representation of who is logged in.
// It is mutated only by the reducer; consumers read copies via Snapshot.
//
// Invariants: Authenticated implies both User and Tokens are non-nil, and
// starting a new operation clears Err before setting Loading.
type State struct {
	User          *api.Identity
	Tokens        *api.TokenPair
	Authenticated bool
	Loading       bool
	Err           string
}

type actionKind int

const (
	actionStart actionKind = iota
	actionSuccess
	actionFailure
	actionReset
	actionClearError
)

// action is the tagged transition dispatched through the single mutation
// entry point. Success carries the new identity and token pair; Failure
// carries the display message and whether the prior session survives the
// failure (a failed profile update does not log the user out).
type action struct {
	kind        actionKind
	user        *api.Identity
	tokens      *api.TokenPair
	msg         string
	keepSession bool
}

// reduce computes the next state for one action. It is a pure function of
// (state, action).
func reduce(s State, a action) State {
	switch a.kind {
	case actionStart:
		s.Loading = true
		s.Err = ""
		return s

	case actionSuccess:
		return State{
			User:          a.user,
			Tokens:        a.tokens,
			Authenticated: true,
		}

	case actionFailure:
		if a.keepSession {
			s.Loading = false
			s.Err = a.msg
			return s
		}
		return State{Err: a.msg}

	case actionReset:
		return State{}

	case actionClearError:
		s.Err = ""
		return s
	}
	return s
}
