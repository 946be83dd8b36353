package tds

import "testing"

func TestStateCellLegalTransitions(t *testing.T) {
	c := newStateCell(StateConnecting)
	steps := []ConnState{StatePreLogin, StateLoggingIn, StateReady, StateSending, StateReceiving, StateReady}
	for _, next := range steps {
		if !c.transition(next) {
			t.Fatalf("transition to %s should have succeeded from %s", next, c.load())
		}
	}
}

func TestStateCellRejectsIllegalTransition(t *testing.T) {
	c := newStateCell(StateConnecting)
	if c.transition(StateReady) {
		t.Fatal("CONNECTING -> READY should be illegal")
	}
	if c.load() != StateConnecting {
		t.Fatalf("state changed despite rejected transition: %s", c.load())
	}
}

func TestStateCellForceCloseFromAnyState(t *testing.T) {
	for _, s := range []ConnState{StateConnecting, StatePreLogin, StateLoggingIn, StateReady, StateSending, StateReceiving} {
		c := newStateCell(s)
		c.forceClose()
		if c.load() != StateClosed {
			t.Fatalf("forceClose from %s did not reach CLOSED", s)
		}
	}
}

func TestStateCellClosedIsTerminal(t *testing.T) {
	c := newStateCell(StateClosed)
	if c.transition(StateReady) {
		t.Fatal("CLOSED must have no outgoing transitions")
	}
}
