package statemachine

import (
	"testing"

	"github.com/archon-governance/three-fates/pkg/petitionerr"
)

func TestValidateAllowedTransition(t *testing.T) {
	if err := Validate(StateReceived, StateDeliberating); err != nil {
		t.Errorf("expected RECEIVED -> DELIBERATING to be allowed, got %v", err)
	}
	if err := Validate(StateReceived, StateEscalated); err != nil {
		t.Errorf("expected RECEIVED -> ESCALATED to be allowed (co-signer bypass), got %v", err)
	}
	if err := Validate(StateDeliberating, StateNoResponse); err != nil {
		t.Errorf("expected DELIBERATING -> NO_RESPONSE to be allowed, got %v", err)
	}
}

func TestValidateOffMatrix(t *testing.T) {
	err := Validate(StateReceived, StateReferred)
	if petitionerr.KindOf(err) != petitionerr.KindInvalidTransition {
		t.Errorf("expected KindInvalidTransition, got %v", err)
	}
}

func TestValidateAlreadyFated(t *testing.T) {
	err := Validate(StateAcknowledged, StateEscalated)
	if petitionerr.KindOf(err) != petitionerr.KindAlreadyFated {
		t.Errorf("expected KindAlreadyFated, got %v", err)
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []State{StateAcknowledged, StateReferred, StateEscalated, StateDeferred, StateNoResponse} {
		if !IsTerminal(s) {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	for _, s := range []State{StateReceived, StateDeliberating} {
		if IsTerminal(s) {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}
