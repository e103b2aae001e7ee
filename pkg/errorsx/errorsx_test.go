package errorsx

import "testing"

func TestWrapAndReason(t *testing.T) {
	err := Wrap(assertErr{}, ReasonCompletionFailed)
	if Reason(err) != ReasonCompletionFailed {
		t.Fatalf("expected reason %s, got %s", ReasonCompletionFailed, Reason(err))
	}
	if !HasReason(err, ReasonCompletionFailed) {
		t.Fatalf("expected HasReason true")
	}
}

func TestWrapPreservesExistingReason(t *testing.T) {
	first := Wrap(assertErr{}, ReasonSessionNotFound)
	second := Wrap(first, ReasonCompletionFailed)
	if Reason(second) != ReasonSessionNotFound {
		t.Fatalf("expected reason preserved, got %s", Reason(second))
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
