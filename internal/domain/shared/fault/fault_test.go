package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfWrapped(t *testing.T) {
	base := New(ProviderRejected, "card_declined", "card declined")
	wrapped := fmt.Errorf("charge deposit: %w", base)
	if KindOf(wrapped) != ProviderRejected {
		t.Errorf("kind lost through wrapping: %v", KindOf(wrapped))
	}
	if !Is(wrapped, ProviderRejected) {
		t.Error("Is should see through fmt.Errorf wrapping")
	}
}

func TestKindOfPlainError(t *testing.T) {
	if KindOf(errors.New("boom")) != Internal {
		t.Error("plain errors classify as internal")
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(New(Transient, "timeout", "request timed out")) {
		t.Error("transient faults are retryable")
	}
	if Retryable(New(ProviderRejected, "card_declined", "declined")) {
		t.Error("provider rejections are terminal for the attempt")
	}
	if Retryable(nil) {
		t.Error("nil is not retryable")
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	f := Wrap(Transient, "network", "provider unreachable", cause)
	if !errors.Is(f, cause) {
		t.Error("cause should be reachable via errors.Is")
	}
}
