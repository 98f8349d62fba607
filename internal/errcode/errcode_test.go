package errcode

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOf(t *testing.T) {
	if got := CodeOf(nil); got != OK {
		t.Errorf("CodeOf(nil) = %d, want %d", got, OK)
	}
	if got := CodeOf(New(TemplateNotFound, "missing")); got != TemplateNotFound {
		t.Errorf("CodeOf = %d, want %d", got, TemplateNotFound)
	}
	if got := CodeOf(errors.New("plain")); got != SystemError {
		t.Errorf("CodeOf(plain error) = %d, want %d", got, SystemError)
	}

	wrapped := fmt.Errorf("outer: %w", Wrap(TemplateRenderFailed, "render", errors.New("boom")))
	if got := CodeOf(wrapped); got != TemplateRenderFailed {
		t.Errorf("CodeOf(wrapped) = %d, want %d", got, TemplateRenderFailed)
	}
}

func TestMessageOfHidesInternals(t *testing.T) {
	err := Wrap(TemplateSaveFailed, "failed to save template file", errors.New("minio: connection refused"))
	if got := MessageOf(err); got != "failed to save template file" {
		t.Errorf("MessageOf = %q", got)
	}
	if got := MessageOf(errors.New("pq: syntax error")); got != "internal error" {
		t.Errorf("MessageOf(plain) = %q, internal detail must not leak", got)
	}
}

func TestUnwrapPreservesCause(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(SystemError, "wrapper", cause)
	if !errors.Is(err, cause) {
		t.Errorf("wrapped error should match its cause via errors.Is")
	}
}
