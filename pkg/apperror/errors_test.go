package apperror

import (
	"errors"
	"net/http"
	"testing"
)

func TestError_Error(t *testing.T) {
	e := New(CodeInvalidRequest, "bad window")
	if e.Error() != "[INVALID_REQUEST] bad window" {
		t.Fatalf("unexpected message: %s", e.Error())
	}

	e2 := NewWithField(CodeInvalidRequest, "bad window", "date_to")
	if e2.Error() != "[INVALID_REQUEST] bad window (field: date_to)" {
		t.Fatalf("unexpected message: %s", e2.Error())
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	e := Wrap(cause, CodeUpstreamUnreachable, "zim unreachable")

	if !errors.Is(e, cause) {
		t.Fatalf("expected Unwrap to expose the cause")
	}
}

func TestError_HTTPStatus(t *testing.T) {
	cases := map[ErrorCode]int{
		CodeInvalidRequest:      http.StatusUnprocessableEntity,
		CodeUpstreamTimeout:     http.StatusGatewayTimeout,
		CodeUpstreamUnreachable: http.StatusServiceUnavailable,
		CodeUpstreamServerError: http.StatusBadGateway,
		CodeInternal:            http.StatusInternalServerError,
	}

	for code, want := range cases {
		got := New(code, "x").HTTPStatus()
		if got != want {
			t.Errorf("%s: got status %d, want %d", code, got, want)
		}
	}
}

func TestIsAndCode(t *testing.T) {
	e := New(CodeUpstreamTimeout, "timed out")

	if !Is(e, CodeUpstreamTimeout) {
		t.Fatalf("expected Is to match")
	}
	if Code(e) != CodeUpstreamTimeout {
		t.Fatalf("expected Code to extract CodeUpstreamTimeout")
	}
	if Code(errors.New("plain")) != CodeInternal {
		t.Fatalf("expected plain errors to map to CodeInternal")
	}
}

func TestSeverityHelpers(t *testing.T) {
	warn := NewWarning(CodeScheduleMissingPort, "leg missing port")
	crit := NewCritical(CodeMissingSetting, "ZIM_URL missing")

	if !IsWarning(warn) || IsCritical(warn) {
		t.Fatalf("expected warn to be a warning only")
	}
	if !IsCritical(crit) || IsWarning(crit) {
		t.Fatalf("expected crit to be critical only")
	}
}

func TestValidationErrors_DropAndWarnPolicy(t *testing.T) {
	v := NewValidationErrors()

	v.AddWarning(CodeScheduleMissingPort, "schedule 1: missing pointFrom")
	v.AddWarning(CodeScheduleBadSequence, "schedule 2: legOrder out of order")

	if v.HasErrors() {
		t.Fatalf("warnings alone must not count as errors")
	}
	if !v.IsValid() {
		t.Fatalf("a ValidationErrors with only warnings is still valid")
	}
	if !v.HasWarnings() || len(v.WarningMessages()) != 2 {
		t.Fatalf("expected 2 warnings, got %d", len(v.Warnings))
	}

	v.AddError(CodeScheduleInvalidDates, "schedule 3: etd after eta")
	if v.IsValid() {
		t.Fatalf("expected an added error to invalidate the collection")
	}
}

func TestValidationErrors_Merge(t *testing.T) {
	a := NewValidationErrors()
	a.AddWarning(CodeScheduleMissingPort, "a")

	b := NewValidationErrors()
	b.AddWarning(CodeScheduleMissingPort, "b")
	b.AddError(CodeScheduleInvalidDates, "c")

	a.Merge(b)

	if len(a.Warnings) != 2 || len(a.Errors) != 1 {
		t.Fatalf("expected merge to concatenate both errors and warnings, got warnings=%d errors=%d", len(a.Warnings), len(a.Errors))
	}
}
