package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		err := New(CodeNoManifest, "no Package.swift found")
		if err.Error() != "[NO_MANIFEST] no Package.swift found" {
			t.Errorf("expected [NO_MANIFEST] no Package.swift found, got %s", err.Error())
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		original := errors.New("exit status 1")
		err := Wrap(original, CodeIntrospectionFailed, "sourcekitten module-info failed")
		expected := "[INTROSPECTION_FAILED] sourcekitten module-info failed: exit status 1"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
	})

	t.Run("IsCode", func(t *testing.T) {
		err := New(CodeNoTranscript, "no compiler arguments")
		if !IsCode(err, CodeNoTranscript) {
			t.Error("expected IsCode to return true for CodeNoTranscript")
		}
		if IsCode(err, CodeNotFound) {
			t.Error("expected IsCode to return false for CodeNotFound")
		}
	})

	t.Run("IsCodeThroughFmtWrap", func(t *testing.T) {
		inner := New(CodeMalformedOutput, "bad json")
		err := fmt.Errorf("parse index: %w", inner)
		if !IsCode(err, CodeMalformedOutput) {
			t.Error("expected IsCode to see through fmt.Errorf wrapping")
		}
		if CodeOf(err) != CodeMalformedOutput {
			t.Errorf("expected CodeOf to return MALFORMED_OUTPUT, got %q", CodeOf(err))
		}
	})

	t.Run("AddContext", func(t *testing.T) {
		err := AddContext(New(CodeIntrospectionFailed, "module-info"), CtxModule, "HAKit")
		var de *DomainError
		if !errors.As(err, &de) {
			t.Fatal("expected DomainError")
		}
		if de.Context[CtxModule] != "HAKit" {
			t.Errorf("expected module context HAKit, got %v", de.Context[CtxModule])
		}

		plain := AddContext(errors.New("boom"), CtxPath, "/tmp/x")
		if !IsCode(plain, CodeInternal) {
			t.Error("expected plain errors to be promoted to CodeInternal")
		}
		if AddContext(nil, CtxPath, "/tmp/x") != nil {
			t.Error("expected nil error to stay nil")
		}
	})
}

func TestErrorRendersSortedContext(t *testing.T) {
	err := AddContext(AddContext(New(CodeIntrospectionFailed, "index"), CtxPath, "/src/a.swift"), CtxCommand, "sourcekitten")
	expected := "[INTROSPECTION_FAILED] index command=sourcekitten path=/src/a.swift"
	if err.Error() != expected {
		t.Errorf("expected %s, got %s", expected, err.Error())
	}
}

func TestEndsSlice(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{New(CodeNoManifest, "m"), true},
		{fmt.Errorf("pkg: %w", New(CodeNoTranscript, "t")), true},
		{New(CodeIntrospectionFailed, "i"), false},
		{errors.New("plain"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := EndsSlice(tt.err); got != tt.want {
			t.Errorf("EndsSlice(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
