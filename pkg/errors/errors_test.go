package errors

import (
	"fmt"
	"testing"
)

func TestEngineErrorMessageAndUnwrap(t *testing.T) {
	cause := fmt.Errorf("disk on fire")
	err := StoreError(CodeStoreUnavailable, "fetch rules", cause)

	if err.Category != CategoryStore {
		t.Errorf("category = %s, want %s", err.Category, CategoryStore)
	}
	if err.Unwrap() == nil {
		t.Error("expected wrapped cause to be reachable via Unwrap")
	}
	if err.Error() == "" {
		t.Error("expected a non-empty error message")
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      *EngineError
		expected int
	}{
		{"validation", ValidationError(CodeMissingField, "tenant_id", ""), 2},
		{"store", StoreError(CodeNotFound, "get rule", nil), 3},
		{"allocation", AllocationError("100.00", "50.00"), 4},
		{"matching", MatchingError("evaluate", fmt.Errorf("boom")), 4},
		{"internal", InternalError("evaluate", fmt.Errorf("boom")), 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.GetExitCode(); got != tt.expected {
				t.Errorf("GetExitCode() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestWithContextAndSuggestion(t *testing.T) {
	err := ValidationError(CodeInvalidAmount, "amount", "abc").
		WithContext("tenant_id", "tenant-1").
		WithSuggestion("amounts must be decimal numbers")

	if err.Context["tenant_id"] != "tenant-1" {
		t.Errorf("context tenant = %v, want tenant-1", err.Context["tenant_id"])
	}
	if err.Suggestion != "amounts must be decimal numbers" {
		t.Errorf("suggestion = %q", err.Suggestion)
	}
}

func TestAsEngineError(t *testing.T) {
	engineErr := StoreError(CodeNotFound, "get pattern", nil)

	if _, ok := AsEngineError(engineErr); !ok {
		t.Error("expected direct EngineError to be recognized")
	}

	wrapped := fmt.Errorf("outer: %w", engineErr)
	if _, ok := AsEngineError(wrapped); !ok {
		t.Error("expected wrapped EngineError to be recognized")
	}

	if _, ok := AsEngineError(fmt.Errorf("plain")); ok {
		t.Error("plain error must not be recognized as EngineError")
	}

	if IsEngineError(nil) {
		t.Error("nil is not an EngineError")
	}
}

func TestWrapIfNeeded(t *testing.T) {
	original := ValidationError(CodeMissingField, "date", "")
	if got := WrapIfNeeded(original, CategoryStore, CodeStoreUnavailable, "fetch"); got != original {
		t.Error("an existing EngineError must pass through unwrapped")
	}

	plain := fmt.Errorf("connection refused")
	wrapped := WrapIfNeeded(plain, CategoryStore, CodeStoreUnavailable, "fetch rules")
	if wrapped.Category != CategoryStore || wrapped.Code != CodeStoreUnavailable {
		t.Errorf("wrapped = %s/%s, want store/%s", wrapped.Category, wrapped.Code, CodeStoreUnavailable)
	}
}
