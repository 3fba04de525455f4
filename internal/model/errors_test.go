package model

import (
	"fmt"
	"testing"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureCode
	}{
		{"plain failure", NewFailure(CodeNotFound, "gone"), CodeNotFound},
		{"formatted failure", Failuref(CodeLimitExceeded, "limit is %d", 2000), CodeLimitExceeded},
		{"wrapped failure", fmt.Errorf("outer: %w", NewFailure(CodeInsufficientFunds, "broke")), CodeInsufficientFunds},
		{"unrelated error", fmt.Errorf("boom"), ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsCode(t *testing.T) {
	err := Failuref(CodeTemporarilyLocked, "try again in %s", "14m")

	if !IsCode(err, CodeTemporarilyLocked) {
		t.Error("IsCode should match the failure's own code")
	}
	if IsCode(err, CodePermanentlyLocked) {
		t.Error("IsCode should not match a different code")
	}
	if err.Error() != "try again in 14m" {
		t.Errorf("message = %q", err.Error())
	}
}
