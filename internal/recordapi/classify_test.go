package recordapi

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mpalumbo7/receipt-parser/internal/retry"
)

type fakeNetError struct{}

func (fakeNetError) Error() string   { return "connection reset" }
func (fakeNetError) Timeout() bool   { return false }
func (fakeNetError) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want retry.Class
	}{
		{"server error", &StatusError{Code: 500}, retry.Transient},
		{"bad gateway", &StatusError{Code: 502}, retry.Transient},
		{"request timeout", &StatusError{Code: 408}, retry.Transient},
		{"rate limited", &StatusError{Code: 429}, retry.Transient},
		{"bad request", &StatusError{Code: 400}, retry.Permanent},
		{"not found", &StatusError{Code: 404}, retry.Permanent},
		{"conflict", &StatusError{Code: 409}, retry.Permanent},
		{"wrapped status", fmt.Errorf("patch failed: %w", &StatusError{Code: 422}), retry.Permanent},
		{"deadline", context.DeadlineExceeded, retry.Transient},
		{"net error", fakeNetError{}, retry.Transient},
		{"unknown", errors.New("boom"), retry.Transient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestStatusErrorMessage(t *testing.T) {
	err := &StatusError{Code: 503, Body: "maintenance"}
	want := "record api returned status 503: maintenance"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
