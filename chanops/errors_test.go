package chanops

import (
	"errors"
	"fmt"
	"testing"

	"github.com/marovik/scribe/platform"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, ErrorClassUnknown},
		{"wrapped input", fmt.Errorf("insert: %w", ErrInput), ErrorClassInput},
		{"edit cancelled", ErrEditCancelled, ErrorClassInput},
		{"api not found", &platform.APIError{Status: 404, Message: "unknown record"}, ErrorClassInput},
		{"api bad request", &platform.APIError{Status: 400, Message: "bad body"}, ErrorClassInput},
		{"api rate limited", &platform.APIError{Status: 429, Message: "slow down"}, ErrorClassRetryable},
		{"wrapped api fault", fmt.Errorf("send: %w", &platform.APIError{Status: 503, Message: "upstream"}), ErrorClassRetryable},
		{"api unauthorized", &platform.APIError{Status: 401, Message: "bad token"}, ErrorClassFatal},
		{"api forbidden", &platform.APIError{Status: 403, Message: "missing access"}, ErrorClassFatal},
		{"bad link", fmt.Errorf("parse target: %w", platform.ErrBadLink), ErrorClassInput},
		{"await timeout", fmt.Errorf("wait for reply: %w", platform.ErrAwaitTimeout), ErrorClassInput},
		{"token failure text", errors.New("catalog token request failed: 500 internal"), ErrorClassFatal},
		{"unauthorized text", errors.New("platform said 401 Unauthorized"), ErrorClassFatal},
		{"connection refused", errors.New("dial tcp 10.0.0.1:443: connection refused"), ErrorClassRetryable},
		{"eof", errors.New("unexpected EOF"), ErrorClassRetryable},
		{"rate limit text", errors.New("rate limit exceeded, retry later"), ErrorClassRetryable},
		{"not found text", errors.New("record not found"), ErrorClassInput},
		{"malformed text", errors.New("malformed bundle document"), ErrorClassInput},
		{"unmatched", errors.New("something odd happened"), ErrorClassRetryable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Errorf("Classify(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestErrorClassString(t *testing.T) {
	cases := map[ErrorClass]string{
		ErrorClassRetryable: "retryable",
		ErrorClassFatal:     "fatal",
		ErrorClassInput:     "input",
		ErrorClassUnknown:   "unknown",
	}
	for class, want := range cases {
		if got := class.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", class, got, want)
		}
	}
}

func TestErrorPredicates(t *testing.T) {
	if !IsInputError(fmt.Errorf("op: %w", ErrInput)) {
		t.Error("IsInputError should see through wrapping")
	}
	if IsInputError(errors.New("connection reset by peer")) {
		t.Error("transport trouble is not an input error")
	}
	if !IsRetryableError(&platform.APIError{Status: 502, Message: "bad gateway"}) {
		t.Error("5xx should be retryable")
	}
	if IsRetryableError(ErrEditCancelled) {
		t.Error("cancellation is not retryable")
	}
}
