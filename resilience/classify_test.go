package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsTransient_NilError(t *testing.T) {
	if IsTransient(nil, BackendSQL) {
		t.Error("IsTransient(nil) = true, want false")
	}
}

func TestIsTransient_CommonKinds(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind BackendKind
		want bool
	}{
		{"deadline exceeded", context.DeadlineExceeded, BackendSQL, true},
		{"pipeline timeout", ErrTimeout, BackendSQL, true},
		{"caller cancelled", context.Canceled, BackendSQL, false},
		{"circuit open", ErrCircuitOpen, BackendSQL, false},
		{"bulkhead full", ErrBulkheadFull, BackendCache, false},
		{"connection reset", syscall.ECONNRESET, BackendSQL, true},
		{"connection refused", syscall.ECONNREFUSED, BackendCache, true},
		{"wrapped reset", fmt.Errorf("query: %w", syscall.ECONNRESET), BackendSQL, true},
		{"plain error", errors.New("invalid argument"), BackendSQL, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransient(tc.err, tc.kind); got != tc.want {
				t.Errorf("IsTransient(%v, %v) = %v, want %v", tc.err, tc.kind, got, tc.want)
			}
		})
	}
}

func TestIsTransient_SQLStates(t *testing.T) {
	cases := []struct {
		code string
		want bool
	}{
		{"40001", true},  // serialization_failure
		{"40P01", true},  // deadlock_detected
		{"08006", true},  // connection_failure
		{"57P01", true},  // admin_shutdown
		{"53300", true},  // too_many_connections
		{"23505", false}, // unique_violation
		{"42601", false}, // syntax_error
		{"28P01", false}, // invalid_password
	}

	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			err := &pgconn.PgError{Code: tc.code, Message: "test"}
			if got := IsTransient(err, BackendSQL); got != tc.want {
				t.Errorf("IsTransient(SQLSTATE %s) = %v, want %v", tc.code, got, tc.want)
			}
			// SQLSTATE codes mean nothing for the cache backend.
			if IsTransient(err, BackendCache) {
				t.Errorf("IsTransient(SQLSTATE %s, cache) = true, want false", tc.code)
			}
		})
	}
}

func TestIsTransient_CacheReplies(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{"LOADING Redis is loading the dataset in memory", true},
		{"CLUSTERDOWN The cluster is down", true},
		{"READONLY You can't write against a read only replica.", true},
		{"dial tcp 10.0.0.5:6379: connection refused", true},
		{"ERR value is not an integer or out of range", false},
		{"WRONGTYPE Operation against a key holding the wrong kind of value", false},
	}

	for _, tc := range cases {
		t.Run(tc.msg, func(t *testing.T) {
			if got := IsTransient(errors.New(tc.msg), BackendCache); got != tc.want {
				t.Errorf("IsTransient(%q, cache) = %v, want %v", tc.msg, got, tc.want)
			}
		})
	}
}

func TestIsTransient_NetTimeout(t *testing.T) {
	err := &net.OpError{Op: "read", Err: &timeoutErr{}}
	if !IsTransient(err, BackendSQL) {
		t.Error("net timeout should be transient")
	}
}

type timeoutErr struct{}

func (*timeoutErr) Error() string   { return "i/o timeout" }
func (*timeoutErr) Timeout() bool   { return true }
func (*timeoutErr) Temporary() bool { return true }

func TestClassifier_BindsKind(t *testing.T) {
	isTransient := Classifier(BackendSQL)

	if !isTransient(&pgconn.PgError{Code: "40001"}) {
		t.Error("Classifier(BackendSQL) should mark serialization failures transient")
	}
	if isTransient(&pgconn.PgError{Code: "23505"}) {
		t.Error("Classifier(BackendSQL) should mark constraint violations fatal")
	}
}
