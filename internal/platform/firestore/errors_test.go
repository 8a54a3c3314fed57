package firestore

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestWrapErrorClassifiesStatusCodes(t *testing.T) {
	cases := []struct {
		name         string
		err          error
		notFound     bool
		conflict     bool
		unavailable  bool
		indexMissing bool
	}{
		{name: "not found", err: status.Error(codes.NotFound, "missing"), notFound: true},
		{name: "already exists", err: status.Error(codes.AlreadyExists, "dup"), conflict: true},
		{name: "unavailable", err: status.Error(codes.Unavailable, "down"), unavailable: true},
		{name: "missing index", err: status.Error(codes.FailedPrecondition, "The query requires an index. You can create it here: https://console.firebase.google.com/..."), indexMissing: true},
		{name: "other precondition", err: status.Error(codes.FailedPrecondition, "stale transaction")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := WrapError("orders.query", tc.err)
			var repoErr *Error
			if !errors.As(wrapped, &repoErr) {
				t.Fatalf("expected *Error, got %T", wrapped)
			}
			if repoErr.IsNotFound() != tc.notFound {
				t.Errorf("IsNotFound = %v", repoErr.IsNotFound())
			}
			if repoErr.IsConflict() != tc.conflict {
				t.Errorf("IsConflict = %v", repoErr.IsConflict())
			}
			if repoErr.IsUnavailable() != tc.unavailable {
				t.Errorf("IsUnavailable = %v", repoErr.IsUnavailable())
			}
			if repoErr.IsIndexMissing() != tc.indexMissing {
				t.Errorf("IsIndexMissing = %v", repoErr.IsIndexMissing())
			}
		})
	}
}

func TestWrapErrorPassesThroughCancellation(t *testing.T) {
	if err := WrapError("orders.create", status.Error(codes.Canceled, "gone")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := WrapError("orders.create", context.DeadlineExceeded); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if WrapError("orders.create", nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}
