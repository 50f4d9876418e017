package game

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrNoChange signals that a command was valid but left the room untouched,
// e.g. an idempotent re-join or a deadline sweep that lost the race. Stores
// skip the write and callers skip the broadcast.
var ErrNoChange = errors.New("no change")

// Command rejections carry a gRPC status code so the transport can hand the
// caller a machine-readable failure kind plus a short message.

func errUnauthenticated() error {
	return status.Error(codes.Unauthenticated, "caller identity is required")
}

func errInvalidArgument(msg string) error {
	return status.Error(codes.InvalidArgument, msg)
}

func errPermissionDenied(msg string) error {
	return status.Error(codes.PermissionDenied, msg)
}

func errFailedPrecondition(msg string) error {
	return status.Error(codes.FailedPrecondition, msg)
}

func errResourceExhausted(msg string) error {
	return status.Error(codes.ResourceExhausted, msg)
}

// RejectionCode extracts the failure kind from a command rejection.
// Non-status errors map to codes.Internal.
func RejectionCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if s, ok := status.FromError(err); ok {
		return s.Code()
	}
	return codes.Internal
}

// RejectionMessage extracts the human-readable message from a command
// rejection.
func RejectionMessage(err error) string {
	if err == nil {
		return ""
	}
	if s, ok := status.FromError(err); ok {
		return s.Message()
	}
	return err.Error()
}
