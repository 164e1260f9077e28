package qdrant

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

type OperationErrorCode string

const (
	OperationErrorValidation      OperationErrorCode = "validation_failed"
	OperationErrorNotFound        OperationErrorCode = "not_found"
	OperationErrorTransportFailed OperationErrorCode = "transport_failed"
	OperationErrorTimeout         OperationErrorCode = "timeout"
	OperationErrorQueryFailed     OperationErrorCode = "query_failed"
)

// OperationError describes a failed Qdrant call. It matches the domain
// sentinel for its code under errors.Is as well as its cause.
type OperationError struct {
	Code       OperationErrorCode
	Operation  string
	Collection string
	Message    string
	Cause      error
}

func (e *OperationError) Error() string {
	msg := fmt.Sprintf("qdrant operation failed (op=%s code=%s collection=%s)", e.Operation, e.Code, e.Collection)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *OperationError) Unwrap() []error {
	errs := []error{e.sentinel()}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

func (e *OperationError) sentinel() error {
	switch e.Code {
	case OperationErrorValidation:
		return domain.ErrInvalidInput
	case OperationErrorNotFound:
		return domain.ErrNotFound
	default:
		return domain.ErrIndexUnavailable
	}
}

func opErr(op, collection string, code OperationErrorCode, msg string, cause error) error {
	return &OperationError{
		Code:       code,
		Operation:  op,
		Collection: collection,
		Message:    msg,
		Cause:      cause,
	}
}

// classify maps a client error onto an OperationError by gRPC status.
func classify(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, collection, OperationErrorTimeout, "", err)
	}

	switch status.Code(err) {
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return opErr(op, collection, OperationErrorValidation, "", err)
	case codes.NotFound:
		return opErr(op, collection, OperationErrorNotFound, "", err)
	case codes.DeadlineExceeded:
		return opErr(op, collection, OperationErrorTimeout, "", err)
	case codes.Unavailable, codes.Canceled, codes.ResourceExhausted, codes.Aborted:
		return opErr(op, collection, OperationErrorTransportFailed, "", err)
	default:
		return opErr(op, collection, OperationErrorQueryFailed, "", err)
	}
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func isAlreadyExists(err error) bool {
	return status.Code(err) == codes.AlreadyExists
}
