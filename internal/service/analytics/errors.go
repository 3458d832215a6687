package analytics

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind 对上游调用失败进行分类。
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindTransport covers dial, TLS and read failures as well as cancellation.
	KindTransport
	// KindStatus means the upstream answered with a non-2xx status.
	KindStatus
	// KindDecode means the body was not the expected JSON.
	KindDecode
	// KindRejected means the upstream answered but refused the operation.
	KindRejected
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindStatus:
		return "status"
	case KindDecode:
		return "decode"
	case KindRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Error represents a failed call to the analytics backend.
type Error struct {
	Kind    ErrorKind
	Op      string
	Status  int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("analytics %s: %s", e.Op, e.Message)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCanceled 判断错误是否源于调用方主动取消。
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// IsTimeout 判断错误是否源于超时。
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// KindOf 返回错误分类，非 *Error 返回 KindUnknown。
func KindOf(err error) ErrorKind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}
