package util

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrNotFound               = errors.New("not found")
	ErrNoFreezeAvailable      = errors.New("no streak freeze available")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrPermissionDenied       = errors.New("permission denied")
)

// RepositoryError 存储层故障，原样向上传递，引擎本身不重试
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository %s: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}

func NewRepositoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RepositoryError{Op: op, Err: err}
}

// IsDomainError 判断是否为业务上可识别的错误（非存储故障）
func IsDomainError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrNoFreezeAvailable) ||
		errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrPermissionDenied)
}

// ErrorReason 返回给客户端的机器可读错误码
func ErrorReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "INVALID_INPUT"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrNoFreezeAvailable):
		return "NO_FREEZE_AVAILABLE"
	case errors.Is(err, ErrConcurrentModification):
		return "CONCURRENT_MODIFICATION"
	case errors.Is(err, ErrPermissionDenied):
		return "PERMISSION_DENIED"
	default:
		var repoErr *RepositoryError
		if errors.As(err, &repoErr) {
			return "REPOSITORY_ERROR"
		}
		return "INTERNAL"
	}
}
