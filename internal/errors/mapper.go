package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Mapper classifies external errors into the mezame taxonomy.
type Mapper interface {
	MapError(err error) error
	IsRetryable(err error) bool
}

type DefaultMapper struct{}

func NewDefaultMapper() *DefaultMapper {
	return &DefaultMapper{}
}

func (m *DefaultMapper) MapError(err error) error {
	if err == nil {
		return nil
	}

	// Propagate context cancellation as-is
	if errors.Is(err, context.Canceled) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Transient("request timeout")
	}

	// already categorized errors pass through untouched
	for _, sentinel := range []error{ErrExpectedAbsence, ErrTransient, ErrReauthRequired, ErrInvalidConfig, ErrDisposed, ErrInternal} {
		if errors.Is(err, sentinel) {
			return err
		}
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "invalid_grant"):
		return fmt.Errorf("refresh token revoked: %w", ErrReauthRequired)

	case strings.Contains(errStr, "unauthorized"), strings.Contains(errStr, "forbidden"),
		strings.Contains(errStr, "invalid token"), strings.Contains(errStr, "401"):
		return fmt.Errorf("access denied: %w", ErrReauthRequired)

	case strings.Contains(errStr, "command not found"), strings.Contains(errStr, "unknown command"),
		strings.Contains(errStr, "no such element"):
		return fmt.Errorf("target not present: %w", ErrExpectedAbsence)

	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline exceeded"),
		strings.Contains(errStr, "connection"), strings.Contains(errStr, "network"),
		strings.Contains(errStr, "unreachable"), strings.Contains(errStr, "too many requests"):
		return Transient("transient network failure")

	case strings.Contains(errStr, "invalid json"), strings.Contains(errStr, "unexpected end of json"),
		strings.Contains(errStr, "cannot unmarshal"), strings.Contains(errStr, "invalid cron"):
		return InvalidConfig("malformed data")

	default:
		return Internal("internal error")
	}
}

func (m *DefaultMapper) IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}
