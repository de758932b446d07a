package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"syscall"
	"time"

	"bloghub/internal/config"
	"bloghub/internal/middleware"
	"bloghub/internal/models"
	"bloghub/internal/observability"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// RetryPolicy bounds how a store operation is retried after transient failures.
type RetryPolicy struct {
	Attempts     uint
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Timeout      time.Duration
}

// DefaultRetryPolicy allows five attempts, at most 5s between attempts and 180s overall.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:     5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Timeout:      180 * time.Second,
	}
}

// RetryPolicyFromConfig applies the DB_RETRY_* and DB_COMMAND_TIMEOUT settings over the defaults.
func RetryPolicyFromConfig(cfg *config.Config) RetryPolicy {
	p := DefaultRetryPolicy()
	if cfg.DBRetryAttempts > 0 {
		p.Attempts = cfg.DBRetryAttempts
	}
	if cfg.DBRetryMaxDelay > 0 {
		p.MaxDelay = cfg.DBRetryMaxDelay
	}
	if cfg.DBCommandTimeout > 0 {
		p.Timeout = cfg.DBCommandTimeout
	}
	return p
}

var (
	policyMu      sync.RWMutex
	currentPolicy = DefaultRetryPolicy()
)

// SetRetryPolicy replaces the process-wide policy used by WithRetry.
func SetRetryPolicy(p RetryPolicy) {
	policyMu.Lock()
	currentPolicy = p
	policyMu.Unlock()
}

// CurrentRetryPolicy returns the process-wide policy.
func CurrentRetryPolicy() RetryPolicy {
	policyMu.RLock()
	defer policyMu.RUnlock()
	return currentPolicy
}

// WithRetry runs fn under the process-wide retry policy.
func WithRetry(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	return CurrentRetryPolicy().Do(ctx, operation, fn)
}

// Do runs fn until it succeeds, fails permanently, or the policy is exhausted.
// fn must be a complete unit of work (a whole transaction, not one statement
// inside it). Exhausting the policy on a transient error yields a
// STORE_UNAVAILABLE AppError; other errors are returned unchanged.
func (p RetryPolicy) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	defer observability.TrackStoreOperation(operation)()

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialDelay
	eb.MaxInterval = p.MaxDelay

	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		err := fn(ctx)
		if err == nil {
			return struct{}{}, nil
		}
		if !IsTransient(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		middleware.Logger.WarnContext(ctx, "transient store error",
			slog.String("operation", operation),
			slog.Int("attempt", attempts),
			slog.String("error", err.Error()),
		)
		return struct{}{}, err
	},
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(p.Attempts),
		backoff.WithMaxElapsedTime(p.Timeout),
	)

	var appErr *models.AppError
	switch {
	case err == nil:
		if attempts > 1 {
			observability.StoreRetries.WithLabelValues("recovered").Inc()
		}
		return nil
	case errors.As(err, &appErr):
		return err
	case IsTransient(err) || errors.Is(err, context.DeadlineExceeded):
		observability.StoreRetries.WithLabelValues("exhausted").Inc()
		middleware.Logger.ErrorContext(ctx, "store unavailable after retries",
			slog.String("operation", operation),
			slog.Int("attempts", attempts),
			slog.String("error", err.Error()),
		)
		return models.NewTransientStoreError(err)
	default:
		return err
	}
}

var transientPgCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"53300": true, // too_many_connections
	"57P01": true, // admin_shutdown
	"57P02": true, // crash_shutdown
	"57P03": true, // cannot_connect_now
}

// IsTransient reports whether err is worth retrying: dropped or refused
// connections, timeouts, serialization failures and deadlocks.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "08") || transientPgCodes[pgErr.Code]
	}

	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// SQLite reports contention only through the message text.
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// IsUniqueViolation reports whether err is a unique-constraint violation.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique_violation")
}
