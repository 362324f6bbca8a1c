package history

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
)

// transientPatterns are modernc.org/sqlite error fragments that clear on retry.
var transientPatterns = []string{
	"SQLITE_BUSY",
	"SQLITE_LOCKED",
	"IOERR_SHORT_READ",
	"database is locked",
	"database table is locked",
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// classify marks everything but lock contention as permanent so the retry
// loop gives up immediately. backoff detects *PermanentError by type
// assertion, so it must not be wrapped further.
func classify(err error) error {
	if err == nil || isTransient(err) {
		return err
	}
	if errors.Is(err, sql.ErrConnDone) || strings.Contains(err.Error(), "sql: database is closed") {
		return backoff.Permanent(ErrClosed)
	}
	return backoff.Permanent(err)
}

func newRetryPolicy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 2 * time.Second
	return backoff.WithMaxRetries(b, 3)
}

// retryOnContention retries op on lock contention while the budget lasts.
func retryOnContention(ctx context.Context, op func() error) error {
	return backoff.Retry(op, backoff.WithContext(newRetryPolicy(), ctx))
}
