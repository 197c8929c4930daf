package sqlite

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// busyPolicy bounds how long a journal call waits out another process
// holding the database. A node appends while `chimenet history` reads the
// same file, and busy_timeout does not cover every lock a WAL checkpoint
// takes.
type busyPolicy struct {
	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
}

var defaultBusyPolicy = busyPolicy{
	attempts:  4,
	baseDelay: 50 * time.Millisecond,
	maxDelay:  500 * time.Millisecond,
}

// wait is baseDelay doubled per retry, capped at maxDelay, plus up to one
// baseDelay of jitter so two writers do not retry in lockstep.
func (p busyPolicy) wait(retry int) time.Duration {
	delay := min(p.baseDelay<<uint(retry), p.maxDelay)
	if p.baseDelay <= 0 {
		return delay
	}

	return delay + rand.N(p.baseDelay)
}

// isBusy reports whether err means the database was held by someone else
// and the same statement can simply run again.
func isBusy(err error) bool {
	if err == nil {
		return false
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch code := sqliteErr.Code(); {
		case code == sqlite3.SQLITE_IOERR_SHORT_READ:
			return true
		case code&0xff == sqlite3.SQLITE_BUSY, code&0xff == sqlite3.SQLITE_LOCKED:
			return true
		default:
			return false
		}
	}

	// database/sql sometimes flattens the driver error into text.
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}

// withBusyRetry runs fn again while the database is busy. Other errors and
// a done ctx end it immediately.
func (j *Journal) withBusyRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	attempts := max(j.busy.attempts, 1)

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil || !isBusy(err) {
			return err
		}
		if attempt == attempts {
			return fmt.Errorf("journal still busy after %d attempts: %w", attempts, err)
		}

		delay := j.busy.wait(attempt - 1)
		j.logger.Debug("journal busy, retrying", "op", op, "attempt", attempt, "delay", delay, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
