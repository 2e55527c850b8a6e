package sqlite

import (
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when no usable row exists.
var ErrNotFound = errors.New("not found")

const (
	busyRetries = 5
	busyBackoff = 20 * time.Millisecond
)

// isSQLiteBusy reports whether err is a lock contention error worth retrying.
func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// retryOnBusy runs fn, retrying with linear backoff while SQLite reports
// the database as locked. Other errors are returned immediately.
func retryOnBusy(fn func() error) error {
	var err error
	for attempt := 0; attempt <= busyRetries; attempt++ {
		if err = fn(); !isSQLiteBusy(err) {
			return err
		}
		if attempt < busyRetries {
			time.Sleep(time.Duration(attempt+1) * busyBackoff)
		}
	}
	return err
}
