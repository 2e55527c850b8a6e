package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/gaze.intent/internal/gaze"
	"github.com/banshee-data/gaze.intent/internal/monitoring"
	"github.com/banshee-data/gaze.intent/internal/timeutil"
)

var logf = monitoring.Component("storage")

// Stores groups the calibration repositories sharing one database.
type Stores struct {
	Profiles *ProfileStore
	Attempts *AttemptStore
	db       *sql.DB
}

// NewStores creates both repositories. A nil clock uses the real clock.
func NewStores(db *sql.DB, clock timeutil.Clock) *Stores {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	attempts := &AttemptStore{db: db, clock: clock}
	return &Stores{
		Profiles: &ProfileStore{db: db, clock: clock, attempts: attempts},
		Attempts: attempts,
		db:       db,
	}
}

// Clear removes every stored profile and attempt in one transaction.
func (s *Stores) Clear(ctx context.Context) error {
	return retryOnBusy(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()
		if _, err := tx.ExecContext(ctx, `DELETE FROM calibration_profiles`); err != nil {
			return fmt.Errorf("clear profiles: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM calibration_attempts`); err != nil {
			return fmt.Errorf("clear attempts: %w", err)
		}
		return tx.Commit()
	})
}

// ProfileStore persists calibration profiles. Rows are append-only; the
// newest valid row is the active profile.
type ProfileStore struct {
	db       *sql.DB
	clock    timeutil.Clock
	attempts *AttemptStore
}

// Save validates and inserts p, returning the new row ID.
func (s *ProfileStore) Save(ctx context.Context, p gaze.CalibrationProfile) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal profile: %w", err)
	}
	id := uuid.New().String()
	err = retryOnBusy(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO calibration_profiles (profile_id, created_at, saved_at, profile_json)
			VALUES (?, ?, ?, ?)`,
			id, gaze.FormatTimestamp(p.CreatedAt), s.clock.Now().UnixNano(), string(data),
		)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("insert profile: %w", err)
	}
	return id, nil
}

// Latest returns the newest profile row that passes validation. With no
// valid row it recovers the profile from the newest attempt that carries
// one and writes it back. ErrNotFound means neither source had a profile.
func (s *ProfileStore) Latest(ctx context.Context) (*gaze.CalibrationProfile, error) {
	p, err := s.latestStored(ctx)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return p, err
	}

	p, err = s.attempts.latestProfile(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.Save(ctx, *p); err != nil {
		logf("failed to restore profile from attempt history: %v", err)
	} else {
		logf("restored profile from attempt history")
	}
	return p, nil
}

func (s *ProfileStore) latestStored(ctx context.Context) (*gaze.CalibrationProfile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT profile_id, profile_json FROM calibration_profiles
		ORDER BY saved_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		p, err := gaze.DecodeProfile([]byte(data))
		if err != nil {
			logf("skipping profile %s: %v", id, err)
			continue
		}
		return p, nil
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return nil, ErrNotFound
}

// StoredAttempt is an attempt record with its row metadata.
type StoredAttempt struct {
	ID      string             `json:"id"`
	SavedAt time.Time          `json:"savedAt"`
	Record  gaze.AttemptRecord `json:"record"`
}

// AttemptStore persists calibration attempt records.
type AttemptStore struct {
	db    *sql.DB
	clock timeutil.Clock
}

// Save validates and inserts rec, returning the new row ID.
func (s *AttemptStore) Save(ctx context.Context, rec gaze.AttemptRecord) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal attempt: %w", err)
	}
	id := uuid.New().String()
	err = retryOnBusy(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO calibration_attempts (attempt_id, attempted_at, saved_at, status, reason, attempt_json)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, gaze.FormatTimestamp(rec.AttemptedAt), s.clock.Now().UnixNano(),
			string(rec.Status), rec.Reason, string(data),
		)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("insert attempt: %w", err)
	}
	return id, nil
}

// Latest returns the newest valid attempt.
func (s *AttemptStore) Latest(ctx context.Context) (*StoredAttempt, error) {
	list, err := s.List(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return &list[0], nil
}

// List returns up to limit valid attempts, newest first. Rows that fail
// validation are skipped and do not count toward limit. limit <= 0 means
// no limit.
func (s *AttemptStore) List(ctx context.Context, limit int) ([]StoredAttempt, error) {
	out := []StoredAttempt{}
	err := s.scan(ctx, func(a StoredAttempt) bool {
		out = append(out, a)
		return limit <= 0 || len(out) < limit
	})
	return out, err
}

// latestProfile finds the newest attempt carrying a valid profile.
func (s *AttemptStore) latestProfile(ctx context.Context) (*gaze.CalibrationProfile, error) {
	var found *gaze.CalibrationProfile
	err := s.scan(ctx, func(a StoredAttempt) bool {
		if a.Record.Profile != nil {
			found = a.Record.Profile
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// scan walks valid attempts newest first until fn returns false.
func (s *AttemptStore) scan(ctx context.Context, fn func(StoredAttempt) bool) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT attempt_id, saved_at, attempt_json FROM calibration_attempts
		ORDER BY saved_at DESC, rowid DESC`)
	if err != nil {
		return fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id      string
			savedAt int64
			data    string
		)
		if err := rows.Scan(&id, &savedAt, &data); err != nil {
			return fmt.Errorf("scan attempt: %w", err)
		}
		rec, err := gaze.DecodeAttempt([]byte(data))
		if err != nil {
			logf("skipping attempt %s: %v", id, err)
			continue
		}
		if !fn(StoredAttempt{ID: id, SavedAt: time.Unix(0, savedAt).UTC(), Record: *rec}) {
			break
		}
	}
	return rows.Err()
}
