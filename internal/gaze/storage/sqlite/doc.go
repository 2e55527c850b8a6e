// Package sqlite contains SQLite repository implementations for gaze
// calibration profiles and attempt records.
//
// All SQL touching calibration data lives here so the calibration and
// session packages stay free of storage concerns. The schema itself is
// owned by the migrations in internal/db.
package sqlite
