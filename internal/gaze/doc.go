// Package gaze owns the shared data model of the gaze intent engine.
//
// Responsibilities: direction and class label enumerations, landmark and
// feature geometry, the persisted CalibrationProfile and AttemptRecord
// contracts, and their validation.
//
// Dependency rule: gaze depends on nothing else in this module. The
// algorithm packages (stats, features, calibration, classify, smoothing,
// session) build on it. No SQL/database code is allowed in this package
// or its algorithm subpackages; persistence lives in storage/sqlite.
package gaze
