// Package store keeps the history of grading runs in SQLite.
//
// Each Run records the tests directory it graded and one Result per
// testcase. SQLiteStore is the only implementation; the database is created
// on first use, along with its parent directory.
package store
