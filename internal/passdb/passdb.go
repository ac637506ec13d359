// Package passdb records generated passes in SQLite so that a pass update
// web service can authenticate callbacks against the token issued with
// each pass.
package passdb

import (
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sensiblebit/cardkit"
	_ "modernc.org/sqlite"
)

// PassRow maps a row in the passes table.
type PassRow struct {
	SerialNumber        string    `db:"serial_number" json:"serial_number"`
	Handle              string    `db:"handle" json:"handle"`
	PassTypeIdentifier  string    `db:"pass_type_identifier" json:"pass_type_identifier"`
	AuthenticationToken string    `db:"authentication_token" json:"-"`
	Kind                string    `db:"kind" json:"kind"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}

// DB is the pass registry. It implements cardkit.PassRecorder.
type DB struct {
	*sqlx.DB
}

// Open opens the registry at path, creating it if needed. An empty path
// opens an in-memory database that lives as long as the DB.
func Open(path string) (*DB, error) {
	dsn := "file::memory:?_pragma=temp_store(2)&_pragma=journal_mode(off)&_pragma=synchronous(off)"
	if path != "" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)"
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Each :memory: connection is a separate database; pin to one.
	db.SetMaxOpenConns(1)

	dbObj := &DB{DB: db}
	if err := dbObj.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	slog.Debug("pass registry opened", "path", path)
	return dbObj, nil
}

func (db *DB) initSchema() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS passes (
			serial_number        text PRIMARY KEY,
			handle               text NOT NULL,
			pass_type_identifier text NOT NULL,
			authentication_token text NOT NULL,
			kind                 text NOT NULL,
			created_at           timestamp NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating passes table: %w", err)
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_passes_handle ON passes (handle);`)
	if err != nil {
		return fmt.Errorf("creating handle index on passes table: %w", err)
	}
	return nil
}

// RecordPass stores a generated pass. Serial numbers are unique; recording
// the same serial twice is an error.
func (db *DB) RecordPass(rec cardkit.PassRecord) error {
	row := PassRow{
		SerialNumber:        rec.SerialNumber,
		Handle:              rec.Handle,
		PassTypeIdentifier:  rec.PassTypeIdentifier,
		AuthenticationToken: rec.AuthenticationToken,
		Kind:                rec.Kind.String(),
		CreatedAt:           rec.CreatedAt.UTC(),
	}
	_, err := db.NamedExec(`
		INSERT INTO passes (serial_number, handle, pass_type_identifier, authentication_token, kind, created_at)
		VALUES (:serial_number, :handle, :pass_type_identifier, :authentication_token, :kind, :created_at)
	`, row)
	if err != nil {
		return fmt.Errorf("inserting pass: %w", err)
	}
	return nil
}

// GetPass returns the pass with the given serial number, or nil if none.
func (db *DB) GetPass(serial string) (*PassRow, error) {
	var row PassRow
	err := db.Get(&row, "SELECT * FROM passes WHERE serial_number = ?", serial)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting pass: %w", err)
	}
	return &row, nil
}

// PassesForHandle returns the passes issued for handle, newest first.
func (db *DB) PassesForHandle(handle string) ([]PassRow, error) {
	var rows []PassRow
	err := db.Select(&rows, "SELECT * FROM passes WHERE handle = ? ORDER BY created_at DESC, serial_number", handle)
	if err != nil {
		return nil, fmt.Errorf("getting passes for %s: %w", handle, err)
	}
	return rows, nil
}

// AllPasses returns every recorded pass, newest first.
func (db *DB) AllPasses() ([]PassRow, error) {
	var rows []PassRow
	err := db.Select(&rows, "SELECT * FROM passes ORDER BY created_at DESC, serial_number")
	if err != nil {
		return nil, fmt.Errorf("getting all passes: %w", err)
	}
	return rows, nil
}

// Authenticate reports whether token is the authentication token issued
// with the pass identified by passTypeID and serial.
func (db *DB) Authenticate(passTypeID, serial, token string) (bool, error) {
	row, err := db.GetPass(serial)
	if err != nil {
		return false, err
	}
	if row == nil || row.PassTypeIdentifier != passTypeID || token == "" {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(row.AuthenticationToken), []byte(token)) == 1, nil
}
