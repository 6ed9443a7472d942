// Package qsolog writes every logged contact to a SQLite file so sessions can
// be reviewed after the trainer exits.
package qsolog

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"qsotrainer/sqliteutil"
	"qsotrainer/stats"

	_ "modernc.org/sqlite"
)

// Log persists QSO records into SQLite.
type Log struct {
	db *sql.DB
}

// Open creates or opens the log at path and ensures the schema exists. A
// database that fails its integrity check is moved aside first.
func Open(path string) (*Log, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("qsolog: empty path")
	}
	if _, err := sqliteutil.Preflight(path, 2*time.Second, log.Printf); err != nil {
		return nil, fmt.Errorf("qsolog: preflight: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("qsolog: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("qsolog: schema: %w", err)
	}
	return &Log{db: db}, nil
}

func initSchema(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS qsos (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    logged_at INTEGER,
    contest TEXT,
    serial INTEGER,
    expected_call TEXT,
    entered_call TEXT,
    call_correct INTEGER,
    expected_exchange TEXT,
    entered_exchange TEXT,
    exchange_correct INTEGER,
    station_wpm INTEGER,
    points INTEGER,
    used_agn_call INTEGER,
    used_agn_exchange INTEGER,
    used_call_only INTEGER
);
CREATE INDEX IF NOT EXISTS qsos_expected_call ON qsos(expected_call);`
	_, err := db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (l *Log) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// RecordQSO inserts rec. Failures are logged; the session keeps running.
func (l *Log) RecordQSO(rec stats.QSORecord) {
	if l == nil || l.db == nil {
		return
	}
	if err := l.Insert(rec); err != nil {
		log.Printf("QSO log: %v", err)
	}
}

// Insert writes rec and reports any failure.
func (l *Log) Insert(rec stats.QSORecord) error {
	_, err := l.db.Exec(`
INSERT INTO qsos (
    logged_at, contest, serial, expected_call, entered_call, call_correct,
    expected_exchange, entered_exchange, exchange_correct, station_wpm, points,
    used_agn_call, used_agn_exchange, used_call_only
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Time.UTC().UnixMilli(),
		rec.Contest,
		rec.Serial,
		rec.ExpectedCall,
		rec.EnteredCall,
		boolToInt(rec.CallsignCorrect),
		rec.ExpectedExchange,
		rec.EnteredExchange,
		boolToInt(rec.ExchangeCorrect),
		rec.StationWPM,
		rec.Points,
		boolToInt(rec.UsedRepeatCall),
		boolToInt(rec.UsedRepeatExch),
		boolToInt(rec.UsedCallOnly),
	)
	if err != nil {
		return fmt.Errorf("qsolog: insert %s: %w", rec.ExpectedCall, err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (l *Log) Recent(limit int) ([]stats.QSORecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := l.db.Query(`
SELECT id, logged_at, contest, serial, expected_call, entered_call, call_correct,
       expected_exchange, entered_exchange, exchange_correct, station_wpm, points,
       used_agn_call, used_agn_exchange, used_call_only
FROM qsos ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("qsolog: query recent: %w", err)
	}
	defer rows.Close()

	var out []stats.QSORecord
	for rows.Next() {
		var (
			rec                                  stats.QSORecord
			loggedAt                             int64
			callOK, exchOK, agnCall, agnExch, f5 int
		)
		if err := rows.Scan(&rec.ID, &loggedAt, &rec.Contest, &rec.Serial, &rec.ExpectedCall,
			&rec.EnteredCall, &callOK, &rec.ExpectedExchange, &rec.EnteredExchange, &exchOK,
			&rec.StationWPM, &rec.Points, &agnCall, &agnExch, &f5); err != nil {
			return nil, fmt.Errorf("qsolog: scan: %w", err)
		}
		rec.Time = time.UnixMilli(loggedAt).UTC()
		rec.CallsignCorrect = callOK != 0
		rec.ExchangeCorrect = exchOK != 0
		rec.UsedRepeatCall = agnCall != 0
		rec.UsedRepeatExch = agnExch != 0
		rec.UsedCallOnly = f5 != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Count returns the number of logged contacts.
func (l *Log) Count() (int, error) {
	var n int
	if err := l.db.QueryRow(`SELECT COUNT(*) FROM qsos`).Scan(&n); err != nil {
		return 0, fmt.Errorf("qsolog: count: %w", err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
