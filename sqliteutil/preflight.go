// Package sqliteutil holds helpers shared by the SQLite-backed stores.
package sqliteutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// PreflightResult reports what Preflight found.
type PreflightResult struct {
	Healthy        bool
	Fresh          bool // no database existed yet
	Quarantined    bool
	QuarantinePath string
	Elapsed        time.Duration
	CheckError     error
}

var sidecarSuffixes = []string{"-wal", "-shm", "-journal"}

// Preflight runs a bounded quick_check on the database at path before the
// store opens it. A database that fails the check is renamed aside with a
// .bad-<timestamp> suffix, sidecars included, so the session starts with an
// empty log instead of refusing to start.
func Preflight(path string, timeout time.Duration, logf func(string, ...any)) (PreflightResult, error) {
	if logf == nil {
		logf = log.Printf
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	var res PreflightResult
	if strings.TrimSpace(path) == "" {
		return res, errors.New("sqliteutil: preflight: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return res, fmt.Errorf("sqliteutil: ensure dir: %w", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		res.Healthy = true
		res.Fresh = true
		return res, nil
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return res, fmt.Errorf("sqliteutil: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	res.CheckError = quickCheck(ctx, db)
	_ = db.Close()
	res.Elapsed = time.Since(start)

	if res.CheckError == nil {
		res.Healthy = true
		return res, nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return res, fmt.Errorf("sqliteutil: quick_check on %s timed out after %s", path, timeout)
	}

	dest, err := quarantine(path, start.UTC())
	if err != nil {
		return res, fmt.Errorf("sqliteutil: quarantine %s: %w (quick_check=%v)", path, err, res.CheckError)
	}
	res.Quarantined = true
	res.QuarantinePath = dest
	logf("SQLite: %s failed quick_check (%v); moved to %s", path, res.CheckError, dest)
	return res, nil
}

func quickCheck(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, "pragma quick_check")
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return err
		}
		if strings.TrimSpace(status) != "ok" {
			return fmt.Errorf("quick_check reported %q", status)
		}
	}
	return rows.Err()
}

func quarantine(path string, at time.Time) (string, error) {
	suffix := ".bad-" + at.Format("20060102T150405Z")
	if err := os.Rename(path, path+suffix); err != nil {
		return "", err
	}
	for _, ext := range sidecarSuffixes {
		side := path + ext
		if _, err := os.Stat(side); err != nil {
			continue
		}
		if err := os.Rename(side, side+suffix); err != nil {
			return "", err
		}
	}
	return path + suffix, nil
}
