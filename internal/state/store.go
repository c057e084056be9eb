// Package state records the history of compile runs in a SQLite database.
// Each run stores its outcome and the content hashes of the files it read,
// so later runs can report what changed.
package state

import (
	"context"
	"slices"
	"time"
)

// Run is one recorded compilation.
type Run struct {
	ID            string
	StartedAt     time.Time
	Duration      time.Duration
	Dialect       string
	SchemaVersion int
	Statements    int
	Diagnostics   int
	Files         []FileHash
}

// FileHash is the content hash of one source file.
type FileHash struct {
	Path string
	Hash string
}

// Store persists compile runs.
type Store interface {
	// RecordRun stores run, assigning its ID when empty.
	RecordRun(ctx context.Context, run *Run) error
	// Runs returns the most recent runs first, at most limit when limit > 0.
	Runs(ctx context.Context, limit int) ([]*Run, error)
	// GetRun returns a run with its file hashes.
	GetRun(ctx context.Context, id string) (*Run, error)
	// LatestRun returns the most recent run, nil when there is none.
	LatestRun(ctx context.Context) (*Run, error)
	Close() error
}

// Changed lists the paths of files whose hash differs from prev, including
// files prev did not see and files that disappeared. A nil prev reports
// every file.
func Changed(prev *Run, files []FileHash) []string {
	before := make(map[string]string)
	if prev != nil {
		for _, f := range prev.Files {
			before[f.Path] = f.Hash
		}
	}
	var out []string
	seen := make(map[string]bool)
	for _, f := range files {
		seen[f.Path] = true
		if h, ok := before[f.Path]; !ok || h != f.Hash {
			out = append(out, f.Path)
		}
	}
	for path := range before {
		if !seen[path] {
			out = append(out, path)
		}
	}
	slices.Sort(out)
	return out
}
