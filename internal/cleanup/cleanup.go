// Package cleanup implements pruning of old compass sessions and their run
// directories.
package cleanup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/berth-dev/compass/internal/session"
)

// Result lists what a prune removed, or would remove on a dry run.
type Result struct {
	Sessions []string
	RunDirs  []string
}

// PruneSessions removes finished sessions not updated for maxAgeDays from
// the store, along with their run directories. Sessions still in progress
// are kept. A nil store prunes run directories only.
func PruneSessions(store *session.Store, runsDir string, maxAgeDays int, dryRun bool) (Result, error) {
	var res Result
	cutoff := time.Now().AddDate(0, 0, -maxAgeDays)

	if store != nil {
		var (
			ids []string
			err error
		)
		if dryRun {
			ids, err = store.StaleSessions(cutoff, true)
		} else {
			ids, err = store.PruneOlderThan(cutoff, true)
		}
		if err != nil {
			return res, fmt.Errorf("pruning sessions: %w", err)
		}
		res.Sessions = ids

		for _, id := range ids {
			path := filepath.Join(runsDir, id)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			if !dryRun {
				if err := os.RemoveAll(path); err != nil {
					return res, fmt.Errorf("removing %s: %w", id, err)
				}
			}
			res.RunDirs = append(res.RunDirs, id)
		}
		return res, nil
	}

	dirs, err := PruneByAge(runsDir, maxAgeDays, dryRun)
	res.RunDirs = dirs
	return res, err
}

// PruneByAge removes run directories not modified for maxAgeDays.
// If dryRun is true, no directories are deleted; the function only returns
// the names that would be removed. Returns the list of pruned directory names.
func PruneByAge(runsDir string, maxAgeDays int, dryRun bool) ([]string, error) {
	runs, err := listRuns(runsDir)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().AddDate(0, 0, -maxAgeDays)
	var pruned []string

	for _, r := range runs {
		if !r.modTime.Before(cutoff) {
			continue
		}
		if !dryRun {
			if rmErr := os.RemoveAll(filepath.Join(runsDir, r.name)); rmErr != nil {
				return pruned, fmt.Errorf("removing %s: %w", r.name, rmErr)
			}
		}
		pruned = append(pruned, r.name)
	}

	return pruned, nil
}

// PruneKeepRecent removes all run directories except the keep most recently
// modified. If dryRun is true, no directories are deleted. Returns the list
// of pruned directory names.
func PruneKeepRecent(runsDir string, keep int, dryRun bool) ([]string, error) {
	runs, err := listRuns(runsDir)
	if err != nil {
		return nil, err
	}
	if len(runs) <= keep {
		return nil, nil
	}

	toRemove := runs[:len(runs)-keep]
	var pruned []string

	for _, r := range toRemove {
		if !dryRun {
			if rmErr := os.RemoveAll(filepath.Join(runsDir, r.name)); rmErr != nil {
				return pruned, fmt.Errorf("removing %s: %w", r.name, rmErr)
			}
		}
		pruned = append(pruned, r.name)
	}

	return pruned, nil
}

type runDir struct {
	name    string
	modTime time.Time
}

// listRuns returns the run directories oldest first.
func listRuns(runsDir string) ([]runDir, error) {
	entries, err := os.ReadDir(runsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading runs directory: %w", err)
	}

	var runs []runDir
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		runs = append(runs, runDir{name: entry.Name(), modTime: info.ModTime()})
	}

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].modTime.Equal(runs[j].modTime) {
			return runs[i].name < runs[j].name
		}
		return runs[i].modTime.Before(runs[j].modTime)
	})
	return runs, nil
}
