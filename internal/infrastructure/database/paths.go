package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

// dbDirSuffix ends every database folder name: "DB" or "<userID>DB".
const dbDirSuffix = "DB"

// ResolvePath returns the database file location for an optional user:
// "<cacheDir>/<userID>DB/<fileName>" or "<cacheDir>/DB/<fileName>".
// An empty cacheDir means os.UserCacheDir().
func ResolvePath(cacheDir, userID, fileName string) (string, error) {
	if fileName == "" {
		return "", ErrEmptyPath
	}

	dir, err := resolveCacheDir(cacheDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, userID+dbDirSuffix, fileName), nil
}

func resolveCacheDir(cacheDir string) (string, error) {
	if cacheDir != "" {
		return cacheDir, nil
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locating user cache directory: %w", err)
	}
	return dir, nil
}

// CleanCacheFiles removes, in the background, every entry directly under
// cacheDir whose name contains fileName. It returns immediately. Outcomes
// are logged; the returned channel yields the first failure (or nil) once
// and is then closed. Callers may ignore it.
func CleanCacheFiles(cacheDir, fileName string, logger Logger) <-chan error {
	return inBackground(logger, "cache file cleanup incomplete", func(l Logger) error {
		return removeMatching(cacheDir, l, func(e os.DirEntry) bool {
			return strings.Contains(e.Name(), fileName)
		})
	})
}

// RemoveDatabaseDirs removes, in the background, every non-hidden
// directory under cacheDir whose name contains "DB". The returned channel
// behaves as for CleanCacheFiles.
func RemoveDatabaseDirs(cacheDir string, logger Logger) <-chan error {
	return inBackground(logger, "database directory cleanup incomplete", func(l Logger) error {
		return removeMatching(cacheDir, l, isDatabaseDir)
	})
}

func inBackground(logger Logger, failMsg string, fn func(Logger) error) <-chan error {
	if logger == nil {
		logger = noopLogger{}
	}
	done := make(chan error, 1)
	go func() {
		defer close(done)
		err := fn(logger)
		if err != nil {
			logger.Warn(failMsg, "error", err)
		}
		done <- err
	}()
	return done
}

func isDatabaseDir(e os.DirEntry) bool {
	return e.IsDir() && !strings.HasPrefix(e.Name(), ".") && strings.Contains(e.Name(), dbDirSuffix)
}

// removeMatching deletes matching entries of cacheDir concurrently and
// returns the first failure. Every outcome is logged.
func removeMatching(cacheDir string, logger Logger, match func(os.DirEntry) bool) error {
	dir, err := resolveCacheDir(cacheDir)
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading cache directory: %w", err)
	}

	var g errgroup.Group
	for _, entry := range entries {
		if !match(entry) {
			continue
		}
		full := filepath.Join(dir, entry.Name())
		g.Go(func() error {
			if err := os.RemoveAll(full); err != nil {
				logger.Error("removing cache entry failed", "path", full, "error", err)
				return fmt.Errorf("removing %s: %w", full, err)
			}
			logger.Info("removed cache entry", "path", full)
			return nil
		})
	}
	return g.Wait()
}
