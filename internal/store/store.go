// Package store manages the two directories a batch run touches: the
// transient staging area where backends deposit raw downloads, and the final
// artifacts store keyed by (output name, extension).
package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"artbatch/internal/errors"
	"artbatch/internal/logging"
)

// backupDirName is the subdirectory of the artifacts store holding backups.
const backupDirName = "backups"

// Store organizes downloaded artifacts on disk.
type Store struct {
	stagingDir   string
	artifactsDir string
	log          *logging.Logger

	// Poll intervals for WaitForDownload; zero means the package defaults.
	downloadPoll  time.Duration
	stabilityWait time.Duration
}

// New creates a Store over the given directories, creating both if needed.
// Directory creation failure is an unrecoverable setup error: the run cannot
// proceed without somewhere to put its files.
func New(stagingDir, artifactsDir string, log *logging.Logger) (*Store, error) {
	staging, err := filepath.Abs(stagingDir)
	if err != nil {
		return nil, fmt.Errorf("resolving staging dir: %w", err)
	}
	artifacts, err := filepath.Abs(artifactsDir)
	if err != nil {
		return nil, fmt.Errorf("resolving artifacts dir: %w", err)
	}

	if err := os.MkdirAll(staging, 0755); err != nil {
		return nil, fmt.Errorf("creating staging dir: %w", err)
	}
	if err := os.MkdirAll(artifacts, 0755); err != nil {
		return nil, fmt.Errorf("creating artifacts dir: %w", err)
	}

	if log == nil {
		log = logging.NopLogger()
	}

	return &Store{
		stagingDir:   staging,
		artifactsDir: artifacts,
		log:          log,
	}, nil
}

// StagingDir returns the absolute path of the staging area.
func (s *Store) StagingDir() string { return s.stagingDir }

// ArtifactsDir returns the absolute path of the artifacts store.
func (s *Store) ArtifactsDir() string { return s.artifactsDir }

// ArtifactPath returns the canonical store path for a key.
func (s *Store) ArtifactPath(name, ext string) string {
	return filepath.Join(s.artifactsDir, name+"."+ext)
}

// Exists reports whether an artifact with the given key is already stored.
func (s *Store) Exists(name, ext string) bool {
	_, err := os.Stat(s.ArtifactPath(name, ext))
	return err == nil
}

// Organize moves a staged file into the store under name.ext. If that key is
// occupied an increasing numeric suffix (_1, _2, ...) is appended until a
// free key is found; existing artifacts are never overwritten.
func (s *Store) Organize(sourcePath, name, ext string) (string, error) {
	if _, err := os.Stat(sourcePath); err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewOrganizerError(name+"."+ext, "staged file vanished", errors.ErrSourceNotFound)
		}
		return "", errors.NewOrganizerError(name+"."+ext, "checking staged file", err)
	}

	destPath := s.ArtifactPath(name, ext)
	for counter := 1; ; counter++ {
		_, err := os.Stat(destPath)
		if os.IsNotExist(err) {
			break
		}
		if err != nil {
			// Only "occupied" advances the suffix; a stat failure would
			// otherwise loop forever.
			return "", errors.NewOrganizerError(name+"."+ext, "checking destination", err)
		}
		destPath = s.ArtifactPath(fmt.Sprintf("%s_%d", name, counter), ext)
	}

	if err := moveFile(sourcePath, destPath); err != nil {
		return "", errors.NewOrganizerError(name+"."+ext, "moving staged file into store", err)
	}

	s.log.Info("artifact organized", "path", destPath)
	return destPath, nil
}

// Backup copies an existing artifact into the timestamped backup location
// and returns the backup path. It returns "" without error when no artifact
// with that key exists. Backup is never invoked by Organize; it is a
// separate, caller-invoked safety step.
func (s *Store) Backup(name, ext string) (string, error) {
	sourcePath := s.ArtifactPath(name, ext)
	if _, err := os.Stat(sourcePath); os.IsNotExist(err) {
		return "", nil
	}

	backupDir := filepath.Join(s.artifactsDir, backupDirName)
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return "", errors.NewOrganizerError(name+"."+ext, "creating backup dir", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	backupPath := filepath.Join(backupDir, fmt.Sprintf("%s_%s.%s", name, timestamp, ext))

	if err := copyFile(sourcePath, backupPath); err != nil {
		return "", errors.NewOrganizerError(name+"."+ext, "copying artifact to backup", err)
	}

	s.log.Info("backup created", "path", backupPath)
	return backupPath, nil
}

// ClearStaging removes all regular files from the staging area so that
// "newest file in staging" unambiguously identifies the next task's output.
// Subdirectories are left alone.
func (s *Store) ClearStaging() error {
	entries, err := os.ReadDir(s.stagingDir)
	if err != nil {
		return fmt.Errorf("reading staging dir: %w", err)
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if err := os.Remove(filepath.Join(s.stagingDir, entry.Name())); err != nil {
			return fmt.Errorf("clearing staging dir: %w", err)
		}
	}

	s.log.Debug("staging dir cleared")
	return nil
}

// List returns the sorted filenames of all artifacts in the store.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.artifactsDir)
	if err != nil {
		return nil, fmt.Errorf("reading artifacts dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Stats summarizes the contents of the artifacts store.
type Stats struct {
	TotalCount  int
	TotalBytes  int64
	ByExtension map[string]int
}

// Stats returns artifact counts and sizes grouped by extension.
func (s *Store) Stats() (Stats, error) {
	names, err := s.List()
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{ByExtension: make(map[string]int)}
	for _, name := range names {
		ext := filepath.Ext(name)
		stats.ByExtension[ext]++
		stats.TotalCount++

		if info, err := os.Stat(filepath.Join(s.artifactsDir, name)); err == nil {
			stats.TotalBytes += info.Size()
		}
	}
	return stats, nil
}

// moveFile renames src to dst, falling back to copy+remove across devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
