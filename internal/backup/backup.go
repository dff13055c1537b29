// Package backup snapshots pipeline state and site output before a sync
// cycle rewrites them. Backups are tar.gz archives with a bounded
// retention; a failed backup never blocks the cycle.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	huberr "git.home.luguber.info/inful/intrahub/internal/errors"
	"git.home.luguber.info/inful/intrahub/internal/logfields"
)

const archivePrefix = "intrahub-backup-"

// Create archives the given directories into backupDir and prunes old
// archives past keep. Missing source directories are skipped.
func Create(backupDir string, keep int, dirs ...string) (string, error) {
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return "", huberr.Wrap(err, huberr.CategoryFileSystem, huberr.SeverityWarning, "failed to create backup directory")
	}

	name := archivePrefix + time.Now().UTC().Format("20060102-150405") + ".tar.gz"
	path := filepath.Join(backupDir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", huberr.Wrap(err, huberr.CategoryFileSystem, huberr.SeverityWarning, "failed to create backup archive")
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	for _, dir := range dirs {
		if _, statErr := os.Stat(dir); os.IsNotExist(statErr) {
			continue
		}
		if err := addTree(tw, dir); err != nil {
			tw.Close()
			gz.Close()
			os.Remove(path)
			return "", err
		}
	}

	if err := tw.Close(); err != nil {
		os.Remove(path)
		return "", huberr.Wrap(err, huberr.CategoryFileSystem, huberr.SeverityWarning, "failed to finalize backup archive")
	}
	if err := gz.Close(); err != nil {
		os.Remove(path)
		return "", huberr.Wrap(err, huberr.CategoryFileSystem, huberr.SeverityWarning, "failed to finalize backup archive")
	}

	prune(backupDir, keep)
	slog.Info("Backup created", logfields.Path(path))
	return path, nil
}

func addTree(tw *tar.Writer, root string) error {
	base := filepath.Base(root)
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return huberr.Wrap(err, huberr.CategoryFileSystem, huberr.SeverityWarning, "failed to walk backup source").
				WithContext("path", path)
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return huberr.Wrap(err, huberr.CategoryFileSystem, huberr.SeverityWarning, "failed to resolve backup path")
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return huberr.Wrap(err, huberr.CategoryFileSystem, huberr.SeverityWarning, "failed to build tar header")
		}
		hdr.Name = filepath.ToSlash(filepath.Join(base, rel))
		if err := tw.WriteHeader(hdr); err != nil {
			return huberr.Wrap(err, huberr.CategoryFileSystem, huberr.SeverityWarning, "failed to write tar header")
		}
		if info.IsDir() {
			return nil
		}
		src, err := os.Open(path)
		if err != nil {
			return huberr.Wrap(err, huberr.CategoryFileSystem, huberr.SeverityWarning, "failed to read backup source file").
				WithContext("path", path)
		}
		defer src.Close()
		if _, err := io.Copy(tw, src); err != nil {
			return huberr.Wrap(err, huberr.CategoryFileSystem, huberr.SeverityWarning, "failed to archive file").
				WithContext("path", path)
		}
		return nil
	})
}

// prune removes the oldest archives past keep. Archive names sort
// chronologically by construction.
func prune(backupDir string, keep int) {
	entries, err := os.ReadDir(backupDir)
	if err != nil {
		slog.Warn("Failed to scan backup directory", logfields.Error(err))
		return
	}
	var archives []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), archivePrefix) && strings.HasSuffix(e.Name(), ".tar.gz") {
			archives = append(archives, e.Name())
		}
	}
	sort.Strings(archives)
	for len(archives) > keep {
		victim := archives[0]
		archives = archives[1:]
		if err := os.Remove(filepath.Join(backupDir, victim)); err != nil {
			slog.Warn("Failed to remove old backup", logfields.Path(victim), logfields.Error(err))
			continue
		}
		slog.Info("Removed old backup", logfields.Path(victim))
	}
}
