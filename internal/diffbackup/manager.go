// Package diffbackup implements DiffBackupManager: a backup chain where
// the newest entry is a full copy of the world and every older entry
// stores only the chunks that differ from the entry one slot newer.
package diffbackup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mcbackup/mcbackup"
	"github.com/mcbackup/mcbackup/internal/archive"
	"github.com/mcbackup/mcbackup/internal/metadata"
	"github.com/mcbackup/mcbackup/internal/workerpool"
)

// BackupInfo is the public, backend-agnostic view of one backup.
type BackupInfo struct {
	Timestamp time.Time
	ID        string
	Desc      *string
}

// Manager is the backend-agnostic backup contract; DiffBackupManager is
// the only implementation this module provides.
type Manager interface {
	Prepare() error
	CreateBackup(ctx context.Context, desc string, progress func(string)) (BackupInfo, error)
	RestoreBackup(ctx context.Context, idx int, progress func(string)) error
	DeleteBackup(ctx context.Context, idx int, progress func(string)) error
	ListBackups() ([]BackupInfo, error)
}

var _ Manager = (*DiffBackupManager)(nil)

// DiffBackupManager creates, restores, deletes and lists chunk-diffed
// backups of a single world directory.
type DiffBackupManager struct {
	world     string
	backupDir string
	logger    *slog.Logger
}

// New returns a DiffBackupManager backing up world into backupDir.
func New(world, backupDir string, logger *slog.Logger) *DiffBackupManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &DiffBackupManager{world: world, backupDir: backupDir, logger: logger}
}

// Prepare creates the backup directory if it does not already exist. It
// is idempotent.
func (m *DiffBackupManager) Prepare() error {
	return os.MkdirAll(m.backupDir, 0o755)
}

// ListBackups returns every backup, newest first.
func (m *DiffBackupManager) ListBackups() ([]BackupInfo, error) {
	list, err := m.loadOrEmpty()
	if err != nil {
		return nil, err
	}
	infos := make([]BackupInfo, len(list))
	for i, d := range list {
		infos[i] = toBackupInfo(d)
	}
	return infos, nil
}

func toBackupInfo(d metadata.BackupDescriptor) BackupInfo {
	return BackupInfo{Timestamp: d.Timestamp, ID: d.ID.String(), Desc: d.Desc}
}

func (m *DiffBackupManager) loadOrEmpty() ([]metadata.BackupDescriptor, error) {
	list, err := metadata.Load(m.backupDir)
	if err != nil {
		if err == metadata.ErrMetadataMissing {
			return nil, nil
		}
		return nil, err
	}
	return list, nil
}

// validateIdx loads the chain and checks idx names a real entry.
func (m *DiffBackupManager) validateIdx(idx int) ([]metadata.BackupDescriptor, error) {
	if idx < 0 {
		return nil, ErrIndexOutOfRange
	}
	list, err := metadata.Load(m.backupDir)
	if err != nil {
		return nil, err
	}
	if idx >= len(list) {
		return nil, ErrIndexOutOfRange
	}
	return list, nil
}

func noopProgress(string) {}

func orNoop(progress func(string)) func(string) {
	if progress == nil {
		return noopProgress
	}
	return progress
}

// replaceFile atomically moves tmpPath over finalPath; both must be on
// the same filesystem (both live under the backup directory tree).
func replaceFile(tmpPath, finalPath string) error {
	return os.Rename(tmpPath, finalPath)
}

// CreateBackup snapshots the world as a new, newest backup. If an older
// backup already exists, its archive is turned into a reverse diff
// against the new snapshot while the new snapshot itself is compressed
// concurrently.
func (m *DiffBackupManager) CreateBackup(ctx context.Context, desc string, progress func(string)) (BackupInfo, error) {
	progress = orNoop(progress)

	timestamp := time.Now().UTC().Truncate(time.Second)
	id := uuid.New()
	progress(fmt.Sprintf("creating backup %q", id))

	newDesc := metadata.BackupDescriptor{Timestamp: timestamp, ID: id}
	if desc != "" {
		newDesc.Desc = &desc
	}

	list, err := m.loadOrEmpty()
	if err != nil {
		return BackupInfo{}, err
	}

	tmpDir, err := os.MkdirTemp(m.backupDir, "tmp-create-*")
	if err != nil {
		return BackupInfo{}, err
	}
	defer os.RemoveAll(tmpDir)
	mcbackup.RegisterAtExit(func() error { return os.RemoveAll(tmpDir) })

	newArchiveTmp := filepath.Join(tmpDir, newDesc.ArchiveName())
	newArchivePath := filepath.Join(m.backupDir, newDesc.ArchiveName())
	progress("compressing world")

	if len(list) == 0 {
		if err := archive.Create(newArchiveTmp, m.world); err != nil {
			return BackupInfo{}, err
		}
		if err := replaceFile(newArchiveTmp, newArchivePath); err != nil {
			return BackupInfo{}, err
		}
	} else {
		previous := &list[0]
		previousArchivePath := filepath.Join(m.backupDir, previous.ArchiveName())
		prevExtractDir := filepath.Join(tmpDir, "prev")
		if err := os.MkdirAll(prevExtractDir, 0o755); err != nil {
			return BackupInfo{}, err
		}

		compressDone := make(chan error, 1)
		go func() { compressDone <- archive.Create(newArchiveTmp, m.world) }()

		if err := archive.Extract(previousArchivePath, prevExtractDir); err != nil {
			return BackupInfo{}, err
		}

		progress(fmt.Sprintf("turning %q into diff", previous.ID))
		filterPool := workerpool.New(ctx, workerpool.DefaultSize())
		notPresent, err := filterDiff(m.world, prevExtractDir, filterPool, progress)
		if err != nil {
			return BackupInfo{}, err
		}
		previous.SetNotPresentSet(notPresent)

		progress(fmt.Sprintf("recompressing %q", previous.ID))
		newPreviousArchive := filepath.Join(tmpDir, "new_"+previous.ArchiveName())
		if err := archive.Create(newPreviousArchive, prevExtractDir); err != nil {
			return BackupInfo{}, err
		}

		if err := <-compressDone; err != nil {
			return BackupInfo{}, err
		}

		// The new archive must land before the previous archive is
		// overwritten with its diff: a crash between the two leaves the
		// chain recoverable from the still-intact previous archive,
		// never from a missing new one.
		if err := replaceFile(newArchiveTmp, newArchivePath); err != nil {
			return BackupInfo{}, err
		}
		if err := replaceFile(newPreviousArchive, previousArchivePath); err != nil {
			return BackupInfo{}, err
		}
	}

	list = append([]metadata.BackupDescriptor{newDesc}, list...)
	if err := metadata.Store(m.backupDir, list); err != nil {
		return BackupInfo{}, err
	}
	if err := metadata.WriteJSONMirror(m.backupDir, list); err != nil {
		m.logger.Warn("failed to refresh backups.json mirror", "error", err)
	}

	return toBackupInfo(newDesc), nil
}
