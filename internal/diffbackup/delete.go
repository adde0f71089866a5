package diffbackup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mcbackup/mcbackup"
	"github.com/mcbackup/mcbackup/internal/archive"
	"github.com/mcbackup/mcbackup/internal/metadata"
	"github.com/mcbackup/mcbackup/internal/region"
)

// DeleteBackup removes the backup at idx from the chain.
//
// Deleting the oldest entry just drops its archive. Deleting any other
// entry ("chosen", at idx) absorbs the entry one index older ("older",
// at idx+1) into it: older's diff is applied on top of chosen's, so
// chosen's archive now reconstructs what older used to, and chosen's
// timestamp/desc are overwritten with older's. The net effect is that
// idx's own backup disappears from the chain while idx+1's archive file
// is discarded — chosen's archive and id are what survive on disk.
func (m *DiffBackupManager) DeleteBackup(ctx context.Context, idx int, progress func(string)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	progress = orNoop(progress)

	list, err := m.validateIdx(idx)
	if err != nil {
		return err
	}

	if idx == len(list)-1 {
		chosen := list[idx]
		progress(fmt.Sprintf("deleting oldest backup %q", chosen.ID))
		if err := os.Remove(filepath.Join(m.backupDir, chosen.ArchiveName())); err != nil && !os.IsNotExist(err) {
			return err
		}
		list = list[:idx]
		return metadata.Store(m.backupDir, list)
	}

	chosen := list[idx]
	older := list[idx+1]
	list = append(list[:idx+1], list[idx+2:]...)

	chosen.Timestamp = older.Timestamp
	chosen.Desc = older.Desc

	progress(fmt.Sprintf("merging %q into %q", older.ID, chosen.ID))

	tmpDir, err := os.MkdirTemp(m.backupDir, "tmp-delete-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)
	mcbackup.RegisterAtExit(func() error { return os.RemoveAll(tmpDir) })

	olderExtractDir := filepath.Join(tmpDir, "older")
	chosenExtractDir := filepath.Join(tmpDir, "chosen")
	if err := os.MkdirAll(olderExtractDir, 0o755); err != nil {
		return err
	}
	if err := os.MkdirAll(chosenExtractDir, 0o755); err != nil {
		return err
	}

	olderArchivePath := filepath.Join(m.backupDir, older.ArchiveName())
	chosenArchivePath := filepath.Join(m.backupDir, chosen.ArchiveName())

	extractOlderDone := make(chan error, 1)
	go func() { extractOlderDone <- archive.Extract(olderArchivePath, olderExtractDir) }()

	if err := archive.Extract(chosenArchivePath, chosenExtractDir); err != nil {
		return err
	}
	if err := <-extractOlderDone; err != nil {
		return err
	}

	if err := clearNotPresent(chosenExtractDir, older.NotPresent); err != nil {
		return err
	}
	cache := region.NewFileCache()
	if err := applyDiffTree(chosenExtractDir, olderExtractDir, true, cache); err != nil {
		cache.CloseAll()
		return err
	}
	if err := cache.CloseAll(); err != nil {
		return err
	}

	// If a file was absent from chosen's diff but re-appears in older
	// (it was deleted at idx, then re-created at idx+1), the merged
	// diff no longer needs to claim it as absent.
	chosenNotPresent := chosen.NotPresentSet()
	for rel := range chosenNotPresent {
		if _, err := os.Stat(filepath.Join(olderExtractDir, filepath.FromSlash(rel))); err == nil {
			delete(chosenNotPresent, rel)
		}
	}
	if idx > 0 {
		for rel := range older.NotPresentSet() {
			chosenNotPresent[rel] = struct{}{}
		}
	}
	chosen.SetNotPresentSet(chosenNotPresent)

	progress(fmt.Sprintf("recompressing %q", chosen.ID))
	newChosenArchive := filepath.Join(tmpDir, "new_"+chosen.ArchiveName())
	if err := archive.Create(newChosenArchive, chosenExtractDir); err != nil {
		return err
	}
	if err := replaceFile(newChosenArchive, chosenArchivePath); err != nil {
		return err
	}

	list[idx] = chosen
	if err := metadata.Store(m.backupDir, list); err != nil {
		return err
	}
	if err := metadata.WriteJSONMirror(m.backupDir, list); err != nil {
		m.logger.Warn("failed to refresh backups.json mirror", "error", err)
	}
	return os.Remove(olderArchivePath)
}
