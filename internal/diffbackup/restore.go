package diffbackup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mcbackup/mcbackup"
	"github.com/mcbackup/mcbackup/internal/archive"
	"github.com/mcbackup/mcbackup/internal/region"
	"github.com/mcbackup/mcbackup/internal/workerpool"
)

// RestoreBackup replaces the live world with the reconstruction of the
// backup at idx (0 = newest). It extracts every archive from newest
// through idx concurrently, folds the older diffs onto the newest
// extraction in order, then replaces the live world wholesale.
func (m *DiffBackupManager) RestoreBackup(ctx context.Context, idx int, progress func(string)) error {
	progress = orNoop(progress)

	list, err := m.validateIdx(idx)
	if err != nil {
		return err
	}
	progress(fmt.Sprintf("restoring backup %q", list[idx].ID))
	chain := list[:idx+1]

	tmpRoot, err := os.MkdirTemp(m.backupDir, "tmp-restore-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpRoot)
	mcbackup.RegisterAtExit(func() error { return os.RemoveAll(tmpRoot) })

	extractedDirs := make([]string, len(chain))
	pool := workerpool.New(ctx, workerpool.DefaultSize())
	for i, d := range chain {
		i, d := i, d
		dir := filepath.Join(tmpRoot, fmt.Sprintf("b%d", i))
		extractedDirs[i] = dir
		pool.Go(func() error {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			return archive.Extract(filepath.Join(m.backupDir, d.ArchiveName()), dir)
		})
	}
	if err := pool.Wait(); err != nil {
		return err
	}

	backupSave := extractedDirs[0]
	cache := region.NewFileCache()
	for i := 1; i < len(chain); i++ {
		progress(fmt.Sprintf("[%d/%d] applying %q", i, len(chain)-1, chain[i].ID))
		if err := applyDiffTree(backupSave, extractedDirs[i], false, cache); err != nil {
			cache.CloseAll()
			return err
		}
		if err := clearNotPresent(backupSave, chain[i].NotPresent); err != nil {
			cache.CloseAll()
			return err
		}
	}
	if err := cache.CloseAll(); err != nil {
		return err
	}

	progress("deleting current world")
	if err := clearWorld(m.world); err != nil {
		return err
	}
	progress("restoring backup")
	return copyTree(backupSave, m.world)
}
