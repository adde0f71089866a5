package diffbackup

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/mcbackup/mcbackup/internal/ignore"
	"github.com/mcbackup/mcbackup/internal/region"
	"github.com/mcbackup/mcbackup/internal/workerpool"
)

// mcaFolders are the directory basenames whose contents get the region
// diff treatment; a directory with one of these names may recur at any
// depth (per-dimension world folders each have their own region/entities/
// poi subdirectories).
var mcaFolders = map[string]bool{"region": true, "entities": true, "poi": true}

// filterDiff deletes files and chunks from dest that are identical to
// src, leaving src untouched, and returns the set of POSIX-relative paths
// found in src but not dest. Region-file filtering for differing .mca
// files is fanned out onto pool; filterDiff waits for all of it to
// finish before returning, so the first failure cancels the rest and is
// reported to the caller.
func filterDiff(src, dest string, pool workerpool.Pool, progress func(string)) (map[string]struct{}, error) {
	notPresent := make(map[string]struct{})
	if err := compareDirs(src, dest, "", false, notPresent, pool, progress); err != nil {
		return nil, err
	}
	if err := pool.Wait(); err != nil {
		return nil, err
	}
	return notPresent, nil
}

func compareDirs(srcDir, destDir, relPrefix string, mcaDir bool, notPresent map[string]struct{}, pool workerpool.Pool, progress func(string)) error {
	srcEntries, err := readDirMap(srcDir)
	if err != nil {
		return err
	}
	destEntries, err := readDirMap(destDir)
	if err != nil {
		return err
	}

	for name, srcInfo := range srcEntries {
		if ignore.Match(name) {
			continue
		}
		relPath := relPrefix + name
		destInfo, inDest := destEntries[name]
		if !inDest {
			notPresent[relPath] = struct{}{}
			continue
		}
		srcPath := filepath.Join(srcDir, name)
		destPath := filepath.Join(destDir, name)

		if srcInfo.IsDir() && destInfo.IsDir() {
			childIsMCA := mcaFolders[name]
			if err := compareDirs(srcPath, destPath, relPath+"/", childIsMCA, notPresent, pool, progress); err != nil {
				return err
			}
			continue
		}
		if srcInfo.IsDir() != destInfo.IsDir() {
			// Type mismatch: skip it entirely, neither recording it in
			// notPresent nor touching dest (mirrors dircmp's "funny
			// files" bucket, which the original silently ignores beyond
			// left_only/diff_files).
			continue
		}

		identical, err := filesIdentical(srcPath, destPath)
		if err != nil {
			return err
		}
		if identical {
			if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
				return err
			}
			continue
		}
		if !mcaDir {
			continue
		}
		// Differing files outside a region/entities/poi directory are
		// left untouched in dest; only within these does a zero-length
		// src/dest get special non-presence handling (Open Question 3).
		if srcInfo.Size() == 0 {
			continue
		}
		destSize := destInfo.Size()
		if destSize == 0 {
			if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
				return err
			}
			notPresent[relPath] = struct{}{}
			continue
		}
		chunkFolder := filepath.Base(srcDir) == "region"
		srcPathCopy, destPathCopy := srcPath, destPath
		pool.Go(func() error {
			// The pool's context is cancelled by the first failed task;
			// tasks that start after that do no work.
			if err := pool.Context().Err(); err != nil {
				return err
			}
			return filterRegionFile(srcPathCopy, destPathCopy, chunkFolder, progress)
		})
	}
	return nil
}

func filterRegionFile(srcPath, destPath string, isChunk bool, progress func(string)) error {
	newRegion, err := region.Open(srcPath)
	if err != nil {
		return err
	}
	defer newRegion.Close()
	oldRegion, err := region.Open(destPath)
	if err != nil {
		return err
	}

	identical, err := oldRegion.FilterDiffDefragment(newRegion, isChunk)
	closeErr := oldRegion.Close()
	if err != nil {
		return err
	}
	if closeErr != nil {
		return closeErr
	}
	if identical {
		if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	if progress != nil {
		progress("filtered " + destPath)
	}
	return nil
}

func readDirMap(dir string) (map[string]os.FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	m := make(map[string]os.FileInfo, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		m[e.Name()] = info
	}
	return m, nil
}

func filesIdentical(a, b string) (bool, error) {
	fa, err := os.Open(a)
	if err != nil {
		return false, err
	}
	defer fa.Close()
	fb, err := os.Open(b)
	if err != nil {
		return false, err
	}
	defer fb.Close()

	infoA, err := fa.Stat()
	if err != nil {
		return false, err
	}
	infoB, err := fb.Stat()
	if err != nil {
		return false, err
	}
	if infoA.Size() != infoB.Size() {
		return false, nil
	}

	const bufSize = 64 * 1024
	bufA := make([]byte, bufSize)
	bufB := make([]byte, bufSize)
	for {
		na, erra := fa.Read(bufA)
		nb, errb := fb.Read(bufB)
		if na != nb || !bytes.Equal(bufA[:na], bufB[:nb]) {
			return false, nil
		}
		if erra == io.EOF && errb == io.EOF {
			return true, nil
		}
		if erra != nil && erra != io.EOF {
			return false, erra
		}
		if errb != nil && errb != io.EOF {
			return false, errb
		}
	}
}
