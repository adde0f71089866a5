// Package ignore implements the fixed ignore policy shared by every
// backup backend: a small set of basenames that are skipped no matter how
// deep they appear in the world tree.
package ignore

import "path/filepath"

// Names is the fixed set of basenames ignored by world enumeration and
// archive creation.
var Names = []string{"datapacks", "session.lock", "DistantHorizons.sqlite", "icon.png"}

var set = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Names))
	for _, n := range Names {
		m[n] = struct{}{}
	}
	return m
}()

// Match reports whether path's basename is in the fixed ignore set. It is
// depth-agnostic: callers prune the whole subtree on a true result.
func Match(path string) bool {
	_, ok := set[filepath.Base(path)]
	return ok
}
