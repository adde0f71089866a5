package diffbackup

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/mcbackup/mcbackup/internal/region"
)

const testCompressionZlib = 2 // region file wire value for zlib, see region.compress.go

// buildNBT encodes a root Compound with the given flat Long-valued pairs,
// matching internal/region's own test fixtures. Keys are written in sorted
// order so equal inputs always encode to the same bytes.
func buildNBT(pairs map[string]int64) []byte {
	const tagCompound, tagLong, tagEnd = 10, 4, 0
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b := []byte{tagCompound, 0, 0}
	for _, k := range keys {
		v := pairs[k]
		b = append(b, tagLong)
		b = append(b, byte(len(k)>>8), byte(len(k)))
		b = append(b, []byte(k)...)
		var val [8]byte
		for i := 7; i >= 0; i-- {
			val[i] = byte(v)
			v >>= 8
		}
		b = append(b, val[:]...)
	}
	b = append(b, tagEnd)
	return b
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func writeRegion(t *testing.T, path string, chunks map[int]map[string]int64) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := region.Create(path, 2)
	if err != nil {
		t.Fatalf("region.Create: %v", err)
	}
	defer f.Close()
	for idx, pairs := range chunks {
		data := buildNBT(pairs)
		if err := f.SetChunkData(idx, testCompressionZlib, data, uint32(pairs["LastUpdate"])); err != nil {
			t.Fatalf("SetChunkData(%d): %v", idx, err)
		}
	}
}

func readChunk(t *testing.T, path string, idx int) []byte {
	t.Helper()
	f, err := region.Open(path)
	if err != nil {
		t.Fatalf("region.Open: %v", err)
	}
	defer f.Close()
	data, err := f.GetChunkData(idx)
	if err != nil {
		t.Fatalf("GetChunkData(%d): %v", idx, err)
	}
	return data
}

// TestCreateRestoreRoundTrip builds a three-generation chain (plain files
// plus one evolving region file) and checks that restoring each
// generation reproduces exactly that generation's content.
func TestCreateRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	world := t.TempDir()
	backupDir := t.TempDir()
	mgr := New(world, backupDir, nil)
	if err := mgr.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	// Generation 0.
	writeFile(t, filepath.Join(world, "level.dat"), "level-gen0")
	writeRegion(t, filepath.Join(world, "region", "r.0.0.mca"), map[int]map[string]int64{
		0: {"LastUpdate": 1, "v": 0},
	})
	if _, err := mgr.CreateBackup(ctx, "gen0", nil); err != nil {
		t.Fatalf("CreateBackup gen0: %v", err)
	}

	// Generation 1: level.dat unchanged, chunk 0 mutated.
	writeRegion(t, filepath.Join(world, "region", "r.0.0.mca"), map[int]map[string]int64{
		0: {"LastUpdate": 2, "v": 1},
	})
	if _, err := mgr.CreateBackup(ctx, "gen1", nil); err != nil {
		t.Fatalf("CreateBackup gen1: %v", err)
	}

	// Generation 2: level.dat changes, chunk 0 mutated again.
	writeFile(t, filepath.Join(world, "level.dat"), "level-gen2")
	writeRegion(t, filepath.Join(world, "region", "r.0.0.mca"), map[int]map[string]int64{
		0: {"LastUpdate": 3, "v": 2},
	})
	if _, err := mgr.CreateBackup(ctx, "gen2", nil); err != nil {
		t.Fatalf("CreateBackup gen2: %v", err)
	}

	list, err := mgr.ListBackups()
	if err != nil {
		t.Fatalf("ListBackups: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len(ListBackups()) = %d, want 3", len(list))
	}
	if *list[0].Desc != "gen2" || *list[1].Desc != "gen1" || *list[2].Desc != "gen0" {
		t.Fatalf("ListBackups() order = %q/%q/%q, want gen2/gen1/gen0", *list[0].Desc, *list[1].Desc, *list[2].Desc)
	}

	// Restoring index 0 (newest) should reproduce generation 2 exactly.
	if err := mgr.RestoreBackup(ctx, 0, nil); err != nil {
		t.Fatalf("RestoreBackup(0): %v", err)
	}
	got, err := os.ReadFile(filepath.Join(world, "level.dat"))
	if err != nil {
		t.Fatalf("read level.dat: %v", err)
	}
	if string(got) != "level-gen2" {
		t.Errorf("level.dat after RestoreBackup(0) = %q, want %q", got, "level-gen2")
	}

	// Restoring index 2 (oldest) should reproduce generation 0 exactly.
	if err := mgr.RestoreBackup(ctx, 2, nil); err != nil {
		t.Fatalf("RestoreBackup(2): %v", err)
	}
	got, err = os.ReadFile(filepath.Join(world, "level.dat"))
	if err != nil {
		t.Fatalf("read level.dat: %v", err)
	}
	if string(got) != "level-gen0" {
		t.Errorf("level.dat after RestoreBackup(2) = %q, want %q", got, "level-gen0")
	}
	gotChunk := readChunk(t, filepath.Join(world, "region", "r.0.0.mca"), 0)
	wantChunk := buildNBT(map[string]int64{"LastUpdate": 1, "v": 0})
	if string(gotChunk) != string(wantChunk) {
		t.Errorf("chunk 0 after RestoreBackup(2) = %x, want %x", gotChunk, wantChunk)
	}

	// Restoring index 1 should reproduce generation 1.
	if err := mgr.RestoreBackup(ctx, 1, nil); err != nil {
		t.Fatalf("RestoreBackup(1): %v", err)
	}
	got, err = os.ReadFile(filepath.Join(world, "level.dat"))
	if err != nil {
		t.Fatalf("read level.dat: %v", err)
	}
	if string(got) != "level-gen0" {
		t.Errorf("level.dat after RestoreBackup(1) = %q, want %q (unchanged since gen0)", got, "level-gen0")
	}
}

// TestDeleteMiddleMerge checks that deleting the middle entry of a
// three-backup chain still lets the remaining endpoints restore correctly.
func TestDeleteMiddleMerge(t *testing.T) {
	ctx := context.Background()
	world := t.TempDir()
	backupDir := t.TempDir()
	mgr := New(world, backupDir, nil)
	if err := mgr.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	writeFile(t, filepath.Join(world, "level.dat"), "gen0")
	if _, err := mgr.CreateBackup(ctx, "gen0", nil); err != nil {
		t.Fatalf("CreateBackup gen0: %v", err)
	}
	writeFile(t, filepath.Join(world, "level.dat"), "gen1")
	if _, err := mgr.CreateBackup(ctx, "gen1", nil); err != nil {
		t.Fatalf("CreateBackup gen1: %v", err)
	}
	writeFile(t, filepath.Join(world, "level.dat"), "gen2")
	if _, err := mgr.CreateBackup(ctx, "gen2", nil); err != nil {
		t.Fatalf("CreateBackup gen2: %v", err)
	}

	// Deleting index 1 ("gen1") keeps the entry at index 1's archive slot
	// but transplants index 2's ("gen0") timestamp/desc onto it, and drops
	// gen0's own slot: gen1's id survives, but gen1's snapshot is what
	// disappears from the chain, matching delete_backup's
	// data_chosen/data_older convention.
	if err := mgr.DeleteBackup(ctx, 1, nil); err != nil {
		t.Fatalf("DeleteBackup(1): %v", err)
	}

	list, err := mgr.ListBackups()
	if err != nil {
		t.Fatalf("ListBackups: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len(ListBackups()) = %d, want 2", len(list))
	}
	if *list[0].Desc != "gen2" {
		t.Errorf("list[0].Desc = %q, want %q (untouched)", *list[0].Desc, "gen2")
	}
	if *list[1].Desc != "gen0" {
		t.Errorf("list[1].Desc = %q, want %q (merged slot adopts older's desc)", *list[1].Desc, "gen0")
	}

	// index 0 still reproduces gen2.
	if err := mgr.RestoreBackup(ctx, 0, nil); err != nil {
		t.Fatalf("RestoreBackup(0): %v", err)
	}
	got, err := os.ReadFile(filepath.Join(world, "level.dat"))
	if err != nil {
		t.Fatalf("read level.dat: %v", err)
	}
	if string(got) != "gen2" {
		t.Errorf("level.dat after RestoreBackup(0) = %q, want %q", got, "gen2")
	}

	// The merged slot (now index 1) must still reconstruct gen0's content.
	if err := mgr.RestoreBackup(ctx, 1, nil); err != nil {
		t.Fatalf("RestoreBackup(1): %v", err)
	}
	got, err = os.ReadFile(filepath.Join(world, "level.dat"))
	if err != nil {
		t.Fatalf("read level.dat: %v", err)
	}
	if string(got) != "gen0" {
		t.Errorf("level.dat after RestoreBackup(1) = %q, want %q", got, "gen0")
	}
}
