package archive

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCreateExtractRoundTrip(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "level.dat"), "level-data")
	writeFile(t, filepath.Join(src, "region", "r.0.0.mca"), "region-data")
	writeFile(t, filepath.Join(src, "datapacks", "pack.json"), "should be ignored")
	writeFile(t, filepath.Join(src, "session.lock"), "should be ignored")

	archivePath := filepath.Join(t.TempDir(), "world.tar.gz")
	if err := Create(archivePath, src); err != nil {
		t.Fatalf("Create: %v", err)
	}

	dest := t.TempDir()
	if err := Extract(archivePath, dest); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dest, "region", "r.0.0.mca"))
	if err != nil {
		t.Fatalf("read extracted region file: %v", err)
	}
	if string(got) != "region-data" {
		t.Errorf("region file content = %q, want %q", got, "region-data")
	}
	if _, err := os.Stat(filepath.Join(dest, "datapacks")); !os.IsNotExist(err) {
		t.Error("datapacks was not ignored by Create")
	}
	if _, err := os.Stat(filepath.Join(dest, "session.lock")); !os.IsNotExist(err) {
		t.Error("session.lock was not ignored by Create")
	}
}

func TestExtractPartialSkipsPaths(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "keep.txt"), "keep")
	writeFile(t, filepath.Join(src, "drop.txt"), "drop")

	archivePath := filepath.Join(t.TempDir(), "world.tar.gz")
	if err := Create(archivePath, src); err != nil {
		t.Fatalf("Create: %v", err)
	}

	dest := t.TempDir()
	skip := func(relPath string) bool { return relPath == "drop.txt" }
	if err := ExtractPartial(archivePath, dest, skip); err != nil {
		t.Fatalf("ExtractPartial: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "keep.txt")); err != nil {
		t.Errorf("keep.txt missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "drop.txt")); !os.IsNotExist(err) {
		t.Error("drop.txt was not skipped")
	}
}
