// Package metadata persists the ordered backup descriptor chain
// (backups.dat) in a compact self-describing binary encoding, with a
// backups.json sibling used as a human-readable fallback when the binary
// file is missing.
package metadata

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/renameio"
	"github.com/google/uuid"
	"github.com/mcbackup/mcbackup"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	datName  = "backups.dat"
	jsonName = "backups.json"
)

// ErrMetadataMissing is returned when neither backups.dat nor
// backups.json exists in the backup directory.
var ErrMetadataMissing = errors.New("metadata: neither backups.dat nor backups.json exists")

// BackupDescriptor is one entry of the backup chain, newest first.
// Unknown fields decoded by msgpack default to their zero value, so the
// on-disk schema can grow new fields without breaking older readers.
type BackupDescriptor struct {
	Timestamp  time.Time `msgpack:"timestamp" json:"timestamp"`
	ID         uuid.UUID `msgpack:"id" json:"id"`
	NotPresent []string  `msgpack:"not_present" json:"not_present"`
	Desc       *string   `msgpack:"desc,omitempty" json:"desc,omitempty"`
}

// ArchiveName returns the on-disk archive file name for this descriptor.
func (d BackupDescriptor) ArchiveName() string {
	return mcbackup.ArchiveName(d.ID)
}

// NotPresentSet returns NotPresent as a set for membership tests.
func (d BackupDescriptor) NotPresentSet() map[string]struct{} {
	set := make(map[string]struct{}, len(d.NotPresent))
	for _, p := range d.NotPresent {
		set[p] = struct{}{}
	}
	return set
}

// SetNotPresentSet replaces NotPresent from a set, in sorted order so the
// encoding is deterministic.
func (d *BackupDescriptor) SetNotPresentSet(set map[string]struct{}) {
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	d.NotPresent = out
}

// Load reads the descriptor chain from dir, preferring backups.dat and
// falling back to backups.json if the binary file is absent.
func Load(dir string) ([]BackupDescriptor, error) {
	data, err := os.ReadFile(filepath.Join(dir, datName))
	if err == nil {
		var list []BackupDescriptor
		if uerr := msgpack.Unmarshal(data, &list); uerr != nil {
			return nil, uerr
		}
		return list, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}
	jdata, jerr := os.ReadFile(filepath.Join(dir, jsonName))
	if jerr != nil {
		if os.IsNotExist(jerr) {
			return nil, ErrMetadataMissing
		}
		return nil, jerr
	}
	var list []BackupDescriptor
	if uerr := json.Unmarshal(jdata, &list); uerr != nil {
		return nil, uerr
	}
	return list, nil
}

// Store atomically replaces backups.dat with the encoding of list.
func Store(dir string, list []BackupDescriptor) error {
	data, err := msgpack.Marshal(list)
	if err != nil {
		return err
	}
	return renameio.WriteFile(filepath.Join(dir, datName), data, 0o644)
}

// WriteJSONMirror atomically (re)writes the human-readable backups.json
// fallback from list. Callers may invoke it after Store to keep the
// fallback current, though it is not required for correctness.
func WriteJSONMirror(dir string, list []BackupDescriptor) error {
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(filepath.Join(dir, jsonName), data, 0o644)
}
