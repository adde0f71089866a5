package mcbackup

import (
	"strings"

	"github.com/google/uuid"
)

// ArchiveName returns the on-disk file name for the backup archive
// identified by id, e.g. "3fa85f64-5717-4562-b3fc-2c963f66afa6.tar.gz".
func ArchiveName(id uuid.UUID) string {
	return id.String() + ".tar.gz"
}

// ParseArchiveName extracts the backup id from an archive file name
// produced by ArchiveName. It returns false if name does not have the
// ".tar.gz" suffix or its stem is not a valid UUID.
func ParseArchiveName(name string) (uuid.UUID, bool) {
	const suffix = ".tar.gz"
	if !strings.HasSuffix(name, suffix) {
		return uuid.UUID{}, false
	}
	stem := strings.TrimSuffix(name, suffix)
	id, err := uuid.Parse(stem)
	if err != nil {
		return uuid.UUID{}, false
	}
	return id, true
}
