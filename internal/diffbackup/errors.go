package diffbackup

import (
	"errors"

	"github.com/mcbackup/mcbackup/internal/metadata"
)

// ErrIndexOutOfRange is returned when a backup index refers to an entry
// that does not exist in the chain.
var ErrIndexOutOfRange = errors.New("diffbackup: backup index out of range")

// ErrMetadataMissing re-exports metadata.ErrMetadataMissing so callers
// working solely against this package need not import internal/metadata
// to recognize it.
var ErrMetadataMissing = metadata.ErrMetadataMissing
