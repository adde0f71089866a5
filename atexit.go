package mcbackup

import (
	"sync"
	"sync/atomic"
)

// atExit collects cleanup callbacks registered by in-flight backup
// operations (temp directories, staged archives) so that RunAtExit can
// remove them if the process is interrupted mid-operation.
var atExit struct {
	sync.Mutex
	fns    []func() error
	closed uint32
}

// RegisterAtExit registers fn to run when RunAtExit is called, e.g. to
// remove a temporary extraction directory left behind by a cancelled
// create_backup or delete_backup.
func RegisterAtExit(fn func() error) {
	if atomic.LoadUint32(&atExit.closed) != 0 {
		panic("BUG: RegisterAtExit must not be called from an atExit func")
	}
	atExit.Lock()
	defer atExit.Unlock()
	atExit.fns = append(atExit.fns, fn)
}

// RunAtExit runs every registered cleanup callback in registration order,
// stopping at the first error.
func RunAtExit() error {
	atomic.StoreUint32(&atExit.closed, 1)
	for _, fn := range atExit.fns {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}
