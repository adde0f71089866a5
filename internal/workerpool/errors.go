package workerpool

import (
	"strings"

	"golang.org/x/xerrors"
)

// AggregateError wraps every error observed by a Pool during one Wait
// cycle. It implements Unwrap() []error so errors.Is/As can reach any
// individual underlying error.
type AggregateError struct {
	Errs []error
}

func (e *AggregateError) Error() string {
	if len(e.Errs) == 1 {
		return e.Errs[0].Error()
	}
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return xerrors.Errorf("%d task(s) failed: %s", len(e.Errs), strings.Join(msgs, "; ")).Error()
}

func (e *AggregateError) Unwrap() []error { return e.Errs }
