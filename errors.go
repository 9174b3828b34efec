package memrep

import "errors"

// ErrAllocFailed wraps arena allocation failures surfaced through Allocate.
// The write that hit it cannot proceed against this table; the engine
// surfaces the failure rather than retrying here.
var ErrAllocFailed = errors.New("memrep: allocation failed")
