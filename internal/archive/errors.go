package archive

import "fmt"

// BusyError is returned by Unmount, by any mutating operation, and by any
// call that would start a second background task, while the session has a
// background operation in flight (spec.md §5: "mount, mutation, and
// unmount are mutually exclusive with any background work").
type BusyError struct{}

func (BusyError) Error() string { return "archive: session has a background operation in progress" }

// NotMountedError is returned by any operation that requires a mounted
// session when the session is Closed.
type NotMountedError struct{}

func (NotMountedError) Error() string { return "archive: session is not mounted" }

// UnsupportedError is returned when add/replace/remove is called on a
// session whose detected layout does not support in-place index rewrites.
type UnsupportedError struct{ Layout string }

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("archive: layout %q does not support update", e.Layout)
}

// NotFoundError is returned by lookup-based operations for a missing path.
type NotFoundError struct{ Path string }

func (e *NotFoundError) Error() string { return fmt.Sprintf("archive: no such path %q", e.Path) }
