// Package archive implements the archive session from spec.md §4.9: it
// owns the memory map, key schedule, detected layout, entry list and tree
// for one mounted PCK file, and coordinates mount/list/extract/mutate/
// unmount the way spec.md §5 requires — a single-threaded cooperative core
// plus at most one background long operation at a time.
package archive

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/xerrors"

	"github.com/crucifix86/WinPCK-Linux/internal/mmapfile"
	"github.com/crucifix86/WinPCK-Linux/internal/mutation"
	"github.com/crucifix86/WinPCK-Linux/internal/pck"
	"github.com/crucifix86/WinPCK-Linux/internal/tracelog"
)

// State is one of the archive session's lifecycle states (spec.md §4.9:
// Closed → Mounting → Mounted → Mutating → Mounted → Closed).
type State int

const (
	StateClosed State = iota
	StateMounting
	StateMounted
	StateMutating
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateMounting:
		return "mounting"
	case StateMounted:
		return "mounted"
	case StateMutating:
		return "mutating"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session is a mounted PCK archive. The zero value is not usable; create
// one with Mount. A Session is not safe for concurrent use by multiple
// goroutines beyond the background-worker/caller pairing described in
// spec.md §5 — the core itself is not re-entrant.
type Session struct {
	mu sync.Mutex // guards every field below except the atomics

	path     string
	file     *mmapfile.File
	writable bool

	keys     pck.Keys
	sentinel [2]uint32
	header   pck.Header
	footer   pck.Footer
	layout   pck.Layout
	entries  []pck.Entry
	tree     *pck.Tree

	state State
	eng   *mutation.Engine

	current atomic.Int64
	total   atomic.Int64
	busy    atomic.Bool
}

// Mount opens path read-only and runs the format discovery pipeline
// (spec.md §4.2–§4.8). On any error the underlying file is closed and no
// session is returned, per spec.md §4.9: "failure leaves the session
// Closed with the underlying file closed and no side effects."
func Mount(path string, algorithmID uint32, overrides pck.Overrides) (*Session, error) {
	f, err := mmapfile.Open(path, false)
	if err != nil {
		tracelog.Errorf("mount %s: %v", path, err)
		return nil, xerrors.Errorf("mount %s: %w", path, err)
	}

	s := &Session{path: path, file: f, state: StateMounting}
	if err := s.probe(algorithmID, overrides); err != nil {
		f.Close()
		tracelog.Errorf("mount %s: %v", path, err)
		return nil, xerrors.Errorf("mount %s: %w", path, err)
	}
	s.state = StateMounted
	tracelog.Infof("mounted %s: version=%s files=%d", path, s.layout.Name, s.footer.FileCount)
	return s, nil
}

func (s *Session) probe(algorithmID uint32, overrides pck.Overrides) error {
	s.keys = pck.DeriveKeys(algorithmID, overrides)
	s.sentinel = pck.DefaultSentinel

	header, err := pck.ReadHeader(s.file)
	if err != nil {
		return err
	}
	footer, err := pck.ReadFooter(s.file, s.keys, s.sentinel)
	if err != nil {
		return err
	}
	if err := pck.CheckHeaderFooter(header, footer); err != nil {
		return err
	}
	if err := pck.CheckFileSize(footer, s.file.Size()); err != nil {
		return err
	}
	layout, entries, err := pck.DetectVersion(s.file, footer, s.keys, pck.DefaultLayouts)
	if err != nil {
		return err
	}
	tree, err := pck.BuildTree(entries)
	if err != nil {
		return err
	}

	s.header, s.footer, s.layout, s.entries, s.tree = header, footer, layout, entries, tree
	return nil
}

// Unmount flushes any pending commit, closes the map, and transitions to
// Closed. It fails with BusyError if a background operation is running.
func (s *Session) Unmount() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy.Load() {
		return &BusyError{}
	}
	if s.state == StateClosed {
		return nil
	}
	if s.eng != nil {
		if _, _, err := s.eng.Commit(); err != nil {
			return xerrors.Errorf("unmount %s: %w", s.path, err)
		}
		s.eng = nil
	}
	err := s.file.Close()
	s.state = StateClosed
	tracelog.Infof("unmounted %s", s.path)
	return err
}

// IsValid reports whether the session is currently mounted.
func (s *Session) IsValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateMounted || s.state == StateMutating
}

// VersionName returns the detected layout's name (e.g. "v3").
func (s *Session) VersionName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layout.Name
}

// FileCount returns the number of non-tail entries.
func (s *Session) FileCount() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.footer.FileCount
}

// FileSize returns the on-disk size of the mapped archive.
func (s *Session) FileSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Size()
}

// DataAreaSize returns the header's declared payload-region size.
func (s *Session) DataAreaSize() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.header.DataAreaSize
}

// RedundancySize returns the mutation engine's dead-space statistic, or 0
// if no mutation has been staged this session.
func (s *Session) RedundancySize() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eng == nil {
		return 0
	}
	return s.eng.Redundancy()
}

// SupportsUpdate reports whether the detected layout allows in-place index
// rewrites (spec.md §4.9).
func (s *Session) SupportsUpdate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layout.SupportsUpdate
}

// Root returns the tree's root node index.
func (s *Session) Root() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Root
}

// Lookup resolves a '/'-separated path to a node index, or false if it
// does not exist.
func (s *Session) Lookup(path string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.tree.Lookup(path)
	return n, n >= 0
}

// List invokes cb for every child of node, or every descendant when
// recursive is true, and returns the number of nodes visited.
func (s *Session) List(node int, recursive bool, cb func(nodeIdx int, path string, kind pck.Kind)) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	var walk func(n int)
	walk = func(n int) {
		for _, c := range s.tree.Nodes[n].Children {
			cb(c, s.tree.Path(c), s.tree.Nodes[c].Kind)
			count++
			if recursive && s.tree.Nodes[c].Kind == pck.KindFolder {
				walk(c)
			}
		}
	}
	walk(node)
	return count
}

// ReadFile reads the payload for the file node at index n.
func (s *Session) ReadFile(node int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if node < 0 || node >= len(s.tree.Nodes) {
		return nil, &NotFoundError{Path: "<invalid node>"}
	}
	n := s.tree.Nodes[node]
	if n.Kind != pck.KindFile {
		return nil, fmt.Errorf("archive: node %q is not a file", s.tree.Path(node))
	}
	e := s.entries[n.EntryIndex]
	return pck.ReadPayload(s.file, e)
}

// TaskHandle represents one asynchronous background operation. Callers
// poll Busy()/Progress() on the originating Session, or block with Wait.
type TaskHandle struct {
	done   chan struct{}
	err    error
	cancel context.CancelFunc
}

// Wait blocks until the task finishes and returns its error, if any.
func (h *TaskHandle) Wait() error {
	<-h.done
	return h.err
}

// Cancel requests cooperative cancellation; it does not block.
func (h *TaskHandle) Cancel() { h.cancel() }

// Busy reports whether a background operation is currently running.
func (s *Session) Busy() bool { return s.busy.Load() }

// Progress returns the current/total counters for the running background
// operation (spec.md §5: "written only by the worker and read by the
// caller... reset at its start").
func (s *Session) Progress() (current, total int64) {
	return s.current.Load(), s.total.Load()
}

// runTask starts fn in a new goroutine as the session's single background
// operation, failing with BusyError if one is already running.
func (s *Session) runTask(total int64, fn func(ctx context.Context) error) (*TaskHandle, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, &BusyError{}
	}
	s.current.Store(0)
	s.total.Store(total)

	ctx, cancel := context.WithCancel(context.Background())
	h := &TaskHandle{done: make(chan struct{}), cancel: cancel}
	go func() {
		defer close(h.done)
		defer s.busy.Store(false)
		defer cancel()
		h.err = fn(ctx)
	}()
	return h, nil
}
