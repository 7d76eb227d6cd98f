package archive

import (
	"context"
	"os"

	"golang.org/x/xerrors"

	"github.com/crucifix86/WinPCK-Linux/internal/mmapfile"
	"github.com/crucifix86/WinPCK-Linux/internal/mutation"
	"github.com/crucifix86/WinPCK-Linux/internal/pck"
	"github.com/crucifix86/WinPCK-Linux/internal/tracelog"
)

// checkMutable validates the preconditions spec.md §4.9 places on
// add/replace/remove: the session must be mounted, idle, and on a layout
// that supports in-place updates.
func (s *Session) checkMutable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy.Load() {
		return &BusyError{}
	}
	if s.state != StateMounted {
		return &NotMountedError{}
	}
	if !s.layout.SupportsUpdate {
		return &UnsupportedError{Layout: s.layout.Name}
	}
	return nil
}

// ensureEngine lazily remaps the file read/write and stages a mutation
// engine the first time this session is mutated. Must be called with
// s.mu held.
func (s *Session) ensureEngine() error {
	if s.eng != nil {
		return nil
	}
	if !s.writable {
		if err := s.file.Close(); err != nil {
			return err
		}
		f, err := mmapfile.Open(s.path, true)
		if err != nil {
			return err
		}
		s.file = f
		s.writable = true
	}
	s.eng = mutation.Open(s.file, s.keys, s.sentinel, s.layout, s.header, s.footer, s.entries)
	return nil
}

// commitLocked finalizes the staged mutation and refreshes the session's
// entry list and tree from it. Must be called with s.mu held.
func (s *Session) commitLocked() error {
	header, footer, err := s.eng.Commit()
	if err != nil {
		return err
	}
	nonTail := s.eng.Entries()
	tree, err := pck.BuildTree(nonTail)
	if err != nil {
		return err
	}
	full := append(append([]pck.Entry(nil), nonTail...), pck.Entry{Kind: pck.KindTail, Flags: pck.FlagsFor(pck.KindTail, s.layout, s.keys.C)})

	s.header, s.footer, s.entries, s.tree = header, footer, full, tree
	return nil
}

// Add stages a new archive entry read from srcPath and commits it
// (spec.md §4.9 add, delegating to the mutation engine's Append).
func (s *Session) Add(srcPath, archivePath string, level pck.CompressionLevel) (*TaskHandle, error) {
	if err := s.checkMutable(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return nil, xerrors.Errorf("add %s: %w", archivePath, err)
	}
	return s.runTask(1, func(ctx context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.state = StateMutating
		defer func() { s.state = StateMounted }()

		if err := s.ensureEngine(); err != nil {
			return err
		}
		if err := s.eng.Append(archivePath, data, level); err != nil {
			tracelog.Errorf("add %s: %v", archivePath, err)
			s.eng.Abort()
			return err
		}
		if err := s.commitLocked(); err != nil {
			tracelog.Errorf("add %s: commit: %v", archivePath, err)
			return err
		}
		s.current.Store(1)
		tracelog.Infof("added %s from %s", archivePath, srcPath)
		return nil
	})
}

// Replace stages new content for archivePath from srcPath and commits it
// (spec.md §4.9 replace, delegating to the mutation engine's Replace).
func (s *Session) Replace(archivePath, srcPath string, level pck.CompressionLevel) (*TaskHandle, error) {
	if err := s.checkMutable(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return nil, xerrors.Errorf("replace %s: %w", archivePath, err)
	}
	return s.runTask(1, func(ctx context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.state = StateMutating
		defer func() { s.state = StateMounted }()

		if err := s.ensureEngine(); err != nil {
			return err
		}
		if err := s.eng.Replace(archivePath, data, level); err != nil {
			tracelog.Errorf("replace %s: %v", archivePath, err)
			s.eng.Abort()
			return err
		}
		if err := s.commitLocked(); err != nil {
			tracelog.Errorf("replace %s: commit: %v", archivePath, err)
			return err
		}
		s.current.Store(1)
		tracelog.Infof("replaced %s from %s", archivePath, srcPath)
		return nil
	})
}

// Remove stages deletion of archivePath and commits it (spec.md §4.9
// remove, delegating to the mutation engine's Remove).
func (s *Session) Remove(archivePath string) error {
	if err := s.checkMutable(); err != nil {
		return err
	}
	h, err := s.runTask(1, func(ctx context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.state = StateMutating
		defer func() { s.state = StateMounted }()

		if err := s.ensureEngine(); err != nil {
			return err
		}
		if err := s.eng.Remove(archivePath); err != nil {
			tracelog.Errorf("remove %s: %v", archivePath, err)
			s.eng.Abort()
			return err
		}
		if err := s.commitLocked(); err != nil {
			tracelog.Errorf("remove %s: commit: %v", archivePath, err)
			return err
		}
		s.current.Store(1)
		tracelog.Infof("removed %s", archivePath)
		return nil
	})
	if err != nil {
		return err
	}
	return h.Wait()
}
