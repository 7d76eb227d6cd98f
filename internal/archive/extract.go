package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/crucifix86/WinPCK-Linux/internal/pck"
	"github.com/crucifix86/WinPCK-Linux/internal/tracelog"
)

// extractWorkers bounds how many files are read and written concurrently
// during ExtractAll/Extract, mirroring the teacher's errgroup-based
// per-package fan-out in internal/install.Packages.
const extractWorkers = 8

// Extract writes node (a file or, recursively, a folder) to destDir and
// returns a task handle; progress and cancellation follow spec.md §5.
func (s *Session) Extract(node int, destDir string) (*TaskHandle, error) {
	s.mu.Lock()
	if s.state != StateMounted {
		s.mu.Unlock()
		return nil, &NotMountedError{}
	}
	files := s.collectFiles(node)
	s.mu.Unlock()

	return s.runTask(int64(len(files)), func(ctx context.Context) error {
		return s.extractFiles(ctx, files, destDir)
	})
}

// ExtractAll writes the whole tree to destDir.
func (s *Session) ExtractAll(destDir string) (*TaskHandle, error) {
	s.mu.Lock()
	if s.state != StateMounted {
		s.mu.Unlock()
		return nil, &NotMountedError{}
	}
	files := s.collectFiles(s.tree.Root)
	s.mu.Unlock()

	return s.runTask(int64(len(files)), func(ctx context.Context) error {
		return s.extractFiles(ctx, files, destDir)
	})
}

type extractJob struct {
	path  string
	entry pck.Entry
}

// collectFiles walks the tree under node and returns every file with its
// decoded entry. Must be called with s.mu held.
func (s *Session) collectFiles(node int) []extractJob {
	var jobs []extractJob
	var walk func(n int)
	walk = func(n int) {
		nd := s.tree.Nodes[n]
		if nd.Kind == pck.KindFile {
			jobs = append(jobs, extractJob{path: s.tree.Path(n), entry: s.entries[nd.EntryIndex]})
			return
		}
		for _, c := range nd.Children {
			walk(c)
		}
	}
	walk(node)
	return jobs
}

// extractFiles runs jobs with bounded concurrency, checking for
// cancellation between files (spec.md §5: "mid-file work is not
// interrupted"). Per-file errors are logged and counted, never fatal to
// the batch (spec.md §7).
func (s *Session) extractFiles(ctx context.Context, jobs []extractJob, destDir string) error {
	eg, egCtx := errgroup.WithContext(context.Background()) // per-file errors never abort the batch
	sem := make(chan struct{}, extractWorkers)
	var failed atomic.Int64

	for _, job := range jobs {
		job := job
		select {
		case <-ctx.Done():
			tracelog.Warnf("extract_all %s: cancelled with %d/%d files remaining", s.path, len(jobs)-int(s.current.Load()), len(jobs))
			return &CancelledError{}
		default:
		}

		sem <- struct{}{}
		eg.Go(func() error {
			defer func() { <-sem }()
			if err := s.extractOne(egCtx, job, destDir); err != nil {
				tracelog.Errorf("extract %s: %v", job.path, err)
				failed.Add(1)
			}
			s.current.Add(1)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	if n := failed.Load(); n > 0 {
		return &PartialFailureError{FailedFiles: n}
	}
	return nil
}

func (s *Session) extractOne(ctx context.Context, job extractJob, destDir string) error {
	data, err := pck.ReadPayload(s.file, job.entry)
	if err != nil {
		return err
	}
	dst := filepath.Join(destDir, filepath.FromSlash(job.path))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

// CancelledError is returned when a background operation observes a
// cancelled context at a per-file boundary.
type CancelledError struct{}

func (CancelledError) Error() string { return "archive: operation cancelled" }

// PartialFailureError is returned when an extract_all/extract batch
// completes but one or more files failed (spec.md §7: "the task completes
// with a non-zero failure count").
type PartialFailureError struct{ FailedFiles int64 }

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("archive: %d file(s) failed to extract", e.FailedFiles)
}
