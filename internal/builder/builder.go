// Package builder implements the Builder component from spec.md's module
// table ("walks a source directory, compresses each file, and emits a
// fresh archive"): the write-side counterpart of internal/archive's
// read-side mount/extract pipeline.
//
// Grounded on the teacher's cp/copyTo in internal/build/build.go: walk the
// source tree, read every regular file, compress it, and hand the result
// to a writer — here internal/pck's encoders instead of a squashfs.Writer.
package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/renameio"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/crucifix86/WinPCK-Linux/internal/pck"
	"github.com/crucifix86/WinPCK-Linux/internal/tracelog"
)

// buildWorkers bounds how many source files are read and compressed
// concurrently, the same fan-out shape as internal/archive's extract path.
const buildWorkers = 8

// Options configures a build.
type Options struct {
	AlgorithmID uint32
	Overrides   pck.Overrides
	Level       pck.CompressionLevel
	Description string
	Layout      pck.Layout // defaults to pck.DefaultLayouts[0] (newest) if zero
}

// Stats summarizes a completed build.
type Stats struct {
	FileCount    int
	DataAreaSize uint64
	FileSize     int64
}

type sourceFile struct {
	relPath string
	absPath string
}

// BuildFromDirectory walks srcDir, compresses every regular file it finds,
// and atomically publishes a fresh archive at destPath (spec §4.11,
// exercised by the CLI's "create" subcommand). ctx is checked between
// files, like internal/archive's extract_all.
func BuildFromDirectory(ctx context.Context, srcDir, destPath string, opts Options) (Stats, error) {
	layout := opts.Layout
	if layout.Width == 0 {
		layout = pck.DefaultLayouts[0]
	}
	k := pck.DeriveKeys(opts.AlgorithmID, opts.Overrides)

	files, folders, err := scan(srcDir)
	if err != nil {
		tracelog.Errorf("create %s: %v", destPath, err)
		return Stats{}, xerrors.Errorf("scanning %s: %w", srcDir, err)
	}

	stored, err := compressAll(ctx, files, opts.Level)
	if err != nil {
		tracelog.Errorf("create %s: %v", destPath, err)
		return Stats{}, xerrors.Errorf("compressing %s: %w", srcDir, err)
	}

	entries := make([]pck.Entry, 0, len(files)+len(folders)+1)
	for _, f := range folders {
		entries = append(entries, pck.Entry{Path: f, Kind: pck.KindFolder, Flags: pck.FlagsFor(pck.KindFolder, layout, k.C)})
	}

	var payload []byte
	offset := uint64(32)
	for i, sf := range files {
		sb := stored[i]
		entries = append(entries, pck.Entry{
			Path:       sf.relPath,
			Offset:     offset,
			ClearSize:  sb.clearSize,
			CipherSize: sb.cipherSize,
			Kind:       pck.KindFile,
			Flags:      pck.FlagsFor(pck.KindFile, layout, k.C),
		})
		payload = append(payload, sb.data...)
		offset += uint64(len(sb.data))
	}
	entries = append(entries, pck.Entry{Kind: pck.KindTail, Flags: pck.FlagsFor(pck.KindTail, layout, k.C)})

	indexBlock, err := pck.WriteIndexTable(entries, layout, k)
	if err != nil {
		tracelog.Errorf("create %s: %v", destPath, err)
		return Stats{}, xerrors.Errorf("encoding index for %s: %w", destPath, err)
	}

	header := pck.Header{
		DataAreaSize:  offset - 32,
		LayoutVersion: 0,
		Description:   opts.Description,
	}
	footer := pck.Footer{
		FileCount:      uint32(len(entries) - 1),
		IndexOffset:    offset,
		IndexBlockSize: uint32(len(indexBlock)),
	}

	f, err := renameio.TempFile("", destPath)
	if err != nil {
		tracelog.Errorf("create %s: %v", destPath, err)
		return Stats{}, xerrors.Errorf("creating temp file for %s: %w", destPath, err)
	}
	defer f.Cleanup()

	if _, err := f.Write(pck.WriteHeader(header)); err != nil {
		return Stats{}, xerrors.Errorf("writing header: %w", err)
	}
	if _, err := f.Write(payload); err != nil {
		return Stats{}, xerrors.Errorf("writing payload: %w", err)
	}
	if _, err := f.Write(indexBlock); err != nil {
		return Stats{}, xerrors.Errorf("writing index: %w", err)
	}
	if _, err := f.Write(pck.EncodeFooter(footer, k, pck.DefaultSentinel)); err != nil {
		return Stats{}, xerrors.Errorf("writing footer: %w", err)
	}
	if err := f.CloseAtomicallyReplace(); err != nil {
		tracelog.Errorf("create %s: %v", destPath, err)
		return Stats{}, xerrors.Errorf("publishing %s: %w", destPath, err)
	}

	fileSize := int64(offset) + int64(len(indexBlock)) + footerPublishedSize
	tracelog.Infof("created %s: %d files, %d bytes of payload", destPath, len(files), header.DataAreaSize)
	return Stats{
		FileCount:    len(files),
		DataAreaSize: header.DataAreaSize,
		FileSize:     fileSize,
	}, nil
}

// footerPublishedSize mirrors pck's unexported footer size; duplicated
// here since Stats.FileSize is cosmetic and not worth exporting the
// constant for.
const footerPublishedSize = 32

// scan walks srcDir and returns every regular file (relative, '/'-joined
// path) and every directory beneath srcDir, empty ones included, both
// sorted for deterministic entry ordering.
func scan(srcDir string) (files []sourceFile, folders []string, err error) {
	folderSet := map[string]bool{}
	err = filepath.Walk(srcDir, func(p string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p == srcDir {
			return nil
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if info.IsDir() {
			folderSet[rel] = true
			return nil
		}
		if !info.Mode().IsRegular() {
			tracelog.Warnf("create: skipping non-regular file %s", p)
			return nil
		}
		files = append(files, sourceFile{relPath: rel, absPath: p})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].relPath < files[j].relPath })
	for f := range folderSet {
		folders = append(folders, f)
	}
	sort.Strings(folders)
	return files, folders, nil
}

type storedFile struct {
	data       []byte
	clearSize  uint64
	cipherSize uint64
}

// compressAll reads and compresses every file with bounded concurrency
// (the same errgroup-fan-out shape internal/archive uses for extraction),
// preserving input order in the result slice.
func compressAll(ctx context.Context, files []sourceFile, level pck.CompressionLevel) ([]storedFile, error) {
	out := make([]storedFile, len(files))
	eg, egCtx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, buildWorkers)

	for i, sf := range files {
		i, sf := i, sf
		select {
		case <-egCtx.Done():
			return nil, egCtx.Err()
		default:
		}
		sem <- struct{}{}
		eg.Go(func() error {
			defer func() { <-sem }()
			data, err := os.ReadFile(sf.absPath)
			if err != nil {
				return fmt.Errorf("reading %s: %w", sf.absPath, err)
			}
			stored, clearSize, cipherSize := pck.WritePayload(data, level)
			out[i] = storedFile{data: stored, clearSize: clearSize, cipherSize: cipherSize}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
