// Package tracelog is the process-wide logging callback spec.md §1/§6
// describes: a single registered sink taking a severity character and a
// message, invoked from any worker goroutine. It also offers an optional
// structured event trace, generalized from the teacher's internal/trace
// package (same Enable(prefix)-under-os.TempDir convenience constructor),
// with old trace segments compressed in the background instead of kept
// around uncompressed.
package tracelog

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/pgzip"
)

// Severity characters, matching spec.md §6's logging callback signature
// exactly: (severity: 'd'|'i'|'w'|'e', message) -> void.
const (
	Debug = 'd'
	Info  = 'i'
	Warn  = 'w'
	Error = 'e'
)

// Sink is the shape every log callback must have.
type Sink func(severity byte, message string)

var (
	mu       sync.Mutex
	sink     Sink = defaultSink
	traceW   io.WriteCloser
	tracePfx string
	traceSeq int
	traceLen int64
)

func defaultSink(severity byte, message string) {
	log.Printf("%c %s", severity, message)
}

// SetSink installs fn as the process-wide log callback. Passing nil
// restores the default, which writes to log.Default().
func SetSink(fn Sink) {
	mu.Lock()
	defer mu.Unlock()
	if fn == nil {
		fn = defaultSink
	}
	sink = fn
}

// Log formats message and delivers it to the registered sink, then records
// it in the structured trace if one is enabled.
func Log(severity byte, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	mu.Lock()
	s := sink
	mu.Unlock()
	s(severity, msg)
	recordEvent(severity, msg)
}

func Debugf(format string, args ...interface{}) { Log(Debug, format, args...) }
func Infof(format string, args ...interface{})  { Log(Info, format, args...) }
func Warnf(format string, args ...interface{})  { Log(Warn, format, args...) }
func Errorf(format string, args ...interface{}) { Log(Error, format, args...) }

// rotateThreshold bounds how large one uncompressed trace segment grows
// before it is rotated out and gzip-compressed in the background.
const rotateThreshold = 8 << 20

type event struct {
	Time     time.Time `json:"time"`
	Severity string    `json:"severity"`
	Message  string    `json:"message"`
}

// Enable turns on the structured trace, writing one JSON object per Log
// call into $TMPDIR/winpck.traces/prefix.$PID.0 (rotated segments continue
// as .1, .2, ...). Mirrors the teacher's
// trace.Enable convenience constructor.
func Enable(prefix string) error {
	dir := filepath.Join(os.TempDir(), "winpck.traces")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	pfx := filepath.Join(dir, fmt.Sprintf("%s.%d", prefix, os.Getpid()))
	path := fmt.Sprintf("%s.0", pfx)
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	traceW = f
	tracePfx = pfx
	traceSeq = 0
	traceLen = 0
	return nil
}

// Disable turns off the structured trace and closes the current segment.
func Disable() {
	mu.Lock()
	defer mu.Unlock()
	if traceW != nil {
		traceW.Close()
	}
	traceW = nil
	tracePfx = ""
}

func recordEvent(severity byte, msg string) {
	mu.Lock()
	defer mu.Unlock()
	if traceW == nil {
		return
	}
	line, err := json.Marshal(event{Time: time.Now(), Severity: string(severity), Message: msg})
	if err != nil {
		return
	}
	line = append(line, '\n')
	n, err := traceW.Write(line)
	if err != nil {
		return
	}
	traceLen += int64(n)
	if traceLen > rotateThreshold {
		rotateLocked()
	}
}

// rotateLocked must be called with mu held. It closes the current segment
// and compresses it with pgzip in the background, then opens a fresh one.
func rotateLocked() {
	old := traceW
	oldPath := fmt.Sprintf("%s.%d", tracePfx, traceSeq)
	traceSeq++
	newPath := fmt.Sprintf("%s.%d", tracePfx, traceSeq)

	f, err := os.Create(newPath)
	if err != nil {
		return
	}
	traceW = f
	traceLen = 0
	go compressSegment(old, oldPath)
}

func compressSegment(old io.Closer, path string) {
	old.Close()
	in, err := os.Open(path)
	if err != nil {
		return
	}
	defer in.Close()

	out, err := os.Create(path + ".gz")
	if err != nil {
		return
	}
	defer out.Close()

	gz := pgzip.NewWriter(out)
	if _, err := io.Copy(gz, in); err != nil {
		gz.Close()
		return
	}
	if err := gz.Close(); err != nil {
		return
	}
	os.Remove(path)
}
