// Package capture mirrors ambient output into the log store without taking it
// away from its original destination.
package capture

import (
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/loykin/reflexive/internal/logstore"
)

// Appender receives captured text. *logstore.Store satisfies it.
type Appender interface {
	Append(kind logstore.Kind, message string, meta map[string]any)
}

// Writer passes every write through to dst and appends non-blank text to the
// sink under kind, with trailing whitespace removed.
type Writer struct {
	dst  io.Writer
	kind logstore.Kind
	sink Appender
}

// NewWriter returns a pass-through writer.
func NewWriter(dst io.Writer, kind logstore.Kind, sink Appender) *Writer {
	return &Writer{dst: dst, kind: kind, sink: sink}
}

func (w *Writer) Write(p []byte) (int, error) {
	record(w.sink, w.kind, p)
	if w.dst == nil {
		return len(p), nil
	}
	return w.dst.Write(p)
}

func record(sink Appender, kind logstore.Kind, p []byte) {
	text := strings.TrimRightFunc(string(p), unicode.IsSpace)
	if strings.TrimSpace(text) == "" {
		return
	}
	sink.Append(kind, text, nil)
}

// ErrInstalled is returned by InstallStdio while a redirection is active.
var ErrInstalled = errors.New("stdio capture already installed")

var stdioActive atomic.Bool

// Stdio is an active redirection of os.Stdout and os.Stderr.
type Stdio struct {
	streams []*stream
	once    sync.Once
}

type stream struct {
	target **os.File
	orig   *os.File
	w      *os.File
	done   chan struct{}
}

// InstallStdio replaces os.Stdout and os.Stderr with pipes whose contents are
// forwarded to the original files and recorded as stdout and stderr entries.
// At most one redirection is active at a time; call Restore to end it.
func InstallStdio(sink Appender) (*Stdio, error) {
	if !stdioActive.CompareAndSwap(false, true) {
		return nil, ErrInstalled
	}
	s := &Stdio{}
	for _, t := range []struct {
		target **os.File
		kind   logstore.Kind
	}{{&os.Stdout, logstore.KindStdout}, {&os.Stderr, logstore.KindStderr}} {
		st, err := redirect(t.target, t.kind, sink)
		if err != nil {
			s.Restore()
			return nil, err
		}
		s.streams = append(s.streams, st)
	}
	return s, nil
}

// Restore puts the original files back and returns once everything written
// to the pipes has reached them. Later writes through a retained pipe file
// fail. Safe to call more than once and on a nil Stdio.
func (s *Stdio) Restore() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		for i := len(s.streams) - 1; i >= 0; i-- {
			s.streams[i].restore()
		}
		stdioActive.Store(false)
	})
}

// redirect swaps *target for the write end of a pipe and copies everything
// read from it to the original file, one write at a time.
func redirect(target **os.File, kind logstore.Kind, sink Appender) (*stream, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	st := &stream{target: target, orig: *target, w: w, done: make(chan struct{})}
	*target = w
	go func() {
		defer close(st.done)
		defer func() { _ = r.Close() }()
		pump(r, st.orig, kind, sink)
	}()
	return st, nil
}

// restore closes the write end, which ends the pump at EOF after it drains.
func (st *stream) restore() {
	*st.target = st.orig
	_ = st.w.Close()
	<-st.done
}

func pump(r io.Reader, orig io.Writer, kind logstore.Kind, sink Appender) {
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			record(sink, kind, buf[:n])
			_, _ = orig.Write(buf[:n])
		}
		if err != nil {
			return
		}
	}
}
