package output

import (
	"bufio"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/anstrom/recon/internal/errors"
)

// Sink receives batches of results.
type Sink interface {
	Write(records []Record) error
	Close() error
}

// Open returns the sink for format writing to path, or to stdout when path
// is empty or "-".
func Open(format, path string) (Sink, error) {
	w := io.WriteCloser(nopCloser{os.Stdout})
	if path != "" && path != "-" {
		f, err := os.Create(path) //nolint:gosec // path comes from the operator
		if err != nil {
			return nil, fmt.Errorf("failed to create output file: %w", err)
		}
		w = f
	}

	switch format {
	case "", "text":
		return NewText(w), nil
	case "json":
		return NewJSON(w), nil
	default:
		_ = w.Close()
		return nil, errors.ErrConfigInvalid("output.format", format)
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// TextSink writes one tab separated line per record as it arrives.
type TextSink struct {
	mu  sync.Mutex
	w   io.WriteCloser
	buf *bufio.Writer
}

// NewText returns a TextSink writing to w. Close closes w.
func NewText(w io.WriteCloser) *TextSink {
	return &TextSink{w: w, buf: bufio.NewWriter(w)}
}

// Write writes "ip\tport\tstate" for every record and flushes.
func (s *TextSink) Write(records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range records {
		r := &records[i]
		if _, err := fmt.Fprintf(s.buf, "%s\t%d\t%s\n", r.Addr, r.Port, r.State); err != nil {
			return err
		}
	}
	return s.buf.Flush()
}

// Close flushes and closes the underlying writer.
func (s *TextSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.buf.Flush(); err != nil {
		_ = s.w.Close()
		return err
	}
	return s.w.Close()
}

// JSONSink collects records and writes a single object keyed by IP on Close.
type JSONSink struct {
	mu   sync.Mutex
	w    io.WriteCloser
	byIP map[string][]Record
}

// NewJSON returns a JSONSink writing to w.
func NewJSON(w io.WriteCloser) *JSONSink {
	return &JSONSink{w: w, byIP: make(map[string][]Record)}
}

func (s *JSONSink) Write(records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		ip := r.Addr.String()
		s.byIP[ip] = append(s.byIP[ip], r)
	}
	return nil
}

// Close writes the collected map with ports sorted per address.
func (s *JSONSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rs := range s.byIP {
		sort.Slice(rs, func(i, j int) bool { return rs[i].Port < rs[j].Port })
	}

	enc := json.NewEncoder(s.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.byIP); err != nil {
		_ = s.w.Close()
		return fmt.Errorf("failed to encode results: %w", err)
	}
	return s.w.Close()
}

type openOnly struct{ next Sink }

// OpenOnly drops every record that is not open before passing the batch on.
func OpenOnly(next Sink) Sink {
	return openOnly{next: next}
}

func (s openOnly) Write(records []Record) error {
	kept := make([]Record, 0, len(records))
	for _, r := range records {
		if r.IsOpen() {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return s.next.Write(kept)
}

func (s openOnly) Close() error { return s.next.Close() }

type tee []Sink

// Tee fans every batch out to all sinks. Errors are joined.
func Tee(sinks ...Sink) Sink {
	return tee(sinks)
}

func (t tee) Write(records []Record) error {
	var errs []error
	for _, s := range t {
		if err := s.Write(records); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

func (t tee) Close() error {
	var errs []error
	for _, s := range t {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
