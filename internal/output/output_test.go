package output

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/recon/internal/errors"
	"github.com/anstrom/recon/internal/job"
	"github.com/anstrom/recon/internal/probe"
)

type bufferCloser struct {
	bytes.Buffer
	closed bool
}

func (b *bufferCloser) Close() error {
	b.closed = true
	return nil
}

func completion(ap string, out job.Outcome[probe.Response]) Completion {
	return Completion{State: netip.MustParseAddrPort(ap), Outcome: out, Elapsed: 20 * time.Millisecond}
}

func rec(ap, state string) Record {
	a := netip.MustParseAddrPort(ap)
	return Record{Addr: a.Addr(), Port: a.Port(), State: state}
}

func TestFromCompletion(t *testing.T) {
	t.Run("return", func(t *testing.T) {
		r := FromCompletion(completion("10.0.0.1:22", job.Return(job.Open, probe.Response{
			Method: "tcp", Detail: "banner", Latency: 3 * time.Millisecond,
		})))
		assert.Equal(t, netip.MustParseAddr("10.0.0.1"), r.Addr)
		assert.Equal(t, uint16(22), r.Port)
		assert.Equal(t, "open", r.State)
		assert.Equal(t, "tcp", r.Method)
		assert.Equal(t, "banner", r.Detail)
		assert.Equal(t, 3*time.Millisecond, r.Latency)
		assert.Empty(t, r.Error)
		assert.True(t, r.IsOpen())
	})

	t.Run("error", func(t *testing.T) {
		r := FromCompletion(completion("10.0.0.1:22", job.Errno[probe.Response](syscall.EMFILE)))
		assert.Equal(t, "error:errno", r.State)
		assert.NotEmpty(t, r.Error)
		assert.Equal(t, 20*time.Millisecond, r.Latency)
		assert.False(t, r.IsOpen())
	})

	t.Run("batch", func(t *testing.T) {
		rs := FromCompletions([]Completion{
			completion("10.0.0.1:22", job.Return(job.Closed, probe.Response{})),
			completion("10.0.0.2:22", job.TimedOut[probe.Response]()),
		})
		require.Len(t, rs, 2)
		assert.Equal(t, "closed", rs[0].State)
		assert.Equal(t, "error:timeout", rs[1].State)
	})
}

func TestTextSink(t *testing.T) {
	buf := &bufferCloser{}
	s := NewText(buf)

	require.NoError(t, s.Write([]Record{rec("10.0.0.1:22", "open"), rec("[2001:db8::1]:443", "closed")}))
	assert.Equal(t, "10.0.0.1\t22\topen\n2001:db8::1\t443\tclosed\n", buf.String())

	require.NoError(t, s.Close())
	assert.True(t, buf.closed)
}

func TestJSONSink(t *testing.T) {
	buf := &bufferCloser{}
	s := NewJSON(buf)

	require.NoError(t, s.Write([]Record{rec("10.0.0.1:443", "open"), rec("10.0.0.2:22", "filtered")}))
	require.NoError(t, s.Write([]Record{rec("10.0.0.1:22", "closed")}))
	assert.Zero(t, buf.Len(), "nothing is written before Close")

	require.NoError(t, s.Close())
	assert.True(t, buf.closed)

	var got map[string][]struct {
		Port  uint16 `json:"port"`
		State string `json:"state"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	require.Len(t, got["10.0.0.1"], 2)
	assert.Equal(t, uint16(22), got["10.0.0.1"][0].Port, "ports sorted per address")
	assert.Equal(t, "closed", got["10.0.0.1"][0].State)
	assert.Equal(t, "filtered", got["10.0.0.2"][0].State)
}

type recordingSink struct {
	got    []Record
	closed bool
	err    error
}

func (s *recordingSink) Write(rs []Record) error {
	s.got = append(s.got, rs...)
	return s.err
}

func (s *recordingSink) Close() error {
	s.closed = true
	return s.err
}

func TestOpenOnly(t *testing.T) {
	next := &recordingSink{}
	s := OpenOnly(next)

	require.NoError(t, s.Write([]Record{rec("10.0.0.1:22", "open"), rec("10.0.0.1:23", "closed")}))
	require.NoError(t, s.Write([]Record{rec("10.0.0.1:24", "error:timeout")}))
	require.NoError(t, s.Close())

	require.Len(t, next.got, 1)
	assert.Equal(t, uint16(22), next.got[0].Port)
	assert.True(t, next.closed)
}

func TestTee(t *testing.T) {
	ok := &recordingSink{}
	broken := &recordingSink{err: stderrors.New("disk full")}
	s := Tee(ok, broken)

	err := s.Write([]Record{rec("10.0.0.1:22", "open")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Len(t, ok.got, 1, "a failing sink does not starve the others")

	require.Error(t, s.Close())
	assert.True(t, ok.closed)
	assert.True(t, broken.closed)
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	s, err := Open("text", path)
	require.NoError(t, err)
	require.NoError(t, s.Write([]Record{rec("10.0.0.1:80", "open")}))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1\t80\topen\n", string(data))

	_, err = Open("xml", filepath.Join(t.TempDir(), "out.xml"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeValidation))
}

func TestSummary(t *testing.T) {
	var buf bytes.Buffer
	err := Summary(&buf, map[string]int{"open": 3, "closed": 6, "error:timeout": 1}, 2*time.Second)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, strings.ToUpper(out), "STATE")
	for _, want := range []string{"open", "closed", "error:timeout", "60.0%", "10 results in 2s (5/s)"} {
		assert.Contains(t, out, want)
	}
	assert.Less(t, strings.Index(out, "closed"), strings.Index(out, "open"), "largest count first")
}

func TestSummary_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Summary(&buf, nil, 0))
	assert.Contains(t, buf.String(), "0 results")
}
