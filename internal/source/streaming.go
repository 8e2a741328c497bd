package source

// streaming.go provides the readers every source passes through before it
// becomes text:
//
//   - limitedReader: fails with ErrFileTooLarge once the decoded size passes the limit
//   - skipBOM: removes a UTF-8 BOM (0xEF 0xBB 0xBF) written by Windows programs
//   - utf8Sanitizer: replaces invalid UTF-8 bytes with U+FFFD
//
// The limit is applied to decompressed bytes so that a small archive member
// cannot expand past the configured file size.

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// ErrFileTooLarge is returned when a source decodes to more than the size limit.
var ErrFileTooLarge = errors.New("file too large")

var bom = []byte{0xEF, 0xBB, 0xBF}

// readText reads r through the limit, BOM and UTF-8 filters.
func readText(r io.Reader, limit int64) (string, error) {
	data, err := io.ReadAll(wrapForReading(r, limit))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// wrapForReading applies the filters in order: the limit sees raw decoded
// bytes, the BOM is removed before sanitizing.
func wrapForReading(r io.Reader, limit int64) io.Reader {
	return newUTF8Sanitizer(skipBOM(newLimitedReader(r, limit)))
}

// limitedReader counts bytes and fails once more than limit have been read.
// A non-positive limit disables the check.
type limitedReader struct {
	r     io.Reader
	limit int64
	n     int64
}

func newLimitedReader(r io.Reader, limit int64) *limitedReader {
	return &limitedReader{r: r, limit: limit}
}

func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.n += int64(n)
	if l.limit > 0 && l.n > l.limit {
		return n, fmt.Errorf("%w: exceeds %d byte limit", ErrFileTooLarge, l.limit)
	}
	return n, err
}

// skipBOM returns a reader positioned after a leading BOM, if there is one.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(len(bom)); err == nil && bytes.Equal(b, bom) {
		_, _ = br.Discard(len(bom))
	}
	return br
}

// utf8Sanitizer replaces invalid UTF-8 with U+FFFD without loading the whole
// input. A multi-byte sequence split across reads is held back until the rest
// arrives.
type utf8Sanitizer struct {
	r   io.Reader
	buf [4096]byte
	in  []byte // undecoded input, at most a partial rune between reads
	out []byte // sanitized bytes not yet returned
	err error
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{r: r}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	for len(s.out) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		n, err := s.r.Read(s.buf[:])
		s.in = append(s.in, s.buf[:n]...)
		s.err = err
		s.sanitize(err != nil)
	}

	n := copy(p, s.out)
	s.out = s.out[n:]
	return n, nil
}

// sanitize moves decoded input to out. Unless final, an incomplete trailing
// sequence stays in s.in.
func (s *utf8Sanitizer) sanitize(final bool) {
	in := s.in
	for len(in) > 0 {
		if in[0] < utf8.RuneSelf {
			s.out = append(s.out, in[0])
			in = in[1:]
			continue
		}
		if !final && !utf8.FullRune(in) {
			break
		}
		r, size := utf8.DecodeRune(in)
		if r == utf8.RuneError && size == 1 {
			s.out = append(s.out, "\uFFFD"...)
		} else {
			s.out = append(s.out, in[:size]...)
		}
		in = in[size:]
	}
	s.in = append(s.in[:0], in...)
}
