// Package protocol defines the wire format for all client-server communication.
// Every message in either direction is a line of UTF-8 text terminated by '\n'.
// A trailing '\r' is tolerated and stripped.
package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// Delimiter terminates every frame on the wire.
	Delimiter = '\n'

	// DefaultMaxFrameSize is the largest frame body, in bytes, that is relayed
	// untouched.  Longer lines are cut and flagged as truncated.
	DefaultMaxFrameSize = 4096

	// MaxNameLength caps a proposed display name.
	MaxNameLength = 64

	// TokenAccepted and TokenTaken are the negotiation replies.  Both start
	// with '#' and contain no spaces, so they never collide with a relayed
	// chat line, which always has the form "<name>: <text>".
	TokenAccepted = "#NICK_OK#"
	TokenTaken    = "#NICK_TAKEN#"

	// TruncationNotice is appended to a relayed message that exceeded the
	// frame limit.
	TruncationNotice = " [truncated]"

	generatedPrefix = "User #"
)

// ErrUnknownToken is returned by ParseVerdict for anything that is not a
// negotiation reply.
var ErrUnknownToken = errors.New("protocol: unknown negotiation token")

// Verdict is the server's answer to a nickname proposal.
type Verdict int

// The zero Verdict is invalid.
const (
	Accepted Verdict = iota + 1
	Taken
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case Taken:
		return "taken"
	}
	return fmt.Sprintf("Verdict(%d)", int(v))
}

// Token returns the wire token for v.
func (v Verdict) Token() string {
	if v == Accepted {
		return TokenAccepted
	}
	return TokenTaken
}

// ParseVerdict maps a received (already unframed) line to a Verdict.
func ParseVerdict(line string) (Verdict, error) {
	switch strings.TrimSpace(line) {
	case TokenAccepted:
		return Accepted, nil
	case TokenTaken:
		return Taken, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownToken, line)
}

// Encode returns s as a ready-to-send frame.  Embedded newlines are replaced
// by spaces so one call always produces exactly one frame.
func Encode(s string) []byte {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", " ")
	b := make([]byte, 0, len(s)+1)
	b = append(b, s...)
	return append(b, Delimiter)
}

// WriteFrame encodes s and writes it to w.
func WriteFrame(w io.Writer, s string) error {
	_, err := w.Write(Encode(s))
	return err
}

// ---------------------------------------------------------------------------
// Frame reader
// ---------------------------------------------------------------------------

// Frame is one line read from a connection.
type Frame struct {
	Text      string // body without the delimiter, cut to the reader's limit
	Truncated bool   // the raw line was longer than the limit
}

// Reader reads newline-delimited frames with a bounded body size.
type Reader struct {
	br    *bufio.Reader
	limit int
}

// NewReader returns a Reader that keeps at most limit bytes of every line.
// limit <= 0 selects DefaultMaxFrameSize.
func NewReader(r io.Reader, limit int) *Reader {
	if limit <= 0 {
		limit = DefaultMaxFrameSize
	}
	// Buffer must hold at least one full frame plus "\r\n".
	size := limit + 2
	if size < 4096 {
		size = 4096
	}
	return &Reader{br: bufio.NewReaderSize(r, size), limit: limit}
}

// ReadFrame blocks until a full line is available.  An overlong line is cut
// at the last rune boundary within the limit and the remainder, up to and including the next delimiter, is
// discarded.  A final line without a delimiter is returned before io.EOF.
func (r *Reader) ReadFrame() (Frame, error) {
	var (
		buf       []byte
		truncated bool
	)
	for {
		chunk, err := r.br.ReadSlice(Delimiter)
		if err == nil {
			chunk = chunk[:len(chunk)-1]
			if n := len(chunk); n > 0 && chunk[n-1] == '\r' {
				chunk = chunk[:n-1]
			}
		}

		if room := r.limit - len(buf); room > 0 {
			if len(chunk) > room {
				buf = append(buf, chunk[:room]...)
				truncated = true
			} else {
				buf = append(buf, chunk...)
			}
		} else if len(chunk) > 0 {
			truncated = true
		}

		switch {
		case err == nil:
			return newFrame(buf, truncated), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && len(buf) > 0:
			return newFrame(buf, truncated), nil
		default:
			return Frame{}, err
		}
	}
}

func newFrame(b []byte, truncated bool) Frame {
	if truncated {
		b = trimPartialRune(b)
	}
	return Frame{Text: string(b), Truncated: truncated}
}

// trimPartialRune drops an incomplete UTF-8 sequence left at the end of b by
// a cut at the byte limit.
func trimPartialRune(b []byte) []byte {
	for i := len(b) - 1; i >= 0 && len(b)-i <= utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				return b[:i]
			}
			break
		}
	}
	return b
}

// ---------------------------------------------------------------------------
// Names and announcements
// ---------------------------------------------------------------------------

// GeneratedName returns the display name assigned to identity number n.
func GeneratedName(n int) string {
	return generatedPrefix + strconv.Itoa(n)
}

// ParseGeneratedName extracts N from a name of the exact form "User #N",
// where N is a positive integer without a leading zero.
func ParseGeneratedName(name string) (int, bool) {
	digits, ok := strings.CutPrefix(name, generatedPrefix)
	if !ok || digits == "" || digits[0] == '0' {
		return 0, false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// ChatLine formats a relayed user message.
func ChatLine(name, text string, truncated bool) string {
	line := name + ": " + text
	if truncated {
		line += TruncationNotice
	}
	return line
}

// JoinNotice is broadcast when a client has been admitted.
func JoinNotice(name string) string { return name + " has joined the chat." }

// LeaveNotice is broadcast after a client has been removed.
func LeaveNotice(name string) string { return name + " has left the chat." }
