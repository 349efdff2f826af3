package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strconv"
	"strings"
)

// DefaultTailLines is the number of trailing source lines kept in a Summary.
const DefaultTailLines = 4

const (
	headerName          = "Name"
	headerLines         = "Lines"
	headerTailLines     = "Tail-Lines"
	headerContentLength = "Content-Length"
)

// ErrMalformed reports snapshot content that cannot be decoded into a Summary.
// Readers treat it as an expected condition (the file may still be in flight
// or may have been cut short by a crash).
var ErrMalformed = errors.New("malformed snapshot")

// Summary is the in-memory record of a source file's line count and its most
// recent lines (most recent last).
type Summary struct {
	Name  string   `json:"name"`
	Lines int      `json:"lines"`
	Tail  []string `json:"tail"`
}

// Equal reports whether two summaries carry the same values. A nil tail and an
// empty tail are equal.
func (s Summary) Equal(other Summary) bool {
	if s.Name != other.Name || s.Lines != other.Lines || len(s.Tail) != len(other.Tail) {
		return false
	}
	for i := range s.Tail {
		if s.Tail[i] != other.Tail[i] {
			return false
		}
	}
	return true
}

// Encode renders a Summary in its on-disk text form. The output is
// deterministic for a given Summary.
func Encode(s Summary) []byte {
	body := strings.Join(s.Tail, "\n")

	var buf bytes.Buffer
	buf.Grow(160 + len(s.Name) + len(body))
	buf.WriteString("MIME-Version: 1.0\n")
	buf.WriteString("Content-Type: text/plain; charset=\"utf-8\"\n")
	writeHeader(&buf, headerName, encodeName(s.Name))
	writeHeader(&buf, headerLines, strconv.Itoa(s.Lines))
	writeHeader(&buf, headerTailLines, strconv.Itoa(len(s.Tail)))
	writeHeader(&buf, headerContentLength, strconv.Itoa(len(body)))
	buf.WriteByte('\n')
	buf.WriteString(body)
	return buf.Bytes()
}

// Decode parses snapshot content produced by Encode. Content written before
// the framing headers existed (Name and Lines only) is still accepted; its
// tail is recovered by line splitting, so a trailing blank tail line cannot be
// told apart from no line at all.
func Decode(data []byte) (Summary, error) {
	// net/mail tolerates a header block cut off at EOF; a snapshot must carry
	// the blank separator line to count as complete.
	if !bytes.Contains(data, []byte("\n\n")) && !bytes.Contains(data, []byte("\n\r\n")) {
		return Summary{}, fmt.Errorf("%w: header block not terminated", ErrMalformed)
	}
	msg, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		return Summary{}, fmt.Errorf("%w: read headers: %v", ErrMalformed, err)
	}

	rawName, ok := lookupHeader(msg.Header, headerName)
	if !ok {
		return Summary{}, fmt.Errorf("%w: missing %s header", ErrMalformed, headerName)
	}
	name, err := decodeName(rawName)
	if err != nil {
		return Summary{}, err
	}

	rawLines, ok := lookupHeader(msg.Header, headerLines)
	if !ok {
		return Summary{}, fmt.Errorf("%w: missing %s header", ErrMalformed, headerLines)
	}
	lines, err := parseCount(headerLines, rawLines)
	if err != nil {
		return Summary{}, err
	}

	raw, err := io.ReadAll(msg.Body)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: read body: %v", ErrMalformed, err)
	}
	body := string(raw)

	if value, ok := lookupHeader(msg.Header, headerContentLength); ok {
		length, err := parseCount(headerContentLength, value)
		if err != nil {
			return Summary{}, err
		}
		if length != len(body) {
			return Summary{}, fmt.Errorf("%w: body is %d bytes, header declares %d", ErrMalformed, len(body), length)
		}
	}

	var tail []string
	if value, ok := lookupHeader(msg.Header, headerTailLines); ok {
		count, err := parseCount(headerTailLines, value)
		if err != nil {
			return Summary{}, err
		}
		tail, err = splitFramed(body, count)
		if err != nil {
			return Summary{}, err
		}
	} else {
		tail = splitLegacy(body)
	}

	return Summary{Name: name, Lines: lines, Tail: tail}, nil
}

func writeHeader(buf *bytes.Buffer, key, value string) {
	buf.WriteString(key)
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.WriteByte('\n')
}

func lookupHeader(h mail.Header, key string) (string, bool) {
	values, ok := h[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func parseCount(key, value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%w: %s header %q is not an integer", ErrMalformed, key, value)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %s header %d is negative", ErrMalformed, key, n)
	}
	return n, nil
}

// encodeName writes plain printable names verbatim and quotes anything that
// header parsing would otherwise alter (surrounding spaces, control or
// non-ASCII bytes, a leading quote).
func encodeName(name string) string {
	if nameIsPlain(name) {
		return name
	}
	return strconv.Quote(name)
}

func decodeName(value string) (string, error) {
	if !strings.HasPrefix(value, `"`) {
		return value, nil
	}
	name, err := strconv.Unquote(value)
	if err != nil {
		return "", fmt.Errorf("%w: %s header is not a valid quoted string", ErrMalformed, headerName)
	}
	return name, nil
}

func nameIsPlain(name string) bool {
	if name == "" {
		return true
	}
	if name[0] == '"' || name[0] == ' ' || name[len(name)-1] == ' ' {
		return false
	}
	for i := 0; i < len(name); i++ {
		if name[i] < ' ' || name[i] > '~' {
			return false
		}
	}
	return true
}

func splitFramed(body string, count int) ([]string, error) {
	if count == 0 {
		if body != "" {
			return nil, fmt.Errorf("%w: body present but %s is 0", ErrMalformed, headerTailLines)
		}
		return nil, nil
	}
	parts := strings.Split(body, "\n")
	if len(parts) != count {
		return nil, fmt.Errorf("%w: body has %d lines, header declares %d", ErrMalformed, len(parts), count)
	}
	return parts, nil
}

func splitLegacy(body string) []string {
	if body == "" {
		return nil
	}
	body = strings.TrimSuffix(body, "\n")
	parts := strings.Split(body, "\n")
	for i, part := range parts {
		parts[i] = strings.TrimSuffix(part, "\r")
	}
	return parts
}
