package logs

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cybele/internal/snapshot"
)

// SourceReadError reports a source file that could not be summarized. The
// monitor treats it as a failed cycle and tries again on the next one.
type SourceReadError struct {
	Path string
	Op   string
	Err  error
}

func (e *SourceReadError) Error() string {
	return fmt.Sprintf("%s source %s: %v", e.Op, e.Path, e.Err)
}

func (e *SourceReadError) Unwrap() error {
	return e.Err
}

// Summarize counts the lines of the file at path and keeps the last
// tailLines of them, trailing whitespace removed. A final line without a
// newline still counts. tailLines <= 0 keeps no tail.
func Summarize(path string, tailLines int) (snapshot.Summary, error) {
	file, err := os.Open(path)
	if err != nil {
		return snapshot.Summary{}, &SourceReadError{Path: path, Op: "open", Err: err}
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return snapshot.Summary{}, &SourceReadError{Path: path, Op: "stat", Err: err}
	}
	if info.IsDir() {
		return snapshot.Summary{}, &SourceReadError{Path: path, Op: "open", Err: errors.New("is a directory")}
	}

	lines, tail, err := readLastLines(file, tailLines)
	if err != nil {
		return snapshot.Summary{}, &SourceReadError{Path: path, Op: "read", Err: err}
	}
	return snapshot.Summary{Name: path, Lines: lines, Tail: tail}, nil
}

func readLastLines(r io.Reader, limit int) (int, []string, error) {
	reader := bufio.NewReaderSize(r, 64*1024)

	var ring []string
	if limit > 0 {
		ring = make([]string, limit)
	}
	count := 0
	idx := 0
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			count++
			if limit > 0 {
				ring[idx] = strings.TrimRight(line, " \t\r\n\v\f")
				idx = (idx + 1) % limit
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return 0, nil, err
		}
	}

	kept := min(count, limit)
	if kept <= 0 {
		return count, nil, nil
	}
	tail := make([]string, kept)
	if count >= limit {
		for i := 0; i < kept; i++ {
			tail[i] = ring[(idx+i)%limit]
		}
	} else {
		copy(tail, ring[:kept])
	}
	return count, tail, nil
}
