// Package filelog stores append-only JSON-lines files, one segment per UTC day.
package filelog

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const dayLayout = "2006-01-02"

// MaxLineLen is the longest line Append accepts and Read returns. Longer
// lines already on disk are skipped on read.
const MaxLineLen = 4 << 20

// ErrLineTooLong is returned by Append for a line over MaxLineLen.
var ErrLineTooLong = errors.New("line exceeds maximum length")

// Dir is a directory of day segments named <prefix>YYYY-MM-DD.jsonl.
type Dir struct {
	root   string
	prefix string

	mu       sync.Mutex
	segments map[string]*sync.Mutex
}

// New creates the directory if needed and returns a segment store rooted there.
func New(root, prefix string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating log dir: %w", err)
	}
	return &Dir{
		root:     root,
		prefix:   prefix,
		segments: make(map[string]*sync.Mutex),
	}, nil
}

// Root returns the directory backing the store.
func (d *Dir) Root() string {
	return d.root
}

// Path returns the file backing a day segment.
func (d *Dir) Path(day string) string {
	return filepath.Join(d.root, d.prefix+day+".jsonl")
}

func (d *Dir) lock(day string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.segments[day]
	if !ok {
		m = &sync.Mutex{}
		d.segments[day] = m
	}
	return m
}

func checkDay(day string) error {
	if _, err := time.Parse(dayLayout, day); err != nil {
		return fmt.Errorf("invalid segment day %q: %w", day, err)
	}
	return nil
}

// Append writes one line to the day segment. The line must not contain a newline.
func (d *Dir) Append(ctx context.Context, day string, line []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkDay(day); err != nil {
		return err
	}
	if bytes.ContainsRune(line, '\n') {
		return errors.New("line contains a newline")
	}
	if len(line) > MaxLineLen {
		return fmt.Errorf("segment %s: %w", day, ErrLineTooLong)
	}

	m := d.lock(day)
	m.Lock()
	defer m.Unlock()

	file, err := os.OpenFile(d.Path(day), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening segment %s: %w", day, err)
	}
	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')
	if _, err := file.Write(buf); err != nil {
		file.Close()
		return fmt.Errorf("appending to segment %s: %w", day, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing segment %s: %w", day, err)
	}
	return nil
}

// Read returns the non-empty lines of a day segment. A missing segment has no lines.
func (d *Dir) Read(ctx context.Context, day string) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkDay(day); err != nil {
		return nil, err
	}

	m := d.lock(day)
	m.Lock()
	defer m.Unlock()

	file, err := os.Open(d.Path(day))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening segment %s: %w", day, err)
	}
	defer file.Close()

	var lines [][]byte
	reader := bufio.NewReaderSize(file, 64*1024)
	for {
		line, tooLong, err := readLine(reader)
		if len(line) > 0 && !tooLong {
			lines = append(lines, line)
		}
		if errors.Is(err, io.EOF) {
			return lines, nil
		}
		if err != nil {
			return lines, fmt.Errorf("reading segment %s: %w", day, err)
		}
	}
}

// readLine returns the next trimmed line. Bytes past MaxLineLen are
// discarded and the line is reported as too long.
func readLine(r *bufio.Reader) ([]byte, bool, error) {
	var buf []byte
	tooLong := false
	for {
		chunk, err := r.ReadSlice('\n')
		if !tooLong {
			if len(buf)+len(chunk) > MaxLineLen+1 {
				tooLong = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if tooLong {
			return nil, true, err
		}
		text := bytes.TrimSpace(buf)
		if len(text) == 0 {
			return nil, false, err
		}
		return text, false, err
	}
}

// Days lists the days that have a segment, oldest first.
func (d *Dir) Days(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("listing segments: %w", err)
	}
	days := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, d.prefix) || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		day := strings.TrimSuffix(strings.TrimPrefix(name, d.prefix), ".jsonl")
		if checkDay(day) != nil {
			continue
		}
		days = append(days, day)
	}
	sort.Strings(days)
	return days, nil
}

// Delete removes a whole day segment. Deleting a missing segment is not an error.
func (d *Dir) Delete(ctx context.Context, day string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkDay(day); err != nil {
		return err
	}

	m := d.lock(day)
	m.Lock()
	defer m.Unlock()

	if err := os.Remove(d.Path(day)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting segment %s: %w", day, err)
	}
	return nil
}
