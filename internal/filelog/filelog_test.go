package filelog

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendAndRead(t *testing.T) {
	ctx := context.Background()
	dir, err := New(t.TempDir(), "audit-")
	require.NoError(t, err)

	require.NoError(t, dir.Append(ctx, "2025-01-02", []byte(`{"n":1}`)))
	require.NoError(t, dir.Append(ctx, "2025-01-02", []byte(`{"n":2}`)))

	lines, err := dir.Read(ctx, "2025-01-02")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Equal(t, `{"n":2}`, string(lines[1]))

	_, err = os.Stat(dir.Path("2025-01-02"))
	require.NoError(t, err)
}

func TestReadMissingSegment(t *testing.T) {
	dir, err := New(t.TempDir(), "audit-")
	require.NoError(t, err)

	lines, err := dir.Read(context.Background(), "2024-12-31")
	require.NoError(t, err)
	require.Empty(t, lines)
}

func TestAppendRejectsNewline(t *testing.T) {
	dir, err := New(t.TempDir(), "audit-")
	require.NoError(t, err)
	require.Error(t, dir.Append(context.Background(), "2025-01-01", []byte("a\nb")))
	require.Error(t, dir.Append(context.Background(), "01/01/2025", []byte("a")))
}

func TestDaysAndDelete(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	dir, err := New(root, "audit-")
	require.NoError(t, err)

	for _, day := range []string{"2025-01-03", "2025-01-01", "2025-01-02"} {
		require.NoError(t, dir.Append(ctx, day, []byte("{}")))
	}
	require.NoError(t, os.WriteFile(root+"/notes.txt", []byte("x"), 0o644))

	days, err := dir.Days(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"2025-01-01", "2025-01-02", "2025-01-03"}, days)

	require.NoError(t, dir.Delete(ctx, "2025-01-01"))
	require.NoError(t, dir.Delete(ctx, "2025-01-01"))

	days, err = dir.Days(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"2025-01-02", "2025-01-03"}, days)
}

func TestConcurrentAppend(t *testing.T) {
	ctx := context.Background()
	dir, err := New(t.TempDir(), "audit-")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- dir.Append(ctx, "2025-01-01", []byte(fmt.Sprintf(`{"n":%d}`, i)))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	lines, err := dir.Read(ctx, "2025-01-01")
	require.NoError(t, err)
	require.Len(t, lines, 50)
}

func TestCancelledContext(t *testing.T) {
	dir, err := New(t.TempDir(), "audit-")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, dir.Append(ctx, "2025-01-01", []byte("{}")), context.Canceled)
}

func TestReadSkipsOversizedLine(t *testing.T) {
	ctx := context.Background()
	dir, err := New(t.TempDir(), "audit-")
	require.NoError(t, err)

	require.NoError(t, dir.Append(ctx, "2025-01-15", []byte(`{"n":1}`)))

	file, err := os.OpenFile(dir.Path("2025-01-15"), os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	big := bytes.Repeat([]byte("x"), MaxLineLen+1024)
	_, err = file.Write(append(big, '\n'))
	require.NoError(t, err)
	require.NoError(t, file.Close())

	require.NoError(t, dir.Append(ctx, "2025-01-15", []byte(`{"n":2}`)))

	lines, err := dir.Read(ctx, "2025-01-15")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Equal(t, `{"n":1}`, string(lines[0]))
	require.Equal(t, `{"n":2}`, string(lines[1]))
}

func TestAppendRejectsOversizedLine(t *testing.T) {
	dir, err := New(t.TempDir(), "audit-")
	require.NoError(t, err)

	err = dir.Append(context.Background(), "2025-01-15", bytes.Repeat([]byte("x"), MaxLineLen+1))
	require.ErrorIs(t, err, ErrLineTooLong)

	lines, err := dir.Read(context.Background(), "2025-01-15")
	require.NoError(t, err)
	require.Empty(t, lines)
}
