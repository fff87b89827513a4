package audit

import "context"

// SegmentStore holds the raw audit lines, one segment per UTC day (YYYY-MM-DD).
type SegmentStore interface {
	Append(ctx context.Context, day string, line []byte) error
	Read(ctx context.Context, day string) ([][]byte, error)
	Days(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, day string) error
}
