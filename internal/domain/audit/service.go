package audit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	dayLayout    = "2006-01-02"
	defaultLimit = 100

	// MaxEntryBytes bounds one serialized entry so every written line stays readable.
	MaxEntryBytes = 1 << 20
)

// Service records and inspects the audit trail.
type Service struct {
	store  SegmentStore
	node   *snowflake.Node
	now    func() time.Time
	logger *slog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the clock used for entry timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.now = clock
	}
}

// NewService creates an audit service writing ids from the given snowflake node.
func NewService(store SegmentStore, nodeID int64, logger *slog.Logger, opts ...Option) (*Service, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("creating id node %d: %w", nodeID, err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Service{
		store:  store,
		node:   node,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// LogOperation appends one entry and returns its id.
func (s *Service) LogOperation(ctx context.Context, op Operation, data any, meta Metadata) (string, error) {
	payload, err := normalizeData(data)
	if err != nil {
		return "", &WriteError{Operation: op, Err: err}
	}

	entry := Entry{
		ID:        s.node.Generate().String(),
		Timestamp: s.now().UTC(),
		Operation: op,
		Category:  CategoryOf(op),
		Data:      payload,
		Metadata:  resolve(ctx, op, meta),
	}
	line, err := seal(&entry)
	if err != nil {
		return "", &WriteError{Operation: op, Err: err}
	}
	if len(line) > MaxEntryBytes {
		s.logger.Error("audit entry too large", "operation", op, "bytes", len(line))
		return "", &WriteError{Operation: op, Err: fmt.Errorf("%w: %d bytes", ErrEntryTooLarge, len(line))}
	}

	day := entry.Timestamp.Format(dayLayout)
	if err := s.store.Append(ctx, day, line); err != nil {
		s.logger.Error("audit append failed", "operation", op, "id", entry.ID, "error", err)
		return "", &WriteError{Operation: op, Err: err}
	}
	s.logger.Debug("audit entry written", "operation", op, "id", entry.ID, "day", day)
	return entry.ID, nil
}

func withCount(countID string, details map[string]any) map[string]any {
	out := make(map[string]any, len(details)+1)
	for k, v := range details {
		out[k] = v
	}
	if countID != "" {
		out["countId"] = countID
	}
	return out
}

// LogCountStart records a count moving to IN_PROGRESS.
func (s *Service) LogCountStart(ctx context.Context, countID string, details map[string]any) (string, error) {
	return s.LogOperation(ctx, OpCountStart, withCount(countID, details), Metadata{Severity: SeverityHigh})
}

// LogItemAdd records an item appended to a count.
func (s *Service) LogItemAdd(ctx context.Context, countID string, details map[string]any) (string, error) {
	return s.LogOperation(ctx, OpItemAdd, withCount(countID, details), Metadata{Severity: SeverityHigh})
}

// LogItemDelete records an item removed from a count.
func (s *Service) LogItemDelete(ctx context.Context, countID string, details map[string]any) (string, error) {
	return s.LogOperation(ctx, OpItemDelete, withCount(countID, details), Metadata{Severity: SeverityHigh})
}

// LogCountComplete records a count being completed and archived.
func (s *Service) LogCountComplete(ctx context.Context, countID string, details map[string]any) (string, error) {
	return s.LogOperation(ctx, OpCountComplete, withCount(countID, details), Metadata{Severity: SeverityCritical})
}

// LogValidationFailure records a rejected lifecycle operation.
func (s *Service) LogValidationFailure(ctx context.Context, operation, countID string, issues any) (string, error) {
	data := withCount(countID, map[string]any{"operation": operation, "errors": issues})
	return s.LogOperation(ctx, OpValidationFailure, data, Metadata{Severity: SeverityMedium})
}

// LogValidationWarning records advisory findings on a lifecycle operation.
func (s *Service) LogValidationWarning(ctx context.Context, operation, countID string, issues any) (string, error) {
	data := withCount(countID, map[string]any{"operation": operation, "warnings": issues})
	return s.LogOperation(ctx, OpValidationWarning, data, Metadata{Severity: SeverityLow})
}

// LogRollback records that an operation was undone after its audit entries
// could not all be written. entryIDs are the entries the rollback cancels.
func (s *Service) LogRollback(ctx context.Context, countID string, operation Operation, entryIDs []string, reason string) (string, error) {
	data := withCount(countID, map[string]any{
		"operation": string(operation),
		"entryIds":  entryIDs,
		"reason":    reason,
	})
	return s.LogOperation(ctx, OpRollback, data, Metadata{Severity: SeverityCritical})
}

// LogIntegrityCheck records the outcome of a checksum verification.
func (s *Service) LogIntegrityCheck(ctx context.Context, result IntegrityResult) (string, error) {
	severity := SeverityLow
	if !result.Valid {
		severity = SeverityCritical
	}
	data := map[string]any{
		"entryId":          result.ID,
		"valid":            result.Valid,
		"storedChecksum":   result.StoredChecksum,
		"computedChecksum": result.ComputedChecksum,
	}
	return s.LogOperation(ctx, OpIntegrityCheck, data, Metadata{Severity: severity})
}

// LogCleanup records a retention pass.
func (s *Service) LogCleanup(ctx context.Context, retentionDays, deleted int, cutoff string) (string, error) {
	data := map[string]any{
		"retentionDays":   retentionDays,
		"deletedSegments": deleted,
		"cutoff":          cutoff,
	}
	return s.LogOperation(ctx, OpLogCleanup, data, Metadata{Severity: SeverityMedium})
}

// readDay decodes a segment, skipping lines that are not valid entries.
func (s *Service) readDay(ctx context.Context, day string) ([]Entry, error) {
	lines, err := s.store.Read(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("reading audit segment %s: %w", day, err)
	}
	entries := make([]Entry, 0, len(lines))
	for i, line := range lines {
		var entry Entry
		if err := decode(line, &entry); err != nil || entry.ID == "" {
			s.logger.Warn("skipping malformed audit line", "day", day, "line", i+1, "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *Service) daysBetween(ctx context.Context, start, end string) ([]string, error) {
	days, err := s.store.Days(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing audit segments: %w", err)
	}
	out := days[:0:0]
	for _, day := range days {
		if start != "" && day < start {
			continue
		}
		if end != "" && day > end {
			continue
		}
		out = append(out, day)
	}
	return out, nil
}

func normalizeDay(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if t, err := time.Parse(dayLayout, value); err == nil {
		return t.Format(dayLayout), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return "", fmt.Errorf("%w: date %q", ErrInvalidFilter, value)
	}
	return t.UTC().Format(dayLayout), nil
}

func (f Filters) matches(entry Entry) bool {
	if f.Operation != "" && entry.Operation != f.Operation {
		return false
	}
	if f.UserID != "" && entry.Metadata.UserID != f.UserID {
		return false
	}
	if f.CountID != "" && entry.CountID() != f.CountID {
		return false
	}
	if f.Severity != "" && entry.Metadata.Severity != f.Severity {
		return false
	}
	return true
}

func sortNewestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].ID > entries[j].ID
		}
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
}

// QueryLogs returns matching entries, newest first.
func (s *Service) QueryLogs(ctx context.Context, filters Filters) ([]Entry, error) {
	start, err := normalizeDay(filters.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := normalizeDay(filters.EndDate)
	if err != nil {
		return nil, err
	}
	if start != "" && end != "" && end < start {
		return nil, fmt.Errorf("%w: end date before start date", ErrInvalidFilter)
	}
	limit := filters.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	days, err := s.daysBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}
	results := make([]Entry, 0)
	for _, day := range days {
		entries, err := s.readDay(ctx, day)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if filters.matches(entry) {
				results = append(results, entry)
			}
		}
	}

	sortNewestFirst(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// GetCountAuditTrail returns every entry for a count in chronological order.
func (s *Service) GetCountAuditTrail(ctx context.Context, countID string) (*CountTrail, error) {
	days, err := s.daysBetween(ctx, "", "")
	if err != nil {
		return nil, err
	}
	trail := &CountTrail{CountID: countID, Entries: []Entry{}}
	for _, day := range days {
		entries, err := s.readDay(ctx, day)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if entry.CountID() == countID {
				trail.Entries = append(trail.Entries, entry)
			}
		}
	}

	sort.SliceStable(trail.Entries, func(i, j int) bool {
		a, b := trail.Entries[i], trail.Entries[j]
		if a.Timestamp.Equal(b.Timestamp) {
			return a.ID < b.ID
		}
		return a.Timestamp.Before(b.Timestamp)
	})

	cancelled := make(map[string]bool)
	for _, entry := range trail.Entries {
		if entry.Operation != OpRollback {
			continue
		}
		trail.Summary.RolledBack++
		ids, _ := entry.Data["entryIds"].([]any)
		for _, id := range ids {
			if v, ok := id.(string); ok {
				cancelled[v] = true
			}
		}
	}

	for _, entry := range trail.Entries {
		if cancelled[entry.ID] {
			continue
		}
		switch entry.Operation {
		case OpCountStart:
			trail.Summary.Starts++
		case OpItemAdd:
			trail.Summary.ItemsAdded++
		case OpItemDelete:
			trail.Summary.ItemsDeleted++
		case OpCountComplete:
			trail.Summary.Completed++
		case OpValidationFailure:
			trail.Summary.ValidationFailures++
		case OpValidationWarning:
			trail.Summary.ValidationWarnings++
		}
	}
	trail.Complete = trail.Summary.Completed > 0
	return trail, nil
}

// GenerateAuditReport aggregates entries between two inclusive days.
func (s *Service) GenerateAuditReport(ctx context.Context, startDate, endDate string) (*Report, error) {
	start, err := normalizeDay(startDate)
	if err != nil {
		return nil, err
	}
	end, err := normalizeDay(endDate)
	if err != nil {
		return nil, err
	}
	if start != "" && end != "" && end < start {
		return nil, fmt.Errorf("%w: end date before start date", ErrInvalidFilter)
	}

	days, err := s.daysBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}
	report := &Report{
		StartDate:   start,
		EndDate:     end,
		ByOperation: map[Operation]int{},
		BySeverity:  map[Severity]int{},
		ByUser:      map[string]int{},
		GeneratedAt: s.now().UTC(),
	}
	for _, day := range days {
		entries, err := s.readDay(ctx, day)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			report.TotalEntries++
			report.ByOperation[entry.Operation]++
			report.BySeverity[entry.Metadata.Severity]++
			report.ByUser[entry.Metadata.UserID]++
			switch entry.Operation {
			case OpValidationFailure:
				report.ValidationFailures++
			case OpIntegrityCheck:
				report.IntegrityChecks++
				if valid, ok := entry.Data["valid"].(bool); ok && !valid {
					report.IntegrityFailures++
				}
			}
		}
	}
	return report, nil
}

type idOnly struct {
	ID string `json:"id"`
}

func (s *Service) findLine(ctx context.Context, day, id string) ([]byte, bool, error) {
	lines, err := s.store.Read(ctx, day)
	if err != nil {
		return nil, false, fmt.Errorf("reading audit segment %s: %w", day, err)
	}
	for _, line := range lines {
		var found idOnly
		if decode(line, &found) != nil {
			continue
		}
		if found.ID == id {
			return line, true, nil
		}
	}
	return nil, false, nil
}

// locate finds the stored line for an id, trying the day encoded in the id first.
func (s *Service) locate(ctx context.Context, id string) (string, []byte, error) {
	tried := ""
	if parsed, err := snowflake.ParseString(id); err == nil {
		day := time.UnixMilli(parsed.Time()).UTC().Format(dayLayout)
		line, ok, err := s.findLine(ctx, day, id)
		if err != nil {
			return "", nil, err
		}
		if ok {
			return day, line, nil
		}
		tried = day
	}

	days, err := s.daysBetween(ctx, "", "")
	if err != nil {
		return "", nil, err
	}
	for i := len(days) - 1; i >= 0; i-- {
		if days[i] == tried {
			continue
		}
		line, ok, err := s.findLine(ctx, days[i], id)
		if err != nil {
			return "", nil, err
		}
		if ok {
			return days[i], line, nil
		}
	}
	return "", nil, ErrEntryNotFound
}

// VerifyLogIntegrity recomputes the checksum of a stored entry. A mismatch is
// reported in the result and left as stored.
func (s *Service) VerifyLogIntegrity(ctx context.Context, id string) (*IntegrityResult, error) {
	day, line, err := s.locate(ctx, id)
	if err != nil {
		return nil, err
	}

	var stored struct {
		Checksum string `json:"checksum"`
	}
	if err := decode(line, &stored); err != nil {
		return nil, err
	}
	computed, err := Checksum(line)
	if err != nil {
		return nil, err
	}

	result := &IntegrityResult{
		ID:               id,
		Valid:            stored.Checksum != "" && stored.Checksum == computed,
		StoredChecksum:   stored.Checksum,
		ComputedChecksum: computed,
		Day:              day,
		CheckedAt:        s.now().UTC(),
	}
	if !result.Valid {
		s.logger.Warn("audit entry failed integrity check", "id", id, "day", day)
	}
	if _, err := s.LogIntegrityCheck(ctx, *result); err != nil {
		return result, err
	}
	return result, nil
}

// CleanupOldLogs deletes whole segments older than retentionDays and returns
// how many were removed.
func (s *Service) CleanupOldLogs(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, ErrInvalidRetention
	}
	cutoff := s.now().UTC().AddDate(0, 0, -retentionDays).Format(dayLayout)

	days, err := s.store.Days(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing audit segments: %w", err)
	}
	deleted := 0
	var errs []error
	for _, day := range days {
		if day >= cutoff {
			continue
		}
		if err := s.store.Delete(ctx, day); err != nil {
			errs = append(errs, err)
			continue
		}
		deleted++
	}
	s.logger.Info("audit retention pass", "retention_days", retentionDays, "cutoff", cutoff, "deleted", deleted)

	if _, err := s.LogCleanup(ctx, retentionDays, deleted, cutoff); err != nil {
		errs = append(errs, err)
	}
	return deleted, errors.Join(errs...)
}
