package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/stockcount/internal/domain/audit"
	"github.com/rpggio/stockcount/internal/domain/count"
	"github.com/rpggio/stockcount/internal/domain/rules"
	"github.com/rpggio/stockcount/internal/repository"
	"github.com/shopspring/decimal"
)

// Auditor records lifecycle events. *audit.Service implements it.
type Auditor interface {
	LogCountStart(ctx context.Context, countID string, details map[string]any) (string, error)
	LogItemAdd(ctx context.Context, countID string, details map[string]any) (string, error)
	LogItemDelete(ctx context.Context, countID string, details map[string]any) (string, error)
	LogCountComplete(ctx context.Context, countID string, details map[string]any) (string, error)
	LogValidationFailure(ctx context.Context, operation, countID string, issues any) (string, error)
	LogValidationWarning(ctx context.Context, operation, countID string, issues any) (string, error)
	LogRollback(ctx context.Context, countID string, operation audit.Operation, entryIDs []string, reason string) (string, error)
}

// Manager owns the count state machine for one facility store.
type Manager struct {
	mu           sync.Mutex
	repo         count.Repository
	validator    *rules.Validator
	auditor      Auditor
	logger       *slog.Logger
	now          func() time.Time
	inconsistent bool
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock overrides the clock used for lifecycle timestamps.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		m.now = clock
	}
}

// NewManager creates a lifecycle manager.
func NewManager(repo count.Repository, validator *rules.Validator, auditor Auditor, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if validator == nil {
		validator = rules.New()
	}
	m := &Manager{
		repo:      repo,
		validator: validator,
		auditor:   auditor,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Bootstrap seeds an empty store with the facility and its first READY count.
// It reports false without writing when a facility already exists.
func (m *Manager) Bootstrap(ctx context.Context, facility *count.Facility) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := m.repo.Load(ctx)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return false, &PersistenceError{Op: "load", Err: err}
	}

	seed, err := count.CloneState(&count.State{Facility: facility})
	if err != nil {
		return false, err
	}
	now := m.now().UTC()
	f := seed.Facility
	if f == nil {
		return false, fmt.Errorf("%w: missing facility", count.ErrInvalidDocument)
	}
	for i := range f.Locations {
		f.Locations[i].Counted = false
	}
	f.Counts = count.Counts{Current: count.NewTemplate(1, now)}
	f.Metadata = count.Metadata{LastUpdated: now, Version: 1}
	if err := count.ValidateFacility(f); err != nil {
		return false, err
	}

	if err := m.repo.SaveAll(ctx, f, seed.History); err != nil {
		return false, &PersistenceError{Op: "bootstrap", Err: err}
	}
	m.logger.Info("facility bootstrapped", "facility", f.ID, "locations", len(f.Locations))
	return true, nil
}

// Inconsistent reports whether mutations are blocked after a failed compensation.
func (m *Manager) Inconsistent() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inconsistent
}

// ClearInconsistent re-enables mutations once an operator has reconciled the store.
func (m *Manager) ClearInconsistent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inconsistent {
		m.logger.Warn("inconsistent store flag cleared")
	}
	m.inconsistent = false
}

// load returns a private working copy plus an untouched snapshot for compensation.
func (m *Manager) load(ctx context.Context) (*count.State, *count.State, error) {
	state, err := m.repo.Load(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, ErrNotBootstrapped
	}
	if err != nil {
		return nil, nil, &PersistenceError{Op: "load", Err: err}
	}
	if state == nil || state.Facility == nil {
		return nil, nil, ErrNotBootstrapped
	}
	if state.History == nil {
		state.History = &count.History{Records: []count.HistoryRecord{}}
	}
	if cur := state.Facility.Counts.Current; cur == nil || cur.Status == count.StatusCompleted {
		state.Facility.Counts.Current = count.NewTemplate(state.Facility.Metadata.CompletedCounts+1, m.now().UTC())
	}
	snapshot, err := count.CloneState(state)
	if err != nil {
		return nil, nil, err
	}
	return state, snapshot, nil
}

func (m *Manager) beginMutation() error {
	if m.inconsistent {
		return ErrStoreInconsistent
	}
	return nil
}

func touch(f *count.Facility, now time.Time) {
	f.Metadata.LastUpdated = now
	f.Metadata.Version++
}

// rollback identifies the audited operation being undone and the entries
// already written for it.
type rollback struct {
	countID  string
	op       audit.Operation
	entryIDs []string
}

// compensate writes the pre-operation documents back after an audit failure.
// Entries already written for the operation are cancelled by a rollback entry.
func (m *Manager) compensate(ctx context.Context, previous *count.State, failed *count.Facility, withHistory bool, rb rollback, cause error) error {
	ctx = context.WithoutCancel(ctx)
	previous.Facility.Metadata.Version = failed.Metadata.Version + 1

	var err error
	if withHistory {
		err = m.repo.SaveAll(ctx, previous.Facility, previous.History)
	} else {
		err = m.repo.SaveFacility(ctx, previous.Facility)
	}
	if err != nil {
		m.inconsistent = true
		m.logger.Error("compensating write failed; store marked inconsistent", "cause", cause, "error", err)
		return errors.Join(cause, ErrStoreInconsistent, &PersistenceError{Op: "compensate", Err: err})
	}
	m.logger.Warn("operation rolled back after audit failure", "operation", rb.op, "count", rb.countID, "error", cause)
	if len(rb.entryIDs) > 0 {
		if _, err := m.auditor.LogRollback(ctx, rb.countID, rb.op, rb.entryIDs, cause.Error()); err != nil {
			m.logger.Error("recording rollback failed", "operation", rb.op, "entries", rb.entryIDs, "error", err)
		}
	}
	return cause
}

// reject records a validation failure and any warnings.
func (m *Manager) reject(ctx context.Context, operation, countID string, result rules.Result) error {
	if _, err := m.auditor.LogValidationFailure(ctx, operation, countID, result.Errors); err != nil {
		return err
	}
	if len(result.Warnings) > 0 {
		if _, err := m.auditor.LogValidationWarning(ctx, operation, countID, result.Warnings); err != nil {
			return err
		}
	}
	m.logger.Info("operation rejected by validation", "operation", operation, "count", countID, "errors", len(result.Errors))
	return nil
}

func (m *Manager) warn(ctx context.Context, operation, countID string, result rules.Result) error {
	if len(result.Warnings) == 0 {
		return nil
	}
	_, err := m.auditor.LogValidationWarning(ctx, operation, countID, result.Warnings)
	return err
}

// audited appends the primary entry for an operation, then its warnings.
// It returns the ids written so far alongside any error.
func (m *Manager) audited(ctx context.Context, operation, countID string, result rules.Result, primary func() (string, error)) ([]string, error) {
	id, err := primary()
	if err != nil {
		return nil, err
	}
	return []string{id}, m.warn(ctx, operation, countID, result)
}

func actor(ctx context.Context, explicit string) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit
	}
	return audit.MetadataFromContext(ctx).UserID
}

// Start moves the READY count to IN_PROGRESS.
func (m *Manager) Start(ctx context.Context, params rules.StartParams) (*StartResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.beginMutation(); err != nil {
		return nil, err
	}

	state, previous, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	f := state.Facility
	if active := f.ActiveCount(); active != nil {
		return nil, &StateError{Code: ErrCountInProgress.Code, Message: fmt.Sprintf("count %s is already in progress", active.ID)}
	}

	cur := f.Counts.Current
	result := m.validator.ValidateCountStart(params, f)
	if !result.Valid {
		if err := m.reject(ctx, "startCount", cur.ID, result); err != nil {
			return nil, err
		}
		return &StartResult{Accepted: false, Validation: result}, nil
	}

	now := m.now().UTC()
	cur.Status = count.StatusInProgress
	cur.StartDate = rules.NormalizeDate(params.StartDate)
	cur.EndDate = rules.NormalizeDate(params.EndDate)
	cur.LastOrderDate = ""
	if strings.TrimSpace(params.LastOrderDate) != "" {
		cur.LastOrderDate = rules.NormalizeDate(params.LastOrderDate)
	}
	cur.PeopleOnSite = params.PeopleOnSite
	cur.Notes = strings.TrimSpace(params.Notes)
	cur.PerformedBy = actor(ctx, params.PerformedBy)
	cur.StartedAt = &now
	cur.CompletedAt = nil
	cur.Items = []count.CountedItem{}
	cur.Recalculate()
	f.SyncLocationFlags()
	touch(f, now)

	if err := m.repo.SaveFacility(ctx, f); err != nil {
		return nil, &PersistenceError{Op: "start", Err: err}
	}

	written, err := m.audited(ctx, "startCount", cur.ID, result, func() (string, error) {
		return m.auditor.LogCountStart(ctx, cur.ID, map[string]any{
			"sequence":      cur.Sequence,
			"startDate":     cur.StartDate,
			"endDate":       cur.EndDate,
			"lastOrderDate": cur.LastOrderDate,
			"peopleOnSite":  cur.PeopleOnSite,
			"performedBy":   cur.PerformedBy,
		})
	})
	if err != nil {
		return nil, m.compensate(ctx, previous, f, false, rollback{cur.ID, audit.OpCountStart, written}, err)
	}

	m.logger.Info("count started", "count", cur.ID, "start", cur.StartDate, "end", cur.EndDate)
	return &StartResult{Accepted: true, Count: cur, Validation: result}, nil
}

// AddItem validates and appends an item to the active count.
func (m *Manager) AddItem(ctx context.Context, input rules.ItemInput) (*AddItemResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.beginMutation(); err != nil {
		return nil, err
	}

	state, previous, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	f := state.Facility
	cur := f.ActiveCount()
	if cur == nil {
		return nil, ErrNoCountInProgress
	}

	result := m.validator.ValidateItemAdd(input, cur, f)
	if !result.Valid {
		if err := m.reject(ctx, "addItem", cur.ID, result); err != nil {
			return nil, err
		}
		return &AddItemResult{Accepted: false, Index: -1, Aggregates: aggregatesOf(cur), Validation: result}, nil
	}

	qty, err := rules.ParseAmount(input.Quantity)
	if err != nil {
		return nil, fmt.Errorf("parsing quantity: %w", err)
	}
	price := decimal.Zero
	if strings.TrimSpace(input.UnitPrice) != "" {
		if price, err = rules.ParseAmount(input.UnitPrice); err != nil {
			return nil, fmt.Errorf("parsing unit price: %w", err)
		}
	}

	now := m.now().UTC()
	item := count.CountedItem{
		Location:   strings.TrimSpace(input.Location),
		ItemCode:   strings.TrimSpace(input.ItemCode),
		ItemName:   strings.TrimSpace(input.ItemName),
		Quantity:   qty,
		Unit:       strings.TrimSpace(input.Unit),
		UnitPrice:  price,
		TotalValue: qty.Mul(price),
		Notes:      strings.TrimSpace(input.Notes),
		AddedAt:    now,
		AddedBy:    actor(ctx, input.AddedBy),
	}
	cur.Items = append(cur.Items, item)
	cur.Recalculate()
	f.SyncLocationFlags()
	touch(f, now)

	if err := m.repo.SaveFacility(ctx, f); err != nil {
		return nil, &PersistenceError{Op: "add item", Err: err}
	}

	index := len(cur.Items) - 1
	written, err := m.audited(ctx, "addItem", cur.ID, result, func() (string, error) {
		return m.auditor.LogItemAdd(ctx, cur.ID, map[string]any{
			"index":        index,
			"location":     item.Location,
			"itemCode":     item.ItemCode,
			"itemName":     item.ItemName,
			"quantity":     item.Quantity,
			"unit":         item.Unit,
			"unitPrice":    item.UnitPrice,
			"totalValue":   item.TotalValue,
			"itemsCounted": cur.ItemsCounted,
		})
	})
	if err != nil {
		return nil, m.compensate(ctx, previous, f, false, rollback{cur.ID, audit.OpItemAdd, written}, err)
	}

	m.logger.Debug("item added", "count", cur.ID, "item", item.ItemCode, "location", item.Location)
	return &AddItemResult{
		Accepted:   true,
		Item:       &item,
		Index:      index,
		Aggregates: aggregatesOf(cur),
		Validation: result,
	}, nil
}

// DeleteItem removes the item at index from the active count.
func (m *Manager) DeleteItem(ctx context.Context, index int) (*DeleteItemResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.beginMutation(); err != nil {
		return nil, err
	}

	state, previous, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	f := state.Facility
	cur := f.ActiveCount()
	if cur == nil {
		return nil, ErrNoCountInProgress
	}
	if index < 0 || index >= len(cur.Items) {
		return nil, &StateError{
			Code:    ErrItemIndexOutOfRange.Code,
			Message: fmt.Sprintf("index %d is outside the %d counted items", index, len(cur.Items)),
		}
	}

	removed := cur.Items[index]
	cur.Items = append(cur.Items[:index], cur.Items[index+1:]...)
	cur.Recalculate()
	f.SyncLocationFlags()
	cleared := !cur.ReferencesLocation(removed.Location)
	touch(f, m.now().UTC())

	if err := m.repo.SaveFacility(ctx, f); err != nil {
		return nil, &PersistenceError{Op: "delete item", Err: err}
	}

	_, err = m.auditor.LogItemDelete(ctx, cur.ID, map[string]any{
		"index":           index,
		"location":        removed.Location,
		"itemCode":        removed.ItemCode,
		"itemName":        removed.ItemName,
		"quantity":        removed.Quantity,
		"totalValue":      removed.TotalValue,
		"locationCleared": cleared,
		"itemsCounted":    cur.ItemsCounted,
	})
	if err != nil {
		return nil, m.compensate(ctx, previous, f, false, rollback{countID: cur.ID, op: audit.OpItemDelete}, err)
	}

	m.logger.Debug("item deleted", "count", cur.ID, "item", removed.ItemCode, "location_cleared", cleared)
	return &DeleteItemResult{Item: removed, LocationCleared: cleared, Aggregates: aggregatesOf(cur)}, nil
}

// Complete closes the active count, archives it and spawns the next READY count.
func (m *Manager) Complete(ctx context.Context, req CompleteRequest) (*CompleteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.beginMutation(); err != nil {
		return nil, err
	}

	state, previous, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	f := state.Facility
	cur := f.ActiveCount()
	if cur == nil {
		return nil, ErrNoCountInProgress
	}

	result := m.validator.ValidateCountComplete(cur, state.History)
	if !result.Valid {
		if err := m.reject(ctx, "completeCount", cur.ID, result); err != nil {
			return nil, err
		}
		return &CompleteResult{Accepted: false, Validation: result}, nil
	}

	now := m.now().UTC()
	cur.Status = count.StatusCompleted
	cur.CompletedAt = &now
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		cur.Notes = notes
	}
	if by := strings.TrimSpace(req.PerformedBy); by != "" {
		cur.PerformedBy = by
	}

	record := cur.Snapshot(uuid.NewString(), now)
	state.History.Records = append(state.History.Records, record)

	f.Metadata.CompletedCounts++
	if f.Counts.First == nil {
		f.Counts.First = &count.CountRef{ID: cur.ID, StartDate: cur.StartDate, CompletedAt: now}
	}
	next := count.NewTemplate(cur.Sequence+1, now)
	f.Counts.Current = next
	f.SyncLocationFlags()
	touch(f, now)

	if err := m.repo.SaveAll(ctx, f, state.History); err != nil {
		return nil, &PersistenceError{Op: "complete", Err: err}
	}

	written, err := m.audited(ctx, "completeCount", cur.ID, result, func() (string, error) {
		return m.auditor.LogCountComplete(ctx, cur.ID, map[string]any{
			"historyRecordId":  record.ID,
			"itemsCounted":     record.ItemsCounted,
			"totalValue":       record.TotalValue,
			"locationsCounted": record.LocationsCounted,
			"performedBy":      record.PerformedBy,
			"nextCountId":      next.ID,
		})
	})
	if err != nil {
		return nil, m.compensate(ctx, previous, f, true, rollback{cur.ID, audit.OpCountComplete, written}, err)
	}

	m.logger.Info("count completed", "count", cur.ID, "items", record.ItemsCounted, "total", record.TotalValue.String())
	return &CompleteResult{Accepted: true, Record: &record, Next: next, Validation: result}, nil
}

// Current returns the current count: the active one, or the READY template.
func (m *Manager) Current(ctx context.Context) (*count.Count, error) {
	state, _, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	return state.Facility.Counts.Current, nil
}

// Facility returns a copy of the facility document.
func (m *Manager) Facility(ctx context.Context) (*count.Facility, error) {
	state, _, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	return state.Facility, nil
}

// Items returns the items of the current count in insertion order.
func (m *Manager) Items(ctx context.Context) ([]count.CountedItem, error) {
	cur, err := m.Current(ctx)
	if err != nil {
		return nil, err
	}
	if cur.Items == nil {
		return []count.CountedItem{}, nil
	}
	return cur.Items, nil
}

// ItemsByLocation returns the current count's items at one location.
func (m *Manager) ItemsByLocation(ctx context.Context, locationID string) ([]count.CountedItem, error) {
	state, _, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := state.Facility.Location(locationID); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLocation, locationID)
	}
	return state.Facility.Counts.Current.ItemsAt(locationID), nil
}

// Locations returns the facility locations with their counted flags.
func (m *Manager) Locations(ctx context.Context) ([]count.Location, error) {
	state, _, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	return state.Facility.Locations, nil
}

// History returns the completed counts, oldest first.
func (m *Manager) History(ctx context.Context) ([]count.HistoryRecord, error) {
	state, _, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	return state.History.Records, nil
}

// Comparison diffs the two most recent completed counts.
func (m *Manager) Comparison(ctx context.Context) (*count.Comparison, error) {
	state, _, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	cmp, err := state.History.Compare()
	if err != nil {
		return nil, err
	}
	return &cmp, nil
}
