package lifecycle_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rpggio/stockcount/internal/domain/audit"
	"github.com/rpggio/stockcount/internal/domain/count"
	"github.com/rpggio/stockcount/internal/domain/lifecycle"
	"github.com/rpggio/stockcount/internal/domain/rules"
	"github.com/rpggio/stockcount/internal/filelog"
	"github.com/rpggio/stockcount/internal/memstore"
	"github.com/rpggio/stockcount/internal/repository"
	"github.com/rpggio/stockcount/internal/repository/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

type fixture struct {
	manager *lifecycle.Manager
	store   *memstore.Store
	audit   *audit.Service
}

func seedFacility() *count.Facility {
	return &count.Facility{
		ID:   "main",
		Name: "Main kitchen",
		Locations: []count.Location{
			{ID: "DRY-1", Name: "Dry store"},
			{ID: "FREEZER-A", Name: "Freezer A"},
			{ID: "COOLER", Name: "Walk-in cooler"},
		},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir, err := filelog.New(t.TempDir(), "audit-")
	require.NoError(t, err)
	auditSvc, err := audit.NewService(dir, 1, nil, audit.WithClock(clock))
	require.NoError(t, err)

	store := memstore.New()
	m := lifecycle.NewManager(store, rules.New(rules.WithClock(clock)), auditSvc, nil, lifecycle.WithClock(clock))

	created, err := m.Bootstrap(context.Background(), seedFacility())
	require.NoError(t, err)
	require.True(t, created)
	return &fixture{manager: m, store: store, audit: auditSvc}
}

func startParams() rules.StartParams {
	return rules.StartParams{StartDate: "2025-01-01", EndDate: "2025-01-02", PeopleOnSite: 3}
}

func itemInput(location, code, qty, price string) rules.ItemInput {
	return rules.ItemInput{
		Location:  location,
		ItemCode:  code,
		ItemName:  "Item " + code,
		Quantity:  qty,
		Unit:      "each",
		UnitPrice: price,
	}
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	res, err := f.manager.Start(context.Background(), startParams())
	require.NoError(t, err)
	require.True(t, res.Accepted)
}

func (f *fixture) add(t *testing.T, in rules.ItemInput) *lifecycle.AddItemResult {
	t.Helper()
	res, err := f.manager.AddItem(context.Background(), in)
	require.NoError(t, err)
	require.True(t, res.Accepted, "errors: %+v", res.Validation.Errors)
	return res
}

func TestBootstrap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.manager.Bootstrap(ctx, seedFacility())
	require.NoError(t, err)
	require.False(t, created)

	cur, err := f.manager.Current(ctx)
	require.NoError(t, err)
	require.Equal(t, "CNT-0001", cur.ID)
	require.Equal(t, count.StatusReady, cur.Status)
}

func TestNotBootstrapped(t *testing.T) {
	m := lifecycle.NewManager(memstore.New(), nil, nil, nil)
	_, err := m.Current(context.Background())
	require.ErrorIs(t, err, lifecycle.ErrNotBootstrapped)
}

func TestStart(t *testing.T) {
	f := newFixture(t)
	ctx := audit.ContextWithMetadata(context.Background(), audit.Metadata{UserID: "alice"})

	res, err := f.manager.Start(ctx, rules.StartParams{
		StartDate:     "2025-01-01T08:00:00Z",
		EndDate:       "2025-01-02",
		LastOrderDate: "2024-12-30",
		PeopleOnSite:  3,
	})
	require.NoError(t, err)
	require.True(t, res.Accepted)
	require.Empty(t, res.Validation.Errors)
	require.Equal(t, count.StatusInProgress, res.Count.Status)
	require.Equal(t, "2025-01-01", res.Count.StartDate)
	require.Equal(t, "alice", res.Count.PerformedBy)
	require.Equal(t, testNow, *res.Count.StartedAt)

	entries, err := f.audit.QueryLogs(ctx, audit.Filters{Operation: audit.OpCountStart})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "CNT-0001", entries[0].CountID())
	require.Equal(t, "alice", entries[0].Metadata.UserID)
}

func TestStart_RejectedByValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.manager.Start(ctx, rules.StartParams{StartDate: "2025-01-10", EndDate: "2025-01-05", PeopleOnSite: 2})
	require.NoError(t, err)
	require.False(t, res.Accepted)
	require.True(t, res.Validation.HasError(rules.CodeInvalidDateRange))

	cur, err := f.manager.Current(ctx)
	require.NoError(t, err)
	require.Equal(t, count.StatusReady, cur.Status)

	failures, err := f.audit.QueryLogs(ctx, audit.Filters{Operation: audit.OpValidationFailure})
	require.NoError(t, err)
	require.Len(t, failures, 1)
}

func TestStart_CountAlreadyInProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.start(t)
	f.add(t, itemInput("DRY-1", "100", "2", "3"))

	_, err := f.manager.Start(ctx, startParams())
	require.ErrorIs(t, err, lifecycle.ErrCountInProgress)
	var stateErr *lifecycle.StateError
	require.True(t, errors.As(err, &stateErr))
	require.Equal(t, "COUNT_IN_PROGRESS", stateErr.Code)

	cur, err := f.manager.Current(ctx)
	require.NoError(t, err)
	require.Equal(t, count.StatusInProgress, cur.Status)
	require.Len(t, cur.Items, 1)

	failures, err := f.audit.QueryLogs(ctx, audit.Filters{Operation: audit.OpValidationFailure})
	require.NoError(t, err)
	require.Empty(t, failures)
}

func TestAddItem_Aggregates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.start(t)

	res := f.add(t, itemInput("FREEZER-A", "10010421", "12", "18.50"))
	require.Equal(t, 0, res.Index)
	require.True(t, decimal.RequireFromString("222").Equal(res.Item.TotalValue))

	f.add(t, itemInput("DRY-1", "200", "2", "3"))
	res = f.add(t, itemInput("FREEZER-A", "300", "3", ""))
	require.True(t, res.Validation.HasWarning(rules.CodeZeroPrice))

	require.Equal(t, 3, res.Aggregates.ItemsCounted)
	require.True(t, decimal.RequireFromString("228").Equal(res.Aggregates.TotalValue))
	require.Equal(t, []string{"DRY-1", "FREEZER-A"}, res.Aggregates.LocationsCounted)

	locations, err := f.manager.Locations(ctx)
	require.NoError(t, err)
	flags := map[string]bool{}
	for _, loc := range locations {
		flags[loc.ID] = loc.Counted
	}
	require.Equal(t, map[string]bool{"DRY-1": true, "FREEZER-A": true, "COOLER": false}, flags)

	atFreezer, err := f.manager.ItemsByLocation(ctx, "FREEZER-A")
	require.NoError(t, err)
	require.Len(t, atFreezer, 2)

	_, err = f.manager.ItemsByLocation(ctx, "ATTIC")
	require.ErrorIs(t, err, lifecycle.ErrUnknownLocation)

	warnings, err := f.audit.QueryLogs(ctx, audit.Filters{Operation: audit.OpValidationWarning})
	require.NoError(t, err)
	require.Len(t, warnings, 1)
}

func TestAddItem_DuplicateWarning(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.add(t, itemInput("FREEZER-A", "10010421", "2", "1"))

	res := f.add(t, itemInput("FREEZER-A", "10010421", "5", "1"))
	require.True(t, res.Validation.HasWarning(rules.CodeDuplicateItem))
	require.Equal(t, 2, res.Aggregates.ItemsCounted)
}

func TestAddItem_Rejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.start(t)

	res, err := f.manager.AddItem(ctx, itemInput("DRY-1", "1", "-5", "2"))
	require.NoError(t, err)
	require.False(t, res.Accepted)
	require.True(t, res.Validation.HasError(rules.CodeInvalidQuantity))

	items, err := f.manager.Items(ctx)
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestAddItem_NoCountInProgress(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.AddItem(context.Background(), itemInput("DRY-1", "1", "1", "1"))
	require.ErrorIs(t, err, lifecycle.ErrNoCountInProgress)
}

func TestDeleteItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.start(t)
	f.add(t, itemInput("DRY-1", "1", "2", "5"))
	f.add(t, itemInput("COOLER", "2", "1", "7"))
	f.add(t, itemInput("DRY-1", "3", "1", "1"))

	res, err := f.manager.DeleteItem(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "2", res.Item.ItemCode)
	require.True(t, res.LocationCleared)
	require.Equal(t, 2, res.Aggregates.ItemsCounted)
	require.True(t, decimal.NewFromInt(11).Equal(res.Aggregates.TotalValue))
	require.Equal(t, []string{"DRY-1"}, res.Aggregates.LocationsCounted)

	locations, err := f.manager.Locations(ctx)
	require.NoError(t, err)
	for _, loc := range locations {
		if loc.ID == "COOLER" {
			require.False(t, loc.Counted)
		}
	}

	res, err = f.manager.DeleteItem(ctx, 0)
	require.NoError(t, err)
	require.False(t, res.LocationCleared)

	_, err = f.manager.DeleteItem(ctx, 5)
	require.ErrorIs(t, err, lifecycle.ErrItemIndexOutOfRange)
	_, err = f.manager.DeleteItem(ctx, -1)
	require.ErrorIs(t, err, lifecycle.ErrItemIndexOutOfRange)

	deletes, err := f.audit.QueryLogs(ctx, audit.Filters{Operation: audit.OpItemDelete})
	require.NoError(t, err)
	require.Len(t, deletes, 2)
}

func TestComplete_EmptyCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.start(t)

	res, err := f.manager.Complete(ctx, lifecycle.CompleteRequest{})
	require.NoError(t, err)
	require.False(t, res.Accepted)
	require.True(t, res.Validation.HasError(rules.CodeInsufficientItems))

	cur, err := f.manager.Current(ctx)
	require.NoError(t, err)
	require.Equal(t, count.StatusInProgress, cur.Status)
	history, err := f.manager.History(ctx)
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestComplete_NoCountInProgress(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.Complete(context.Background(), lifecycle.CompleteRequest{})
	require.ErrorIs(t, err, lifecycle.ErrNoCountInProgress)
}

func TestCompleteCycleAndComparison(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.start(t)
	f.add(t, itemInput("DRY-1", "1", "10", "20"))
	first, err := f.manager.Complete(ctx, lifecycle.CompleteRequest{Notes: "year end", PerformedBy: "bob"})
	require.NoError(t, err)
	require.True(t, first.Accepted)
	require.Equal(t, "CNT-0001", first.Record.CountID)
	require.Equal(t, "CNT-0002", first.Next.ID)
	require.Equal(t, count.StatusReady, first.Next.Status)

	_, err = f.manager.Comparison(ctx)
	require.ErrorIs(t, err, count.ErrInsufficientHistory)

	facility, err := f.manager.Facility(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, facility.Metadata.CompletedCounts)
	require.Equal(t, "CNT-0001", facility.Counts.First.ID)
	require.Equal(t, "2025-01-01", facility.Counts.First.StartDate)
	for _, loc := range facility.Locations {
		require.False(t, loc.Counted)
	}

	f.start(t)
	f.add(t, itemInput("DRY-1", "1", "10", "25"))
	f.add(t, itemInput("COOLER", "2", "2", "0"))
	second, err := f.manager.Complete(ctx, lifecycle.CompleteRequest{})
	require.NoError(t, err)
	require.True(t, second.Accepted)

	cmp, err := f.manager.Comparison(ctx)
	require.NoError(t, err)
	require.Equal(t, "CNT-0001", cmp.PreviousCountID)
	require.Equal(t, "CNT-0002", cmp.CurrentCountID)
	require.Equal(t, 1, cmp.ItemDelta)
	require.True(t, decimal.NewFromInt(50).Equal(cmp.ValueDelta))
	require.Equal(t, "25", cmp.PercentChange.String())

	facility, err = f.manager.Facility(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, facility.Metadata.CompletedCounts)
	require.Equal(t, "CNT-0001", facility.Counts.First.ID)
	require.Equal(t, "CNT-0003", facility.Counts.Current.ID)

	trail, err := f.audit.GetCountAuditTrail(ctx, "CNT-0002")
	require.NoError(t, err)
	require.Equal(t, 1, trail.Summary.Completed)
	require.Equal(t, 2, trail.Summary.ItemsAdded)
}

func TestComplete_LowItemCountWarning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.start(t)
	for i := 0; i < 20; i++ {
		f.add(t, itemInput("DRY-1", "1", "1", "1"))
	}
	_, err := f.manager.Complete(ctx, lifecycle.CompleteRequest{})
	require.NoError(t, err)

	f.start(t)
	for i := 0; i < 5; i++ {
		f.add(t, itemInput("DRY-1", "1", "1", "1"))
	}
	res, err := f.manager.Complete(ctx, lifecycle.CompleteRequest{})
	require.NoError(t, err)
	require.True(t, res.Accepted)
	require.True(t, res.Validation.HasWarning(rules.CodeLowItemCount))
}

func TestSingleInProgressInvariant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	check := func() {
		facility, err := f.manager.Facility(ctx)
		require.NoError(t, err)
		history, err := f.manager.History(ctx)
		require.NoError(t, err)
		active := 0
		if facility.Counts.Current.Status == count.StatusInProgress {
			active++
		}
		for _, rec := range history {
			require.NotEmpty(t, rec.CountID)
		}
		require.LessOrEqual(t, active, 1)
	}

	for round := 0; round < 3; round++ {
		f.start(t)
		check()
		_, err := f.manager.Start(ctx, startParams())
		require.ErrorIs(t, err, lifecycle.ErrCountInProgress)
		f.add(t, itemInput("DRY-1", "1", "1", "1"))
		check()
		_, err = f.manager.Complete(ctx, lifecycle.CompleteRequest{})
		require.NoError(t, err)
		check()
	}
}

func TestPersistenceFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	base := newFixture(t)
	base.start(t)

	state, err := base.store.Load(ctx)
	require.NoError(t, err)

	repo := &mocks.DocumentRepository{}
	repo.On("Load", mock.Anything).Return(func(context.Context) *count.State {
		clone, _ := count.CloneState(state)
		return clone
	}, nil)
	repo.On("SaveFacility", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	m := lifecycle.NewManager(repo, rules.New(rules.WithClock(clock)), base.audit, nil, lifecycle.WithClock(clock))
	_, err = m.AddItem(ctx, itemInput("DRY-1", "1", "1", "1"))
	require.Error(t, err)
	var persistErr *lifecycle.PersistenceError
	require.True(t, errors.As(err, &persistErr))

	items, err := m.Items(ctx)
	require.NoError(t, err)
	require.Empty(t, items)

	adds, err := base.audit.QueryLogs(ctx, audit.Filters{Operation: audit.OpItemAdd})
	require.NoError(t, err)
	require.Empty(t, adds)
}

type failingAuditor struct {
	lifecycle.Auditor
	failOn audit.Operation
}

func (a failingAuditor) LogItemAdd(ctx context.Context, countID string, details map[string]any) (string, error) {
	if a.failOn == audit.OpItemAdd {
		return "", &audit.WriteError{Operation: audit.OpItemAdd, Err: errors.New("audit disk full")}
	}
	return a.Auditor.LogItemAdd(ctx, countID, details)
}

func (a failingAuditor) LogValidationWarning(ctx context.Context, operation, countID string, issues any) (string, error) {
	if a.failOn == audit.OpValidationWarning {
		return "", &audit.WriteError{Operation: audit.OpValidationWarning, Err: errors.New("audit disk full")}
	}
	return a.Auditor.LogValidationWarning(ctx, operation, countID, issues)
}

func TestAuditFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	base := newFixture(t)
	base.start(t)

	m := lifecycle.NewManager(base.store, rules.New(rules.WithClock(clock)),
		failingAuditor{Auditor: base.audit, failOn: audit.OpItemAdd}, nil, lifecycle.WithClock(clock))

	_, err := m.AddItem(ctx, itemInput("DRY-1", "1", "1", "1"))
	require.Error(t, err)
	var writeErr *audit.WriteError
	require.True(t, errors.As(err, &writeErr))
	require.False(t, m.Inconsistent())

	items, err := m.Items(ctx)
	require.NoError(t, err)
	require.Empty(t, items)

	locations, err := m.Locations(ctx)
	require.NoError(t, err)
	for _, loc := range locations {
		require.False(t, loc.Counted)
	}
}

func TestWarningAuditFailureCancelsPrimaryEntry(t *testing.T) {
	ctx := context.Background()
	base := newFixture(t)

	m := lifecycle.NewManager(base.store, rules.New(rules.WithClock(clock)),
		failingAuditor{Auditor: base.audit, failOn: audit.OpValidationWarning}, nil, lifecycle.WithClock(clock))

	params := startParams()
	params.PeopleOnSite = 25
	_, err := m.Start(ctx, params)
	var writeErr *audit.WriteError
	require.True(t, errors.As(err, &writeErr))
	require.Equal(t, audit.OpValidationWarning, writeErr.Operation)
	require.False(t, m.Inconsistent())

	cur, err := m.Current(ctx)
	require.NoError(t, err)
	require.Equal(t, count.StatusReady, cur.Status)

	trail, err := base.audit.GetCountAuditTrail(ctx, cur.ID)
	require.NoError(t, err)
	require.Len(t, trail.Entries, 2)
	require.Equal(t, audit.OpCountStart, trail.Entries[0].Operation)
	require.Equal(t, audit.OpRollback, trail.Entries[1].Operation)
	require.Equal(t, 0, trail.Summary.Starts)
	require.Equal(t, 1, trail.Summary.RolledBack)
	require.False(t, trail.Complete)
}

func TestAuditFailureWithFailedCompensation(t *testing.T) {
	ctx := context.Background()
	base := newFixture(t)
	base.start(t)

	state, err := base.store.Load(ctx)
	require.NoError(t, err)

	repo := &mocks.DocumentRepository{}
	repo.On("Load", mock.Anything).Return(func(context.Context) *count.State {
		clone, _ := count.CloneState(state)
		return clone
	}, nil)
	repo.On("SaveFacility", mock.Anything, mock.Anything).Return(nil).Once()
	repo.On("SaveFacility", mock.Anything, mock.Anything).Return(repository.ErrConflict).Once()

	m := lifecycle.NewManager(repo, rules.New(rules.WithClock(clock)),
		failingAuditor{Auditor: base.audit, failOn: audit.OpItemAdd}, nil, lifecycle.WithClock(clock))

	_, err = m.AddItem(ctx, itemInput("DRY-1", "1", "1", "1"))
	require.ErrorIs(t, err, lifecycle.ErrStoreInconsistent)
	require.True(t, m.Inconsistent())

	_, err = m.DeleteItem(ctx, 0)
	require.ErrorIs(t, err, lifecycle.ErrStoreInconsistent)

	m.ClearInconsistent()
	require.False(t, m.Inconsistent())
	repo.AssertExpectations(t)
}
