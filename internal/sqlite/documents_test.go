package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/rpggio/stockcount/internal/domain/count"
	"github.com/rpggio/stockcount/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testFacility(version int) *count.Facility {
	return &count.Facility{
		ID:        "main",
		Name:      "Main kitchen",
		Locations: []count.Location{{ID: "DRY-1"}, {ID: "FREEZER-A"}},
		Counts:    count.Counts{Current: count.NewTemplate(1, time.Now().UTC())},
		Metadata:  count.Metadata{Version: version, LastUpdated: time.Now().UTC()},
	}
}

func testRecord(id, countID string, seq int) count.HistoryRecord {
	return count.HistoryRecord{
		ID:           id,
		CountID:      countID,
		Sequence:     seq,
		ItemsCounted: 3,
		TotalValue:   decimal.RequireFromString("120.50"),
		CompletedAt:  time.Date(2025, 1, seq, 0, 0, 0, 0, time.UTC),
		ArchivedAt:   time.Date(2025, 1, seq, 0, 0, 0, 0, time.UTC),
	}
}

func TestDocumentRepository_LoadEmpty(t *testing.T) {
	repo := NewDocumentRepository(NewTestDB(t))

	_, err := repo.Load(context.Background())
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDocumentRepository_SaveAllAndLoad(t *testing.T) {
	db := NewTestDB(t)
	repo := NewDocumentRepository(db)
	ctx := context.Background()

	history := &count.History{Records: []count.HistoryRecord{
		testRecord("h2", "CNT-0002", 2),
		testRecord("h1", "CNT-0001", 1),
	}}
	require.NoError(t, repo.SaveAll(ctx, testFacility(1), history))

	state, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "Main kitchen", state.Facility.Name)
	require.Len(t, state.History.Records, 2)
	require.Equal(t, "CNT-0001", state.History.Records[0].CountID)
	require.True(t, decimal.RequireFromString("120.5").Equal(state.History.Records[1].TotalValue))

	var stored string
	require.NoError(t, db.QueryRow("SELECT total_value FROM history_records WHERE id = 'h1'").Scan(&stored))
	require.Equal(t, "120.5", stored)
}

func TestDocumentRepository_SaveFacility(t *testing.T) {
	repo := NewDocumentRepository(NewTestDB(t))
	ctx := context.Background()

	require.ErrorIs(t, repo.SaveFacility(ctx, testFacility(1)), repository.ErrNotFound)
	require.NoError(t, repo.SaveAll(ctx, testFacility(1), &count.History{}))

	f := testFacility(2)
	f.Name = "Renamed"
	require.NoError(t, repo.SaveFacility(ctx, f))

	state, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "Renamed", state.Facility.Name)
	require.Equal(t, 2, state.Facility.Metadata.Version)
}

func TestDocumentRepository_VersionConflict(t *testing.T) {
	repo := NewDocumentRepository(NewTestDB(t))
	ctx := context.Background()
	require.NoError(t, repo.SaveAll(ctx, testFacility(1), &count.History{}))

	require.ErrorIs(t, repo.SaveFacility(ctx, testFacility(1)), repository.ErrConflict)
	require.ErrorIs(t, repo.SaveAll(ctx, testFacility(5), &count.History{}), repository.ErrConflict)

	other := testFacility(2)
	other.ID = "annex"
	require.ErrorIs(t, repo.SaveFacility(ctx, other), repository.ErrConflict)
}

func TestDocumentRepository_SaveAllRollsBackOnDuplicate(t *testing.T) {
	repo := NewDocumentRepository(NewTestDB(t))
	ctx := context.Background()
	require.NoError(t, repo.SaveAll(ctx, testFacility(1), &count.History{}))

	dup := &count.History{Records: []count.HistoryRecord{
		testRecord("h1", "CNT-0001", 1),
		testRecord("h2", "CNT-0001", 2),
	}}
	f := testFacility(2)
	f.Name = "Should not persist"
	err := repo.SaveAll(ctx, f, dup)
	require.ErrorIs(t, err, count.ErrInvalidDocument)

	state, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "Main kitchen", state.Facility.Name)
	require.Empty(t, state.History.Records)
}

func TestDocumentRepository_HistoryReplacedOnRollback(t *testing.T) {
	repo := NewDocumentRepository(NewTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.SaveAll(ctx, testFacility(1), &count.History{}))
	require.NoError(t, repo.SaveAll(ctx, testFacility(2), &count.History{Records: []count.HistoryRecord{testRecord("h1", "CNT-0001", 1)}}))
	require.NoError(t, repo.SaveAll(ctx, testFacility(3), &count.History{}))

	state, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, state.History.Records)
}
