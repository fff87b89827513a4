package mocks

import (
	"context"

	"github.com/rpggio/stockcount/internal/domain/count"
	"github.com/stretchr/testify/mock"
)

// DocumentRepository is a mock for count.Repository.
type DocumentRepository struct {
	mock.Mock
}

func (m *DocumentRepository) Load(ctx context.Context) (*count.State, error) {
	args := m.Called(ctx)
	if fn, ok := args.Get(0).(func(context.Context) *count.State); ok {
		return fn(ctx), args.Error(1)
	}
	if state, ok := args.Get(0).(*count.State); ok {
		return state, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *DocumentRepository) SaveFacility(ctx context.Context, facility *count.Facility) error {
	args := m.Called(ctx, facility)
	return args.Error(0)
}

func (m *DocumentRepository) SaveAll(ctx context.Context, facility *count.Facility, history *count.History) error {
	args := m.Called(ctx, facility, history)
	return args.Error(0)
}

// SegmentStore is a mock for audit.SegmentStore.
type SegmentStore struct {
	mock.Mock
}

func (m *SegmentStore) Append(ctx context.Context, day string, line []byte) error {
	args := m.Called(ctx, day, line)
	return args.Error(0)
}

func (m *SegmentStore) Read(ctx context.Context, day string) ([][]byte, error) {
	args := m.Called(ctx, day)
	if lines, ok := args.Get(0).([][]byte); ok {
		return lines, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SegmentStore) Days(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if days, ok := args.Get(0).([]string); ok {
		return days, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SegmentStore) Delete(ctx context.Context, day string) error {
	args := m.Called(ctx, day)
	return args.Error(0)
}
