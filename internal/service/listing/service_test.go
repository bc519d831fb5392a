package listing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/greenlane/marketdesk/internal/actor"
	"github.com/greenlane/marketdesk/internal/dto"
	"github.com/greenlane/marketdesk/internal/entity"
	"github.com/greenlane/marketdesk/internal/guard"
	repo "github.com/greenlane/marketdesk/internal/repository/listing"
	"github.com/greenlane/marketdesk/pkg/errorbank"
)

type fakeStore struct {
	listings map[int64]*entity.Listing
	updates  []int64
}

func (f *fakeStore) Create(_ context.Context, l *entity.Listing) error {
	l.ID = int64(len(f.listings) + 1)
	f.listings[l.ID] = l
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id int64) (*entity.Listing, error) {
	l, ok := f.listings[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return l, nil
}

func (f *fakeStore) List(context.Context, repo.Filter) ([]entity.Listing, error) {
	return nil, nil
}

func (f *fakeStore) Update(_ context.Context, l *entity.Listing) error {
	f.updates = append(f.updates, l.ID)
	return nil
}

type fakeGuard struct {
	res guard.Result
	err error
}

func (g *fakeGuard) Check(context.Context, entity.EntityType, int64, guard.Operation) (guard.Result, error) {
	return g.res, g.err
}

type stubRecorder struct {
	entries []*entity.AuditLog
}

func (r *stubRecorder) Log(_ context.Context, e *entity.AuditLog) error {
	r.entries = append(r.entries, e)
	return nil
}

func (r *stubRecorder) BestEffort(ctx context.Context, e *entity.AuditLog) {
	_ = r.Log(ctx, e)
}

func newTestService(store *fakeStore, g *fakeGuard, rec *stubRecorder) *Service {
	return &Service{
		repo:     store,
		guard:    g,
		recorder: rec,
		bulkMax:  50,
		logger:   zap.NewNop(),
	}
}

func moderatorContext() context.Context {
	return actor.WithActor(context.Background(), actor.Actor{ID: 7, Role: "admin"})
}

func storeWith(listings ...*entity.Listing) *fakeStore {
	f := &fakeStore{listings: map[int64]*entity.Listing{}}
	for _, l := range listings {
		f.listings[l.ID] = l
	}
	return f
}

func activeListing(id int64) *entity.Listing {
	return &entity.Listing{
		ID:        id,
		VendorID:  1,
		ProductID: 1,
		MarketID:  1,
		Status:    entity.ListingActive,
		AdminMeta: entity.AdminMeta{IsActive: true},
	}
}

func TestSetStatusKeepsFeaturedPlacement(t *testing.T) {
	l := activeListing(1)
	l.Featured = true
	store := storeWith(l)
	rec := &stubRecorder{}
	svc := newTestService(store, &fakeGuard{}, rec)

	got, err := svc.SetStatus(moderatorContext(), 1, entity.ListingInactive, "seasonal pause")
	require.NoError(t, err)

	assert.Equal(t, entity.ListingInactive, got.Status)
	assert.True(t, got.Featured, "placement survives leaving active")
	require.NotNil(t, got.LastStatusAt)
	require.NotNil(t, got.ModeratedBy)
	assert.Equal(t, int64(7), *got.ModeratedBy)

	require.Len(t, rec.entries, 1)
	assert.Equal(t, "listing_status_changed", rec.entries[0].Action)
	assert.Equal(t, "active", rec.entries[0].Metadata["old_status"])
}

func TestFlagStampsModeration(t *testing.T) {
	t.Run("flag sets moderator and timestamp", func(t *testing.T) {
		store := storeWith(activeListing(1))
		rec := &stubRecorder{}
		svc := newTestService(store, &fakeGuard{}, rec)

		got, err := svc.Flag(moderatorContext(), 1, "mislabelled origin")
		require.NoError(t, err)

		assert.True(t, got.IsFlagged)
		assert.Equal(t, "mislabelled origin", got.FlagReason)
		require.NotNil(t, got.ModeratedBy)
		assert.Equal(t, int64(7), *got.ModeratedBy)
		require.NotNil(t, got.LastStatusAt)
		require.Len(t, rec.entries, 1)
		assert.Equal(t, "listing_flagged", rec.entries[0].Action)
	})

	t.Run("unflag sets moderator and timestamp", func(t *testing.T) {
		l := activeListing(1)
		l.IsFlagged = true
		l.FlagReason = "mislabelled origin"
		store := storeWith(l)
		rec := &stubRecorder{}
		svc := newTestService(store, &fakeGuard{}, rec)

		got, err := svc.Unflag(moderatorContext(), 1)
		require.NoError(t, err)

		assert.False(t, got.IsFlagged)
		assert.Empty(t, got.FlagReason)
		require.NotNil(t, got.ModeratedBy)
		require.NotNil(t, got.LastStatusAt)
		require.Len(t, rec.entries, 1)
		assert.Equal(t, "listing_unflagged", rec.entries[0].Action)
	})

	t.Run("flag requires a reason", func(t *testing.T) {
		svc := newTestService(storeWith(activeListing(1)), &fakeGuard{}, &stubRecorder{})

		_, err := svc.Flag(moderatorContext(), 1, "")

		var appErr *errorbank.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, errorbank.KindBadRequest, appErr.Kind())
	})
}

func TestBulkCapRejectsWholesale(t *testing.T) {
	store := storeWith()
	rec := &stubRecorder{}
	svc := newTestService(store, &fakeGuard{}, rec)

	ids := make([]int64, 51)
	for i := range ids {
		ids[i] = int64(i + 1)
	}

	res, err := svc.Bulk(moderatorContext(), dto.BulkModerationRequest{ListingIDs: ids, Action: "feature"})

	var appErr *errorbank.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errorbank.KindBadRequest, appErr.Kind())
	assert.Nil(t, res)
	assert.Empty(t, store.updates, "nothing processed on wholesale rejection")
	assert.Empty(t, rec.entries)
}

func TestBulkIsolatesItemFailures(t *testing.T) {
	discontinued := activeListing(2)
	discontinued.Status = entity.ListingDiscontinued
	store := storeWith(activeListing(1), discontinued, activeListing(3))
	rec := &stubRecorder{}
	svc := newTestService(store, &fakeGuard{}, rec)

	res, err := svc.Bulk(moderatorContext(), dto.BulkModerationRequest{ListingIDs: []int64{1, 2, 3}, Action: "feature"})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Requested)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, int64(2), res.Errors[0].ListingID)
	assert.Equal(t, "only active listings can be featured", res.Errors[0].Error)

	assert.True(t, store.listings[1].Featured)
	assert.False(t, store.listings[2].Featured)
	assert.True(t, store.listings[3].Featured)

	require.Len(t, rec.entries, 1, "whole batch logs exactly once")
	entry := rec.entries[0]
	assert.Equal(t, "listing_bulk_moderation", entry.Action)
	assert.Equal(t, 2, entry.Metadata["processed"])
	assert.Equal(t, 1, entry.Metadata["failed"])
}

func TestSoftDeleteBlockedByOpenOrders(t *testing.T) {
	store := storeWith(activeListing(1))
	blocked := &fakeGuard{res: guard.Result{
		Blocking:    true,
		Counts:      map[string]int{"openOrders": 1},
		Suggestions: []string{"Wait for open orders referencing this listing to complete or cancel them"},
	}}
	rec := &stubRecorder{}
	svc := newTestService(store, blocked, rec)

	err := svc.SoftDelete(moderatorContext(), 1)

	var appErr *errorbank.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errorbank.KindDependencyBlocked, appErr.Kind())

	deps, ok := appErr.Details()["dependencies"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1, deps["openOrders"])
	assert.NotEmpty(t, appErr.Details()["suggestions"])

	assert.Empty(t, store.updates, "blocked delete writes nothing")
	assert.False(t, store.listings[1].IsDeleted)
}

func TestBulkUnknownListingRecordedPerItem(t *testing.T) {
	store := storeWith(activeListing(1))
	rec := &stubRecorder{}
	svc := newTestService(store, &fakeGuard{}, rec)

	res, err := svc.Bulk(moderatorContext(), dto.BulkModerationRequest{ListingIDs: []int64{1, 99}, Action: "set_status", Status: "inactive"})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, int64(99), res.Errors[0].ListingID)
	require.Len(t, rec.entries, 1)
	assert.Equal(t, "bulk set_status over 2 listings: 1 processed, 1 failed", rec.entries[0].Description)
}
