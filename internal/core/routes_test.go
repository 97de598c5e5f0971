package core_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/routeimport/internal/core"
)

// ============================================================================
// Resolver
// ============================================================================

func TestResolveCoordinates_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, created, err := f.svc.ResolveCoordinates(ctx, core.CoordinatesValue{X: 1.5, Y: 2})
	require.NoError(t, err)
	assert.True(t, created)

	b, created, err := f.svc.ResolveCoordinates(ctx, core.CoordinatesValue{X: 1.5, Y: 2})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, a.ID, b.ID)

	all, err := f.svc.AvailableCoordinates(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestResolveCoordinates_RejectsYAboveLimit(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.ResolveCoordinates(context.Background(), core.CoordinatesValue{X: 1, Y: 808})
	assert.ErrorIs(t, err, core.ErrInvalidRoute)
}

func TestResolveLocation_NameIsPartOfKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	unnamed, _, err := f.svc.ResolveLocation(ctx, core.LocationValue{X: 1, Y: 1})
	require.NoError(t, err)
	blank, created, err := f.svc.ResolveLocation(ctx, core.LocationValue{X: 1, Y: 1, Name: name("  ")})
	require.NoError(t, err)
	assert.False(t, created, "a blank name is no name")
	assert.Equal(t, unnamed.ID, blank.ID)

	named, created, err := f.svc.ResolveLocation(ctx, core.LocationValue{X: 1, Y: 1, Name: name("Depot")})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, unnamed.ID, named.ID)
}

type conflictingRepo struct {
	core.Repository
	raced bool
}

// InsertCoordinates simulates losing an insert race once: another writer
// persisted the same value between find and insert.
func (r *conflictingRepo) InsertCoordinates(ctx context.Context, v core.CoordinatesValue) (core.Coordinates, error) {
	if !r.raced {
		r.raced = true
		if _, err := r.Repository.InsertCoordinates(ctx, v); err != nil {
			return core.Coordinates{}, err
		}
		return core.Coordinates{}, core.ErrConflict
	}
	return r.Repository.InsertCoordinates(ctx, v)
}

func TestResolver_ReselectsAfterLostRace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	repo := &conflictingRepo{Repository: f.store}
	c, created, err := core.NewResolver(repo).FindOrCreateCoordinates(ctx, core.CoordinatesValue{X: 3, Y: 4})
	require.NoError(t, err)
	assert.False(t, created)

	all, err := f.store.ListCoordinates(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, all[0].ID, c.ID)
}

// ============================================================================
// Create / Update
// ============================================================================

func TestCreateRoute_SharesEntitiesByValue(t *testing.T) {
	f := newFixture(t)
	a := f.mustCreate(t, spec("Alpha", start, end))
	b := f.mustCreate(t, spec("Beta", end, start))

	assert.Equal(t, a.Coordinates.ID, b.Coordinates.ID)
	assert.Equal(t, a.From.ID, b.To.ID)
	assert.Equal(t, a.To.ID, b.From.ID)
	assert.Equal(t, int64(1), a.Version)
	assert.False(t, a.CreationDate.IsZero())

	require.NotNil(t, b.Coordinates.OwnerRouteID)
	got, err := f.svc.GetRoute(context.Background(), a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Coordinates.OwnerRouteID)
	assert.Equal(t, b.ID, *got.Coordinates.OwnerRouteID, "owner hint follows the last writer")
}

func TestCreateRoute_DuplicateNameCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	first := f.mustCreate(t, spec("Alpha", start, end))

	_, err := f.svc.CreateRoute(context.Background(), spec("  aLPHA ", start, end))
	var dup *core.DuplicateNameError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, first.ID, dup.ExistingID)
	assert.Equal(t, int64(1), f.routeCount(t))
}

func TestCreateRoute_ZeroDistanceRejectsAndLeavesNothing(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateRoute(context.Background(), spec("Loop", depot, depot))
	assert.ErrorIs(t, err, core.ErrZeroDistance)

	locs, err := f.svc.AvailableLocations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, locs)
}

func TestCreateRoute_FieldValidation(t *testing.T) {
	f := newFixture(t)
	bad := spec("Bad", start, end)
	bad.Coordinates.Y = 900
	bad.Distance = 1
	bad.Rating = 0

	_, err := f.svc.CreateRoute(context.Background(), bad)
	require.ErrorIs(t, err, core.ErrInvalidRoute)

	var verrs core.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	fields := make([]string, 0, len(verrs))
	for _, v := range verrs {
		fields = append(fields, v.Field)
	}
	assert.ElementsMatch(t, []string{"coordinates.y", "distance", "rating"}, fields)
}

func TestUpdateRoute_KeepsCreationDateAndReclaimsOrphans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.mustCreate(t, spec("Alpha", start, end))

	s := spec("Alpha renamed", start, depot)
	s.Coordinates = core.CoordinatesValue{X: 7, Y: 7}
	updated, err := f.svc.UpdateRoute(ctx, r.ID, s, r.Version)
	require.NoError(t, err)

	assert.Equal(t, r.CreationDate, updated.CreationDate)
	assert.Equal(t, r.Version+1, updated.Version)
	assert.Equal(t, "Alpha renamed", updated.Name)

	_, err = f.store.GetCoordinates(ctx, r.Coordinates.ID)
	assert.ErrorIs(t, err, core.ErrNotFound, "old coordinates are reclaimed")
	_, err = f.store.GetLocation(ctx, r.To.ID)
	assert.ErrorIs(t, err, core.ErrNotFound, "old to location is reclaimed")
	_, err = f.store.GetLocation(ctx, r.From.ID)
	assert.NoError(t, err, "from location is still used")
}

func TestUpdateRoute_StaleVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.mustCreate(t, spec("Alpha", start, end))

	_, err := f.svc.UpdateRoute(ctx, r.ID, spec("Alpha", start, end), r.Version)
	require.NoError(t, err)

	_, err = f.svc.UpdateRoute(ctx, r.ID, spec("Alpha", start, depot), r.Version)
	assert.ErrorIs(t, err, core.ErrVersionConflict)
}

func TestUpdateRoute_NameTakenByAnotherRoute(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, spec("Alpha", start, end))
	b := f.mustCreate(t, spec("Beta", start, end))

	_, err := f.svc.UpdateRoute(context.Background(), b.ID, spec("alpha", start, end), 0)
	assert.ErrorIs(t, err, core.ErrDuplicateName)

	_, err = f.svc.UpdateRoute(context.Background(), b.ID, spec("BETA", start, end), 0)
	assert.NoError(t, err, "a route may keep its own name")
}

// ============================================================================
// Delete / reference counting
// ============================================================================

func TestDeleteRoute_ReferenceCounting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.mustCreate(t, spec("A", start, end))
	b := f.mustCreate(t, spec("B", start, end))
	c := a.Coordinates.ID

	require.NoError(t, f.svc.DeleteRoute(ctx, a.ID))
	n, err := core.NewResolver(f.store).CoordinatesUsage(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = f.store.GetCoordinates(ctx, c)
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteRoute(ctx, b.ID))
	_, err = f.store.GetCoordinates(ctx, c)
	assert.ErrorIs(t, err, core.ErrNotFound)
	locs, err := f.svc.AvailableLocations(ctx)
	require.NoError(t, err)
	assert.Empty(t, locs)
}

func TestDeleteRoute_CleanupIsBestEffort(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.mustCreate(t, spec("A", start, end))

	f.store.FailOn("DeleteCoordinates", errors.New("disk full"))
	require.NoError(t, f.svc.DeleteRoute(ctx, r.ID))
	f.store.ClearFaults()

	_, err := f.svc.GetRoute(ctx, r.ID)
	assert.ErrorIs(t, err, core.ErrNotFound, "route deletion is authoritative")
	_, err = f.store.GetCoordinates(ctx, r.Coordinates.ID)
	assert.NoError(t, err, "failed cleanup leaves the coordinates behind")
	_, err = f.store.GetLocation(ctx, r.From.ID)
	assert.ErrorIs(t, err, core.ErrNotFound, "location cleanup still ran")
}

func TestCreateRoute_OwnerHintFailureAbortsCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	boom := errors.New("hint write failed")
	f.store.FailOn("SetLocationOwner", boom)

	_, err := f.svc.CreateRoute(ctx, spec("A", start, end))
	assert.ErrorIs(t, err, boom)
	f.store.ClearFaults()

	assert.Equal(t, int64(0), f.routeCount(t))
	coords, err := f.svc.AvailableCoordinates(ctx)
	require.NoError(t, err)
	assert.Empty(t, coords, "the whole create is rolled back")
}

func TestDeleteRouteWithRebinding_OwnerHintFailureKeepsSource(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.mustCreate(t, spec("A", start, end))
	b := f.mustCreate(t, spec("B", end, start))

	f.store.FailOn("SetCoordinatesOwner", errors.New("hint write failed"))
	_, err := f.svc.DeleteRouteWithRebinding(ctx, a.ID, b.ID)
	require.Error(t, err)
	f.store.ClearFaults()

	_, err = f.svc.GetRoute(ctx, a.ID)
	assert.NoError(t, err, "source route survives a failed rebind")
}

func TestDeleteRoute_NotFound(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.svc.DeleteRoute(context.Background(), 42), core.ErrNotFound)
}

func TestDeleteRouteWithRebinding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.mustCreate(t, spec("A", start, end))
	bSpec := spec("B", depot, end)
	bSpec.Coordinates = core.CoordinatesValue{X: 8, Y: 8}
	b := f.mustCreate(t, bSpec)

	before, err := core.NewResolver(f.store).CoordinatesUsage(ctx, a.Coordinates.ID)
	require.NoError(t, err)

	target, err := f.svc.DeleteRouteWithRebinding(ctx, a.ID, b.ID)
	require.NoError(t, err)

	assert.Equal(t, a.Coordinates.ID, target.Coordinates.ID)
	assert.Equal(t, a.From.ID, target.From.ID)
	assert.Equal(t, a.To.ID, target.To.ID)
	assert.Equal(t, "B", target.Name)

	_, err = f.svc.GetRoute(ctx, a.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	after, err := core.NewResolver(f.store).CoordinatesUsage(ctx, a.Coordinates.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	got, err := f.svc.GetRoute(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Coordinates.OwnerRouteID)
	assert.Equal(t, b.ID, *got.Coordinates.OwnerRouteID)

	_, err = f.store.GetCoordinates(ctx, b.Coordinates.ID)
	assert.ErrorIs(t, err, core.ErrNotFound, "the target's old coordinates are reclaimed")
	_, err = f.store.GetLocation(ctx, b.From.ID)
	assert.ErrorIs(t, err, core.ErrNotFound, "the target's old from location is reclaimed")
}

func TestDeleteRouteWithRebinding_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.mustCreate(t, spec("A", start, end))

	_, err := f.svc.DeleteRouteWithRebinding(ctx, a.ID, a.ID)
	assert.ErrorIs(t, err, core.ErrSelfRebind)

	_, err = f.svc.DeleteRouteWithRebinding(ctx, a.ID, 999)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = f.svc.DeleteRouteWithRebinding(ctx, 999, a.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = f.svc.GetRoute(ctx, a.ID)
	assert.NoError(t, err, "a failed rebind changes nothing")
}

func TestCheckDependencies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.mustCreate(t, spec("A", start, end))
	bSpec := spec("B", start, depot)
	b := f.mustCreate(t, bSpec)

	report, err := f.svc.CheckDependencies(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, report.Coordinates.IsOwner)
	assert.Equal(t, int64(1), report.Coordinates.UsageCount)
	require.Len(t, report.Coordinates.Candidates, 1)
	assert.Equal(t, a.ID, report.Coordinates.Candidates[0].ID)
	assert.Equal(t, int64(0), report.To.UsageCount)
	assert.True(t, report.NeedsOwnershipTransfer)

	report, err = f.svc.CheckDependencies(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, report.Coordinates.IsOwner)
	assert.True(t, report.To.IsOwner)
	assert.Equal(t, int64(0), report.To.UsageCount)
	assert.False(t, report.NeedsOwnershipTransfer)
}
