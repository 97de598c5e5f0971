package admin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/routeimport/internal/core"
	"github.com/JonMunkholm/routeimport/internal/memstore"
)

type recordingResetter struct {
	calls []string
	fail  error
}

func (r *recordingResetter) ResetRoutes(ctx context.Context) error {
	r.calls = append(r.calls, "routes")
	return r.fail
}

func (r *recordingResetter) ResetImports(ctx context.Context) error {
	r.calls = append(r.calls, "imports")
	return nil
}

func TestReset_AllOrder(t *testing.T) {
	rec := &recordingResetter{}
	require.NoError(t, (&Reset{Store: rec}).All(context.Background()))
	assert.Equal(t, []string{"routes", "imports"}, rec.calls)
}

func TestReset_StopsOnFailure(t *testing.T) {
	boom := errors.New("locked")
	rec := &recordingResetter{fail: boom}
	err := (&Reset{Store: rec}).All(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"routes"}, rec.calls)
}

func TestReset_MemoryStore(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := core.NewService(store, nil, core.ServiceConfig{MaxConcurrentImports: 1})
	_, _, err := svc.ResolveCoordinates(ctx, core.CoordinatesValue{X: 1, Y: 2})
	require.NoError(t, err)

	require.NoError(t, (&Reset{Store: store}).Routes(ctx))

	coords, err := svc.AvailableCoordinates(ctx)
	require.NoError(t, err)
	assert.Empty(t, coords)
}
