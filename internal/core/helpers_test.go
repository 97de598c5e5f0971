package core_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/routeimport/internal/core"
	"github.com/JonMunkholm/routeimport/internal/memstore"
	"github.com/JonMunkholm/routeimport/internal/storage"
)

const header = "name,coordinates_x,coordinates_y,from_x,from_y,from_name,to_x,to_y,to_name,distance,rating"

type fixture struct {
	store   *memstore.Store
	objects *storage.Memory
	svc     *core.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	objects := storage.NewMemory()
	return &fixture{
		store:   store,
		objects: objects,
		svc: core.NewService(store, objects, core.ServiceConfig{
			KeyPrefix:            "imports",
			MaxConcurrentImports: 2,
		}),
	}
}

func csvFile(lines ...string) []byte {
	return []byte(strings.Join(append([]string{header}, lines...), "\n") + "\n")
}

func name(s string) *string { return &s }

func spec(routeName string, from, to core.LocationValue) core.RouteSpec {
	return core.RouteSpec{
		Name:        routeName,
		Coordinates: core.CoordinatesValue{X: 1, Y: 2},
		From:        from,
		To:          to,
		Distance:    10,
		Rating:      3,
	}
}

var (
	start = core.LocationValue{X: 0, Y: 0, Name: name("Start")}
	end   = core.LocationValue{X: 5, Y: 5, Name: name("End")}
	depot = core.LocationValue{X: 9, Y: 9, Name: name("Depot")}
)

func (f *fixture) mustCreate(t *testing.T, s core.RouteSpec) core.Route {
	t.Helper()
	r, err := f.svc.CreateRoute(context.Background(), s)
	require.NoError(t, err)
	return r
}

func (f *fixture) routeCount(t *testing.T) int64 {
	t.Helper()
	page, err := f.svc.ListRoutes(context.Background(), core.RouteQuery{})
	require.NoError(t, err)
	return page.Total
}
