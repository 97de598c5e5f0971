package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/JonMunkholm/routeimport/internal/core"
)

// repo implements core.Repository over one state. Outside a transaction
// every call takes the store's write lock.
type repo struct {
	st     *state
	store  *Store
	inTx   bool
	closed bool
}

func (r *repo) enter(ctx context.Context, method string) (func(), error) {
	if r.closed {
		return nil, ErrTxDone
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.store.injected(method); err != nil {
		return nil, err
	}
	if r.inTx {
		return func() {}, nil
	}
	r.store.writeMu.Lock()
	return r.store.writeMu.Unlock, nil
}

func notFound(entity string, id int64) error {
	return &core.NotFoundError{Entity: entity, ID: id}
}

// ============================================================================
// Routes
// ============================================================================

func (r *repo) GetRoute(ctx context.Context, id int64) (core.Route, error) {
	done, err := r.enter(ctx, "GetRoute")
	if err != nil {
		return core.Route{}, err
	}
	defer done()

	row, ok := r.st.routes[id]
	if !ok {
		return core.Route{}, notFound("route", id)
	}
	return r.st.hydrate(row), nil
}

func (r *repo) FindRouteByName(ctx context.Context, name string, excludeID int64) (core.Route, error) {
	done, err := r.enter(ctx, "FindRouteByName")
	if err != nil {
		return core.Route{}, err
	}
	defer done()

	row, ok := r.st.routeByName(name, excludeID)
	if !ok {
		return core.Route{}, notFound("route", 0)
	}
	return r.st.hydrate(row), nil
}

func (r *repo) InsertRoute(ctx context.Context, rec core.RouteRecord) (core.Route, error) {
	done, err := r.enter(ctx, "InsertRoute")
	if err != nil {
		return core.Route{}, err
	}
	defer done()

	if existing, ok := r.st.routeByName(rec.Name, 0); ok {
		return core.Route{}, &core.DuplicateNameError{Name: rec.Name, ExistingID: existing.rec.ID}
	}
	if err := r.st.checkReferences(rec); err != nil {
		return core.Route{}, err
	}
	if rec.Distance < 2 || rec.Rating <= 0 {
		return core.Route{}, ErrCheck
	}

	r.st.nextRouteID++
	rec.ID = r.st.nextRouteID
	row := routeRow{rec: rec, version: 1}
	r.st.routes[rec.ID] = row
	return r.st.hydrate(row), nil
}

func (r *repo) UpdateRoute(ctx context.Context, rec core.RouteRecord, expectedVersion int64) (core.Route, error) {
	done, err := r.enter(ctx, "UpdateRoute")
	if err != nil {
		return core.Route{}, err
	}
	defer done()

	current, ok := r.st.routes[rec.ID]
	if !ok {
		return core.Route{}, notFound("route", rec.ID)
	}
	if current.version != expectedVersion {
		return core.Route{}, core.ErrVersionConflict
	}
	if existing, ok := r.st.routeByName(rec.Name, rec.ID); ok {
		return core.Route{}, &core.DuplicateNameError{Name: rec.Name, ExistingID: existing.rec.ID}
	}
	if err := r.st.checkReferences(rec); err != nil {
		return core.Route{}, err
	}
	if rec.Distance < 2 || rec.Rating <= 0 {
		return core.Route{}, ErrCheck
	}

	row := routeRow{rec: rec, version: current.version + 1}
	r.st.routes[rec.ID] = row
	return r.st.hydrate(row), nil
}

func (r *repo) DeleteRoute(ctx context.Context, id int64) error {
	done, err := r.enter(ctx, "DeleteRoute")
	if err != nil {
		return err
	}
	defer done()

	if _, ok := r.st.routes[id]; !ok {
		return notFound("route", id)
	}
	delete(r.st.routes, id)
	return nil
}

func (r *repo) ListRoutes(ctx context.Context, f core.RouteFilter) ([]core.Route, int64, error) {
	done, err := r.enter(ctx, "ListRoutes")
	if err != nil {
		return nil, 0, err
	}
	defer done()

	needle := strings.ToLower(f.NameContains)
	routes := r.st.routesWhere(func(rec core.RouteRecord) bool {
		return needle == "" || strings.Contains(strings.ToLower(rec.Name), needle)
	})
	sortRoutes(routes, f.SortBy, f.Descending)

	total := int64(len(routes))
	if f.Offset >= len(routes) {
		return nil, total, nil
	}
	routes = routes[f.Offset:]
	if f.Limit > 0 && len(routes) > f.Limit {
		routes = routes[:f.Limit]
	}
	return routes, total, nil
}

func (r *repo) RoutesByCoordinates(ctx context.Context, coordinatesID, excludeRouteID int64) ([]core.Route, error) {
	done, err := r.enter(ctx, "RoutesByCoordinates")
	if err != nil {
		return nil, err
	}
	defer done()

	routes := r.st.coordinatesUsers(coordinatesID, excludeRouteID)
	sortRoutes(routes, "id", false)
	return routes, nil
}

func (r *repo) RoutesByLocation(ctx context.Context, locationID, excludeRouteID int64) ([]core.Route, error) {
	done, err := r.enter(ctx, "RoutesByLocation")
	if err != nil {
		return nil, err
	}
	defer done()

	routes := r.st.locationUsers(locationID, excludeRouteID)
	sortRoutes(routes, "id", false)
	return routes, nil
}

func (r *repo) RouteWithMaxName(ctx context.Context) (core.Route, error) {
	done, err := r.enter(ctx, "RouteWithMaxName")
	if err != nil {
		return core.Route{}, err
	}
	defer done()

	routes := r.st.routesWhere(func(core.RouteRecord) bool { return true })
	if len(routes) == 0 {
		return core.Route{}, notFound("route", 0)
	}
	sortRoutes(routes, "name", true)
	return routes[0], nil
}

func (r *repo) CountRoutesRatingBelow(ctx context.Context, threshold int64) (int64, error) {
	done, err := r.enter(ctx, "CountRoutesRatingBelow")
	if err != nil {
		return 0, err
	}
	defer done()

	var n int64
	for _, row := range r.st.routes {
		if row.rec.Rating < threshold {
			n++
		}
	}
	return n, nil
}

func (r *repo) RoutesRatingAbove(ctx context.Context, threshold int64) ([]core.Route, error) {
	done, err := r.enter(ctx, "RoutesRatingAbove")
	if err != nil {
		return nil, err
	}
	defer done()

	routes := r.st.routesWhere(func(rec core.RouteRecord) bool { return rec.Rating > threshold })
	sortRoutes(routes, "rating", true)
	return routes, nil
}

func (r *repo) RoutesBetween(ctx context.Context, q core.BetweenQuery) ([]core.Route, error) {
	done, err := r.enter(ctx, "RoutesBetween")
	if err != nil {
		return nil, err
	}
	defer done()

	routes := r.st.routesWhere(func(rec core.RouteRecord) bool {
		return endpointMatches(r.st.locations[rec.FromID], q.FromName, q.FromXY) &&
			endpointMatches(r.st.locations[rec.ToID], q.ToName, q.ToXY)
	})
	sortRoutes(routes, q.SortBy, false)
	return routes, nil
}

func endpointMatches(l core.Location, name string, xy *[2]float64) bool {
	if xy != nil {
		return l.X == xy[0] && l.Y == xy[1]
	}
	return l.Name != nil && *l.Name == name
}

func sortRoutes(routes []core.Route, by string, desc bool) {
	slices.SortFunc(routes, func(a, b core.Route) int {
		var c int
		switch by {
		case "name":
			c = strings.Compare(a.Name, b.Name)
		case "distance":
			c = cmp.Compare(a.Distance, b.Distance)
		case "rating":
			c = cmp.Compare(a.Rating, b.Rating)
		case "creation_date":
			c = a.CreationDate.Compare(b.CreationDate)
		}
		if desc {
			c = -c
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		return c
	})
}

// ============================================================================
// Coordinates
// ============================================================================

func (r *repo) FindCoordinates(ctx context.Context, v core.CoordinatesValue) (core.Coordinates, error) {
	done, err := r.enter(ctx, "FindCoordinates")
	if err != nil {
		return core.Coordinates{}, err
	}
	defer done()

	for _, c := range r.st.coordinates {
		if c.Value().Equal(v) {
			return c, nil
		}
	}
	return core.Coordinates{}, notFound("coordinates", 0)
}

func (r *repo) GetCoordinates(ctx context.Context, id int64) (core.Coordinates, error) {
	done, err := r.enter(ctx, "GetCoordinates")
	if err != nil {
		return core.Coordinates{}, err
	}
	defer done()

	c, ok := r.st.coordinates[id]
	if !ok {
		return core.Coordinates{}, notFound("coordinates", id)
	}
	return c, nil
}

func (r *repo) InsertCoordinates(ctx context.Context, v core.CoordinatesValue) (core.Coordinates, error) {
	done, err := r.enter(ctx, "InsertCoordinates")
	if err != nil {
		return core.Coordinates{}, err
	}
	defer done()

	if v.Y > core.MaxCoordinatesY {
		return core.Coordinates{}, ErrCheck
	}
	for _, c := range r.st.coordinates {
		if c.Value().Equal(v) {
			return core.Coordinates{}, core.ErrConflict
		}
	}
	r.st.nextCoordinatesID++
	c := core.Coordinates{ID: r.st.nextCoordinatesID, X: v.X, Y: v.Y}
	r.st.coordinates[c.ID] = c
	return c, nil
}

func (r *repo) DeleteCoordinates(ctx context.Context, id int64) error {
	done, err := r.enter(ctx, "DeleteCoordinates")
	if err != nil {
		return err
	}
	defer done()

	if _, ok := r.st.coordinates[id]; !ok {
		return notFound("coordinates", id)
	}
	if users := r.st.coordinatesUsers(id, 0); len(users) > 0 {
		return fmt.Errorf("coordinates %d used by route %d: %w", id, users[0].ID, ErrForeignKey)
	}
	delete(r.st.coordinates, id)
	return nil
}

func (r *repo) CoordinatesUsage(ctx context.Context, id, excludeRouteID int64) (int64, error) {
	done, err := r.enter(ctx, "CoordinatesUsage")
	if err != nil {
		return 0, err
	}
	defer done()

	return int64(len(r.st.coordinatesUsers(id, excludeRouteID))), nil
}

func (r *repo) SetCoordinatesOwner(ctx context.Context, id int64, owner *int64) error {
	done, err := r.enter(ctx, "SetCoordinatesOwner")
	if err != nil {
		return err
	}
	defer done()

	c, ok := r.st.coordinates[id]
	if !ok {
		return notFound("coordinates", id)
	}
	c.OwnerRouteID = copyID(owner)
	r.st.coordinates[id] = c
	return nil
}

func (r *repo) ListCoordinates(ctx context.Context) ([]core.Coordinates, error) {
	done, err := r.enter(ctx, "ListCoordinates")
	if err != nil {
		return nil, err
	}
	defer done()

	out := make([]core.Coordinates, 0, len(r.st.coordinates))
	for _, c := range r.st.coordinates {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b core.Coordinates) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// ============================================================================
// Locations
// ============================================================================

func (r *repo) FindLocation(ctx context.Context, v core.LocationValue) (core.Location, error) {
	done, err := r.enter(ctx, "FindLocation")
	if err != nil {
		return core.Location{}, err
	}
	defer done()

	for _, l := range r.st.locations {
		if l.Value().Equal(v) {
			return l, nil
		}
	}
	return core.Location{}, notFound("location", 0)
}

func (r *repo) GetLocation(ctx context.Context, id int64) (core.Location, error) {
	done, err := r.enter(ctx, "GetLocation")
	if err != nil {
		return core.Location{}, err
	}
	defer done()

	l, ok := r.st.locations[id]
	if !ok {
		return core.Location{}, notFound("location", id)
	}
	return l, nil
}

func (r *repo) InsertLocation(ctx context.Context, v core.LocationValue) (core.Location, error) {
	done, err := r.enter(ctx, "InsertLocation")
	if err != nil {
		return core.Location{}, err
	}
	defer done()

	for _, l := range r.st.locations {
		if l.Value().Equal(v) {
			return core.Location{}, core.ErrConflict
		}
	}
	r.st.nextLocationID++
	l := core.Location{ID: r.st.nextLocationID, X: v.X, Y: v.Y}
	if v.Name != nil {
		name := *v.Name
		l.Name = &name
	}
	r.st.locations[l.ID] = l
	return l, nil
}

func (r *repo) DeleteLocation(ctx context.Context, id int64) error {
	done, err := r.enter(ctx, "DeleteLocation")
	if err != nil {
		return err
	}
	defer done()

	if _, ok := r.st.locations[id]; !ok {
		return notFound("location", id)
	}
	if users := r.st.locationUsers(id, 0); len(users) > 0 {
		return fmt.Errorf("location %d used by route %d: %w", id, users[0].ID, ErrForeignKey)
	}
	delete(r.st.locations, id)
	return nil
}

func (r *repo) LocationUsage(ctx context.Context, id, excludeRouteID int64) (int64, error) {
	done, err := r.enter(ctx, "LocationUsage")
	if err != nil {
		return 0, err
	}
	defer done()

	return int64(len(r.st.locationUsers(id, excludeRouteID))), nil
}

func (r *repo) SetLocationOwner(ctx context.Context, id int64, owner *int64) error {
	done, err := r.enter(ctx, "SetLocationOwner")
	if err != nil {
		return err
	}
	defer done()

	l, ok := r.st.locations[id]
	if !ok {
		return notFound("location", id)
	}
	l.OwnerRouteID = copyID(owner)
	r.st.locations[id] = l
	return nil
}

func (r *repo) ListLocations(ctx context.Context) ([]core.Location, error) {
	done, err := r.enter(ctx, "ListLocations")
	if err != nil {
		return nil, err
	}
	defer done()

	out := make([]core.Location, 0, len(r.st.locations))
	for _, l := range r.st.locations {
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b core.Location) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (r *repo) ListLocationNames(ctx context.Context) ([]string, error) {
	done, err := r.enter(ctx, "ListLocationNames")
	if err != nil {
		return nil, err
	}
	defer done()

	seen := make(map[string]bool)
	var out []string
	for _, l := range r.st.locations {
		if l.Name != nil && !seen[*l.Name] {
			seen[*l.Name] = true
			out = append(out, *l.Name)
		}
	}
	slices.Sort(out)
	return out, nil
}

// ============================================================================
// Import operations
// ============================================================================

func (r *repo) InsertOperation(ctx context.Context, op core.ImportOperation) (core.ImportOperation, error) {
	done, err := r.enter(ctx, "InsertOperation")
	if err != nil {
		return core.ImportOperation{}, err
	}
	defer done()

	r.st.nextOperationID++
	op.ID = r.st.nextOperationID
	r.st.operations[op.ID] = op
	return op, nil
}

func (r *repo) GetOperation(ctx context.Context, id int64) (core.ImportOperation, error) {
	done, err := r.enter(ctx, "GetOperation")
	if err != nil {
		return core.ImportOperation{}, err
	}
	defer done()

	op, ok := r.st.operations[id]
	if !ok {
		return core.ImportOperation{}, notFound("import operation", id)
	}
	return op, nil
}

func (r *repo) UpdateOperation(ctx context.Context, op core.ImportOperation, from core.ImportStatus) error {
	done, err := r.enter(ctx, "UpdateOperation")
	if err != nil {
		return err
	}
	defer done()

	current, ok := r.st.operations[op.ID]
	if !ok {
		return notFound("import operation", op.ID)
	}
	if current.Status != from {
		return fmt.Errorf("import operation %d is %s, not %s: %w", op.ID, current.Status, from, core.ErrInvalidTransition)
	}
	r.st.operations[op.ID] = op
	return nil
}

func (r *repo) ListOperations(ctx context.Context, username string, limit, offset int) ([]core.ImportOperation, int64, error) {
	done, err := r.enter(ctx, "ListOperations")
	if err != nil {
		return nil, 0, err
	}
	defer done()

	var out []core.ImportOperation
	for _, op := range r.st.operations {
		if username == "" || op.Username == username {
			out = append(out, op)
		}
	}
	slices.SortFunc(out, func(a, b core.ImportOperation) int {
		if c := b.StartTime.Compare(a.StartTime); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
