package memstore

import "context"

// ResetRoutes removes every route and shared entity. Ids are not reused.
func (s *Store) ResetRoutes(ctx context.Context) error {
	done, err := s.repo.enter(ctx, "ResetRoutes")
	if err != nil {
		return err
	}
	defer done()
	st := s.live
	clear(st.routes)
	clear(st.coordinates)
	clear(st.locations)
	return nil
}

// ResetImports removes every import operation.
func (s *Store) ResetImports(ctx context.Context) error {
	done, err := s.repo.enter(ctx, "ResetImports")
	if err != nil {
		return err
	}
	defer done()
	clear(s.live.operations)
	return nil
}
