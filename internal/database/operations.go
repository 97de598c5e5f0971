package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/routeimport/internal/core"
)

const selectOperation = `
SELECT id, username, filename, status, start_time, end_time,
       total_records, processed_records, successful_records,
       error_message, file_key, file_size, file_content_type
FROM import_operations`

func scanOperation(row pgx.Row) (core.ImportOperation, error) {
	var (
		op     core.ImportOperation
		status string
		start  pgtype.Timestamptz
		end    pgtype.Timestamptz
	)
	err := row.Scan(&op.ID, &op.Username, &op.Filename, &status, &start, &end,
		&op.TotalRecords, &op.ProcessedRecords, &op.SuccessfulRecords,
		&op.ErrorMessage, &op.FileKey, &op.FileSize, &op.FileContentType)
	if err != nil {
		return core.ImportOperation{}, err
	}
	op.Status = core.ImportStatus(status)
	op.StartTime = start.Time.UTC()
	if end.Valid {
		t := end.Time.UTC()
		op.EndTime = &t
	}
	return op, nil
}

func timestamptz(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{Time: time.Now().UTC(), Valid: true}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalTime(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func (q *Queries) InsertOperation(ctx context.Context, op core.ImportOperation) (core.ImportOperation, error) {
	out, err := scanOperation(q.db.QueryRow(ctx, `
		INSERT INTO import_operations (username, filename, status, start_time, total_records)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, username, filename, status, start_time, end_time,
		          total_records, processed_records, successful_records,
		          error_message, file_key, file_size, file_content_type`,
		op.Username, op.Filename, string(op.Status), timestamptz(op.StartTime), op.TotalRecords))
	if err != nil {
		return core.ImportOperation{}, mapError(err, "insert import operation")
	}
	return out, nil
}

func (q *Queries) GetOperation(ctx context.Context, id int64) (core.ImportOperation, error) {
	op, err := scanOperation(q.db.QueryRow(ctx, selectOperation+` WHERE id = $1`, id))
	if err != nil {
		return core.ImportOperation{}, mapNoRows(err, "get import operation", "import operation", id)
	}
	return op, nil
}

func (q *Queries) UpdateOperation(ctx context.Context, op core.ImportOperation, from core.ImportStatus) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE import_operations
		SET status = $2, end_time = $3, total_records = $4, processed_records = $5,
		    successful_records = $6, error_message = $7, file_key = $8, file_size = $9,
		    file_content_type = $10
		WHERE id = $1 AND status = $11`,
		op.ID, string(op.Status), optionalTime(op.EndTime), op.TotalRecords, op.ProcessedRecords,
		op.SuccessfulRecords, op.ErrorMessage, op.FileKey, op.FileSize,
		op.FileContentType, string(from))
	if err != nil {
		return mapError(err, "update import operation")
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	current, err := q.GetOperation(ctx, op.ID)
	if err != nil {
		return err
	}
	return fmt.Errorf("import operation %d is %s, not %s: %w", op.ID, current.Status, from, core.ErrInvalidTransition)
}

func (q *Queries) ListOperations(ctx context.Context, username string, limit, offset int) ([]core.ImportOperation, int64, error) {
	const where = ` WHERE ($1 = '' OR username = $1)`

	var total int64
	if err := q.db.QueryRow(ctx, `SELECT count(*) FROM import_operations`+where, username).Scan(&total); err != nil {
		return nil, 0, mapError(err, "count import operations")
	}

	if limit <= 0 {
		limit = core.MaxPageSize
	}
	rows, err := q.db.Query(ctx,
		selectOperation+where+` ORDER BY start_time DESC, id DESC LIMIT $2 OFFSET $3`,
		username, limit, offset)
	if err != nil {
		return nil, 0, mapError(err, "list import operations")
	}
	defer rows.Close()

	var out []core.ImportOperation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "list import operations: scan")
		}
		out = append(out, op)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapError(err, "list import operations")
	}
	return out, total, nil
}
