package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/adsafe/moderation-api/internal/data/pgxutil"
	"github.com/adsafe/moderation-api/internal/domain/model"
)

// ModerationResultRepo provides database operations for moderation tasks.
// It is the source of truth for task status; terminal transitions are
// guarded by a conditional `status = 'pending'` predicate so duplicate
// deliveries cannot overwrite an already resolved task.
type ModerationResultRepo struct {
	DB *sql.DB
}

// NewModerationResultRepo creates a new ModerationResultRepo.
func NewModerationResultRepo(db *sql.DB) *ModerationResultRepo {
	return &ModerationResultRepo{DB: db}
}

const moderationResultColumns = `id, item_id, status, is_violation, probability, error_message, created_at, processed_at`

func scanModerationTask(row pgx.Row) (*model.ModerationTask, error) {
	var t model.ModerationTask
	if err := row.Scan(
		&t.ID,
		&t.ItemID,
		&t.Status,
		&t.IsViolation,
		&t.Probability,
		&t.ErrorMessage,
		&t.CreatedAt,
		&t.ProcessedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserts a new moderation task row. The database allocates the task id.
func (r *ModerationResultRepo) Create(
	ctx context.Context,
	itemID int64,
	status model.ModerationStatus,
) (*model.ModerationTask, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid moderation status %q", status)
	}

	var task *model.ModerationTask
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		row := conn.QueryRow(ctx, `
			INSERT INTO moderation_results (item_id, status)
			VALUES ($1, $2)
			RETURNING `+moderationResultColumns,
			itemID, status,
		)
		t, err := scanModerationTask(row)
		if err != nil {
			return err
		}
		task = t
		return nil
	})
	if err != nil {
		return nil, ClassifyPgError(err)
	}
	return task, nil
}

// GetByID returns the task or ErrTaskNotFound.
func (r *ModerationResultRepo) GetByID(ctx context.Context, taskID int64) (*model.ModerationTask, error) {
	var task *model.ModerationTask
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		row := conn.QueryRow(ctx, `
			SELECT `+moderationResultColumns+`
			FROM moderation_results
			WHERE id = $1`,
			taskID,
		)
		t, err := scanModerationTask(row)
		if err != nil {
			return err
		}
		task = t
		return nil
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

// UpdateCompleted records the classifier verdict for a task, only if its
// current status is still pending. Applying it twice is a no-op on the
// second call; the bool reports whether this call changed the row.
func (r *ModerationResultRepo) UpdateCompleted(
	ctx context.Context,
	taskID int64,
	prediction model.Prediction,
) (bool, error) {
	var updated bool
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		tag, err := conn.Exec(ctx, `
			UPDATE moderation_results
			SET status = 'completed',
			    is_violation = $2,
			    probability = $3,
			    processed_at = NOW()
			WHERE id = $1
			  AND status = 'pending'`,
			taskID, prediction.IsViolation, prediction.Probability,
		)
		if err != nil {
			return err
		}
		updated = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, ClassifyPgError(err)
	}
	return updated, nil
}

// UpdateFailed records a terminal failure for a task with the same pending
// guard as UpdateCompleted.
func (r *ModerationResultRepo) UpdateFailed(ctx context.Context, taskID int64, errorMessage string) (bool, error) {
	var updated bool
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		tag, err := conn.Exec(ctx, `
			UPDATE moderation_results
			SET status = 'failed',
			    error_message = $2,
			    processed_at = NOW()
			WHERE id = $1
			  AND status = 'pending'`,
			taskID, errorMessage,
		)
		if err != nil {
			return err
		}
		updated = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, ClassifyPgError(err)
	}
	return updated, nil
}

// GetTaskIDsByItemID lists task ids belonging to an ad, oldest first.
func (r *ModerationResultRepo) GetTaskIDsByItemID(ctx context.Context, itemID int64) ([]int64, error) {
	var ids []int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT id
			FROM moderation_results
			WHERE item_id = $1
			ORDER BY id`,
			itemID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			if scanErr := rows.Scan(&id); scanErr != nil {
				return scanErr
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// DeleteByItemID removes all moderation tasks for an ad and returns the count.
func (r *ModerationResultRepo) DeleteByItemID(ctx context.Context, itemID int64) (int64, error) {
	var deleted int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		tag, err := conn.Exec(ctx, `
			DELETE FROM moderation_results
			WHERE item_id = $1`,
			itemID,
		)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
