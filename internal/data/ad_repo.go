package data

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/adsafe/moderation-api/internal/core"
	"github.com/adsafe/moderation-api/internal/data/pgxutil"
	"github.com/adsafe/moderation-api/internal/domain/model"
)

// AdRepo provides database operations for ads.
type AdRepo struct {
	DB *sql.DB
}

// NewAdRepo creates a new AdRepo.
func NewAdRepo(db *sql.DB) *AdRepo {
	return &AdRepo{DB: db}
}

const adColumns = `id, seller_id, name, description, category, images_qty, is_closed, created_at, updated_at`

func scanAd(row pgx.Row, includeSeller bool) (*model.Ad, error) {
	var ad model.Ad
	dest := []any{
		&ad.ID,
		&ad.SellerID,
		&ad.Name,
		&ad.Description,
		&ad.Category,
		&ad.ImagesQty,
		&ad.IsClosed,
		&ad.CreatedAt,
		&ad.UpdatedAt,
	}
	if includeSeller {
		dest = append(dest, &ad.SellerIsVerified)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &ad, nil
}

// GetByID returns the ad, with its seller joined in when includeSeller is
// set (populating SellerIsVerified). Returns ErrAdNotFound when absent.
func (r *AdRepo) GetByID(ctx context.Context, id int64, includeSeller bool) (*model.Ad, error) {
	query := `
		SELECT ` + adColumns + `
		FROM ads
		WHERE id = $1`
	if includeSeller {
		query = `
		SELECT a.id, a.seller_id, a.name, a.description,
		       a.category, a.images_qty, a.is_closed, a.created_at, a.updated_at,
		       s.is_verified AS seller_is_verified
		FROM ads a
		JOIN sellers s ON a.seller_id = s.id
		WHERE a.id = $1`
	}

	var ad *model.Ad
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		a, scanErr := scanAd(conn.QueryRow(ctx, query, id), includeSeller)
		if scanErr != nil {
			return scanErr
		}
		ad = a
		return nil
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAdNotFound
	}
	if err != nil {
		return nil, err
	}
	return ad, nil
}

// Create inserts a new ad.
func (r *AdRepo) Create(ctx context.Context, params core.CreateAdParams) (*model.Ad, error) {
	var ad *model.Ad
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		row := conn.QueryRow(ctx, `
			INSERT INTO ads (seller_id, name, description, category, images_qty)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING `+adColumns,
			params.SellerID,
			strings.TrimSpace(params.Name),
			params.Description,
			params.Category,
			params.ImagesQty,
		)
		a, scanErr := scanAd(row, false)
		if scanErr != nil {
			return scanErr
		}
		ad = a
		return nil
	})
	if err != nil {
		return nil, ClassifyPgError(err)
	}
	return ad, nil
}

// GetBySeller lists ads belonging to a seller, newest first.
func (r *AdRepo) GetBySeller(ctx context.Context, sellerID int64, limit, offset int) ([]*model.Ad, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var ads []*model.Ad
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT `+adColumns+`
			FROM ads
			WHERE seller_id = $1
			ORDER BY id DESC
			LIMIT $2 OFFSET $3`,
			sellerID, limit, offset,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			ad, scanErr := scanAd(rows, false)
			if scanErr != nil {
				return scanErr
			}
			ads = append(ads, ad)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return ads, nil
}

// Delete removes the ad row. The moderation_results FK cascades in the
// schema, but callers are expected to delete tasks explicitly first so the
// cache invalidation has the task ids on hand.
func (r *AdRepo) Delete(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		tag, err := conn.Exec(ctx, `DELETE FROM ads WHERE id = $1`, id)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}
