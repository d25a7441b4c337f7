package data

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/adsafe/moderation-api/internal/data/pgxutil"
	"github.com/adsafe/moderation-api/internal/domain/model"
)

// SellerRepo provides database operations for sellers.
type SellerRepo struct {
	DB *sql.DB
}

// NewSellerRepo creates a new SellerRepo.
func NewSellerRepo(db *sql.DB) *SellerRepo {
	return &SellerRepo{DB: db}
}

const sellerColumns = `id, name, is_verified, registered_at`

func scanSeller(row pgx.Row) (*model.Seller, error) {
	var s model.Seller
	if err := row.Scan(&s.ID, &s.Name, &s.IsVerified, &s.RegisteredAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByID returns the seller or ErrSellerNotFound.
func (r *SellerRepo) GetByID(ctx context.Context, id int64) (*model.Seller, error) {
	var seller *model.Seller
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		s, scanErr := scanSeller(conn.QueryRow(ctx, `
			SELECT `+sellerColumns+`
			FROM sellers
			WHERE id = $1`,
			id,
		))
		if scanErr != nil {
			return scanErr
		}
		seller = s
		return nil
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSellerNotFound
	}
	if err != nil {
		return nil, err
	}
	return seller, nil
}

// Create inserts a new seller.
func (r *SellerRepo) Create(ctx context.Context, name string, isVerified bool) (*model.Seller, error) {
	var seller *model.Seller
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		s, scanErr := scanSeller(conn.QueryRow(ctx, `
			INSERT INTO sellers (name, is_verified)
			VALUES ($1, $2)
			RETURNING `+sellerColumns,
			strings.TrimSpace(name), isVerified,
		))
		if scanErr != nil {
			return scanErr
		}
		seller = s
		return nil
	})
	if err != nil {
		return nil, ClassifyPgError(err)
	}
	return seller, nil
}
