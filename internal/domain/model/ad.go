// Package model defines the domain types shared across the moderation system.
package model

import (
	"strings"
	"time"

	apperrors "github.com/adsafe/moderation-api/internal/errors"
)

// Ad is a marketplace listing subject to moderation.
type Ad struct {
	ID          int64      `json:"id"`
	SellerID    int64      `json:"seller_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Category    int        `json:"category"`
	ImagesQty   int        `json:"images_qty"`
	IsClosed    bool       `json:"is_closed"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`

	// SellerIsVerified is populated only when the ad was loaded with its
	// seller joined in.
	SellerIsVerified *bool `json:"seller_is_verified,omitempty"`
}

// Seller owns ads; verified sellers are scored differently by the classifier.
type Seller struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	IsVerified   bool      `json:"is_verified"`
	RegisteredAt time.Time `json:"registered_at"`
}

// AdRequest carries the full ad payload for the synchronous prediction path.
type AdRequest struct {
	SellerID         int64  `json:"seller_id"`
	IsVerifiedSeller bool   `json:"is_verified_seller"`
	ItemID           int64  `json:"item_id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	Category         int    `json:"category"`
	ImagesQty        int    `json:"images_qty"`
}

// Validate checks request fields before they reach the classifier.
func (r *AdRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return apperrors.ValidationField("name", "name cannot be empty")
	}
	if strings.TrimSpace(r.Description) == "" {
		return apperrors.ValidationField("description", "description cannot be empty")
	}
	if r.ImagesQty < 0 {
		return apperrors.ValidationField("images_qty", "images_qty cannot be negative")
	}
	return nil
}

// Prediction is the classifier verdict for a single ad.
type Prediction struct {
	IsViolation bool    `json:"is_violation"`
	Probability float64 `json:"probability"`
}
