package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/adsafe/moderation-api/internal/core"
	"github.com/adsafe/moderation-api/internal/data"
	"github.com/adsafe/moderation-api/internal/domain/model"
	apperrors "github.com/adsafe/moderation-api/internal/errors"
)

// ModerationService handles the synchronous prediction path and ad closure.
type ModerationService struct {
	ads        core.AdRepository
	results    core.ModerationResultRepository
	classifier core.Classifier
	cache      *PredictionCache
	logger     *slog.Logger
}

// ModerationServiceOptions bundles dependencies for NewModerationService.
type ModerationServiceOptions struct {
	Ads        core.AdRepository
	Results    core.ModerationResultRepository
	Classifier core.Classifier
	Cache      *PredictionCache
	Logger     *slog.Logger
}

// NewModerationService creates a ModerationService.
func NewModerationService(opts ModerationServiceOptions) (*ModerationService, error) {
	if opts.Ads == nil {
		return nil, errors.New("ad repository is required")
	}
	if opts.Results == nil {
		return nil, errors.New("moderation result repository is required")
	}
	if opts.Classifier == nil {
		return nil, errors.New("classifier is required")
	}
	if opts.Cache == nil {
		return nil, errors.New("prediction cache is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ModerationService{
		ads:        opts.Ads,
		results:    opts.Results,
		classifier: opts.Classifier,
		cache:      opts.Cache,
		logger:     logger,
	}, nil
}

// PredictViolation scores a full ad payload synchronously. Classifier
// unavailability surfaces as a model_unavailable error; any other scoring
// failure as a prediction error.
func (s *ModerationService) PredictViolation(ctx context.Context, req model.AdRequest) (model.Prediction, error) {
	if err := req.Validate(); err != nil {
		return model.Prediction{}, err
	}

	prediction, err := s.classifier.Predict(ctx, core.PredictInput{
		SellerVerified: req.IsVerifiedSeller,
		ImagesQty:      req.ImagesQty,
		Description:    req.Description,
		Category:       req.Category,
	})
	if err != nil {
		if apperrors.IsModelUnavailable(err) {
			return model.Prediction{}, err
		}
		return model.Prediction{}, apperrors.Wrap(err, apperrors.ErrCodePrediction, "prediction failed")
	}

	s.logger.InfoContext(ctx, "prediction computed",
		"item_id", req.ItemID,
		"is_violation", prediction.IsViolation,
		"probability", prediction.Probability)

	return prediction, nil
}

// PredictByItemID scores a stored ad, read-through the item cache: a cache
// hit short-circuits the classifier entirely, a miss scores the ad and
// populates the cache afterward.
func (s *ModerationService) PredictByItemID(ctx context.Context, itemID int64) (model.Prediction, error) {
	if cached := s.cache.GetPrediction(ctx, itemID); cached != nil {
		return *cached, nil
	}

	ad, err := s.ads.GetByID(ctx, itemID, true)
	if errors.Is(err, data.ErrAdNotFound) {
		return model.Prediction{}, apperrors.NotFoundf("ad %d not found", itemID)
	}
	if err != nil {
		return model.Prediction{}, err
	}

	sellerVerified := ad.SellerIsVerified != nil && *ad.SellerIsVerified
	prediction, err := s.classifier.Predict(ctx, core.PredictInput{
		SellerVerified: sellerVerified,
		ImagesQty:      ad.ImagesQty,
		Description:    ad.Description,
		Category:       ad.Category,
	})
	if err != nil {
		if apperrors.IsModelUnavailable(err) {
			return model.Prediction{}, err
		}
		return model.Prediction{}, apperrors.Wrap(err, apperrors.ErrCodePrediction, "prediction failed")
	}

	s.cache.SetPrediction(ctx, itemID, prediction)
	return prediction, nil
}

// CloseAd removes an ad together with all of its moderation tasks and every
// cache entry derived from them. Cache invalidation is explicit rather than
// TTL-driven: after deletion, lookups must miss immediately.
func (s *ModerationService) CloseAd(ctx context.Context, itemID int64) error {
	if _, err := s.ads.GetByID(ctx, itemID, false); err != nil {
		if errors.Is(err, data.ErrAdNotFound) {
			return apperrors.NotFoundf("ad %d not found", itemID)
		}
		return err
	}

	taskIDs, err := s.results.GetTaskIDsByItemID(ctx, itemID)
	if err != nil {
		return err
	}

	deleted, err := s.results.DeleteByItemID(ctx, itemID)
	if err != nil {
		return err
	}

	if _, err = s.ads.Delete(ctx, itemID); err != nil {
		return err
	}

	s.cache.DeletePrediction(ctx, itemID)
	for _, taskID := range taskIDs {
		s.cache.DeleteModerationResult(ctx, taskID)
	}

	s.logger.InfoContext(ctx, "ad closed",
		"item_id", itemID,
		"tasks_deleted", deleted)
	return nil
}
