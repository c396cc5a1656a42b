package services

import (
	"gorm.io/gorm"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/logger"
	"fintrack/internal/models"
	"fintrack/internal/pagination"
)

// alertService is the default alert sink: it records every emitted payload
// and logs it. Actual delivery (email, push) is a downstream concern wired
// behind the same interface; the engine never sends anything directly.
type alertService struct {
	db *gorm.DB
}

// NewAlertService creates a new AlertServicer.
func NewAlertService(db *gorm.DB) AlertServicer {
	return &alertService{db: db}
}

// Emit persists the alert payload and logs it. Fire-and-forget from the
// engine's perspective: callers log emission failures but never fail their
// own operation over one.
func (s *alertService) Emit(alert *models.Alert) error {
	if err := s.db.Create(alert).Error; err != nil {
		return err
	}
	logger.Get().Infow("alert emitted",
		"kind", alert.Kind,
		"user_id", alert.UserID,
		"entity_id", alert.EntityID,
		"message", alert.Message,
	)
	return nil
}

// GetUserAlerts returns a paginated list of the user's recorded alerts,
// newest first.
func (s *alertService) GetUserAlerts(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Alert], error) {
	page.Defaults()

	base := s.db.Model(&models.Alert{}).Where("user_id = ?", userID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var alerts []models.Alert
	if err := base.Order("created_at DESC").Scopes(pagination.Paginate(page)).Find(&alerts).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(alerts, page.Page, page.PageSize, totalItems)
	return &result, nil
}
