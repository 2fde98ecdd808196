package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/segbon/segbon/models"
)

// ViewService maintains the element and profile view counters.
// Each increment is one INSERT .. ON CONFLICT statement, so concurrent reads never lose updates.
type ViewService struct {
	db *gorm.DB
}

func NewViewService(db *gorm.DB) *ViewService {
	return &ViewService{db: db}
}

// IncrementElement adds one view to the element counter.
func (v *ViewService) IncrementElement(ctx context.Context, elementID uint) error {
	err := v.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "element_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"viewers": gorm.Expr("viewers + 1"), "updated_at": time.Now()}),
	}).Create(&models.Velement{ElementID: elementID, Viewers: 1}).Error
	if err != nil {
		return fmt.Errorf("increment element %d views: %w", elementID, err)
	}
	return nil
}

// IncrementProfile adds one view to the reporter profile counter.
func (v *ViewService) IncrementProfile(ctx context.Context, userID uint) error {
	err := v.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"viewers": gorm.Expr("viewers + 1"), "updated_at": time.Now()}),
	}).Create(&models.Vuser{UserID: userID, Viewers: 1}).Error
	if err != nil {
		return fmt.Errorf("increment profile %d views: %w", userID, err)
	}
	return nil
}

// ElementViews returns the current counter, zero when never viewed.
func (v *ViewService) ElementViews(ctx context.Context, elementID uint) (int64, error) {
	var n int64
	err := v.db.WithContext(ctx).Model(&models.Velement{}).
		Select("COALESCE(MAX(viewers), 0)").Where("element_id = ?", elementID).Scan(&n).Error
	return n, err
}

// ProfileViews returns the current counter, zero when never viewed.
func (v *ViewService) ProfileViews(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := v.db.WithContext(ctx).Model(&models.Vuser{}).
		Select("COALESCE(MAX(viewers), 0)").Where("user_id = ?", userID).Scan(&n).Error
	return n, err
}
