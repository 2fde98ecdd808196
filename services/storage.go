package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/segbon/segbon/models"
	"github.com/segbon/segbon/utils"
)

// OrphanSweeper removes uploaded images no element or profile points at anymore,
// such as covers replaced mid-request or uploads whose row was never written.
type OrphanSweeper struct {
	db    *gorm.DB
	disk  *utils.Disk
	grace time.Duration
}

func NewOrphanSweeper(db *gorm.DB, disk *utils.Disk, grace time.Duration) *OrphanSweeper {
	if grace <= 0 {
		grace = time.Hour
	}
	return &OrphanSweeper{db: db, disk: disk, grace: grace}
}

// Sweep deletes unreferenced files older than the grace period and returns their paths.
func (o *OrphanSweeper) Sweep(ctx context.Context, now time.Time) ([]string, error) {
	keep := map[string]struct{}{}
	var covers, photos []string
	db := o.db.WithContext(ctx)
	if err := db.Model(&models.Element{}).Where("cover <> ''").Pluck("cover", &covers).Error; err != nil {
		return nil, fmt.Errorf("load covers: %w", err)
	}
	if err := db.Model(&models.Acdetail{}).Where("photo <> ''").Pluck("photo", &photos).Error; err != nil {
		return nil, fmt.Errorf("load photos: %w", err)
	}
	for _, p := range append(covers, photos...) {
		keep[p] = struct{}{}
	}
	return o.disk.Sweep([]string{coverDir, photoDir}, keep, now.Add(-o.grace))
}

// Run is the scheduler entry point.
func (o *OrphanSweeper) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	removed, err := o.Sweep(ctx, time.Now())
	if err != nil {
		utils.Sugar.Errorw("orphan sweep failed", "err", err)
		return
	}
	if len(removed) > 0 {
		utils.Sugar.Infow("orphan files removed", "count", len(removed))
	}
}
