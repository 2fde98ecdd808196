package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/segbon/segbon/models"
	"github.com/segbon/segbon/utils"
)

var (
	defaultCategories  = []string{"Politics", "Economy", "Society", "Sports", "Culture", "Technology", "Health", "Environment"}
	defaultElementypes = []string{"Article", "Video", "Podcast"}
)

const catalogCachePrefix = "cache:catalog:"

// SeedCatalog inserts the default categories and element types that are missing.
func SeedCatalog(ctx context.Context, db *gorm.DB) error {
	// each Create needs its own statement, otherwise the first model's table sticks
	db = db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Session(&gorm.Session{})
	for _, name := range defaultCategories {
		if err := db.Create(&models.Category{Name: name, Slug: slugify(name)}).Error; err != nil {
			return fmt.Errorf("seed category %s: %w", name, err)
		}
	}
	for _, name := range defaultElementypes {
		if err := db.Create(&models.Elementype{Name: name, Slug: slugify(name)}).Error; err != nil {
			return fmt.Errorf("seed elementype %s: %w", name, err)
		}
	}
	return nil
}

func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// CatalogService serves the lookup tables.
type CatalogService struct {
	db  *gorm.DB
	ttl time.Duration
}

// NewCatalogService caches lookups for ttl; zero disables caching.
func NewCatalogService(db *gorm.DB, ttl time.Duration) *CatalogService {
	return &CatalogService{db: db, ttl: ttl}
}

func (c *CatalogService) Categories(ctx context.Context) ([]models.Category, error) {
	var out []models.Category
	if err := c.cached(ctx, catalogCachePrefix+"categories", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CatalogService) Elementypes(ctx context.Context) ([]models.Elementype, error) {
	var out []models.Elementype
	if err := c.cached(ctx, catalogCachePrefix+"elementypes", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CatalogService) cached(ctx context.Context, key string, out interface{}) error {
	if c.ttl > 0 && utils.CacheGetJSON(key, out) {
		return nil
	}
	if err := c.db.WithContext(ctx).Order("name ASC").Find(out).Error; err != nil {
		return fmt.Errorf("load %s: %w", strings.TrimPrefix(key, catalogCachePrefix), err)
	}
	if c.ttl > 0 {
		utils.CacheSetJSON(key, out, c.ttl)
	}
	return nil
}
