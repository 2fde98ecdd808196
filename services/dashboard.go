package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/segbon/segbon/models"
)

// Range selects the dashboard window.
type Range string

const (
	Range30Days  Range = "30d"
	Range90Days  Range = "90d"
	Range6Months Range = "6m"
	Range1Year   Range = "1y"
	RangeAll     Range = "all"
)

// ParseRange accepts the public range names; empty means 30 days.
func ParseRange(s string) (Range, error) {
	switch r := Range(s); r {
	case "":
		return Range30Days, nil
	case Range30Days, Range90Days, Range6Months, Range1Year, RangeAll:
		return r, nil
	default:
		return "", Invalid("range", "must be one of: 30d 90d 6m 1y all")
	}
}

// Since returns the window start; ok is false for all-time.
func (r Range) Since(now time.Time) (time.Time, bool) {
	switch r {
	case Range30Days:
		return now.AddDate(0, 0, -30), true
	case Range90Days:
		return now.AddDate(0, 0, -90), true
	case Range6Months:
		return now.AddDate(0, -6, 0), true
	case Range1Year:
		return now.AddDate(-1, 0, 0), true
	default:
		return time.Time{}, false
	}
}

type TopArticle struct {
	ID      uint   `json:"id"`
	Title   string `json:"title"`
	Etate   bool   `json:"etate"`
	Viewers int64  `json:"viewers"`
}

type CategoryStat struct {
	CategoryID uint   `json:"category_id"`
	Name       string `json:"name"`
	Articles   int64  `json:"articles"`
	Viewers    int64  `json:"viewers"`
}

// GrowthPoint is one month of active-subscriber growth.
type GrowthPoint struct {
	Month string `json:"month"` // YYYY-MM
	New   int64  `json:"new"`
	Total int64  `json:"total"`
}

// Stats is the reporter dashboard.
type Stats struct {
	Range          Range          `json:"range"`
	Since          *time.Time     `json:"since,omitempty"`
	Articles       int64          `json:"articles"`
	ArticleViews   int64          `json:"article_views"`
	ProfileViews   int64          `json:"profile_views"`
	NewSubscribers int64          `json:"new_subscribers"`
	TopArticles    []TopArticle   `json:"top_articles"`
	Categories     []CategoryStat `json:"categories"`
	Growth         []GrowthPoint  `json:"growth"`
}

// DashboardService computes reporter KPIs. Nothing is cached.
type DashboardService struct {
	db *gorm.DB
}

func NewDashboardService(db *gorm.DB) *DashboardService {
	return &DashboardService{db: db}
}

// Stats aggregates the reporter's numbers for the range ending at now.
func (d *DashboardService) Stats(ctx context.Context, userID uint, r Range, now time.Time) (*Stats, error) {
	since, bounded := r.Since(now)
	out := &Stats{Range: r, TopArticles: []TopArticle{}, Categories: []CategoryStat{}, Growth: []GrowthPoint{}}
	if bounded {
		out.Since = &since
	}
	db := d.db.WithContext(ctx)

	inRange := func(q *gorm.DB, column string) *gorm.DB {
		if bounded {
			return q.Where(column+" >= ?", since)
		}
		return q
	}

	if err := inRange(db.Model(&models.Element{}).Where("user_id = ? AND etate = ?", userID, true), "created_at").
		Count(&out.Articles).Error; err != nil {
		return nil, fmt.Errorf("count articles: %w", err)
	}

	if err := inRange(db.Table("elements").
		Select("COALESCE(SUM(velements.viewers), 0)").
		Joins("LEFT JOIN velements ON velements.element_id = elements.id").
		Where("elements.user_id = ?", userID), "elements.created_at").
		Scan(&out.ArticleViews).Error; err != nil {
		return nil, fmt.Errorf("sum article views: %w", err)
	}

	var vu models.Vuser
	err := db.Where("user_id = ?", userID).Take(&vu).Error
	switch {
	case err == nil:
		out.ProfileViews = vu.Viewers
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("load profile views: %w", err)
	}

	if err := inRange(db.Model(&models.Subscriber{}).Where("user_id = ? AND is_active = ?", userID, true), "subscribed_at").
		Count(&out.NewSubscribers).Error; err != nil {
		return nil, fmt.Errorf("count subscribers: %w", err)
	}

	if err := inRange(db.Table("elements").
		Select("elements.id, elements.title, elements.etate, COALESCE(velements.viewers, 0) AS viewers").
		Joins("LEFT JOIN velements ON velements.element_id = elements.id").
		Where("elements.user_id = ?", userID), "elements.created_at").
		Order("viewers DESC, elements.id DESC").
		Limit(5).
		Scan(&out.TopArticles).Error; err != nil {
		return nil, fmt.Errorf("top articles: %w", err)
	}

	if err := inRange(db.Table("elements").
		Select("categories.id AS category_id, categories.name AS name, COUNT(elements.id) AS articles, COALESCE(SUM(velements.viewers), 0) AS viewers").
		Joins("JOIN categories ON categories.id = elements.category_id").
		Joins("LEFT JOIN velements ON velements.element_id = elements.id").
		Where("elements.user_id = ?", userID), "elements.created_at").
		Group("categories.id, categories.name").
		Order("articles DESC, categories.name ASC").
		Scan(&out.Categories).Error; err != nil {
		return nil, fmt.Errorf("category stats: %w", err)
	}

	growth, err := d.growth(ctx, userID, since, bounded, now)
	if err != nil {
		return nil, err
	}
	out.Growth = growth
	return out, nil
}

// growth buckets active subscriptions by the month they were last (re)activated. Buckets are continuous from the window
// start (or the first subscription for all-time) to now; Total is cumulative.
func (d *DashboardService) growth(ctx context.Context, userID uint, since time.Time, bounded bool, now time.Time) ([]GrowthPoint, error) {
	db := d.db.WithContext(ctx)
	base := db.Model(&models.Subscriber{}).Where("user_id = ? AND is_active = ?", userID, true)

	var before int64
	if bounded {
		if err := base.Session(&gorm.Session{}).Where("subscribed_at < ?", since).Count(&before).Error; err != nil {
			return nil, fmt.Errorf("count earlier subscribers: %w", err)
		}
	}

	var created []time.Time
	q := base.Session(&gorm.Session{})
	if bounded {
		q = q.Where("subscribed_at >= ?", since)
	}
	if err := q.Order("subscribed_at ASC").Pluck("subscribed_at", &created).Error; err != nil {
		return nil, fmt.Errorf("load subscription dates: %w", err)
	}

	loc := now.Location()
	start := since
	if !bounded {
		if len(created) == 0 {
			return []GrowthPoint{}, nil
		}
		start = created[0]
	}
	first := monthStart(start.In(loc))
	last := monthStart(now)

	perMonth := map[string]int64{}
	for _, t := range created {
		perMonth[t.In(loc).Format("2006-01")]++
	}

	points := []GrowthPoint{}
	total := before
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		key := m.Format("2006-01")
		total += perMonth[key]
		points = append(points, GrowthPoint{Month: key, New: perMonth[key], Total: total})
	}
	return points, nil
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
