package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/segbon/segbon/models"
	"github.com/segbon/segbon/utils"
)

// ReporterCachePrefix namespaces cached reporter rankings.
const ReporterCachePrefix = "cache:reporters:"

// ReporterCard is a reporter as listed on discovery pages.
type ReporterCard struct {
	Name        string `json:"name"`
	Username    string `json:"username"`
	PhotoURL    string `json:"photo_url"`
	Bio         string `json:"bio"`
	Subscribers int64  `json:"subscribers"`
	Viewers     int64  `json:"viewers"`
}

type reporterRow struct {
	ID              uint
	Name            string
	Username        string
	Photo           string
	Bio             string
	SubscriberCount int64
	ViewCount       int64
}

// Profile is the public page of one reporter.
type Profile struct {
	Reporter   ReporterCard           `json:"reporter"`
	Acdetail   *models.Acdetail       `json:"acdetail,omitempty"`
	Elements   Paginated[ElementView] `json:"elements"`
	Subscribed bool                   `json:"subscribed"`
}

// ArticleQuery filters the public article search.
type ArticleQuery struct {
	Q        string
	Category string // slug
	Type     string // slug
}

// DiscoveryService powers the public pages.
type DiscoveryService struct {
	db     *gorm.DB
	cipher *utils.IDCipher
	assets Assets
	views  *ViewService
	subs   *SubscriptionService
	ttl    time.Duration
}

// NewDiscoveryService builds the service; ttl > 0 caches the top reporters ranking.
func NewDiscoveryService(db *gorm.DB, cipher *utils.IDCipher, assets Assets, views *ViewService, subs *SubscriptionService, ttl time.Duration) *DiscoveryService {
	return &DiscoveryService{db: db, cipher: cipher, assets: assets, views: views, subs: subs, ttl: ttl}
}

func (d *DiscoveryService) reporters(ctx context.Context) *gorm.DB {
	return d.db.WithContext(ctx).Table("users").
		Select("users.id, users.name, users.username, COALESCE(acdetails.photo, '') AS photo, COALESCE(acdetails.bio, '') AS bio, "+
			"COUNT(DISTINCT subscribers.id) AS subscriber_count, COALESCE(MAX(vusers.viewers), 0) AS view_count").
		Joins("LEFT JOIN acdetails ON acdetails.user_id = users.id").
		Joins("LEFT JOIN subscribers ON subscribers.user_id = users.id AND subscribers.is_active = ?", true).
		Joins("LEFT JOIN vusers ON vusers.user_id = users.id").
		Where("users.active = ? AND users.deleted_at IS NULL", true).
		Group("users.id, users.name, users.username, acdetails.photo, acdetails.bio")
}

func (d *DiscoveryService) card(r reporterRow) ReporterCard {
	return ReporterCard{
		Name:        r.Name,
		Username:    r.Username,
		PhotoURL:    d.assets.photo(r.Photo),
		Bio:         r.Bio,
		Subscribers: r.SubscriberCount,
		Viewers:     r.ViewCount,
	}
}

// TopReporters ranks active reporters by active subscribers, then profile views.
func (d *DiscoveryService) TopReporters(ctx context.Context, limit int) ([]ReporterCard, error) {
	if limit <= 0 || limit > maxPerPage {
		limit = defaultPerPage
	}
	key := ReporterCachePrefix + "top:" + strconv.Itoa(limit)
	var cards []ReporterCard
	if d.ttl > 0 && utils.CacheGetJSON(key, &cards) {
		return cards, nil
	}

	var rows []reporterRow
	if err := d.reporters(ctx).
		Order("subscriber_count DESC, view_count DESC, users.id ASC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("top reporters: %w", err)
	}
	cards = make([]ReporterCard, 0, len(rows))
	for _, r := range rows {
		cards = append(cards, d.card(r))
	}
	if d.ttl > 0 {
		utils.CacheSetJSON(key, cards, d.ttl)
	}
	return cards, nil
}

// FindReporters searches active reporters by name or username.
func (d *DiscoveryService) FindReporters(ctx context.Context, q string, p Page) (Paginated[ReporterCard], error) {
	filter := func(tx *gorm.DB) *gorm.DB {
		tx = tx.Where("users.active = ? AND users.deleted_at IS NULL", true)
		if q = strings.TrimSpace(q); q != "" {
			pat := strings.ToLower(likePattern(q))
			tx = tx.Where("LOWER(users.name) LIKE ? OR LOWER(users.username) LIKE ?", pat, pat)
		}
		return tx
	}

	var total int64
	if err := filter(d.db.WithContext(ctx).Model(&models.User{})).Count(&total).Error; err != nil {
		return Paginated[ReporterCard]{}, fmt.Errorf("count reporters: %w", err)
	}
	var rows []reporterRow
	if err := p.scope(filter(d.reporters(ctx))).
		Order("users.name ASC, users.id ASC").
		Scan(&rows).Error; err != nil {
		return Paginated[ReporterCard]{}, fmt.Errorf("find reporters: %w", err)
	}
	cards := make([]ReporterCard, 0, len(rows))
	for _, r := range rows {
		cards = append(cards, d.card(r))
	}
	return paginated(cards, total, p), nil
}

// Profile loads a reporter page with enabled elements, newest first, and counts the view.
// subscriberEmail is the remembered email, if any; it is checked against the database.
func (d *DiscoveryService) Profile(ctx context.Context, username, subscriberEmail string, p Page) (*Profile, error) {
	author, err := findActiveAuthor(ctx, d.db, username)
	if err != nil {
		return nil, err
	}
	db := d.db.WithContext(ctx)

	var row reporterRow
	if err := d.reporters(ctx).Where("users.id = ?", author.ID).Scan(&row).Error; err != nil {
		return nil, fmt.Errorf("load reporter: %w", err)
	}

	out := &Profile{}
	var acd models.Acdetail
	err = db.Where("user_id = ?", author.ID).Take(&acd).Error
	switch {
	case err == nil:
		out.Acdetail = &acd
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("load acdetail: %w", err)
	}

	q := db.Model(&models.Element{}).Where("user_id = ? AND etate = ?", author.ID, true)
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count elements: %w", err)
	}
	var els []models.Element
	if err := p.scope(q.Preload("Category").Preload("Elementype").Preload("Velement")).
		Order("created_at DESC, id DESC").Find(&els).Error; err != nil {
		return nil, fmt.Errorf("list elements: %w", err)
	}
	for i := range els {
		els[i].User = *author
		els[i].User.Acdetail = out.Acdetail
	}
	out.Elements = paginated(presentElements(els, d.cipher, d.assets, false), total, p)

	if d.subs != nil && subscriberEmail != "" {
		ok, err := d.subs.Status(ctx, author.ID, subscriberEmail)
		if err != nil {
			return nil, err
		}
		out.Subscribed = ok
	}

	if d.views != nil {
		if err := d.views.IncrementProfile(ctx, author.ID); err != nil {
			utils.Sugar.Warnw("count profile view failed", "user", author.ID, "err", err)
		} else {
			row.ViewCount++
		}
	}
	out.Reporter = d.card(row)
	return out, nil
}

// FindArticles searches enabled elements of active reporters, newest first.
func (d *DiscoveryService) FindArticles(ctx context.Context, aq ArticleQuery, p Page) (Paginated[ElementView], error) {
	filter := func(tx *gorm.DB) *gorm.DB {
		tx = tx.Joins("JOIN users ON users.id = elements.user_id AND users.active = ? AND users.deleted_at IS NULL", true).
			Where("elements.etate = ?", true)
		if q := strings.TrimSpace(aq.Q); q != "" {
			pat := strings.ToLower(likePattern(q))
			tx = tx.Where("LOWER(elements.title) LIKE ? OR LOWER(elements.description) LIKE ?", pat, pat)
		}
		if slug := strings.TrimSpace(aq.Category); slug != "" {
			tx = tx.Where("elements.category_id IN (?)", d.db.Model(&models.Category{}).Select("id").Where("slug = ?", slug))
		}
		if slug := strings.TrimSpace(aq.Type); slug != "" {
			tx = tx.Where("elements.elementype_id IN (?)", d.db.Model(&models.Elementype{}).Select("id").Where("slug = ?", slug))
		}
		return tx
	}

	var total int64
	if err := filter(d.db.WithContext(ctx).Model(&models.Element{})).Count(&total).Error; err != nil {
		return Paginated[ElementView]{}, fmt.Errorf("count articles: %w", err)
	}
	var els []models.Element
	if err := p.scope(filter(d.db.WithContext(ctx).Model(&models.Element{}))).
		Preload("Category").Preload("Elementype").Preload("Velement").Preload("User").Preload("User.Acdetail").
		Order("elements.created_at DESC, elements.id DESC").
		Find(&els).Error; err != nil {
		return Paginated[ElementView]{}, fmt.Errorf("find articles: %w", err)
	}
	return paginated(presentElements(els, d.cipher, d.assets, false), total, p), nil
}

// InvalidateRankings drops cached reporter rankings.
func InvalidateRankings() {
	utils.InvalidateByPrefix(ReporterCachePrefix)
}
