package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/segbon/segbon/models"
)

func newDiscovery(t *testing.T, db *gorm.DB) *DiscoveryService {
	t.Helper()
	assets := Assets{Disk: newDisk(t), DefaultCover: "/static/cover.png", DefaultPhoto: "/static/photo.png"}
	return NewDiscoveryService(db, newCipher(t), assets, NewViewService(db), NewSubscriptionService(db, nil), 0)
}

func TestTopReporters(t *testing.T) {
	db := newTestDB(t)
	ada := createAuthor(t, db, "ada")
	bob := createAuthor(t, db, "bob")
	cid := createAuthor(t, db, "cid")
	gone := createAuthor(t, db, "gone")
	disableAuthor(t, db, gone)
	now := time.Now()

	subscribeAt(t, db, bob, "1@example.com", true, now)
	subscribeAt(t, db, bob, "2@example.com", true, now)
	subscribeAt(t, db, ada, "1@example.com", true, now)
	subscribeAt(t, db, ada, "2@example.com", false, now)
	subscribeAt(t, db, cid, "3@example.com", true, now)
	subscribeAt(t, db, gone, "4@example.com", true, now)
	subscribeAt(t, db, gone, "5@example.com", true, now)
	subscribeAt(t, db, gone, "6@example.com", true, now)
	views := NewViewService(db)
	require.NoError(t, views.IncrementProfile(context.Background(), cid.ID))

	cards, err := newDiscovery(t, db).TopReporters(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, cards, 3)
	assert.Equal(t, "bob", cards[0].Username)
	assert.Equal(t, int64(2), cards[0].Subscribers)
	assert.Equal(t, "cid", cards[1].Username, "ties broken by profile views")
	assert.Equal(t, int64(1), cards[1].Viewers)
	assert.Equal(t, "ada", cards[2].Username)
	assert.Equal(t, "/static/photo.png", cards[2].PhotoURL)
}

func TestFindReporters(t *testing.T) {
	db := newTestDB(t)
	createAuthor(t, db, "ada_lovelace")
	createAuthor(t, db, "adam")
	createAuthor(t, db, "bob")
	d := newDiscovery(t, db)

	page, err := d.FindReporters(context.Background(), "ADA", NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Len(t, page.Items, 2)

	page, err = d.FindReporters(context.Background(), "", NewPage(2, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Items, 1)
}

func TestProfile(t *testing.T) {
	db := newTestDB(t)
	ada := createAuthor(t, db, "ada")
	require.NoError(t, db.Model(&models.Acdetail{}).Where("user_id = ?", ada.ID).Update("bio", "Writes about engines").Error)
	base := time.Now().Add(-time.Hour)
	createElement(t, db, ada, "first", true, base)
	createElement(t, db, ada, "draft", false, base.Add(time.Minute))
	createElement(t, db, ada, "second", true, base.Add(2*time.Minute))
	subscribeAt(t, db, ada, "reader@example.com", true, time.Now())
	d := newDiscovery(t, db)
	ctx := context.Background()

	p, err := d.Profile(ctx, "ada", "Reader@example.com", NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, "ada", p.Reporter.Username)
	assert.Equal(t, "Writes about engines", p.Reporter.Bio)
	assert.Equal(t, int64(1), p.Reporter.Subscribers)
	assert.Equal(t, int64(1), p.Reporter.Viewers)
	assert.True(t, p.Subscribed)
	require.NotNil(t, p.Acdetail)
	assert.Equal(t, int64(2), p.Elements.Total)
	require.Len(t, p.Elements.Items, 2)
	assert.Equal(t, "second", p.Elements.Items[0].Title)
	assert.NotEmpty(t, p.Elements.Items[0].Token)
	assert.Zero(t, p.Elements.Items[0].ID)

	p, err = d.Profile(ctx, "ada", "stranger@example.com", NewPage(1, 10))
	require.NoError(t, err)
	assert.False(t, p.Subscribed)
	assert.Equal(t, int64(2), p.Reporter.Viewers)

	_, err = d.Profile(ctx, "ghost", "", NewPage(1, 10))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindArticles(t *testing.T) {
	db := newTestDB(t)
	ada := createAuthor(t, db, "ada")
	bob := createAuthor(t, db, "bob")
	now := time.Now()
	createElement(t, db, ada, "Election results", true, now.Add(-3*time.Minute))
	createElement(t, db, ada, "Election draft", false, now.Add(-2*time.Minute))
	sports := createElement(t, db, ada, "Match report", true, now.Add(-time.Minute))
	createElement(t, db, bob, "Election night", true, now)
	disableAuthor(t, db, bob)

	cat, _ := catalogIDs(t, db, "sports", "article")
	require.NoError(t, db.Model(sports).Update("category_id", cat).Error)
	d := newDiscovery(t, db)
	ctx := context.Background()

	page, err := d.FindArticles(ctx, ArticleQuery{Q: "election"}, NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Election results", page.Items[0].Title)
	assert.Equal(t, "ada", page.Items[0].Author.Username)

	page, err = d.FindArticles(ctx, ArticleQuery{Category: "sports"}, NewPage(1, 10))
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Match report", page.Items[0].Title)

	page, err = d.FindArticles(ctx, ArticleQuery{Type: "video"}, NewPage(1, 10))
	require.NoError(t, err)
	assert.Zero(t, page.Total)

	page, err = d.FindArticles(ctx, ArticleQuery{}, NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, "Match report", page.Items[0].Title)
}

func TestCatalog(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, SeedCatalog(ctx, db), "seeding twice is a no-op")

	var nCats, nKinds int64
	require.NoError(t, db.Model(&models.Category{}).Count(&nCats).Error)
	require.NoError(t, db.Model(&models.Elementype{}).Count(&nKinds).Error)
	assert.Equal(t, int64(8), nCats)
	assert.Equal(t, int64(3), nKinds)
	var stray int64
	require.NoError(t, db.Model(&models.Category{}).Where("slug IN ?", []string{"article", "video", "podcast"}).Count(&stray).Error)
	assert.Zero(t, stray, "element types must not land in categories")

	c := NewCatalogService(db, 0)
	cats, err := c.Categories(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, len(defaultCategories))
	assert.Equal(t, "Culture", cats[0].Name)

	kinds, err := c.Elementypes(ctx)
	require.NoError(t, err)
	require.Len(t, kinds, 3)
	assert.Equal(t, "article", kinds[0].Slug)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "health", slugify("Health"))
	assert.Equal(t, "science-tech", slugify("  Science & Tech! "))
}
