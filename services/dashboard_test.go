package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segbon/segbon/models"
)

func TestParseRange(t *testing.T) {
	r, err := ParseRange("")
	require.NoError(t, err)
	assert.Equal(t, Range30Days, r)

	for _, s := range []string{"30d", "90d", "6m", "1y", "all"} {
		r, err := ParseRange(s)
		require.NoError(t, err)
		assert.Equal(t, Range(s), r)
	}

	_, err = ParseRange("7d")
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestRangeSince(t *testing.T) {
	now := time.Date(2024, 8, 31, 12, 0, 0, 0, time.UTC)
	since, ok := Range30Days.Since(now)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC), since)

	_, ok = RangeAll.Since(now)
	assert.False(t, ok)
}

func TestDashboardStats(t *testing.T) {
	db := newTestDB(t)
	ada := createAuthor(t, db, "ada")
	bob := createAuthor(t, db, "bob")
	views := NewViewService(db)
	ctx := context.Background()
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	recent := createElement(t, db, ada, "recent", true, now.AddDate(0, 0, -3))
	draft := createElement(t, db, ada, "draft", false, now.AddDate(0, 0, -5))
	old := createElement(t, db, ada, "old", true, now.AddDate(0, -4, 0))
	other := createElement(t, db, bob, "other", true, now.AddDate(0, 0, -1))

	bump := func(id uint, n int) {
		for i := 0; i < n; i++ {
			require.NoError(t, views.IncrementElement(ctx, id))
		}
	}
	bump(recent.ID, 5)
	bump(draft.ID, 2)
	bump(old.ID, 40)
	bump(other.ID, 100)
	for i := 0; i < 7; i++ {
		require.NoError(t, views.IncrementProfile(ctx, ada.ID))
	}

	subscribeAt(t, db, ada, "a@example.com", true, now.AddDate(0, -2, 0))
	subscribeAt(t, db, ada, "b@example.com", true, now.AddDate(0, 0, -10))
	subscribeAt(t, db, ada, "c@example.com", true, now.AddDate(0, 0, -2))
	subscribeAt(t, db, ada, "d@example.com", false, now.AddDate(0, 0, -2))
	subscribeAt(t, db, bob, "e@example.com", true, now.AddDate(0, 0, -2))

	dash := NewDashboardService(db)

	stats, err := dash.Stats(ctx, ada.ID, Range30Days, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Articles, "only enabled articles in range")
	assert.Equal(t, int64(7), stats.ArticleViews)
	assert.Equal(t, int64(7), stats.ProfileViews)
	assert.Equal(t, int64(2), stats.NewSubscribers)
	require.NotNil(t, stats.Since)

	require.Len(t, stats.TopArticles, 2)
	assert.Equal(t, "recent", stats.TopArticles[0].Title)
	assert.Equal(t, int64(5), stats.TopArticles[0].Viewers)
	assert.False(t, stats.TopArticles[1].Etate)

	require.Len(t, stats.Categories, 1)
	assert.Equal(t, "Politics", stats.Categories[0].Name)
	assert.Equal(t, int64(2), stats.Categories[0].Articles)
	assert.Equal(t, int64(7), stats.Categories[0].Viewers)

	// 30 days back from June 15 spans May and June
	require.Len(t, stats.Growth, 2)
	assert.Equal(t, GrowthPoint{Month: "2024-05", New: 0, Total: 1}, stats.Growth[0])
	assert.Equal(t, GrowthPoint{Month: "2024-06", New: 2, Total: 3}, stats.Growth[1])

	all, err := dash.Stats(ctx, ada.ID, RangeAll, now)
	require.NoError(t, err)
	assert.Nil(t, all.Since)
	assert.Equal(t, int64(2), all.Articles)
	assert.Equal(t, int64(47), all.ArticleViews)
	assert.Equal(t, int64(3), all.NewSubscribers)
	require.Len(t, all.TopArticles, 3)
	assert.Equal(t, "old", all.TopArticles[0].Title)

	require.Len(t, all.Growth, 3)
	assert.Equal(t, "2024-04", all.Growth[0].Month)
	assert.Equal(t, int64(1), all.Growth[0].Total)
	assert.Equal(t, int64(3), all.Growth[2].Total)
}

func TestDashboardEmpty(t *testing.T) {
	db := newTestDB(t)
	ada := createAuthor(t, db, "ada")

	stats, err := NewDashboardService(db).Stats(context.Background(), ada.ID, RangeAll, time.Now())
	require.NoError(t, err)
	assert.Zero(t, stats.Articles)
	assert.Zero(t, stats.ProfileViews)
	assert.Empty(t, stats.TopArticles)
	assert.Empty(t, stats.Growth)

	var n int64
	require.NoError(t, db.Model(&models.Vuser{}).Count(&n).Error)
	assert.Zero(t, n, "reading the dashboard is not a profile view")
}

func TestDashboardCountsReturningSubscriber(t *testing.T) {
	db := newTestDB(t)
	ada := createAuthor(t, db, "ada")
	subs := NewSubscriptionService(db, nil)
	ctx := context.Background()

	longAgo := time.Now().AddDate(-2, 0, 0)
	subscribeAt(t, db, ada, "back@example.com", true, longAgo)

	stats, err := NewDashboardService(db).Stats(ctx, ada.ID, Range30Days, time.Now())
	require.NoError(t, err)
	assert.Zero(t, stats.NewSubscribers)

	_, err = subs.Unsubscribe(ctx, "ada", "back@example.com")
	require.NoError(t, err)
	res, err := subs.Subscribe(ctx, "ada", "back@example.com", "")
	require.NoError(t, err)
	assert.False(t, res.AlreadySubscribed)
	assert.WithinDuration(t, longAgo, res.Subscriber.CreatedAt, time.Second, "the row is reused")

	var n int64
	require.NoError(t, db.Model(&models.Subscriber{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)

	stats, err = NewDashboardService(db).Stats(ctx, ada.ID, Range30Days, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.NewSubscribers)
	require.NotEmpty(t, stats.Growth)
	last := stats.Growth[len(stats.Growth)-1]
	assert.Equal(t, int64(1), last.New)
	assert.Equal(t, int64(1), last.Total)
}
