package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/segbon/segbon/models"
	"github.com/segbon/segbon/notify"
	"github.com/segbon/segbon/utils"
)

type elementFixture struct {
	db       *gorm.DB
	svc      *ElementService
	subs     *SubscriptionService
	disk     *utils.Disk
	cipher   *utils.IDCipher
	push     *recordingPush
	mail     *recordingMail
	author   *models.User
	category uint
	kind     uint
}

func newElementFixture(t *testing.T) *elementFixture {
	t.Helper()
	f := &elementFixture{db: newTestDB(t), disk: newDisk(t), cipher: newCipher(t), push: &recordingPush{}, mail: &recordingMail{}}
	f.subs = NewSubscriptionService(f.db, nil)
	f.svc = NewElementService(f.db, ElementDeps{
		Disk:       f.disk,
		Cipher:     f.cipher,
		Assets:     Assets{Disk: f.disk, DefaultCover: "/static/cover.png", DefaultPhoto: "/static/photo.png"},
		Views:      NewViewService(f.db),
		Subs:       f.subs,
		Dispatcher: &notify.Dispatcher{Push: f.push, Mail: notify.NewBatchSender(f.mail, 50, 0, 0)},
		BaseURL:    "https://segbon.test/",
	})
	f.author = createAuthor(t, f.db, "ada")
	f.category, f.kind = catalogIDs(t, f.db, "technology", "video")
	return f
}

func (f *elementFixture) input(title string) ElementInput {
	return ElementInput{
		Title:        title,
		Link:         "https://video.example.com/" + title,
		Description:  "<p>about " + title + "</p><script>alert(1)</script>",
		CategoryID:   f.category,
		ElementypeID: f.kind,
	}
}

func TestCreateElement(t *testing.T) {
	f := newElementFixture(t)

	v, err := f.svc.Create(context.Background(), f.author.ID, f.input("engines"), nil)
	require.NoError(t, err)
	assert.NotZero(t, v.ID)
	assert.False(t, v.Enabled, "new elements start disabled")
	assert.Equal(t, "/static/cover.png", v.CoverURL)
	assert.Equal(t, "<p>about engines</p>", v.Description)
	assert.Equal(t, "Technology", v.Category)
	assert.Equal(t, "Video", v.Elementype)
	assert.Equal(t, "ada", v.Author.Username)
	assert.Zero(t, v.Viewers)

	id, err := f.cipher.Decode(v.Token)
	require.NoError(t, err)
	assert.Equal(t, v.ID, id)

	var counter models.Velement
	require.NoError(t, f.db.Where("element_id = ?", v.ID).Take(&counter).Error)
	assert.Zero(t, counter.Viewers)
}

func TestCreateElementValidation(t *testing.T) {
	f := newElementFixture(t)
	in := f.input("x")
	in.Title = "<b></b>"
	in.Link = "http://insecure.example.com"
	in.CategoryID = 9999
	in.ElementypeID = 0

	_, err := f.svc.Create(context.Background(), f.author.ID, in, nil)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "is required", ve.Fields["title"])
	assert.Equal(t, "must be an https:// link", ve.Fields["link"])
	assert.Equal(t, "does not exist", ve.Fields["category_id"])
	assert.Equal(t, "is required", ve.Fields["elementype_id"])

	_, err = f.svc.Create(context.Background(), f.author.ID, f.input("y"), upload(t, "cover.exe", []byte("x")))
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "cover")
}

func TestUpdateReplacesCover(t *testing.T) {
	f := newElementFixture(t)
	ctx := context.Background()

	v, err := f.svc.Create(ctx, f.author.ID, f.input("first"), upload(t, "a.png", []byte("a")))
	require.NoError(t, err)
	var el models.Element
	require.NoError(t, f.db.Take(&el, v.ID).Error)
	oldCover := el.Cover
	require.True(t, f.disk.Exists(oldCover))
	assert.Equal(t, "/storage/"+oldCover, v.CoverURL)

	v, err = f.svc.Update(ctx, f.author.ID, v.ID, f.input("second"), upload(t, "b.jpg", []byte("b")))
	require.NoError(t, err)
	assert.Equal(t, "second", v.Title)
	require.NoError(t, f.db.Take(&el, v.ID).Error)
	assert.NotEqual(t, oldCover, el.Cover)
	assert.True(t, f.disk.Exists(el.Cover))
	assert.False(t, f.disk.Exists(oldCover), "the replaced cover is deleted")

	keep := el.Cover
	_, err = f.svc.Update(ctx, f.author.ID, v.ID, f.input("third"), nil)
	require.NoError(t, err)
	require.NoError(t, f.db.Take(&el, v.ID).Error)
	assert.Equal(t, keep, el.Cover, "no upload keeps the current cover")
	assert.True(t, f.disk.Exists(keep))
}

func TestUpdateRequiresOwner(t *testing.T) {
	f := newElementFixture(t)
	other := createAuthor(t, f.db, "bob")
	ctx := context.Background()

	v, err := f.svc.Create(ctx, f.author.ID, f.input("mine"), nil)
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, other.ID, v.ID, f.input("theirs"), nil)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Endisable(ctx, other.ID, v.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Get(ctx, f.author.ID, 4242)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEndisableAnnouncesOnEnable(t *testing.T) {
	f := newElementFixture(t)
	ctx := context.Background()
	_, err := f.subs.Subscribe(ctx, "ada", "one@example.com", "player-1")
	require.NoError(t, err)
	_, err = f.subs.Subscribe(ctx, "ada", "two@example.com", "")
	require.NoError(t, err)
	_, err = f.subs.Subscribe(ctx, "ada", "three@example.com", "player-3")
	require.NoError(t, err)
	_, err = f.subs.Subscribe(ctx, "ada", "gone@example.com", "player-4")
	require.NoError(t, err)
	_, err = f.subs.Unsubscribe(ctx, "ada", "gone@example.com")
	require.NoError(t, err)

	v, err := f.svc.Create(ctx, f.author.ID, f.input("launch"), nil)
	require.NoError(t, err)

	res, err := f.svc.Endisable(ctx, f.author.ID, v.ID)
	require.NoError(t, err)
	assert.True(t, res.Enabled)
	assert.True(t, res.Element.Enabled)
	require.NotNil(t, res.Report)
	assert.True(t, res.Report.Notified)

	require.Len(t, f.push.calls, 1, "one push call for all subscribers")
	assert.ElementsMatch(t, []string{"player-1", "player-3"}, f.push.calls[0].PlayerIDs)
	assert.Equal(t, "New publication from ada: launch", f.push.calls[0].Content)
	assert.True(t, strings.HasPrefix(f.push.calls[0].URL, "https://segbon.test/segbopub/"))

	assert.Len(t, f.mail.sent, 3)
	for _, m := range f.mail.sent {
		assert.NotEqual(t, "gone@example.com", m.To)
		assert.Equal(t, "New publication from ada: launch", m.Subject)
	}

	res, err = f.svc.Endisable(ctx, f.author.ID, v.ID)
	require.NoError(t, err)
	assert.False(t, res.Enabled)
	assert.Nil(t, res.Report)
	assert.Len(t, f.push.calls, 1, "disabling sends nothing")
	assert.Len(t, f.mail.sent, 3)
}

func TestEndisableSurvivesDeliveryFailure(t *testing.T) {
	f := newElementFixture(t)
	f.mail.fail = true
	ctx := context.Background()
	_, err := f.subs.Subscribe(ctx, "ada", "one@example.com", "")
	require.NoError(t, err)

	v, err := f.svc.Create(ctx, f.author.ID, f.input("launch"), nil)
	require.NoError(t, err)
	res, err := f.svc.Endisable(ctx, f.author.ID, v.ID)
	require.NoError(t, err)
	assert.True(t, res.Enabled)
	assert.False(t, res.Report.Notified)
	require.Len(t, res.Report.Emails, 1)
	assert.False(t, res.Report.Emails[0].Sent)

	var el models.Element
	require.NoError(t, f.db.Take(&el, v.ID).Error)
	assert.True(t, el.Etate, "the toggle is kept")
}

func TestGetPublic(t *testing.T) {
	f := newElementFixture(t)
	ctx := context.Background()

	v, err := f.svc.Create(ctx, f.author.ID, f.input("hidden"), nil)
	require.NoError(t, err)

	_, err = f.svc.GetPublic(ctx, v.Token)
	assert.ErrorIs(t, err, ErrNotFound, "disabled elements are not public")

	_, err = f.svc.Endisable(ctx, f.author.ID, v.ID)
	require.NoError(t, err)

	pub, err := f.svc.GetPublic(ctx, v.Token)
	require.NoError(t, err)
	assert.Zero(t, pub.ID, "public payloads carry the token only")
	assert.Equal(t, int64(1), pub.Viewers)
	pub, err = f.svc.GetPublic(ctx, v.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pub.Viewers)

	_, err = f.svc.GetPublic(ctx, "forged")
	assert.ErrorIs(t, err, ErrInvalidToken)

	disableAuthor(t, f.db, f.author)
	_, err = f.svc.GetPublic(ctx, v.Token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListMine(t *testing.T) {
	f := newElementFixture(t)
	other := createAuthor(t, f.db, "bob")
	base := time.Now().Add(-time.Hour)
	for i, title := range []string{"a", "b", "c"} {
		createElement(t, f.db, f.author, title, i%2 == 0, base.Add(time.Duration(i)*time.Minute))
	}
	createElement(t, f.db, other, "z", true, base)

	page, err := f.svc.ListMine(context.Background(), f.author.ID, NewPage(1, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "c", page.Items[0].Title)
	assert.Equal(t, "b", page.Items[1].Title)
}

func TestConcurrentViewIncrements(t *testing.T) {
	db := newTestDB(t)
	views := NewViewService(db)
	author := createAuthor(t, db, "ada")
	el := createElement(t, db, author, "busy", true, time.Now())
	ctx := context.Background()

	const n = 25
	var wg sync.WaitGroup
	errs := make(chan error, 2*n)
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			errs <- views.IncrementElement(ctx, el.ID)
		}()
		go func() {
			defer wg.Done()
			errs <- views.IncrementProfile(ctx, author.ID)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := views.ElementViews(ctx, el.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(n), got)
	got, err = views.ProfileViews(ctx, author.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(n), got)

	got, err = views.ElementViews(ctx, 999)
	require.NoError(t, err)
	assert.Zero(t, got)
}
