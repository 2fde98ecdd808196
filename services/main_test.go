package services

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/segbon/segbon/config"
	"github.com/segbon/segbon/models"
	"github.com/segbon/segbon/notify"
	"github.com/segbon/segbon/utils"
)

func TestMain(m *testing.M) {
	config.Set(config.AppConfig{
		JWTSecret: "test-secret",
		IDHashKey: "test-hash-key",
		LogLevel:  "error",
	})
	os.Exit(m.Run())
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	require.NoError(t, SeedCatalog(context.Background(), db))
	return db
}

func createAuthor(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	u := &models.User{Name: "Reporter " + username, Username: username, Email: username + "@segbon.test", Active: true}
	require.NoError(t, db.Create(u).Error)
	require.NoError(t, db.Create(&models.Acdetail{UserID: u.ID}).Error)
	return u
}

func disableAuthor(t *testing.T, db *gorm.DB, u *models.User) {
	t.Helper()
	require.NoError(t, db.Model(u).Update("active", false).Error)
}

func catalogIDs(t *testing.T, db *gorm.DB, category, kind string) (uint, uint) {
	t.Helper()
	var c models.Category
	require.NoError(t, db.Where("slug = ?", category).Take(&c).Error)
	var k models.Elementype
	require.NoError(t, db.Where("slug = ?", kind).Take(&k).Error)
	return c.ID, k.ID
}

func createElement(t *testing.T, db *gorm.DB, author *models.User, title string, enabled bool, createdAt time.Time) *models.Element {
	t.Helper()
	cat, kind := catalogIDs(t, db, "politics", "article")
	el := &models.Element{
		UserID:       author.ID,
		CategoryID:   cat,
		ElementypeID: kind,
		Title:        title,
		Link:         "https://news.example.com/" + title,
		CreatedAt:    createdAt,
	}
	require.NoError(t, db.Omit("User", "Category", "Elementype", "Velement").Create(el).Error)
	if enabled {
		require.NoError(t, db.Model(el).Update("etate", true).Error)
		el.Etate = true
	}
	return el
}

func subscribeAt(t *testing.T, db *gorm.DB, author *models.User, email string, active bool, createdAt time.Time) {
	t.Helper()
	sub := &models.Subscriber{Email: email, UserID: author.ID, IsActive: true, SubscribedAt: createdAt, CreatedAt: createdAt}
	require.NoError(t, db.Create(sub).Error)
	if !active {
		require.NoError(t, db.Model(sub).Update("is_active", false).Error)
	}
}

func upload(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("cover", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["cover"][0]
}

func newCipher(t *testing.T) *utils.IDCipher {
	t.Helper()
	c, err := utils.NewIDCipher("test-hash-key", "")
	require.NoError(t, err)
	return c
}

func newDisk(t *testing.T) *utils.Disk {
	t.Helper()
	d, err := utils.NewDisk(t.TempDir(), "/storage")
	require.NoError(t, err)
	return d
}

type recordingPush struct {
	mu    sync.Mutex
	calls []notify.PushMessage
}

func (r *recordingPush) SendPush(_ context.Context, msg notify.PushMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, msg)
	return nil
}

type recordingMail struct {
	mu   sync.Mutex
	sent []notify.Email
	fail bool
}

func (r *recordingMail) SendEmail(_ context.Context, mail notify.Email) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return fmt.Errorf("smtp 421 for %s", mail.To)
	}
	r.sent = append(r.sent, mail)
	return nil
}
