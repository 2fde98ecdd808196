package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/segbon/segbon/models"
)

const (
	defaultPerPage = 12
	maxPerPage     = 50
)

var validate = validator.New()

// Page is a pagination window.
type Page struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// NewPage clamps page and perPage to sane values.
func NewPage(page, perPage int) Page {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return Page{Page: page, PerPage: perPage}
}

func (p Page) offset() int { return (p.Page - 1) * p.PerPage }

func (p Page) scope(db *gorm.DB) *gorm.DB {
	return db.Offset(p.offset()).Limit(p.PerPage)
}

// Paginated wraps one page of items.
type Paginated[T any] struct {
	Items   []T   `json:"items"`
	Total   int64 `json:"total"`
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
}

func paginated[T any](items []T, total int64, p Page) Paginated[T] {
	if items == nil {
		items = []T{}
	}
	return Paginated[T]{Items: items, Total: total, Page: p.Page, PerPage: p.PerPage}
}

// NormalizeEmail trims and lowercases an address and checks its syntax.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", Invalid("email", "is required")
	}
	if err := validate.Var(email, "email,max=255"); err != nil {
		return "", Invalid("email", "must be a valid email address")
	}
	return email, nil
}

// likePattern wraps a search term for a contains match. Wildcards typed by the
// user are kept: they only widen a public search.
func likePattern(q string) string {
	return "%" + strings.TrimSpace(q) + "%"
}

func findActiveAuthor(ctx context.Context, db *gorm.DB, username string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrNotFound
	}
	var user models.User
	err := db.WithContext(ctx).Where("username = ? AND active = ?", username, true).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load author %q: %w", username, err)
	}
	return &user, nil
}
