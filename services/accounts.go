package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/segbon/segbon/models"
	"github.com/segbon/segbon/utils"
)

// RegisterInput is a local sign-up request.
type RegisterInput struct {
	Name     string
	Username string
	Email    string
	Password string
}

// GoogleProfile is the identity returned by Google's userinfo endpoint.
type GoogleProfile struct {
	ID    string
	Email string
	Name  string
}

// AccountService handles reporter accounts.
type AccountService struct {
	db *gorm.DB
}

func NewAccountService(db *gorm.DB) *AccountService {
	return &AccountService{db: db}
}

func validUsername(s string) bool {
	for _, r := range s {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_' || r == '-' {
			continue
		}
		return false
	}
	return true
}

// Register creates a local account with a bcrypt password.
func (a *AccountService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	errs := fieldErrors{}
	in.Name = utils.StripTags(in.Name)
	in.Username = strings.TrimSpace(in.Username)
	if n := utf8.RuneCountInString(in.Name); n == 0 || n > 128 {
		errs.add("name", "must be 1 to 128 characters")
	}
	if l := len(in.Username); l < 3 || l > 32 || !validUsername(in.Username) {
		errs.add("username", "must be 3 to 32 letters, digits, '_' or '-'")
	}
	email, err := NormalizeEmail(in.Email)
	if err != nil {
		errs.add("email", "must be a valid email address")
	}
	if l := len(in.Password); l < 8 || l > 72 {
		errs.add("password", "must be 8 to 72 characters")
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	db := a.db.WithContext(ctx)
	var n int64
	if err := db.Unscoped().Model(&models.User{}).Where("username = ? OR email = ?", in.Username, email).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if n > 0 {
		return nil, ErrConflict
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := models.User{Name: in.Name, Username: in.Username, Email: email, PasswordHash: hash, Active: true}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		return tx.Create(&models.Acdetail{UserID: user.ID}).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

// Login checks a username or email with its password.
func (a *AccountService) Login(ctx context.Context, identifier, password string) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	var user models.User
	err := a.db.WithContext(ctx).
		Where("username = ? OR email = ?", identifier, strings.ToLower(identifier)).
		Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !utils.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if !user.Active {
		return nil, ErrAccountDisabled
	}
	return &user, nil
}

// Me returns an active user by id.
func (a *AccountService) Me(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	err := a.db.WithContext(ctx).Preload("Acdetail").Take(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.Active {
		return nil, ErrAccountDisabled
	}
	return &user, nil
}

// LoginWithGoogle finds the user linked to the Google id, links an existing account
// with the same email, or creates a new one.
func (a *AccountService) LoginWithGoogle(ctx context.Context, gp GoogleProfile) (*models.User, error) {
	if gp.ID == "" {
		return nil, ErrInvalidCredentials
	}
	db := a.db.WithContext(ctx)
	email := strings.ToLower(strings.TrimSpace(gp.Email))

	var user models.User
	err := db.Where("provider = ? AND provider_id = ?", "google", gp.ID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) && email != "" {
		err = db.Where("email = ?", email).Take(&user).Error
		if err == nil {
			err = db.Model(&user).Updates(map[string]interface{}{"provider": "google", "provider_id": gp.ID}).Error
		}
	}
	switch {
	case err == nil:
		if !user.Active {
			return nil, ErrAccountDisabled
		}
		return &user, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("load google user: %w", err)
	}

	if email == "" {
		return nil, Invalid("email", "google account has no email")
	}
	username, err := a.uniqueUsername(ctx, strings.SplitN(email, "@", 2)[0], gp.ID)
	if err != nil {
		return nil, err
	}
	name := utils.StripTags(gp.Name)
	if name == "" {
		name = username
	}
	user = models.User{Name: name, Username: username, Email: email, Provider: "google", ProviderID: gp.ID, Active: true}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		return tx.Create(&models.Acdetail{UserID: user.ID}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create google user: %w", err)
	}
	return &user, nil
}

func sanitizeUsername(input string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(input)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_' || r == '-' || r == '.':
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "_")
	if len(out) > 24 {
		out = out[:24]
	}
	return out
}

func (a *AccountService) uniqueUsername(ctx context.Context, base, id string) (string, error) {
	base = sanitizeUsername(base)
	if len(base) < 3 {
		base = "reporter_" + sanitizeUsername(id)
		if len(base) > 24 {
			base = base[:24]
		}
	}
	candidate := base
	for suffix := 1; suffix < 1000; suffix++ {
		var n int64
		if err := a.db.WithContext(ctx).Unscoped().Model(&models.User{}).Where("username = ?", candidate).Count(&n).Error; err != nil {
			return "", fmt.Errorf("check username: %w", err)
		}
		if n == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s_%d", base, suffix)
	}
	return "", ErrConflict
}
