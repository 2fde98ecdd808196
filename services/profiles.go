package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/segbon/segbon/models"
	"github.com/segbon/segbon/utils"
)

const photoDir = "photos"

// ProfileInput is the editable part of a reporter profile.
type ProfileInput struct {
	Name      string
	Email     string
	Bio       string
	Website   string
	Facebook  string
	Twitter   string
	Linkedin  string
	Instagram string
	Youtube   string
}

// ProfileView is the reporter's own profile.
type ProfileView struct {
	User     models.User     `json:"user"`
	Acdetail models.Acdetail `json:"acdetail"`
	PhotoURL string          `json:"photo_url"`
}

// ProfileService edits reporter profiles (acdetail).
type ProfileService struct {
	db       *gorm.DB
	disk     *utils.Disk
	assets   Assets
	onChange func()
}

func NewProfileService(db *gorm.DB, disk *utils.Disk, assets Assets, onChange func()) *ProfileService {
	return &ProfileService{db: db, disk: disk, assets: assets, onChange: onChange}
}

// GetProfile returns the user with its acdetail, creating an empty one if needed.
func (s *ProfileService) GetProfile(ctx context.Context, userID uint) (*ProfileView, error) {
	db := s.db.WithContext(ctx)
	var user models.User
	err := db.Take(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.Acdetail{UserID: userID}).Error; err != nil {
		return nil, fmt.Errorf("ensure acdetail: %w", err)
	}
	var acd models.Acdetail
	if err := db.Where("user_id = ?", userID).Take(&acd).Error; err != nil {
		return nil, fmt.Errorf("load acdetail: %w", err)
	}
	return &ProfileView{User: user, Acdetail: acd, PhotoURL: s.assets.photo(acd.Photo)}, nil
}

func validateProfile(in *ProfileInput) fieldErrors {
	errs := fieldErrors{}
	in.Name = utils.StripTags(in.Name)
	in.Bio = utils.Sanitize(in.Bio)
	if n := utf8.RuneCountInString(in.Name); n == 0 {
		errs.add("name", "is required")
	} else if n > 128 {
		errs.add("name", "must be at most 128 characters")
	}
	if utf8.RuneCountInString(in.Bio) > 5000 {
		errs.add("bio", "must be at most 5000 characters")
	}
	links := map[string]*string{
		"website":   &in.Website,
		"facebook":  &in.Facebook,
		"twitter":   &in.Twitter,
		"linkedin":  &in.Linkedin,
		"instagram": &in.Instagram,
		"youtube":   &in.Youtube,
	}
	for field, v := range links {
		*v = strings.TrimSpace(*v)
		if *v != "" && (!utils.IsWebURL(*v) || len(*v) > 512) {
			errs.add(field, "must be an http(s) URL")
		}
	}
	return errs
}

// UpdateProfile saves name, email and acdetail fields. A new photo replaces the
// stored one; the old file is removed once the row points at the new path.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID uint, in ProfileInput, photo *multipart.FileHeader) (*ProfileView, error) {
	current, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	errs := validateProfile(&in)
	email, emailErr := NormalizeEmail(in.Email)
	if emailErr != nil {
		var ve *ValidationError
		if errors.As(emailErr, &ve) {
			for k, v := range ve.Fields {
				errs.add(k, v)
			}
		}
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	if email != current.User.Email {
		var n int64
		if err := db.Model(&models.User{}).Where("email = ? AND id <> ?", email, userID).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("check email: %w", err)
		}
		if n > 0 {
			return nil, ErrConflict
		}
	}

	var newPhoto string
	if photo != nil {
		if s.disk == nil {
			return nil, errors.New("file storage not configured")
		}
		newPhoto, err = s.disk.Put(photoDir, photo)
		if errors.Is(err, utils.ErrUnsupportedImage) || errors.Is(err, utils.ErrImageTooLarge) {
			return nil, Invalid("photo", err.Error())
		}
		if err != nil {
			return nil, fmt.Errorf("store photo: %w", err)
		}
	}

	acdUpdates := map[string]interface{}{
		"bio":       in.Bio,
		"website":   in.Website,
		"facebook":  in.Facebook,
		"twitter":   in.Twitter,
		"linkedin":  in.Linkedin,
		"instagram": in.Instagram,
		"youtube":   in.Youtube,
	}
	if newPhoto != "" {
		acdUpdates["photo"] = newPhoto
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{ID: userID}).Updates(map[string]interface{}{"name": in.Name, "email": email}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Acdetail{}).Where("user_id = ?", userID).Updates(acdUpdates).Error
	})
	if err != nil {
		if newPhoto != "" {
			_ = s.disk.Delete(newPhoto)
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if newPhoto != "" && current.Acdetail.Photo != "" && current.Acdetail.Photo != newPhoto {
		if err := s.disk.Delete(current.Acdetail.Photo); err != nil {
			utils.Sugar.Warnw("delete previous photo failed", "path", current.Acdetail.Photo, "err", err)
		}
	}
	if s.onChange != nil {
		s.onChange()
	}
	return s.GetProfile(ctx, userID)
}
