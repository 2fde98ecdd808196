package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/segbon/segbon/models"
)

// SubscriptionService manages readers following reporters.
type SubscriptionService struct {
	db       *gorm.DB
	onChange func(authorID uint)
}

// NewSubscriptionService builds the service. onChange, if set, runs after an
// active flag actually changed (used to drop cached rankings).
func NewSubscriptionService(db *gorm.DB, onChange func(authorID uint)) *SubscriptionService {
	return &SubscriptionService{db: db, onChange: onChange}
}

// SubscribeResult reports the outcome of Subscribe.
type SubscribeResult struct {
	Author            models.User
	Subscriber        models.Subscriber
	AlreadySubscribed bool
}

// Subscribe activates the (email, author) subscription, creating it on first use.
// An already active subscription is left untouched apart from a new push id.
func (s *SubscriptionService) Subscribe(ctx context.Context, username, email, playerID string) (*SubscribeResult, error) {
	author, err := findActiveAuthor(ctx, s.db, username)
	if err != nil {
		return nil, err
	}
	email, err = NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	playerID = strings.TrimSpace(playerID)
	db := s.db.WithContext(ctx)

	var existing models.Subscriber
	err = db.Where("email = ? AND user_id = ?", email, author.ID).Take(&existing).Error
	switch {
	case err == nil && existing.IsActive:
		if playerID != "" && (existing.OnesignalPlayerID == nil || *existing.OnesignalPlayerID != playerID) {
			if err := db.Model(&existing).Update("onesignal_player_id", playerID).Error; err != nil {
				return nil, fmt.Errorf("update push id: %w", err)
			}
			existing.OnesignalPlayerID = &playerID
		}
		return &SubscribeResult{Author: *author, Subscriber: existing, AlreadySubscribed: true}, nil
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("load subscriber: %w", err)
	}

	sub := models.Subscriber{Email: email, UserID: author.ID, IsActive: true, SubscribedAt: time.Now()}
	updates := []string{"is_active", "subscribed_at", "updated_at"}
	if playerID != "" {
		sub.OnesignalPlayerID = &playerID
		updates = append(updates, "onesignal_player_id")
	}
	// the unique (email, user_id) index arbitrates concurrent first subscriptions
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns(updates),
	}).Create(&sub).Error
	if err != nil {
		return nil, fmt.Errorf("upsert subscriber: %w", err)
	}

	var saved models.Subscriber
	if err := db.Where("email = ? AND user_id = ?", email, author.ID).Take(&saved).Error; err != nil {
		return nil, fmt.Errorf("reload subscriber: %w", err)
	}
	s.changed(author.ID)
	return &SubscribeResult{Author: *author, Subscriber: saved}, nil
}

// Unsubscribe deactivates the subscription. The row is kept.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, username, email string) (*models.User, error) {
	author, err := findActiveAuthor(ctx, s.db, username)
	if err != nil {
		return nil, err
	}
	email, err = NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)

	var sub models.Subscriber
	err = db.Where("email = ? AND user_id = ?", email, author.ID).Take(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load subscriber: %w", err)
	}
	if !sub.IsActive {
		return author, nil
	}
	if err := db.Model(&sub).Updates(map[string]interface{}{"is_active": false, "updated_at": time.Now()}).Error; err != nil {
		return nil, fmt.Errorf("deactivate subscriber: %w", err)
	}
	s.changed(author.ID)
	return author, nil
}

// Status reports whether email actively follows the author. Unknown or malformed
// emails are simply not subscribed.
func (s *SubscriptionService) Status(ctx context.Context, authorID uint, email string) (bool, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return false, nil
	}
	var n int64
	err = s.db.WithContext(ctx).Model(&models.Subscriber{}).
		Where("email = ? AND user_id = ? AND is_active = ?", email, authorID, true).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("subscription status: %w", err)
	}
	return n > 0, nil
}

// ListForAuthor pages through an author's subscribers, newest first.
func (s *SubscriptionService) ListForAuthor(ctx context.Context, authorID uint, activeOnly bool, p Page) (Paginated[models.Subscriber], error) {
	q := s.db.WithContext(ctx).Model(&models.Subscriber{}).Where("user_id = ?", authorID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return Paginated[models.Subscriber]{}, fmt.Errorf("count subscribers: %w", err)
	}
	var subs []models.Subscriber
	if err := p.scope(q).Order("created_at DESC, id DESC").Find(&subs).Error; err != nil {
		return Paginated[models.Subscriber]{}, fmt.Errorf("list subscribers: %w", err)
	}
	return paginated(subs, total, p), nil
}

// ActiveRecipients returns every active subscriber of the author.
func (s *SubscriptionService) ActiveRecipients(ctx context.Context, authorID uint) ([]models.Subscriber, error) {
	var subs []models.Subscriber
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", authorID, true).
		Order("id ASC").
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("load active subscribers: %w", err)
	}
	return subs, nil
}

func (s *SubscriptionService) changed(authorID uint) {
	if s.onChange != nil {
		s.onChange(authorID)
	}
}
