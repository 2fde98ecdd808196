package services

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"mime/multipart"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/segbon/segbon/models"
	"github.com/segbon/segbon/notify"
	"github.com/segbon/segbon/utils"
)

const coverDir = "covers"

// ElementInput is the editable part of an element.
type ElementInput struct {
	Title        string
	Link         string
	Description  string
	CategoryID   uint
	ElementypeID uint
}

// ElementService owns publications: storage, ownership checks and the enable toggle.
type ElementService struct {
	db         *gorm.DB
	disk       *utils.Disk
	cipher     *utils.IDCipher
	assets     Assets
	views      *ViewService
	subs       *SubscriptionService
	dispatcher *notify.Dispatcher
	baseURL    string
	onChange   func()
}

// ElementDeps groups the collaborators of ElementService.
type ElementDeps struct {
	Disk       *utils.Disk
	Cipher     *utils.IDCipher
	Assets     Assets
	Views      *ViewService
	Subs       *SubscriptionService
	Dispatcher *notify.Dispatcher
	BaseURL    string
	OnChange   func()
}

func NewElementService(db *gorm.DB, deps ElementDeps) *ElementService {
	return &ElementService{
		db:         db,
		disk:       deps.Disk,
		cipher:     deps.Cipher,
		assets:     deps.Assets,
		views:      deps.Views,
		subs:       deps.Subs,
		dispatcher: deps.Dispatcher,
		baseURL:    strings.TrimRight(deps.BaseURL, "/"),
		onChange:   deps.OnChange,
	}
}

func (s *ElementService) validate(ctx context.Context, in *ElementInput) error {
	errs := fieldErrors{}
	in.Title = utils.StripTags(in.Title)
	in.Link = strings.TrimSpace(in.Link)
	in.Description = utils.Sanitize(in.Description)

	switch n := utf8.RuneCountInString(in.Title); {
	case n == 0:
		errs.add("title", "is required")
	case n > 255:
		errs.add("title", "must be at most 255 characters")
	}
	if in.Link == "" {
		errs.add("link", "is required")
	} else if !utils.IsHTTPSURL(in.Link) {
		errs.add("link", "must be an https:// link")
	} else if len(in.Link) > 1024 {
		errs.add("link", "must be at most 1024 characters")
	}

	db := s.db.WithContext(ctx)
	var n int64
	if in.CategoryID == 0 {
		errs.add("category_id", "is required")
	} else if err := db.Model(&models.Category{}).Where("id = ?", in.CategoryID).Count(&n).Error; err != nil {
		return fmt.Errorf("check category: %w", err)
	} else if n == 0 {
		errs.add("category_id", "does not exist")
	}
	if in.ElementypeID == 0 {
		errs.add("elementype_id", "is required")
	} else if err := db.Model(&models.Elementype{}).Where("id = ?", in.ElementypeID).Count(&n).Error; err != nil {
		return fmt.Errorf("check elementype: %w", err)
	} else if n == 0 {
		errs.add("elementype_id", "does not exist")
	}
	return errs.err()
}

func (s *ElementService) storeCover(cover *multipart.FileHeader) (string, error) {
	if cover == nil {
		return "", nil
	}
	if s.disk == nil {
		return "", errors.New("file storage not configured")
	}
	path, err := s.disk.Put(coverDir, cover)
	if errors.Is(err, utils.ErrUnsupportedImage) || errors.Is(err, utils.ErrImageTooLarge) {
		return "", Invalid("cover", err.Error())
	}
	if err != nil {
		return "", fmt.Errorf("store cover: %w", err)
	}
	return path, nil
}

func (s *ElementService) discard(path string) {
	if path == "" || s.disk == nil {
		return
	}
	if err := s.disk.Delete(path); err != nil {
		utils.Sugar.Warnw("delete stored file failed", "path", path, "err", err)
	}
}

// Create stores a new, disabled element owned by authorID.
func (s *ElementService) Create(ctx context.Context, authorID uint, in ElementInput, cover *multipart.FileHeader) (*ElementView, error) {
	if err := s.validate(ctx, &in); err != nil {
		return nil, err
	}
	coverPath, err := s.storeCover(cover)
	if err != nil {
		return nil, err
	}

	el := models.Element{
		UserID:       authorID,
		CategoryID:   in.CategoryID,
		ElementypeID: in.ElementypeID,
		Title:        in.Title,
		Link:         in.Link,
		Cover:        coverPath,
		Description:  in.Description,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&el).Error; err != nil {
			return err
		}
		return tx.Create(&models.Velement{ElementID: el.ID}).Error
	})
	if err != nil {
		s.discard(coverPath)
		return nil, fmt.Errorf("create element: %w", err)
	}
	return s.Get(ctx, authorID, el.ID)
}

// Update edits an element of authorID. A new cover replaces the old file, which is
// deleted only after the row points at the new one; without a cover the old path stays.
func (s *ElementService) Update(ctx context.Context, authorID, elementID uint, in ElementInput, cover *multipart.FileHeader) (*ElementView, error) {
	el, err := s.owned(ctx, authorID, elementID)
	if err != nil {
		return nil, err
	}
	if err := s.validate(ctx, &in); err != nil {
		return nil, err
	}
	newCover, err := s.storeCover(cover)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"title":         in.Title,
		"link":          in.Link,
		"description":   in.Description,
		"category_id":   in.CategoryID,
		"elementype_id": in.ElementypeID,
	}
	if newCover != "" {
		updates["cover"] = newCover
	}
	if err := s.db.WithContext(ctx).Model(&models.Element{ID: el.ID}).Updates(updates).Error; err != nil {
		s.discard(newCover)
		return nil, fmt.Errorf("update element: %w", err)
	}
	if newCover != "" && el.Cover != "" && el.Cover != newCover {
		s.discard(el.Cover)
	}
	s.changed()
	return s.Get(ctx, authorID, el.ID)
}

func (s *ElementService) owned(ctx context.Context, authorID, elementID uint) (*models.Element, error) {
	var el models.Element
	err := s.db.WithContext(ctx).Take(&el, elementID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load element %d: %w", elementID, err)
	}
	if el.UserID != authorID {
		return nil, ErrForbidden
	}
	return &el, nil
}

func (s *ElementService) withRelations(db *gorm.DB) *gorm.DB {
	return db.Preload("Category").Preload("Elementype").Preload("Velement").Preload("User").Preload("User.Acdetail")
}

// Get returns one element of authorID.
func (s *ElementService) Get(ctx context.Context, authorID, elementID uint) (*ElementView, error) {
	if _, err := s.owned(ctx, authorID, elementID); err != nil {
		return nil, err
	}
	var el models.Element
	if err := s.withRelations(s.db.WithContext(ctx)).Take(&el, elementID).Error; err != nil {
		return nil, fmt.Errorf("load element %d: %w", elementID, err)
	}
	v := presentElement(el, s.cipher, s.assets, true)
	return &v, nil
}

// ListMine pages through the author's elements, newest first, in any state.
func (s *ElementService) ListMine(ctx context.Context, authorID uint, p Page) (Paginated[ElementView], error) {
	q := s.db.WithContext(ctx).Model(&models.Element{}).Where("user_id = ?", authorID)
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return Paginated[ElementView]{}, fmt.Errorf("count elements: %w", err)
	}
	var els []models.Element
	if err := p.scope(s.withRelations(q)).Order("created_at DESC, id DESC").Find(&els).Error; err != nil {
		return Paginated[ElementView]{}, fmt.Errorf("list elements: %w", err)
	}
	return paginated(presentElements(els, s.cipher, s.assets, true), total, p), nil
}

// GetPublic resolves an element token to an enabled element of an active reporter
// and counts the view.
func (s *ElementService) GetPublic(ctx context.Context, token string) (*ElementView, error) {
	if s.cipher == nil {
		return nil, ErrNotFound
	}
	id, err := s.cipher.Decode(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	var el models.Element
	err = s.withRelations(s.db.WithContext(ctx)).
		Joins("JOIN users ON users.id = elements.user_id AND users.active = ? AND users.deleted_at IS NULL", true).
		Where("elements.id = ? AND elements.etate = ?", id, true).
		Take(&el).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load public element: %w", err)
	}
	if s.views != nil {
		if err := s.views.IncrementElement(ctx, el.ID); err != nil {
			utils.Sugar.Warnw("count element view failed", "element", el.ID, "err", err)
		} else if el.Velement != nil {
			el.Velement.Viewers++
		} else {
			el.Velement = &models.Velement{ElementID: el.ID, Viewers: 1}
		}
	}
	v := presentElement(el, s.cipher, s.assets, false)
	return &v, nil
}

// EndisableResult is the outcome of a toggle.
type EndisableResult struct {
	Element ElementView    `json:"element"`
	Enabled bool           `json:"enabled"`
	Report  *notify.Report `json:"notification,omitempty"`
}

// Endisable flips the enabled flag. Going from disabled to enabled announces the
// element to active subscribers; delivery problems end up in the report only.
func (s *ElementService) Endisable(ctx context.Context, authorID, elementID uint) (*EndisableResult, error) {
	el, err := s.owned(ctx, authorID, elementID)
	if err != nil {
		return nil, err
	}
	enable := !el.Etate

	// conditional on the state we read, so two racing toggles cannot both announce
	res := s.db.WithContext(ctx).Model(&models.Element{}).
		Where("id = ? AND etate = ?", el.ID, el.Etate).
		Update("etate", enable)
	if res.Error != nil {
		return nil, fmt.Errorf("toggle element %d: %w", el.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrConflict
	}
	s.changed()

	view, err := s.Get(ctx, authorID, el.ID)
	if err != nil {
		return nil, err
	}
	out := &EndisableResult{Element: *view, Enabled: enable}
	if enable {
		report := s.announce(ctx, el.UserID, view)
		out.Report = &report
	}
	return out, nil
}

func (s *ElementService) announce(ctx context.Context, authorID uint, view *ElementView) notify.Report {
	if s.dispatcher == nil || s.subs == nil {
		return notify.Report{Emails: []notify.Result{}}
	}
	var author models.User
	if err := s.db.WithContext(ctx).Take(&author, authorID).Error; err != nil {
		utils.Sugar.Errorw("load author for fan-out failed", "element", view.ID, "err", err)
		return notify.Report{PushError: err.Error(), Emails: []notify.Result{}}
	}
	subs, err := s.subs.ActiveRecipients(ctx, author.ID)
	if err != nil {
		utils.Sugar.Errorw("load recipients for fan-out failed", "element", view.ID, "err", err)
		return notify.Report{PushError: err.Error(), Emails: []notify.Result{}}
	}

	recipients := make([]notify.Recipient, 0, len(subs))
	for _, sub := range subs {
		r := notify.Recipient{Email: sub.Email}
		if sub.OnesignalPlayerID != nil {
			r.PlayerID = *sub.OnesignalPlayerID
		}
		recipients = append(recipients, r)
	}

	pub := notify.Publication{
		AuthorName:     author.Name,
		AuthorUsername: author.Username,
		Title:          view.Title,
		Description:    template.HTML(view.Description),
		URL:            s.baseURL + "/segbopub/" + view.Token,
		UnsubscribeURL: s.baseURL + "/segbo/" + author.Username,
	}
	report := s.dispatcher.PublicationEnabled(ctx, pub, recipients)
	utils.Sugar.Infow("publication announced",
		"element", view.ID,
		"author", author.Username,
		"subscribers", len(recipients),
		"push_recipients", report.PushRecipients,
		"emails", len(report.Emails),
	)
	return report
}

func (s *ElementService) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}
