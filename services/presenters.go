package services

import (
	"time"

	"github.com/samber/lo"

	"github.com/segbon/segbon/models"
	"github.com/segbon/segbon/utils"
)

// Assets resolves stored file paths to public URLs.
type Assets struct {
	Disk         *utils.Disk
	DefaultCover string
	DefaultPhoto string
}

func (a Assets) cover(path string) string {
	if a.Disk == nil {
		return a.DefaultCover
	}
	return a.Disk.URL(path, a.DefaultCover)
}

func (a Assets) photo(path string) string {
	if a.Disk == nil {
		return a.DefaultPhoto
	}
	return a.Disk.URL(path, a.DefaultPhoto)
}

// AuthorCard is the public summary of a reporter.
type AuthorCard struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	PhotoURL string `json:"photo_url"`
}

// ElementView is an element as served to clients.
type ElementView struct {
	ID          uint       `json:"id,omitempty"`
	Token       string     `json:"token"`
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	CoverURL    string     `json:"cover_url"`
	Description string     `json:"description"`
	Enabled     bool       `json:"etate"`
	Category    string     `json:"category"`
	Elementype  string     `json:"elementype"`
	CategoryID  uint       `json:"category_id"`
	TypeID      uint       `json:"elementype_id"`
	Viewers     int64      `json:"viewers"`
	Author      AuthorCard `json:"author"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func presentElement(el models.Element, cipher *utils.IDCipher, assets Assets, withID bool) ElementView {
	v := ElementView{
		Title:       el.Title,
		Link:        el.Link,
		CoverURL:    assets.cover(el.Cover),
		Description: el.Description,
		Enabled:     el.Etate,
		Category:    el.Category.Name,
		Elementype:  el.Elementype.Name,
		CategoryID:  el.CategoryID,
		TypeID:      el.ElementypeID,
		CreatedAt:   el.CreatedAt,
		UpdatedAt:   el.UpdatedAt,
	}
	if withID {
		v.ID = el.ID
	}
	if cipher != nil {
		if tok, err := cipher.Encode(el.ID); err == nil {
			v.Token = tok
		} else {
			utils.Sugar.Errorw("encode element token failed", "element", el.ID, "err", err)
		}
	}
	if el.Velement != nil {
		v.Viewers = el.Velement.Viewers
	}
	if el.User.ID != 0 {
		v.Author = AuthorCard{Name: el.User.Name, Username: el.User.Username}
		if el.User.Acdetail != nil {
			v.Author.PhotoURL = assets.photo(el.User.Acdetail.Photo)
		} else {
			v.Author.PhotoURL = assets.photo("")
		}
	}
	return v
}

func presentElements(els []models.Element, cipher *utils.IDCipher, assets Assets, withID bool) []ElementView {
	return lo.Map(els, func(el models.Element, _ int) ElementView {
		return presentElement(el, cipher, assets, withID)
	})
}
