package utils

import (
	"crypto/sha256"
	"errors"

	"github.com/gorilla/securecookie"
)

const elementTokenName = "segbopub"

// ErrInvalidToken is returned when an element token was tampered with or minted with other keys.
var ErrInvalidToken = errors.New("invalid element token")

// IDCipher turns numeric element ids into opaque, authenticated tokens.
type IDCipher struct {
	codec *securecookie.SecureCookie
}

// NewIDCipher builds a cipher from the configured keys. An empty block key is
// derived from the hash key so tokens are always encrypted, not only signed.
func NewIDCipher(hashKey, blockKey string) (*IDCipher, error) {
	if hashKey == "" {
		return nil, errors.New("id cipher: hash key is required")
	}
	bk := []byte(blockKey)
	if len(bk) == 0 {
		sum := sha256.Sum256([]byte("segbon-block:" + hashKey))
		bk = sum[:]
	}
	switch len(bk) {
	case 16, 24, 32:
	default:
		return nil, errors.New("id cipher: block key must be 16, 24 or 32 bytes")
	}

	codec := securecookie.New([]byte(hashKey), bk)
	codec.MaxAge(0)
	codec.SetSerializer(securecookie.JSONEncoder{})
	return &IDCipher{codec: codec}, nil
}

// Encode returns the URL-safe token for id.
func (c *IDCipher) Encode(id uint) (string, error) {
	return c.codec.Encode(elementTokenName, id)
}

// Decode returns the id carried by token, or ErrInvalidToken.
func (c *IDCipher) Decode(token string) (uint, error) {
	var id uint
	if token == "" {
		return 0, ErrInvalidToken
	}
	if err := c.codec.Decode(elementTokenName, token, &id); err != nil || id == 0 {
		return 0, ErrInvalidToken
	}
	return id, nil
}
