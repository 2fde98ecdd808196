package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segbon/segbon/models"
)

func TestRegisterAndLogin(t *testing.T) {
	db := newTestDB(t)
	accounts := NewAccountService(db)
	ctx := context.Background()

	user, err := accounts.Register(ctx, RegisterInput{Name: "Ada", Username: "ada", Email: "Ada@Example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.NotEqual(t, "s3cret-pass", user.PasswordHash)

	var acd models.Acdetail
	require.NoError(t, db.Where("user_id = ?", user.ID).Take(&acd).Error)

	got, err := accounts.Login(ctx, "ada", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	got, err = accounts.Login(ctx, "ADA@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = accounts.Login(ctx, "ada", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = accounts.Login(ctx, "nobody", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	me, err := accounts.Me(ctx, user.ID)
	require.NoError(t, err)
	assert.NotNil(t, me.Acdetail)

	disableAuthor(t, db, user)
	_, err = accounts.Login(ctx, "ada", "s3cret-pass")
	assert.ErrorIs(t, err, ErrAccountDisabled)
	_, err = accounts.Me(ctx, user.ID)
	assert.ErrorIs(t, err, ErrAccountDisabled)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	db := newTestDB(t)
	accounts := NewAccountService(db)
	ctx := context.Background()

	_, err := accounts.Register(ctx, RegisterInput{Name: "Ada", Username: "ada", Email: "ada@example.com", Password: "password1"})
	require.NoError(t, err)

	_, err = accounts.Register(ctx, RegisterInput{Name: "Ada 2", Username: "ada", Email: "other@example.com", Password: "password1"})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = accounts.Register(ctx, RegisterInput{Name: "Ada 3", Username: "ada3", Email: "ada@example.com", Password: "password1"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRegisterValidation(t *testing.T) {
	accounts := NewAccountService(newTestDB(t))

	_, err := accounts.Register(context.Background(), RegisterInput{Name: "", Username: "a b", Email: "nope", Password: "short"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Fields, 4)
	for _, f := range []string{"name", "username", "email", "password"} {
		assert.Contains(t, ve.Fields, f)
	}
}

func TestLoginWithGoogle(t *testing.T) {
	db := newTestDB(t)
	accounts := NewAccountService(db)
	ctx := context.Background()

	created, err := accounts.LoginWithGoogle(ctx, GoogleProfile{ID: "g-1", Email: "New.Reporter@gmail.com", Name: "New Reporter"})
	require.NoError(t, err)
	assert.Equal(t, "new_reporter", created.Username)
	assert.Equal(t, "google", created.Provider)
	assert.Empty(t, created.PasswordHash)

	again, err := accounts.LoginWithGoogle(ctx, GoogleProfile{ID: "g-1", Email: "changed@gmail.com"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)

	local, err := accounts.Register(ctx, RegisterInput{Name: "Ada", Username: "ada", Email: "ada@example.com", Password: "password1"})
	require.NoError(t, err)
	linked, err := accounts.LoginWithGoogle(ctx, GoogleProfile{ID: "g-2", Email: "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, local.ID, linked.ID)

	clash, err := accounts.LoginWithGoogle(ctx, GoogleProfile{ID: "g-3", Email: "new.reporter@other.com"})
	require.NoError(t, err)
	assert.Equal(t, "new_reporter_1", clash.Username)

	_, err = accounts.LoginWithGoogle(ctx, GoogleProfile{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
