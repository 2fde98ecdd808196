package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCooldownTry(t *testing.T) {
	assert.True(t, CooldownTry(time.Minute, "register", "198.51.100.1"))
	assert.False(t, CooldownTry(time.Minute, "register", "198.51.100.1"))
	assert.True(t, CooldownTry(time.Minute, "register", "198.51.100.2"))
	assert.True(t, CooldownTry(0, "register", "198.51.100.1"), "zero ttl never blocks")
}

func TestOAuthStateIsSingleUse(t *testing.T) {
	state := IssueState(time.Minute)
	assert.NotEmpty(t, state)
	assert.True(t, ConsumeState(state))
	assert.False(t, ConsumeState(state))
	assert.False(t, ConsumeState(""))
	assert.False(t, ConsumeState("unknown"))
}

func TestTokenBlacklist(t *testing.T) {
	token, _, err := GenerateToken(7, "ada", time.Hour)
	assert.NoError(t, err)
	assert.False(t, IsTokenBlacklisted(token))

	BlacklistToken(token, time.Now().Add(time.Hour))
	assert.True(t, IsTokenBlacklisted(token))
}

func TestLogoutRevokesOnlyThatSession(t *testing.T) {
	first, _, err := GenerateToken(8, "grace", TokenTTL)
	assert.NoError(t, err)
	second, _, err := GenerateToken(8, "grace", TokenTTL)
	assert.NoError(t, err)
	assert.NotEqual(t, first, second, "tokens issued in the same second must differ")

	a, err := ParseToken(first)
	assert.NoError(t, err)
	b, err := ParseToken(second)
	assert.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)

	BlacklistToken(first, time.Now().Add(time.Hour))
	assert.True(t, IsTokenBlacklisted(first))
	assert.False(t, IsTokenBlacklisted(second))
}

func TestJWTRoundTrip(t *testing.T) {
	token, exp, err := GenerateToken(7, "ada", time.Hour)
	assert.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := ParseToken(token)
	assert.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "ada", claims.Username)

	_, err = ParseToken(token + "x")
	assert.Error(t, err)
}

func TestCacheJSON(t *testing.T) {
	type item struct{ Name string }
	key := CacheKey("cache:test:", "a", "b")
	assert.NotEqual(t, key, CacheKey("cache:test:", "ab"))

	CacheSetJSON(key, []item{{Name: "x"}}, time.Minute)
	var out []item
	assert.Eventually(t, func() bool { return CacheGetJSON(key, &out) }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []item{{Name: "x"}}, out)

	InvalidateByPrefix("cache:test:")
	assert.False(t, CacheGetJSON(key, &out))
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	assert.NoError(t, err)
	assert.True(t, CheckPassword(hash, "correct horse"))
	assert.False(t, CheckPassword(hash, "wrong"))
	assert.False(t, CheckPassword("", "anything"))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "<b>hi</b>", Sanitize(" <b>hi</b><script>alert(1)</script> "))
	assert.Equal(t, "hi & bye", StripTags("<p>hi &amp; bye</p>"))
}
