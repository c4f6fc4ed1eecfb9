package access

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	tok, err := IssueToken(42, "secret", time.Hour, time.Now())
	require.NoError(t, err)

	owner, err := ParseToken(tok, "secret")
	require.NoError(t, err)
	assert.Equal(t, int64(42), owner)

	_, err = ParseToken(tok, "other")
	assert.Error(t, err)
}

func TestExpiredToken(t *testing.T) {
	tok, err := IssueToken(42, "secret", time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = ParseToken(tok, "secret")
	assert.Error(t, err)
}

func TestExtractToken(t *testing.T) {
	r := httptest.NewRequest("POST", "/capture", nil)
	assert.Empty(t, ExtractToken(r))

	r.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", ExtractToken(r))

	r.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, ExtractToken(r))
}

func TestAllowList(t *testing.T) {
	open := NewAllowList(nil)
	assert.True(t, open.Allowed(99))
	assert.Empty(t, open.Owners())

	list := NewAllowList([]int64{7, 3})
	assert.True(t, list.Allowed(3))
	assert.False(t, list.Allowed(99))
	assert.Equal(t, []int64{3, 7}, list.Owners())

	var mismatch *OwnerMismatchError
	assert.True(t, errors.As(list.CheckOwner(3, 7), &mismatch))
	var forbidden *OwnerForbiddenError
	assert.True(t, errors.As(list.CheckOwner(99, 0), &forbidden))
	assert.NoError(t, list.CheckOwner(7, 0))
}
