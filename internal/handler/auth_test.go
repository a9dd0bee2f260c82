package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/golf-intranet/internal/config"
	"github.com/iliyamo/golf-intranet/internal/model"
	"github.com/iliyamo/golf-intranet/internal/repository"
	"github.com/iliyamo/golf-intranet/internal/utils"
)

type fakeCreds struct{ byPhone map[string]*model.User }

func (f fakeCreds) GetByPhone(_ context.Context, phone string) (*model.User, error) {
	if u, ok := f.byPhone[model.NormalizePhone(phone)]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func (f fakeCreds) GetByID(_ context.Context, id uint64) (*model.User, error) {
	for _, u := range f.byPhone {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

type fakeTokens struct {
	stored  map[string]uint64
	revoked []uint64
}

func (f *fakeTokens) Store(_ context.Context, userID uint64, hash string, _ time.Time) error {
	f.stored[hash] = userID
	return nil
}

func (f *fakeTokens) Rotate(_ context.Context, oldHash, newHash string, _ time.Time) (uint64, error) {
	uid, ok := f.stored[oldHash]
	if !ok {
		return 0, repository.ErrTokenInvalid
	}
	delete(f.stored, oldHash)
	f.stored[newHash] = uid
	return uid, nil
}

func (f *fakeTokens) RevokeAllForUser(_ context.Context, userID uint64) error {
	f.revoked = append(f.revoked, userID)
	return nil
}

func newAuthHandler(t *testing.T) (*AuthHandler, *fakeTokens, *fakeSessions) {
	t.Helper()
	hash, err := utils.HashPassword("s3cret", bcrypt.MinCost)
	require.NoError(t, err)
	u := &model.User{ID: 7, Type: model.UserManager, PhoneNumber: "01012345678", Name: "김매니저", PasswordHash: hash}
	tokens := &fakeTokens{stored: map[string]uint64{}}
	sessions := &fakeSessions{users: map[uint64]*model.User{7: u}}
	cfg := config.Config{JWTSecret: "secret", AccessTTLMin: 5, RefreshTTLDays: 1}
	return NewAuthHandler(cfg, fakeCreds{byPhone: map[string]*model.User{u.PhoneNumber: u}}, tokens, sessions, zap.NewNop()), tokens, sessions
}

func TestLogin(t *testing.T) {
	h, tokens, _ := newAuthHandler(t)

	rec := serve(t, http.MethodPost, "/v1/auth/login", "/v1/auth/login",
		`{"phone_number":"010-1234-5678","password":"wrong"}`, 0, "", h.Login)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(t, http.MethodPost, "/v1/auth/login", "/v1/auth/login",
		`{"phone_number":"010-9999-0000","password":"s3cret"}`, 0, "", h.Login)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(t, http.MethodPost, "/v1/auth/login", "/v1/auth/login",
		`{"phone_number":"010-1234-5678","password":"s3cret"}`, 0, "", h.Login)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	access := body["access"].(map[string]any)["token"].(string)
	id, claims, err := utils.ParseAccessToken("secret", access)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id)
	assert.Equal(t, "MANAGER", claims.Role)
	assert.NotContains(t, body["user"], "password_hash")
	assert.Len(t, tokens.stored, 1)
}

func TestRefreshRotates(t *testing.T) {
	h, tokens, _ := newAuthHandler(t)
	tokens.stored[utils.HashRefreshRaw("old-token")] = 7

	rec := serve(t, http.MethodPost, "/v1/auth/refresh", "/v1/auth/refresh",
		`{"refresh_token":"old-token"}`, 0, "", h.Refresh)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	fresh := decode(t, rec)["refresh"].(map[string]any)["token"].(string)
	assert.NotEqual(t, "old-token", fresh)

	// replaying the rotated token fails
	rec = serve(t, http.MethodPost, "/v1/auth/refresh", "/v1/auth/refresh",
		`{"refresh_token":"old-token"}`, 0, "", h.Refresh)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutInvalidatesSession(t *testing.T) {
	h, tokens, sessions := newAuthHandler(t)

	rec := serve(t, http.MethodGet, "/v1/me", "/v1/me", "", 7, "MANAGER", h.Me)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "김매니저", decode(t, rec)["name"])

	rec = serve(t, http.MethodPost, "/v1/auth/logout", "/v1/auth/logout", "", 7, "MANAGER", h.Logout)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []uint64{7}, tokens.revoked)
	assert.Equal(t, []uint64{7}, sessions.invalidated)

	rec = serve(t, http.MethodPost, "/v1/auth/logout", "/v1/auth/logout", "", 0, "", h.Logout)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
