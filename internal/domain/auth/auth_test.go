package auth

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/quickcart/internal/model"
	"github.com/xenking/quickcart/internal/store"
)

var testSecret = []byte("test-secret")

func authDocument() *model.Document {
	doc := model.NewDocument()
	doc.Users["alex"] = &model.User{
		ID: "u1", Username: "alex", Email: "alex@quicktest.com", Password: "11111111",
	}
	doc.Users["ananth"] = &model.User{
		ID: "u2", Username: "ananth", Email: "ananth@gmail.com", Password: "22222222", IsAdmin: true,
	}
	return doc
}

func newTestService(t *testing.T, now time.Time) *Service {
	t.Helper()

	docs := store.NewDocuments(store.NewMemory(authDocument()), nil, store.Options{})
	svc, err := NewService(Config{Secret: testSecret, TokenTTL: time.Hour}, docs)
	require.NoError(t, err)
	svc.now = func() time.Time { return now }
	return svc
}

func TestNewService_RequiresSecret(t *testing.T) {
	_, err := NewService(Config{}, nil)
	require.Error(t, err)
}

func TestService_Authenticate(t *testing.T) {
	svc := newTestService(t, time.Now())
	ctx := context.Background()

	u, err := svc.Authenticate(ctx, "alex@quicktest.com", "11111111")
	require.NoError(t, err)
	assert.Equal(t, "alex", u.Username)

	_, err = svc.Authenticate(ctx, "alex@quicktest.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "ghost@example.com", "11111111")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_LoginAndResolve(t *testing.T) {
	svc := newTestService(t, time.Now())
	ctx := context.Background()

	token, u, err := svc.Login(ctx, "alex@quicktest.com", "11111111")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, "u1", u.ID)

	resolved, err := svc.ResolveUser(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "alex", resolved.Username)
}

func TestService_ResolveUserRejects(t *testing.T) {
	issued := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	issuer := newTestService(t, issued)

	valid, err := issuer.IssueToken(&model.User{Username: "alex"})
	require.NoError(t, err)
	ghost, err := issuer.IssueToken(&model.User{Username: "ghost"})
	require.NoError(t, err)
	noSubject, err := issuer.IssueToken(&model.User{})
	require.NoError(t, err)

	otherKey, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alex",
		ExpiresAt: jwt.NewNumericDate(issued.Add(time.Hour)),
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "alex",
	}).SignedString(testSecret)
	require.NoError(t, err)

	tests := []struct {
		name       string
		token      string
		now        time.Time
		wantReason string
	}{
		{name: "missing", token: "", now: issued, wantReason: ReasonMissingToken},
		{name: "garbage", token: "not-a-token", now: issued, wantReason: ReasonInvalidToken},
		{name: "wrong key", token: otherKey, now: issued, wantReason: ReasonInvalidToken},
		{name: "no expiry", token: noExpiry, now: issued, wantReason: ReasonInvalidToken},
		{name: "expired", token: valid, now: issued.Add(2 * time.Hour), wantReason: ReasonTokenExpired},
		{name: "no subject", token: noSubject, now: issued, wantReason: ReasonInvalidPayload},
		{name: "unknown user", token: ghost, now: issued, wantReason: ReasonUnknownUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, tt.now)

			u, err := svc.ResolveUser(context.Background(), tt.token)
			assert.Nil(t, u)
			require.ErrorIs(t, err, ErrUnauthorized)

			var ue *UnauthorizedError
			require.True(t, errors.As(err, &ue))
			assert.Equal(t, tt.wantReason, ue.Reason)
		})
	}
}

func TestService_RequireAdmin(t *testing.T) {
	svc := newTestService(t, time.Now())
	ctx := context.Background()

	adminToken, _, err := svc.Login(ctx, "ananth@gmail.com", "22222222")
	require.NoError(t, err)
	userToken, _, err := svc.Login(ctx, "alex@quicktest.com", "11111111")
	require.NoError(t, err)

	admin, err := svc.RequireAdmin(ctx, adminToken)
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin)

	_, err = svc.RequireAdmin(ctx, userToken)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.RequireAdmin(ctx, "")
	require.ErrorIs(t, err, ErrUnauthorized)
}
