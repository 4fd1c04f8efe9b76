package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stockroomhq/stockroom-backend/internal/auth"
	pkgerrors "github.com/stockroomhq/stockroom-backend/pkg/errors"
)

type stubAuthService struct {
	loginFn  func(ctx context.Context, req auth.LoginRequest) (*auth.ChallengeResponse, error)
	verifyFn func(ctx context.Context, req auth.VerifyRequest) (*auth.LoginResponse, error)
	logoutFn func(ctx context.Context, accessToken string) error
}

func (s *stubAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.ChallengeResponse, error) {
	return s.loginFn(ctx, req)
}

func (s *stubAuthService) VerifyCode(ctx context.Context, req auth.VerifyRequest) (*auth.LoginResponse, error) {
	return s.verifyFn(ctx, req)
}

func (s *stubAuthService) Refresh(context.Context, auth.RefreshRequest) (*auth.RefreshResponse, error) {
	return &auth.RefreshResponse{AccessToken: "new-access", RefreshToken: "new-refresh"}, nil
}

func (s *stubAuthService) Logout(ctx context.Context, accessToken string) error {
	return s.logoutFn(ctx, accessToken)
}

func TestLoginReturnsChallenge(t *testing.T) {
	svc := &stubAuthService{
		loginFn: func(_ context.Context, req auth.LoginRequest) (*auth.ChallengeResponse, error) {
			assert.Equal(t, "ops@example.com", req.Email)
			return &auth.ChallengeResponse{Message: "code sent", ExpiresIn: 600}, nil
		},
	}

	body := `{"email":"ops@example.com","password":"a-long-password"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	Login(svc, nil)(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "expires_in_seconds")
}

func TestLoginRejectsMalformedEmail(t *testing.T) {
	svc := &stubAuthService{
		loginFn: func(context.Context, auth.LoginRequest) (*auth.ChallengeResponse, error) {
			t.Fatal("service must not be called")
			return nil, nil
		},
	}

	body := `{"email":"not-an-email","password":"pw"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	Login(svc, nil)(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyCodeMapsUnauthorized(t *testing.T) {
	svc := &stubAuthService{
		verifyFn: func(context.Context, auth.VerifyRequest) (*auth.LoginResponse, error) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid or expired code")
		},
	}

	body := `{"email":"ops@example.com","code":"123456"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/verify", strings.NewReader(body))
	rec := httptest.NewRecorder()
	VerifyCode(svc, nil)(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid or expired code")
}

func TestVerifyCodeRejectsShortCode(t *testing.T) {
	svc := &stubAuthService{
		verifyFn: func(context.Context, auth.VerifyRequest) (*auth.LoginResponse, error) {
			t.Fatal("service must not be called")
			return nil, nil
		},
	}

	body := `{"email":"ops@example.com","code":"12"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/verify", strings.NewReader(body))
	rec := httptest.NewRecorder()
	VerifyCode(svc, nil)(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutRevokesPresentedToken(t *testing.T) {
	var revoked string
	svc := &stubAuthService{
		logoutFn: func(_ context.Context, accessToken string) error {
			revoked = accessToken
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer the-access-token")
	rec := httptest.NewRecorder()
	Logout(svc, nil)(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "the-access-token", revoked)
}

func TestLogoutRequiresToken(t *testing.T) {
	svc := &stubAuthService{
		logoutFn: func(context.Context, string) error {
			t.Fatal("service must not be called")
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	rec := httptest.NewRecorder()
	Logout(svc, nil)(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
