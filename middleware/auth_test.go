package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const testSecret = "test-secret"

func TestAuthenticate(t *testing.T) {
	valid, err := IssueToken(testSecret, 42, nil)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	expired, _ := IssueToken(testSecret, 42, jwt.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()})
	foreign, _ := IssueToken("other-secret", 42, nil)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": 42}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name       string
		header     string
		query      string
		wantStatus int
		wantUser   int
	}{
		{"valid bearer", "Bearer " + valid, "", http.StatusOK, 42},
		{"lowercase scheme", "bearer " + valid, "", http.StatusOK, 42},
		{"query token", "", "token=" + valid, http.StatusOK, 42},
		{"missing", "", "", http.StatusUnauthorized, 0},
		{"wrong scheme", "Basic " + valid, "", http.StatusUnauthorized, 0},
		{"expired", "Bearer " + expired, "", http.StatusUnauthorized, 0},
		{"wrong secret", "Bearer " + foreign, "", http.StatusUnauthorized, 0},
		{"alg none", "Bearer " + none, "", http.StatusUnauthorized, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser int
			h := Authenticate(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				id, err := GetUserIDFromContext(r.Context())
				if err != nil {
					t.Errorf("GetUserIDFromContext: %v", err)
				}
				gotUser = id
			}))

			req := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			if gotUser != tt.wantUser {
				t.Errorf("expected user %d, got %d", tt.wantUser, gotUser)
			}
		})
	}
}

func TestGetUserIDFromContext(t *testing.T) {
	tests := []struct {
		name    string
		claims  jwt.MapClaims
		want    int
		wantErr bool
	}{
		{"float", jwt.MapClaims{"user_id": float64(7)}, 7, false},
		{"string", jwt.MapClaims{"user_id": "8"}, 8, false},
		{"int", jwt.MapClaims{"user_id": 9}, 9, false},
		{"fraction", jwt.MapClaims{"user_id": 7.5}, 0, true},
		{"zero", jwt.MapClaims{"user_id": float64(0)}, 0, true},
		{"garbage", jwt.MapClaims{"user_id": "abc"}, 0, true},
		{"missing", jwt.MapClaims{"sub": "x"}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GetUserIDFromContext(WithClaims(context.Background(), tt.claims))
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}

	if _, err := GetUserIDFromContext(context.Background()); err != ErrNoClaims {
		t.Errorf("expected ErrNoClaims, got %v", err)
	}
}
