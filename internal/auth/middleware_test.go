package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestMiddleware(t *testing.T) *Middleware {
	t.Helper()
	v, err := NewVerifier(VerifierConfig{Algorithm: AlgorithmHS256, SecretKey: testSecret})
	if err != nil {
		t.Fatalf("NewVerifier() failed: %v", err)
	}
	return NewMiddleware(v)
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name          string
		authHeader    string
		query         string
		expectError   bool
		expectedToken string
	}{
		{name: "valid bearer token", authHeader: "Bearer test-token", expectedToken: "test-token"},
		{name: "missing authorization header", expectError: true},
		{name: "invalid format - no bearer", authHeader: "Basic test-token", expectError: true},
		{name: "invalid format - no space", authHeader: "Bearertest-token", expectError: true},
		{name: "empty token", authHeader: "Bearer ", expectError: true},
		{name: "query token", query: "?access_token=q-token", expectedToken: "q-token"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test"+test.query, nil)
			if test.authHeader != "" {
				req.Header.Set("Authorization", test.authHeader)
			}
			token, err := extractBearerToken(req)
			if test.expectError {
				if err == nil {
					t.Error("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if token != test.expectedToken {
				t.Errorf("Expected token %q, got %q", test.expectedToken, token)
			}
		})
	}
}

func TestRequireAuthAndRole(t *testing.T) {
	m := newTestMiddleware(t)
	viewer := signHS256(t, validClaims(RoleViewer))
	controller := signHS256(t, validClaims(RoleController))

	tests := []struct {
		name   string
		token  string
		role   string
		status int
	}{
		{"no token", "", RoleViewer, http.StatusUnauthorized},
		{"bad token", "garbage", RoleViewer, http.StatusUnauthorized},
		{"viewer reads", viewer, RoleViewer, http.StatusOK},
		{"viewer cannot control", viewer, RoleController, http.StatusForbidden},
		{"controller reads", controller, RoleViewer, http.StatusOK},
		{"controller controls", controller, RoleController, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := m.RequireAuth(m.RequireRole(tt.role)(okHandler))
			req := httptest.NewRequest("GET", "/api/v1/radios", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rr := httptest.NewRecorder()
			h(rr, req)
			if rr.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, rr.Code)
			}
		})
	}
}

func TestRequireAuthStoresClaims(t *testing.T) {
	m := newTestMiddleware(t)
	var got *Claims
	h := m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		got = ClaimsFromContext(r.Context())
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+signHS256(t, validClaims(RoleViewer)))
	h(httptest.NewRecorder(), req)

	if got == nil || got.Subject != "user-123" {
		t.Fatalf("Expected claims in context, got %+v", got)
	}
}

func TestDisabledMiddleware(t *testing.T) {
	m := NewMiddleware(nil)
	if m.Enabled() {
		t.Fatal("Expected middleware without verifier to be disabled")
	}

	var got *Claims
	h := m.RequireAuth(m.RequireRole(RoleController)(func(w http.ResponseWriter, r *http.Request) {
		got = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest("POST", "/", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rr.Code)
	}
	if got == nil || got.Subject != "anonymous" {
		t.Errorf("Expected anonymous claims, got %+v", got)
	}
}

func TestRequireRoleWithoutClaims(t *testing.T) {
	m := newTestMiddleware(t)
	rr := httptest.NewRecorder()
	m.RequireRole(RoleViewer)(okHandler)(rr, httptest.NewRequest("GET", "/", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rr.Code)
	}
}
