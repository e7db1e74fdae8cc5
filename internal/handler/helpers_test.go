package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/snackattack-pos/api/internal/middleware"
)

// --- Test helpers ---

func testNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func testInt8(v int64) pgtype.Int8 {
	return pgtype.Int8{Int64: v, Valid: true}
}

func testText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: true}
}

func adminPrincipal() *middleware.Principal {
	return &middleware.Principal{SessionID: "sess-admin", UserID: 1, Username: "admin", Role: "admin", Active: true}
}

func staffPrincipal() *middleware.Principal {
	return &middleware.Principal{SessionID: "sess-staff", UserID: 2, Username: "staff", Role: "staff", Active: true}
}

func kitchenPrincipal() *middleware.Principal {
	return &middleware.Principal{SessionID: "sess-kitchen", UserID: 3, Username: "kitchen", Role: "kitchen", Active: true}
}

// withPrincipal injects p into every request, standing in for LoadSession.
func withPrincipal(p *middleware.Principal) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p != nil {
				r = r.WithContext(middleware.WithPrincipal(r.Context(), p))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func doRequest(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != nil {
		var b []byte
		if s, ok := body.(string); ok {
			b = []byte(s)
		} else {
			var err error
			b, err = json.Marshal(body)
			if err != nil {
				t.Fatalf("marshal request: %v", err)
			}
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v; body: %s", err, rr.Body.String())
	}
	return resp
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, want, rr.Body.String())
	}
}

func expectMessage(t *testing.T, rr *httptest.ResponseRecorder, want string) {
	t.Helper()
	resp := decodeBody(t, rr)
	if resp["message"] != want {
		t.Errorf("message: got %v, want %q", resp["message"], want)
	}
}
