package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/cms485-trainer/internal/db"
	"github.com/mind-engage/cms485-trainer/internal/rbac"
)

func TestIssueParse(t *testing.T) {
	a := NewAuthService("s3cret")
	tok, err := a.IssueJWT("learner|1", rbac.RoleLearner, "Ana")
	if err != nil {
		t.Fatal(err)
	}
	c, err := a.Parse(tok)
	if err != nil {
		t.Fatal(err)
	}
	if c.Sub != "learner|1" || c.Role != rbac.RoleLearner || c.Name != "Ana" {
		t.Fatalf("claims = %+v", c)
	}
	if _, err := NewAuthService("other").Parse(tok); err == nil {
		t.Fatal("token signed with another secret must not parse")
	}
}

func TestJWTMiddleware(t *testing.T) {
	a := NewAuthService("s3cret")
	var got rbac.Principal
	h := JWTMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = rbac.PrincipalFromContext(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("no token: code = %d", rr.Code)
	}

	tok, _ := a.IssueJWT("learner|1", rbac.RoleLearner, "Ana")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || got.Subject != "learner|1" || got.Role != rbac.RoleLearner {
		t.Fatalf("code = %d principal = %+v", rr.Code, got)
	}
}

func login(t *testing.T, h http.Handler, body string, cookies ...*http.Cookie) (*httptest.ResponseRecorder, loginResp) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var out loginResp
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	return rr, out
}

func TestLoginHandler(t *testing.T) {
	conn, err := db.Open(context.Background(), db.DriverSQLite, "file:auth_login?mode=memory&cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	hash, _ := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	a := NewAuthService("s3cret")
	h := LoginHandler(a, conn, Admin{Username: "admin", PasswordHash: string(hash)})

	t.Run("learner and cookie reuse", func(t *testing.T) {
		rr, first := login(t, h, `{"name":"Ana"}`)
		if rr.Code != http.StatusOK || first.Role != rbac.RoleLearner || !strings.HasPrefix(first.Subject, "learner|") {
			t.Fatalf("code = %d resp = %+v", rr.Code, first)
		}
		cookies := rr.Result().Cookies()
		if len(cookies) == 0 || cookies[0].Value != first.Subject {
			t.Fatalf("cookies = %v", cookies)
		}
		_, second := login(t, h, `{}`, cookies[0])
		if second.Subject != first.Subject || second.Name != "Ana" {
			t.Fatalf("reload should keep the learner: %+v vs %+v", second, first)
		}
	})

	t.Run("admin", func(t *testing.T) {
		rr, out := login(t, h, `{"username":"admin","password":"pw"}`)
		if rr.Code != http.StatusOK || out.Role != rbac.RoleAdmin {
			t.Fatalf("code = %d resp = %+v", rr.Code, out)
		}
		c, err := a.Parse(out.AccessToken)
		if err != nil || c.Role != rbac.RoleAdmin {
			t.Fatalf("claims = %+v, %v", c, err)
		}
	})

	t.Run("admin wrong password", func(t *testing.T) {
		rr, _ := login(t, h, `{"username":"admin","password":"nope"}`)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("code = %d", rr.Code)
		}
	})

	t.Run("admin without password", func(t *testing.T) {
		rr, _ := login(t, h, `{"username":"admin"}`)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("code = %d", rr.Code)
		}
	})

	t.Run("admin disabled", func(t *testing.T) {
		rr, _ := login(t, LoginHandler(a, conn, Admin{Username: "admin"}), `{"username":"admin","password":"pw"}`)
		if rr.Code != http.StatusForbidden {
			t.Fatalf("code = %d", rr.Code)
		}
	})

	t.Run("bad json", func(t *testing.T) {
		rr, _ := login(t, h, `{`)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("code = %d", rr.Code)
		}
	})
}
