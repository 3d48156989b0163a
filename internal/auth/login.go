package auth

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/cms485-trainer/internal/rbac"
)

const learnerCookie = "cms485_learner_id"

// Admin holds the single configured administrator account.
type Admin struct {
	Username     string
	PasswordHash string // bcrypt; empty disables admin login
}

type loginReq struct {
	Name     string `json:"name" validate:"max=80"`
	Username string `json:"username" validate:"max=80"`
	Password string `json:"password" validate:"required_with=Username,max=200"`
}

type loginResp struct {
	AccessToken string `json:"access_token"`
	Subject     string `json:"sub"`
	Role        string `json:"role"`
	Name        string `json:"name,omitempty"`
}

var validate = validator.New()

// LoginHandler serves POST /auth/login.
//
//	{"name": "Ana"}                          learner; identity kept in a cookie
//	{"username": "...", "password": "..."}   admin
func LoginHandler(a *AuthService, db *sql.DB, admin Admin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Username != "" {
			adminLogin(w, a, admin, req)
			return
		}
		learnerLogin(w, r, a, db, strings.TrimSpace(req.Name))
	}
}

func adminLogin(w http.ResponseWriter, a *AuthService, admin Admin, req loginReq) {
	if admin.PasswordHash == "" {
		http.Error(w, "admin login disabled", http.StatusForbidden)
		return
	}
	if req.Username != admin.Username ||
		bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)) != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	tok, err := a.IssueJWT(req.Username, rbac.RoleAdmin, req.Username)
	if err != nil {
		http.Error(w, "issue token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, loginResp{AccessToken: tok, Subject: req.Username, Role: rbac.RoleAdmin, Name: req.Username})
}

// learnerLogin reuses the learner id from the cookie when it is known, so a
// reload keeps the same progress; otherwise it creates a new learner.
func learnerLogin(w http.ResponseWriter, r *http.Request, a *AuthService, db *sql.DB, name string) {
	ctx := r.Context()
	var id string
	if c, err := r.Cookie(learnerCookie); err == nil && strings.HasPrefix(c.Value, "learner|") {
		var stored string
		err := db.QueryRowContext(ctx, `SELECT username FROM users WHERE id=$1 AND role=$2`, c.Value, rbac.RoleLearner).Scan(&stored)
		switch {
		case err == nil:
			id = c.Value
			if name == "" {
				name = stored
			} else if name != stored {
				_, _ = db.ExecContext(ctx, `UPDATE users SET username=$1 WHERE id=$2`, name, id)
			}
		case !errors.Is(err, sql.ErrNoRows):
			log.Printf("learner lookup failed: %v", err)
		}
	}
	if id == "" {
		id = "learner|" + uuid.NewString()
		if name == "" {
			name = "learner-" + id[len(id)-6:]
		}
		_, err := db.ExecContext(ctx, `INSERT INTO users (id, username, role, created_at)
		                VALUES ($1,$2,$3,$4)`, id, name, rbac.RoleLearner, time.Now().Unix())
		if err != nil {
			http.Error(w, "create learner", http.StatusInternalServerError)
			return
		}
	}

	tok, err := a.IssueJWT(id, rbac.RoleLearner, name)
	if err != nil {
		http.Error(w, "issue token", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     learnerCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
		Expires:  time.Now().Add(30 * 24 * time.Hour),
	})
	writeJSON(w, loginResp{AccessToken: tok, Subject: id, Role: rbac.RoleLearner, Name: name})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
