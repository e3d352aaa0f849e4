// ABOUTME: HTTP handlers for member sessions: login, logout and the current-member summary.
// ABOUTME: Login is rate-limited and always spends argon2 time to hide which IDs exist.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/scarson/board-ops/internal/auth"
	"github.com/scarson/board-ops/internal/member"
)

// dummyPasswordHash is a valid PHC-format argon2id hash used for login timing
// normalization when the member does not exist.
const dummyPasswordHash = "$argon2id$v=19$m=19456,t=2,p=1$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA" //nolint:gosec // G101 false positive: public dummy hash, not a credential

// sessionCookie returns the Set-Cookie value for a session token. maxAge < 0
// expires the cookie immediately.
func sessionCookie(token string, maxAge int, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
}

// ── Login ─────────────────────────────────────────────────────────────────────

// loginBody is the request body for POST /auth/login.
type loginBody struct {
	ID       string `json:"id"`
	Password string `json:"password"`
}

// loginResponseBody is the response body for POST /auth/login.
type loginResponseBody struct {
	MemberID string `json:"member_id"`
}

// loginHandler handles POST /api/v1/auth/login.
func (srv *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ID == "" || req.Password == "" || len(req.Password) > 1024 {
		http.Error(w, "id and password are required", http.StatusBadRequest)
		return
	}

	m, err := srv.store.GetMember(ctx, req.ID)
	if err != nil {
		slog.ErrorContext(ctx, "login: get member", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	hash := dummyPasswordHash
	usable := m != nil && m.PasswordHash != "" && m.LeaveDate == ""
	if usable {
		hash = m.PasswordHash
	}
	ok, err := srv.hasher.Verify(req.Password, hash)
	if errors.Is(err, auth.ErrBusy) {
		http.Error(w, "server busy, please retry", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "login: verify password", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !usable || !ok {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := auth.IssueSessionToken([]byte(srv.cfg.JWTSecret), m.ID, srv.sessionTTL)
	if err != nil {
		slog.ErrorContext(ctx, "login: issue session token", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, sessionCookie(token, int(srv.sessionTTL.Seconds()), srv.cfg.CookieSecure))
	writeJSON(w, http.StatusOK, loginResponseBody{MemberID: m.ID})
}

// logoutHandler handles POST /api/v1/auth/logout. Always succeeds.
func (srv *Server) logoutHandler(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, sessionCookie("", -1, srv.cfg.CookieSecure))
	w.WriteHeader(http.StatusNoContent)
}

// ── Me ────────────────────────────────────────────────────────────────────────

// meInput has no parameters; identity comes from the member scope.
type meInput struct{}

// MeBody describes the current visitor. Guests get level 1 and no admin type.
type MeBody struct {
	MemberID     string `json:"member_id"`
	MaskedID     string `json:"masked_id"`
	Nick         string `json:"nick"`
	Email        string `json:"email"`
	Level        int    `json:"level"`
	AdminType    string `json:"admin_type"`
	IsSuperAdmin bool   `json:"is_super_admin"`
	ZipFront     string `json:"zip_front"`
	ZipBack      string `json:"zip_back"`
	NextOpenDate string `json:"next_open_date,omitempty" doc:"First day the profile may be edited again (YYYY-MM-DD)"`
}

type meOutput struct {
	Body *MeBody
}

// meHandler handles GET /api/v1/me.
func (srv *Server) meHandler(ctx context.Context, _ *meInput) (*meOutput, error) {
	scope := requestScope(ctx)
	m := loginMember(ctx)
	d := scope.Details(m, nil, nil)

	body := &MeBody{
		MemberID:     d.ID(),
		MaskedID:     member.MaskID(d.ID()),
		Nick:         d.Nick(),
		Email:        d.Email(),
		Level:        d.Level,
		AdminType:    string(d.AdminType),
		IsSuperAdmin: d.IsSuperAdmin(),
	}
	if m != nil {
		body.ZipFront, body.ZipBack = member.SplitZip(m.Zip)
		body.NextOpenDate = member.NextOpenDate(scope.Config.OpenModify, m.OpenDate)
	}
	return &meOutput{Body: body}, nil
}

func registerMeRoutes(api huma.API, srv *Server) {
	huma.Register(api, huma.Operation{
		OperationID: "get-me",
		Method:      http.MethodGet,
		Path:        "/me",
		Tags:        []string{"members"},
		Summary:     "Describe the current visitor",
	}, srv.meHandler)
}
