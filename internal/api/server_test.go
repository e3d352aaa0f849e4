// ABOUTME: End-to-end handler tests against a migrated SQLite store.
// ABOUTME: Uses package api to pin the clock and reach unexported helpers.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scarson/board-ops/internal/auth"
	"github.com/scarson/board-ops/internal/config"
	"github.com/scarson/board-ops/internal/member"
	"github.com/scarson/board-ops/internal/retention"
	"github.com/scarson/board-ops/internal/store"
	"github.com/scarson/board-ops/internal/testutil"
)

const testSecret = "board-ops-test-secret"

type testEnv struct {
	srv   *Server
	ts    *httptest.Server
	store *store.Store
}

// newTestEnv seeds a site with super admin "admin", group "community"
// (admin gina) and boards "free" (admin alice) and "notice" (no admin).
func newTestEnv(t *testing.T, rr RetentionRunner) *testEnv {
	t.Helper()
	s := testutil.NewSQLiteDB(t)
	ctx := context.Background()

	require.NoError(t, s.UpdateSiteConfig(ctx, member.SiteConfig{Admin: "admin", OpenModify: 30, LeaveDay: 30, VisitDel: 180}))
	for _, p := range []store.CreateMemberParams{
		{ID: "admin", Nick: "Boss", Level: 10},
		{ID: "alice", Nick: "Alice", Level: 5},
		{ID: "gina", Nick: "Gina", Level: 7},
		{ID: "bob", Nick: "Bob", Email: "bob@example.com", Level: 2, Zip: "123456"},
	} {
		_, err := s.CreateMember(ctx, p)
		require.NoError(t, err)
	}
	require.NoError(t, s.CreateGroup(ctx, member.Group{ID: "community", Subject: "Community", Admin: "gina"}))
	require.NoError(t, s.CreateBoard(ctx, "community", member.Board{Table: "free", Subject: "Free talk", Admin: "alice"}))
	require.NoError(t, s.CreateBoard(ctx, "community", member.Board{Table: "notice", Subject: "Notices"}))

	cfg := &config.Config{JWTSecret: testSecret, Argon2MaxConcurrent: 2, AccessTokenTTL: time.Hour}
	srv, err := NewServer(s, cfg, rr)
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{srv: srv, ts: ts, store: s}
}

func sessionFor(t *testing.T, memberID string) *http.Cookie {
	t.Helper()
	token, err := auth.IssueSessionToken([]byte(testSecret), memberID, time.Hour)
	require.NoError(t, err)
	return &http.Cookie{Name: auth.SessionCookie, Value: token}
}

// do sends a request and returns the status and body. cookie may be nil.
func (e *testEnv) do(t *testing.T, method, path string, cookie *http.Cookie, body string) (*http.Response, []byte) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, e.ts.URL+path, rdr)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	req.Header.Set(csrfHeader, csrfValue)
	resp, err := e.ts.Client().Do(req) //nolint:gosec // G704 false positive: ts.URL is httptest.Server, not user input
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func decode[T any](t *testing.T, b []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(b, &v), "body: %s", b)
	return v
}

func TestHealthzAndMetrics(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)

	resp, body := e.do(t, http.MethodGet, "/healthz", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode[healthResponse](t, body).Status)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	resp, _ = e.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthzDegraded(t *testing.T) {
	t.Parallel()
	srv, err := NewServer(nil, &config.Config{JWTSecret: testSecret}, nil)
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unavailable", decode[healthResponse](t, rec.Body.Bytes()).DB)
}

func TestNewServer_RequiresSecret(t *testing.T) {
	t.Parallel()
	_, err := NewServer(nil, &config.Config{}, nil)
	assert.Error(t, err)
}

func TestMe_Guest(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)

	resp, body := e.do(t, http.MethodGet, "/api/v1/me", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", body)
	me := decode[MeBody](t, body)
	assert.Equal(t, "", me.MemberID)
	assert.Equal(t, member.DefaultLevel, me.Level)
	assert.Equal(t, "", me.AdminType)
	assert.False(t, me.IsSuperAdmin)
	assert.Empty(t, me.NextOpenDate)
}

func TestMe_Member(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)

	resp, body := e.do(t, http.MethodGet, "/api/v1/me", sessionFor(t, "bob"), "")
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", body)
	me := decode[MeBody](t, body)
	assert.Equal(t, "bob", me.MemberID)
	assert.Equal(t, member.MaskID("bob"), me.MaskedID)
	assert.Equal(t, "Bob", me.Nick)
	assert.Equal(t, "bob@example.com", me.Email)
	assert.Equal(t, 2, me.Level)
	assert.Equal(t, "123", me.ZipFront)
	assert.Equal(t, "456", me.ZipBack)
	assert.NotEmpty(t, me.NextOpenDate, "open_modify_days = 30 yields a date")
	assert.False(t, me.IsSuperAdmin)
}

func TestMe_SuperAdmin(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)

	_, body := e.do(t, http.MethodGet, "/api/v1/me", sessionFor(t, "admin"), "")
	me := decode[MeBody](t, body)
	assert.Equal(t, string(member.AdminSuper), me.AdminType)
	assert.True(t, me.IsSuperAdmin)
	assert.Equal(t, 10, me.Level)
}

func TestMe_InvalidSessionIsGuest(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)

	bad := &http.Cookie{Name: auth.SessionCookie, Value: "not-a-jwt"}
	_, body := e.do(t, http.MethodGet, "/api/v1/me", bad, "")
	assert.Equal(t, "", decode[MeBody](t, body).MemberID)

	// A session for a member who has left the site is ignored.
	require.NoError(t, e.store.MarkMemberLeft(context.Background(), "bob", time.Now()))
	_, body = e.do(t, http.MethodGet, "/api/v1/me", sessionFor(t, "bob"), "")
	assert.Equal(t, "", decode[MeBody](t, body).MemberID)
}

func TestLoginLogout(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)
	ctx := context.Background()

	hash, err := auth.HashPassword("correct horse")
	require.NoError(t, err)
	_, err = e.store.CreateMember(ctx, store.CreateMemberParams{ID: "carol", PasswordHash: hash})
	require.NoError(t, err)

	resp, body := e.do(t, http.MethodPost, "/api/v1/auth/login", nil, `{"id":"carol","password":"correct horse"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", body)
	assert.Equal(t, "carol", decode[loginResponseBody](t, body).MemberID)

	var session *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == auth.SessionCookie {
			session = c
		}
	}
	require.NotNil(t, session, "login must set the session cookie")
	assert.True(t, session.HttpOnly)

	_, body = e.do(t, http.MethodGet, "/api/v1/me", session, "")
	assert.Equal(t, "carol", decode[MeBody](t, body).MemberID)

	resp, _ = e.do(t, http.MethodPost, "/api/v1/auth/logout", session, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	cleared := false
	for _, c := range resp.Cookies() {
		if c.Name == auth.SessionCookie && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared, "logout must expire the session cookie")
}

func TestLogin_Rejections(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)
	ctx := context.Background()

	hash, err := auth.HashPassword("correct horse")
	require.NoError(t, err)
	_, err = e.store.CreateMember(ctx, store.CreateMemberParams{ID: "carol", PasswordHash: hash})
	require.NoError(t, err)
	_, err = e.store.CreateMember(ctx, store.CreateMemberParams{ID: "dave", PasswordHash: hash})
	require.NoError(t, err)
	require.NoError(t, e.store.MarkMemberLeft(ctx, "dave", time.Now()))

	cases := []struct {
		name string
		body string
		want int
	}{
		{"wrong password", `{"id":"carol","password":"battery staple"}`, http.StatusUnauthorized},
		{"unknown member", `{"id":"nobody","password":"correct horse"}`, http.StatusUnauthorized},
		{"member without password", `{"id":"bob","password":"correct horse"}`, http.StatusUnauthorized},
		{"departed member", `{"id":"dave","password":"correct horse"}`, http.StatusUnauthorized},
		{"missing fields", `{"id":"carol"}`, http.StatusBadRequest},
		{"malformed", `{`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		resp, body := e.do(t, http.MethodPost, "/api/v1/auth/login", nil, tc.body)
		assert.Equal(t, tc.want, resp.StatusCode, "%s: %s", tc.name, body)
	}
}

func TestBoardPermission(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)

	cases := []struct {
		memberID string
		want     member.AdminType
		canAdmin bool
	}{
		{"admin", member.AdminSuper, true},
		{"gina", member.AdminGroup, true},
		{"alice", member.AdminBoard, true},
		{"bob", member.AdminNone, false},
		{"", member.AdminNone, false},
	}
	for _, tc := range cases {
		var cookie *http.Cookie
		if tc.memberID != "" {
			cookie = sessionFor(t, tc.memberID)
		}
		resp, body := e.do(t, http.MethodGet, "/api/v1/boards/free/permission", cookie, "")
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", body)
		p := decode[PermissionBody](t, body)
		assert.Equal(t, string(tc.want), p.AdminType, "member %q", tc.memberID)
		assert.Equal(t, tc.canAdmin, p.CanAdminister, "member %q", tc.memberID)
		assert.Equal(t, "free", p.BoardTable)
		assert.Equal(t, "community", p.GroupID)
	}

	resp, _ := e.do(t, http.MethodGet, "/api/v1/boards/missing/permission", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGroupPermission(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)

	_, body := e.do(t, http.MethodGet, "/api/v1/groups/community/permission", sessionFor(t, "gina"), "")
	p := decode[PermissionBody](t, body)
	assert.Equal(t, string(member.AdminGroup), p.AdminType)
	assert.True(t, p.CanAdminister)

	// A board admin has no standing on the group itself.
	_, body = e.do(t, http.MethodGet, "/api/v1/groups/community/permission", sessionFor(t, "alice"), "")
	p = decode[PermissionBody](t, body)
	assert.Equal(t, "", p.AdminType)
	assert.False(t, p.CanAdminister)
	assert.Equal(t, 5, p.Level)

	resp, _ := e.do(t, http.MethodGet, "/api/v1/groups/missing/permission", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPermissionMinAdminType(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)

	cases := []struct {
		memberID string
		path     string
		canAdmin bool
	}{
		{"alice", "/api/v1/boards/free/permission?min=group", false},
		{"gina", "/api/v1/boards/free/permission?min=group", true},
		{"gina", "/api/v1/boards/free/permission?min=super", false},
		{"admin", "/api/v1/boards/free/permission?min=super", true},
		{"gina", "/api/v1/groups/community/permission?min=super", false},
		{"gina", "/api/v1/groups/community/permission?min=board", true},
	}
	for _, tc := range cases {
		resp, body := e.do(t, http.MethodGet, tc.path, sessionFor(t, tc.memberID), "")
		require.Equal(t, http.StatusOK, resp.StatusCode, "%s %s: %s", tc.memberID, tc.path, body)
		p := decode[PermissionBody](t, body)
		assert.Equal(t, tc.canAdmin, p.CanAdminister, "%s %s", tc.memberID, tc.path)
	}

	resp, _ := e.do(t, http.MethodGet, "/api/v1/boards/free/permission?min=owner", nil, "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestBoardAdminRoute(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)

	cases := []struct {
		memberID string
		path     string
		want     int
	}{
		{"alice", "/api/v1/boards/free/admin", http.StatusOK},
		{"gina", "/api/v1/boards/free/admin", http.StatusOK},
		{"admin", "/api/v1/boards/notice/admin", http.StatusOK},
		{"alice", "/api/v1/boards/notice/admin", http.StatusForbidden},
		{"bob", "/api/v1/boards/free/admin", http.StatusForbidden},
		{"", "/api/v1/boards/free/admin", http.StatusUnauthorized},
		{"alice", "/api/v1/boards/missing/admin", http.StatusNotFound},
	}
	for _, tc := range cases {
		var cookie *http.Cookie
		if tc.memberID != "" {
			cookie = sessionFor(t, tc.memberID)
		}
		resp, body := e.do(t, http.MethodGet, tc.path, cookie, "")
		assert.Equal(t, tc.want, resp.StatusCode, "%s %s: %s", tc.memberID, tc.path, body)
	}

	_, body := e.do(t, http.MethodGet, "/api/v1/boards/free/admin", sessionFor(t, "gina"), "")
	got := decode[boardAdminBody](t, body)
	assert.Equal(t, "alice", got.BoardAdmin)
	assert.Equal(t, "gina", got.GroupAdmin)
	assert.Equal(t, string(member.AdminGroup), got.AdminType)
}

func TestTools(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)

	resp, body := e.do(t, http.MethodGet, "/api/v1/tools/mask-id?id=abcdefgh", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", body)
	masked := decode[map[string]any](t, body)
	assert.Equal(t, "ab****gh", masked["masked"])

	resp, body = e.do(t, http.MethodGet, "/api/v1/tools/split-zip?code=123456", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", body)
	zip := decode[map[string]any](t, body)
	assert.Equal(t, "123", zip["front"])
	assert.Equal(t, "456", zip["back"])

	resp, _ = e.do(t, http.MethodGet, "/api/v1/tools/mask-id", nil, "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestAdminVisits(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)
	ctx := context.Background()

	for _, v := range []store.Visit{
		{IP: "10.0.0.1", At: time.Date(2024, 1, 7, 9, 5, 0, 0, time.UTC)},   // Sunday
		{IP: "10.0.0.2", At: time.Date(2024, 1, 7, 9, 40, 0, 0, time.UTC)},  // Sunday
		{IP: "10.0.0.1", At: time.Date(2024, 1, 8, 21, 15, 0, 0, time.UTC)}, // Monday
	} {
		_, err := e.store.RecordVisit(ctx, v)
		require.NoError(t, err)
	}

	resp, _ := e.do(t, http.MethodGet, "/api/v1/admin/visits/hours", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = e.do(t, http.MethodGet, "/api/v1/admin/visits/hours", sessionFor(t, "gina"), "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	admin := sessionFor(t, "admin")
	resp, body := e.do(t, http.MethodGet, "/api/v1/admin/visits/hours?from=2024-01-01&to=2024-01-31", admin, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", body)
	hours := decode[visitStatsResponse](t, body)
	assert.Equal(t, []store.BucketCount{{Bucket: 9, Count: 2}, {Bucket: 21, Count: 1}}, hours.Buckets)
	assert.Equal(t, "2024-01-01", hours.From)

	_, body = e.do(t, http.MethodGet, "/api/v1/admin/visits/weekdays?from=2024-01-01&to=2024-01-31", admin, "")
	days := decode[visitStatsResponse](t, body)
	assert.Equal(t, []store.BucketCount{{Bucket: 0, Count: 2}, {Bucket: 1, Count: 1}}, days.Buckets)

	resp, _ = e.do(t, http.MethodGet, "/api/v1/admin/visits/hours?from=yesterday", admin, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = e.do(t, http.MethodGet, "/api/v1/admin/visits/hours?from=2024-02-01&to=2024-01-01", admin, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminRetention(t *testing.T) {
	t.Parallel()
	e := newTestEnvWithRetention(t)
	ctx := context.Background()

	_, err := e.store.CreateMember(ctx, store.CreateMemberParams{ID: "leaver"})
	require.NoError(t, err)
	require.NoError(t, e.store.MarkMemberLeft(ctx, "leaver", time.Now().AddDate(0, 0, -100)))

	resp, _ := e.do(t, http.MethodPost, "/api/v1/admin/retention", sessionFor(t, "bob"), "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Without the CSRF header the cookie request is refused before any work.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.ts.URL+"/api/v1/admin/retention", nil)
	require.NoError(t, err)
	req.AddCookie(sessionFor(t, "admin"))
	raw, err := e.ts.Client().Do(req) //nolint:gosec // G704 false positive: ts.URL is httptest.Server, not user input
	require.NoError(t, err)
	raw.Body.Close() //nolint:errcheck,gosec
	assert.Equal(t, http.StatusForbidden, raw.StatusCode)
	still, err := e.store.GetMember(ctx, "leaver")
	require.NoError(t, err)
	assert.NotNil(t, still)

	resp, body := e.do(t, http.MethodPost, "/api/v1/admin/retention", sessionFor(t, "admin"), "")
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", body)
	res := decode[retention.Result](t, body)
	assert.Equal(t, []string{"leaver"}, res.Members)

	m, err := e.store.GetMember(ctx, "leaver")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestAdminRetention_NotConfigured(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)

	resp, _ := e.do(t, http.MethodPost, "/api/v1/admin/retention", sessionFor(t, "admin"), "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

// newTestEnvWithRetention wires a real retention cleaner over the env's store.
func newTestEnvWithRetention(t *testing.T) *testEnv {
	t.Helper()
	var runner lazyRunner
	e := newTestEnv(t, &runner)
	runner.c = retention.New(e.store)
	return e
}

type lazyRunner struct{ c *retention.Cleaner }

func (l *lazyRunner) Run(ctx context.Context) (retention.Result, error) { return l.c.Run(ctx) }

func TestRecordVisit_OncePerDay(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, nil)
	day := time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)
	e.srv.now = func() time.Time { return day }

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := e.ts.Client()
	client.Jar = jar

	for i := 0; i < 3; i++ {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, e.ts.URL+"/api/v1/tools/split-zip?code=1", nil)
		require.NoError(t, err)
		resp, err := client.Do(req) //nolint:gosec // G704 false positive: ts.URL is httptest.Server, not user input
		require.NoError(t, err)
		resp.Body.Close() //nolint:errcheck,gosec
	}

	counts, err := e.store.VisitHourCounts(context.Background(), store.DateRange{From: day, To: day})
	require.NoError(t, err)
	assert.Equal(t, []store.BucketCount{{Bucket: 14, Count: 1}}, counts)

	var visitSet bool
	for _, c := range jar.Cookies(mustURL(t, e.ts.URL)) {
		if c.Name == visitCookie && c.Value == "127.0.0.1" {
			visitSet = true
		}
	}
	assert.True(t, visitSet, "first visit should set the visit cookie")
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}
