package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"usermgmt/console/internal/apiclient"
	"usermgmt/console/internal/config"
	"usermgmt/console/internal/console"
	"usermgmt/console/internal/kv"
	"usermgmt/console/internal/media"
	"usermgmt/console/internal/middleware"
	"usermgmt/console/internal/models"
	"usermgmt/console/internal/profile"
	"usermgmt/console/internal/security"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)

// fakeBackend stands in for the user-management API.
type fakeBackend struct {
	mu       sync.Mutex
	listings int
	deletes  []string
	updates  []map[string]string
	images   []string
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/login":
		var creds map[string]string
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"message":"Invalid credentials"}`)
			return
		}
		_, _ = io.WriteString(w, `{"token":"tok","user_id":7,"role_id":1}`)
	case "/signup":
		_ = r.ParseMultipartForm(1 << 20)
		if _, hdr, err := r.FormFile("profileImage"); err == nil {
			b.images = append(b.images, hdr.Filename)
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "User registered successfully")
	case "/getallsections":
		_, _ = io.WriteString(w, `{"code":200,"data":[{"section_name":"Dashboard"},{"section_name":"User"}]}`)
	case "/getusers":
		b.listings++
		_, _ = io.WriteString(w, `{"data":[
			{"user_id":1,"full_name":"Zed Admin","email":"zed@x.com","role_id":1,"createdAt":"2024-03-01"},
			{"user_id":2,"full_name":"Amy User","email":"amy@x.com","role_id":2,"createdAt":"2024-05-01"}
		]}`)
	case "/delete_user":
		var body struct {
			UserID models.ID `json:"user_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"message":"bad user_id"}`)
			return
		}
		b.deletes = append(b.deletes, body.UserID.String())
		_, _ = io.WriteString(w, `{"message":"deleted"}`)
	case "/getProfiledetails":
		_, _ = io.WriteString(w, `{"code":200,"data":{"user_id":7,"full_name":"Ann Lee","email":"ann@x.com","phone":"555","profile_image":"ann.png"}}`)
	case "/updateProfile":
		_ = r.ParseMultipartForm(1 << 20)
		fields := map[string]string{}
		for k, v := range r.MultipartForm.Value {
			fields[k] = v[0]
		}
		if _, hdr, err := r.FormFile("profileImage"); err == nil {
			fields["file"] = hdr.Filename
		}
		b.updates = append(b.updates, fields)
		_, _ = io.WriteString(w, `{"message":"ok"}`)
	default:
		http.NotFound(w, r)
	}
}

func (b *fakeBackend) listingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listings
}

func (b *fakeBackend) recorded() (deletes []string, updates []map[string]string, images []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.deletes...), append([]map[string]string(nil), b.updates...), append([]string(nil), b.images...)
}

type harness struct {
	t       *testing.T
	srv     *httptest.Server
	client  *http.Client
	backend *fakeBackend
	stager  *media.MemoryStager
}

func newHarness(t *testing.T, checks ...Check) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := &fakeBackend{}
	api := httptest.NewServer(backend)
	t.Cleanup(api.Close)

	cfg := &config.AppConfig{
		Environment: "test",
		HTTP:        config.HTTPConfig{PublicURL: "http://console.test"},
		Session: config.SessionConfig{
			CookieName:   "console_sid",
			CookieSecret: "cookie-secret",
			CookieTTL:    time.Hour,
		},
	}
	stager := media.NewMemoryStager()
	registry := console.NewRegistry(kv.NewMemoryStore(), security.NewSealerWithParams("remember", security.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1}),
		apiclient.New(api.URL, zerolog.Nop()), stager, console.Settings{
			Avatars:            profile.AvatarResolver{UploadBaseURL: "http://api.test/uploads/", Placeholder: "placeholder.png"},
			PreviewBaseURL:     "http://console.test/previews",
			LoginRedirectDelay: time.Second,
			ProfileCloseDelay:  1500 * time.Millisecond,
		}, zerolog.Nop())

	engine := gin.New()
	engine.Use(middleware.RequestID())
	NewHandlerSet(zerolog.Nop(), cfg, registry, stager, checks...).Register(engine)

	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &harness{t: t, srv: srv, client: &http.Client{Jar: jar}, backend: backend, stager: stager}
}

type response struct {
	Status int
	Body   map[string]any
}

func (r response) notices() []string {
	var titles []string
	list, _ := r.Body["notices"].([]any)
	for _, n := range list {
		titles = append(titles, n.(map[string]any)["title"].(string))
	}
	return titles
}

func (h *harness) do(method, path string, body io.Reader, contentType string) response {
	h.t.Helper()
	req, err := http.NewRequest(method, h.srv.URL+path, body)
	require.NoError(h.t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := h.client.Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	out := response{Status: resp.StatusCode, Body: map[string]any{}}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(h.t, json.Unmarshal(raw, &out.Body))
	}
	return out
}

func (h *harness) json(method, path string, v any) response {
	h.t.Helper()
	var body io.Reader
	if v != nil {
		raw, err := json.Marshal(v)
		require.NoError(h.t, err)
		body = bytes.NewReader(raw)
	}
	return h.do(method, path, body, "application/json")
}

func (h *harness) multipart(path string, fields map[string]string, file []byte) response {
	h.t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(h.t, w.WriteField(k, v))
	}
	if file != nil {
		part, err := w.CreateFormFile("profileImage", "me.png")
		require.NoError(h.t, err)
		_, err = part.Write(file)
		require.NoError(h.t, err)
	}
	require.NoError(h.t, w.Close())
	return h.do(http.MethodPost, path, &buf, w.FormDataContentType())
}

func (h *harness) login() {
	h.t.Helper()
	resp := h.json(http.MethodPost, "/api/login", map[string]any{"email": "ann@x.com", "password": "secret"})
	require.Equal(h.t, http.StatusOK, resp.Status)
}

func TestLogin(t *testing.T) {
	h := newHarness(t)

	resp := h.json(http.MethodPost, "/api/login", map[string]any{"email": "ann@x.com", "password": "wrong"})
	assert.Equal(t, http.StatusBadGateway, resp.Status)
	assert.Equal(t, "Invalid credentials", resp.Body["error"])
	assert.Equal(t, []string{"Login Failed"}, resp.notices())

	resp = h.json(http.MethodPost, "/api/login", map[string]any{"email": "", "password": ""})
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, []string{"Login Failed"}, resp.notices())

	resp = h.json(http.MethodPost, "/api/login", map[string]any{"email": "ann@x.com", "password": "secret", "rememberMe": true})
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, []string{"Login Successful"}, resp.notices())
	outcome := resp.Body["outcome"].(map[string]any)
	assert.Equal(t, "/dashboard", outcome["redirect"])
	assert.EqualValues(t, 1000, outcome["afterMs"])

	resp = h.do(http.MethodGet, "/api/login", nil, "")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, true, resp.Body["authenticated"])
	form := resp.Body["form"].(map[string]any)
	assert.Equal(t, "ann@x.com", form["email"])
	assert.Equal(t, "secret", form["password"])
	assert.Empty(t, resp.notices(), "notices are drained once")
}

func TestSignup(t *testing.T) {
	h := newHarness(t)
	fields := map[string]string{
		"fullName":        "Ann Lee",
		"email":           "not-an-email",
		"password":        "pw",
		"confirmPassword": "pw",
	}

	resp := h.multipart("/api/signup", fields, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, "email", resp.Body["field"])
	assert.Equal(t, []string{"Invalid Email"}, resp.notices())

	staged := h.multipart("/api/signup/avatar", nil, pngBytes)
	require.Equal(t, http.StatusCreated, staged.Status)
	preview := staged.Body["preview"].(map[string]any)
	assert.Equal(t, "image/png", preview["mime"])
	assert.Contains(t, preview["url"], "http://console.test/previews/")

	fields["email"] = "ann@x.com"
	fields["imageRef"] = preview["id"].(string)
	resp = h.multipart("/api/signup", fields, nil)
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, []string{"Link Sent Successfully"}, resp.notices())
	assert.Equal(t, "/login", resp.Body["outcome"].(map[string]any)["redirect"])
	_, _, images := h.backend.recorded()
	assert.Equal(t, []string{"profile.jpg"}, images)

	_, err := h.stager.Open(context.Background(), preview["id"].(string))
	assert.ErrorIs(t, err, media.ErrNotFound)
}

func TestStageSignupAvatar_RejectsNonImage(t *testing.T) {
	h := newHarness(t)

	resp := h.multipart("/api/signup/avatar", nil, []byte("just text"))
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.Status)

	resp = h.multipart("/api/signup/avatar", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Status)
}

func TestUsersRequireAuthentication(t *testing.T) {
	h := newHarness(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/users"},
		{http.MethodDelete, "/api/users/3"},
		{http.MethodGet, "/api/profile"},
		{http.MethodPost, "/api/profile/submit"},
	} {
		resp := h.do(tc.method, tc.path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, resp.Status, tc.path)
	}
}

func TestUsersQueryAndDelete(t *testing.T) {
	h := newHarness(t)
	h.login()

	resp := h.do(http.MethodGet, "/api/users?sort=joinDate", nil, "")
	require.Equal(t, http.StatusOK, resp.Status)
	result := resp.Body["result"].(map[string]any)
	assert.EqualValues(t, 2, result["total"])
	assert.Equal(t, []any{"all", "Admin", "User"}, result["roles"])
	first := result["users"].([]any)[0].(map[string]any)
	assert.Equal(t, "Amy User", first["name"])

	resp = h.do(http.MethodGet, "/api/users?role=Admin", nil, "")
	result = resp.Body["result"].(map[string]any)
	assert.EqualValues(t, 1, result["shown"])
	assert.Equal(t, 1, h.backend.listingCount(), "same identity reuses the cached list")

	resp = h.do(http.MethodPost, "/api/users/filters/clear", nil, "")
	result = resp.Body["result"].(map[string]any)
	assert.EqualValues(t, 2, result["shown"])
	assert.Equal(t, "joinDate", result["query"].(map[string]any)["sort"])

	resp = h.do(http.MethodDelete, "/api/users/2", nil, "")
	require.Equal(t, http.StatusOK, resp.Status)
	deletes, _, _ := h.backend.recorded()
	assert.Equal(t, []string{"2"}, deletes)
	assert.EqualValues(t, 2, resp.Body["result"].(map[string]any)["total"], "delete does not refetch")
	assert.Equal(t, 1, h.backend.listingCount())

	h.do(http.MethodPost, "/api/users/refresh", nil, "")
	assert.Equal(t, 2, h.backend.listingCount())
}

func TestShellRoutes(t *testing.T) {
	h := newHarness(t)

	resp := h.do(http.MethodGet, "/api/shell/header", nil, "")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "JD", resp.Body["header"].(map[string]any)["initials"])

	h.login()
	resp = h.do(http.MethodGet, "/api/shell/header", nil, "")
	header := resp.Body["header"].(map[string]any)
	assert.Equal(t, "AL", header["initials"])
	assert.Equal(t, "http://api.test/uploads/ann.png", header["avatar_url"])

	resp = h.do(http.MethodGet, "/api/shell/nav?variant=sidebar&path=/user", nil, "")
	items := resp.Body["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, false, items[0].(map[string]any)["active"])
	assert.Equal(t, true, items[1].(map[string]any)["active"])

	resp = h.json(http.MethodPost, "/api/shell/nav/select", map[string]any{"items": items, "label": "Dashboard"})
	assert.Equal(t, "/dashboard", resp.Body["redirect"])

	resp = h.do(http.MethodPost, "/api/logout", nil, "")
	assert.Equal(t, "/login", resp.Body["outcome"].(map[string]any)["redirect"])
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/users", nil, "").Status)
}

func TestProfileFlow(t *testing.T) {
	h := newHarness(t)
	h.login()

	resp := h.json(http.MethodPost, "/api/profile/submit", nil)
	assert.Equal(t, http.StatusConflict, resp.Status)

	resp = h.do(http.MethodPost, "/api/profile/open", nil, "")
	require.Equal(t, http.StatusOK, resp.Status)
	snap := resp.Body["profile"].(map[string]any)
	assert.Equal(t, "ready", snap["state"])
	assert.Equal(t, "Ann Lee", snap["form"].(map[string]any)["full_name"])

	resp = h.json(http.MethodPatch, "/api/profile", map[string]string{"phone": "777", "nickname": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.Status)

	resp = h.json(http.MethodPatch, "/api/profile", map[string]string{"phone": "777"})
	require.Equal(t, http.StatusOK, resp.Status)

	resp = h.multipart("/api/profile/avatar", nil, pngBytes)
	require.Equal(t, http.StatusOK, resp.Status)
	snap = resp.Body["profile"].(map[string]any)
	assert.Equal(t, true, snap["preview"])
	assert.Contains(t, snap["avatar_url"], "http://console.test/previews/")

	resp = h.json(http.MethodPost, "/api/profile/submit", nil)
	require.Equal(t, http.StatusOK, resp.Status)
	assert.EqualValues(t, 1500, resp.Body["closeAfterMs"])
	assert.Equal(t, []string{"Profile Updated"}, resp.notices())
	assert.Equal(t, "closed", resp.Body["profile"].(map[string]any)["state"])

	_, updates, _ := h.backend.recorded()
	require.Len(t, updates, 1)
	update := updates[0]
	assert.Equal(t, "7", update["user_id"])
	assert.Equal(t, "777", update["phone"])
	assert.Equal(t, "me.png", update["file"])
}

func TestPreview(t *testing.T) {
	h := newHarness(t)
	staged, err := h.stager.Stage(context.Background(), media.Upload{Name: "a.png", Data: pngBytes})
	require.NoError(t, err)

	resp, err := h.client.Get(h.srv.URL + "/previews/" + staged.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	missing := h.do(http.MethodGet, "/previews/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, missing.Status)
}

func TestReady(t *testing.T) {
	failing := Check{Name: "redis", Ping: func(context.Context) error { return errors.New("down") }}
	h := newHarness(t, failing)

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/healthz", nil, "").Status)

	resp := h.do(http.MethodGet, "/ready", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.Status)
	assert.Equal(t, "error", resp.Body["checks"].(map[string]any)["redis"])
}

func TestErrorBody(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&apiclient.RemoteCallFailure{Op: apiclient.OpLogin, Message: "nope"}, http.StatusBadGateway},
		{profile.ErrBusy, http.StatusConflict},
		{media.ErrTooLarge, http.StatusRequestEntityTooLarge},
		{media.ErrNotFound, http.StatusNotFound},
		{context.Canceled, statusClientClosed},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		status, _ := errorBody(tt.err)
		assert.Equal(t, tt.want, status, tt.err.Error())
	}
}
