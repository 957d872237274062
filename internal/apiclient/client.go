// Package apiclient is the console's only way to reach the user-management
// API. Each exported method maps onto exactly one backend endpoint.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"usermgmt/console/internal/config"
	"usermgmt/console/internal/models"
)

const maxBodyBytes = 10 << 20

// Operation names, used in logs, metrics and RemoteCallFailure.Op.
const (
	OpSignup        = "signup"
	OpLogin         = "login"
	OpListSections  = "listSections"
	OpListUsers     = "listUsers"
	OpDeleteUser    = "deleteUser"
	OpGetProfile    = "getProfile"
	OpUpdateProfile = "updateProfile"
)

var fallbackMessages = map[string]string{
	OpSignup:        "Something went wrong",
	OpLogin:         "Something went wrong",
	OpListSections:  "Failed to fetch sections",
	OpListUsers:     "Failed to fetch users",
	OpDeleteUser:    "Failed to delete user",
	OpGetProfile:    "Failed to fetch user profile",
	OpUpdateProfile: "Failed to update user details",
}

// TokenSource yields the bearer token to attach, or "" for none.
type TokenSource func(ctx context.Context) (string, error)

// Observer is told about every finished call.
type Observer func(op string, err error, elapsed time.Duration)

type Client struct {
	baseURL  string
	http     *http.Client
	token    TokenSource
	observer Observer
	log      zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.token = ts }
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

func New(baseURL string, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{},
		log:     log.With().Str("component", "apiclient").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewHTTPClient returns the traced transport shared by every browser client.
// A zero timeout leaves the transport defaults in charge.
func NewHTTPClient(cfg config.BackendConfig) *http.Client {
	return &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   cfg.Timeout,
	}
}

// ForBrowser derives a client with its own cookie jar and token source, so
// cookies the backend sets for one browser are never sent for another.
func (c *Client) ForBrowser(ts TokenSource) *Client {
	jar, _ := cookiejar.New(nil)

	hc := *c.http
	hc.Jar = jar

	return &Client{
		baseURL:  c.baseURL,
		http:     &hc,
		token:    ts,
		observer: c.observer,
		log:      c.log,
	}
}

// Ack is an implementation-defined acknowledgement, kept verbatim. A JSON
// object is the map itself; any other success body sits under AckRawKey.
type Ack map[string]any

const AckRawKey = "raw"

func parseAck(raw []byte) Ack {
	trimmed := bytes.TrimSpace(raw)
	ack := Ack{}
	if len(trimmed) == 0 {
		return ack
	}

	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		ack[AckRawKey] = string(trimmed)
		return ack
	}
	if obj, ok := v.(map[string]any); ok {
		return obj
	}
	ack[AckRawKey] = v
	return ack
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResult struct {
	Token  string    `json:"token"`
	UserID models.ID `json:"user_id"`
	RoleID models.ID `json:"role_id"`
}

type SectionsResponse struct {
	Code int
	Data []models.Section
	// IsArray is false when the backend's data field was not a JSON array.
	IsArray bool
}

type UsersResponse struct {
	Data []models.RawUser `json:"data"`
}

type ProfileResponse struct {
	Code int             `json:"code"`
	Data *models.Profile `json:"data"`
}

// File is an attachment for a multipart request.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

type SignupForm struct {
	FullName        string
	Email           string
	Password        string
	ConfirmPassword string
	ProfileImage    *File
}

type ProfileUpdate struct {
	UserID       string
	FullName     string
	Email        string
	Phone        string
	ProfileImage *File
}

func (c *Client) Signup(ctx context.Context, form SignupForm) (Ack, error) {
	body, contentType, err := encodeMultipart([]formField{
		{"fullName", form.FullName},
		{"email", form.Email},
		{"password", form.Password},
		{"confirmPassword", form.ConfirmPassword},
	}, "profileImage", form.ProfileImage)
	if err != nil {
		return nil, c.localFailure(OpSignup, err)
	}

	ack := Ack{}
	err = c.do(ctx, OpSignup, http.MethodPost, "/signup", nil, body, contentType, &ack)
	return ack, err
}

func (c *Client) Login(ctx context.Context, creds Credentials) (LoginResult, error) {
	payload, err := json.Marshal(creds)
	if err != nil {
		return LoginResult{}, c.localFailure(OpLogin, err)
	}

	var result LoginResult
	err = c.do(ctx, OpLogin, http.MethodPost, "/login", nil, bytes.NewReader(payload), "application/json", &result)
	return result, err
}

func (c *Client) ListSections(ctx context.Context) (SectionsResponse, error) {
	var raw struct {
		Code int             `json:"code"`
		Data json.RawMessage `json:"data"`
	}
	if err := c.do(ctx, OpListSections, http.MethodGet, "/getallsections", nil, nil, "", &raw); err != nil {
		return SectionsResponse{}, err
	}

	resp := SectionsResponse{Code: raw.Code}
	trimmed := bytes.TrimSpace(raw.Data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &resp.Data); err != nil {
			return SectionsResponse{}, c.localFailure(OpListSections, err)
		}
		resp.IsArray = true
	}
	return resp, nil
}

func (c *Client) ListUsers(ctx context.Context, roleID, userID string) (UsersResponse, error) {
	query := url.Values{}
	query.Set("role_id", roleID)
	query.Set("user_id", userID)

	var resp UsersResponse
	err := c.do(ctx, OpListUsers, http.MethodGet, "/getusers", query, nil, "", &resp)
	return resp, err
}

func (c *Client) DeleteUser(ctx context.Context, userID string) (Ack, error) {
	payload, err := json.Marshal(map[string]models.ID{"user_id": models.ID(userID)})
	if err != nil {
		return nil, c.localFailure(OpDeleteUser, err)
	}

	ack := Ack{}
	err = c.do(ctx, OpDeleteUser, http.MethodPost, "/delete_user", nil, bytes.NewReader(payload), "application/json", &ack)
	return ack, err
}

func (c *Client) GetProfile(ctx context.Context, userID string) (ProfileResponse, error) {
	query := url.Values{}
	query.Set("user_id", userID)

	var resp ProfileResponse
	err := c.do(ctx, OpGetProfile, http.MethodGet, "/getProfiledetails", query, nil, "", &resp)
	return resp, err
}

func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (Ack, error) {
	body, contentType, err := encodeMultipart([]formField{
		{"user_id", update.UserID},
		{"full_name", update.FullName},
		{"email", update.Email},
		{"phone", update.Phone},
	}, "profileImage", update.ProfileImage)
	if err != nil {
		return nil, c.localFailure(OpUpdateProfile, err)
	}

	ack := Ack{}
	err = c.do(ctx, OpUpdateProfile, http.MethodPut, "/updateProfile", nil, body, contentType, &ack)
	return ack, err
}

func (c *Client) localFailure(op string, err error) error {
	return &RemoteCallFailure{Op: op, Message: fallbackMessages[op], Err: err}
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body io.Reader, contentType string, out any) (err error) {
	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		if c.observer != nil {
			c.observer(op, err, elapsed)
		}
		event := c.log.Debug()
		if err != nil {
			event = c.log.Warn().Err(err)
		}
		event.Str("op", op).Str("method", method).Str("path", path).Dur("latency", elapsed).Msg("backend call")
	}()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return c.localFailure(op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	if c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			return c.localFailure(op, fmt.Errorf("read token: %w", err))
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.localFailure(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return c.localFailure(op, fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return failureFromBody(op, resp.StatusCode, raw, fallbackMessages[op])
	}

	if ack, ok := out.(*Ack); ok {
		*ack = parseAck(raw)
		return nil
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		failure := c.localFailure(op, fmt.Errorf("decode body: %w", err)).(*RemoteCallFailure)
		failure.Status = resp.StatusCode
		return failure
	}
	return nil
}
