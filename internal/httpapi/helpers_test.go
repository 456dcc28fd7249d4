package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"coursehub/internal/avatar"
	"coursehub/internal/httpapi"
	"coursehub/internal/identity"
	"coursehub/internal/logging"
	"coursehub/internal/mailer"
	"coursehub/internal/metrics"
	"coursehub/internal/session"
	"coursehub/internal/token"
)

// memStore is an in-memory identity.Store used to exercise the handlers
// without a database.
type memStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*identity.User
}

func newMemStore() *memStore {
	return &memStore{users: make(map[uuid.UUID]*identity.User)}
}

func (s *memStore) clone(u *identity.User, withHash bool) *identity.User {
	cp := *u
	cp.Courses = append([]uuid.UUID(nil), u.Courses...)
	if !withHash {
		cp.PasswordHash = ""
	}
	return &cp
}

func (s *memStore) Create(ctx context.Context, in identity.CreateInput) (*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == in.Email {
			return nil, identity.ErrEmailTaken
		}
	}
	now := time.Now().UTC()
	u := &identity.User{
		ID:           uuid.New(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Avatar:       in.Avatar,
		Role:         in.Role,
		IsVerified:   in.Verified,
		Courses:      []uuid.UUID{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[u.ID] = u
	return s.clone(u, false), nil
}

func (s *memStore) get(id uuid.UUID) (*identity.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return u, nil
}

func (s *memStore) GetByID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return s.clone(u, false), nil
}

func (s *memStore) GetByIDWithHash(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return s.clone(u, true), nil
}

func (s *memStore) getByEmail(email string) (*identity.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, identity.ErrNotFound
}

func (s *memStore) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.getByEmail(email)
	if err != nil {
		return nil, err
	}
	return s.clone(u, false), nil
}

func (s *memStore) GetByEmailWithHash(ctx context.Context, email string) (*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.getByEmail(email)
	if err != nil {
		return nil, err
	}
	return s.clone(u, true), nil
}

func (s *memStore) UpdateProfile(ctx context.Context, id uuid.UUID, name, email string) (*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.get(id)
	if err != nil {
		return nil, err
	}
	for _, other := range s.users {
		if other.ID != id && other.Email == email {
			return nil, identity.ErrEmailTaken
		}
	}
	u.Name, u.Email = name, email
	u.UpdatedAt = time.Now().UTC()
	return s.clone(u, false), nil
}

func (s *memStore) UpdatePassword(ctx context.Context, id uuid.UUID, newHash string) (*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.get(id)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = newHash
	u.UpdatedAt = time.Now().UTC()
	return s.clone(u, false), nil
}

func (s *memStore) UpdateAvatar(ctx context.Context, id uuid.UUID, av identity.Avatar) (*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.get(id)
	if err != nil {
		return nil, err
	}
	u.Avatar = av
	u.UpdatedAt = time.Now().UTC()
	return s.clone(u, false), nil
}

func (s *memStore) MarkVerified(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.get(id)
	if err != nil {
		return nil, err
	}
	u.IsVerified = true
	u.UpdatedAt = time.Now().UTC()
	return s.clone(u, false), nil
}

func (s *memStore) AddCourse(ctx context.Context, id uuid.UUID, courseID uuid.UUID) (*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if !u.OwnsCourse(courseID) {
		u.Courses = append(u.Courses, courseID)
		u.UpdatedAt = time.Now().UTC()
	}
	return s.clone(u, false), nil
}

func (s *memStore) List(ctx context.Context) ([]*identity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*identity.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, s.clone(u, false))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// captureMailer records outbound mail for assertions.
type captureMailer struct {
	mu    sync.Mutex
	mails []mailer.Mail
}

func (c *captureMailer) Send(ctx context.Context, m mailer.Mail) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mails = append(c.mails, m)
	return nil
}

func (c *captureMailer) sent() []mailer.Mail {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]mailer.Mail(nil), c.mails...)
}

// fakeAvatars records uploads and removals.
type fakeAvatars struct {
	mu       sync.Mutex
	uploads  int
	removed  []string
	lastType string
	lastData []byte
}

func (f *fakeAvatars) Upload(ctx context.Context, userID, contentType string, data []byte) (avatar.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	f.lastType = contentType
	f.lastData = append([]byte(nil), data...)
	id := fmt.Sprintf("avatars/%s/%d", userID, f.uploads)
	return avatar.Object{PublicID: id, URL: "https://cdn.example.com/" + id}, nil
}

func (f *fakeAvatars) Remove(ctx context.Context, publicID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, publicID)
	return nil
}

type env struct {
	t       *testing.T
	ts      *httptest.Server
	client  *http.Client
	store   *memStore
	mr      *miniredis.Miniredis
	cache   *session.Cache
	tokens  *token.Manager
	mail    *captureMailer
	avatars *fakeAvatars
}

func defaultTokenConfig() token.Config {
	return token.Config{
		AccessSecret:  []byte("test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	}
}

// newEnv stands up the full handler over miniredis and the in-memory store.
// The client carries a cookie jar, so auth cookies flow like a browser's.
func newEnv(t *testing.T, tokenCfg token.Config) *env {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	tokens, err := token.NewManager(tokenCfg)
	require.NoError(t, err)

	cache := session.NewCache(rdb, tokenCfg.RefreshTTL)
	store := newMemStore()
	mail := &captureMailer{}
	avatars := &fakeAvatars{}
	log := logging.NewJSON(io.Discard, slog.LevelError)

	h := httpapi.NewHandler(log, store, cache, tokens, mail, avatars,
		metrics.New(prometheus.NewRegistry()), httpapi.Config{
			CallTimeout: 2 * time.Second,
		})

	ts := httptest.NewServer(h.Routes())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &env{
		t:       t,
		ts:      ts,
		client:  &http.Client{Jar: jar},
		store:   store,
		mr:      mr,
		cache:   cache,
		tokens:  tokens,
		mail:    mail,
		avatars: avatars,
	}
}

func (e *env) do(method, path string, body any) (int, map[string]any) {
	e.t.Helper()

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, rd)
	require.NoError(e.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.client.Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	if len(raw) > 0 {
		require.NoError(e.t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp.StatusCode, decoded
}

func (e *env) post(path string, body any) (int, map[string]any) {
	return e.do(http.MethodPost, path, body)
}

func (e *env) get(path string) (int, map[string]any) {
	return e.do(http.MethodGet, path, nil)
}

func (e *env) put(path string, body any) (int, map[string]any) {
	return e.do(http.MethodPut, path, body)
}

// register creates an unverified account and returns the activation ticket
// and code from the response.
func (e *env) register(name, email, password string) (ticket, otp string) {
	e.t.Helper()
	status, body := e.post("/api/v1/users/registration", map[string]string{
		"name": name, "email": email, "password": password,
	})
	require.Equal(e.t, http.StatusOK, status, "register: %v", body)
	ticket, _ = body["activationToken"].(string)
	otp, _ = body["otpToken"].(string)
	require.NotEmpty(e.t, ticket)
	require.NotEmpty(e.t, otp)
	return ticket, otp
}

func (e *env) activate(ticket, otp string) {
	e.t.Helper()
	status, body := e.post("/api/v1/users/active-user", map[string]string{
		"activationToken": ticket, "otp": otp,
	})
	require.Equal(e.t, http.StatusOK, status, "activate: %v", body)
}

// login authenticates and leaves the auth cookies in the client jar.
func (e *env) login(email, password string) map[string]any {
	e.t.Helper()
	status, body := e.post("/api/v1/users/login-user", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(e.t, http.StatusOK, status, "login: %v", body)
	return body
}

// signup runs the full register-activate-login sequence.
func (e *env) signup(name, email, password string) map[string]any {
	e.t.Helper()
	ticket, otp := e.register(name, email, password)
	e.activate(ticket, otp)
	return e.login(email, password)
}

// seedAdmin plants a verified admin account directly in the store.
func (e *env) seedAdmin(email, password string) {
	e.t.Helper()
	hash, err := identity.HashPassword(password)
	require.NoError(e.t, err)
	_, err = e.store.Create(context.Background(), identity.CreateInput{
		Name:         "Admin",
		Email:        email,
		PasswordHash: hash,
		Role:         identity.RoleAdmin,
		Verified:     true,
	})
	require.NoError(e.t, err)
}

// clearCookies drops all auth cookies from the client jar.
func (e *env) clearCookies() {
	e.t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(e.t, err)
	e.client.Jar = jar
}
