package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"circle/internal/config"
	"circle/internal/database"
	"circle/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testJWTSecret = "server-test-secret-that-is-long-enough"

var dbSeq atomic.Int64

type sentMail struct {
	To, Subject, Body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *fakeMailer) last() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMail{}
	}
	return m.sent[len(m.sent)-1]
}

type testServer struct {
	srv    *Server
	app    *fiber.App
	db     *gorm.DB
	mr     *miniredis.Miniredis
	store  *testutil.MemoryBlobStore
	mailer *fakeMailer
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:            testJWTSecret,
		Port:                 "0",
		Env:                  "test",
		AllowedOrigins:       "http://localhost:5173",
		FrontendURL:          "http://localhost:5173",
		MediaMaxUploadSizeMB: 5,
	}
}

func setupSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:srv_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	return db
}

// newTestServer builds a full Server over sqlite and an in-memory blob store.
// withRedis adds a miniredis instance for revocation, caching and pub/sub.
func newTestServer(t *testing.T, withRedis bool) *testServer {
	t.Helper()
	ts := &testServer{
		db:     setupSQLiteDB(t),
		store:  testutil.NewMemoryBlobStore(),
		mailer: &fakeMailer{},
	}

	var rdb *redis.Client
	if withRedis {
		ts.mr = miniredis.RunT(t)
		rdb = redis.NewClient(&redis.Options{Addr: ts.mr.Addr()})
	}

	srv, err := NewServerWithDeps(testConfig(), Deps{
		DB:     ts.db,
		Redis:  rdb,
		Store:  ts.store,
		Mailer: ts.mailer,
	})
	require.NoError(t, err)
	ts.srv = srv
	ts.app = srv.App()
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return ts
}

// do sends a JSON request and returns the status and raw body.
func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	return ts.send(t, req, token)
}

// doMultipart sends a multipart form with optional files keyed by field name.
func (ts *testServer) doMultipart(t *testing.T, method, path, token string, fields map[string]string, files map[string]string) (int, []byte) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for field, name := range files {
		fw, err := w.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = fw.Write(testutil.TinyPNG(t, 32, 32))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	return ts.send(t, req, token)
}

func (ts *testServer) send(t *testing.T, req *http.Request, token string) (int, []byte) {
	t.Helper()
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

type testUser struct {
	ID       uint
	Username string
	Token    string
}

// register signs up username through the API.
func (ts *testServer) register(t *testing.T, username string) testUser {
	t.Helper()
	status, raw := ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"fullName": "User " + username,
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, status, string(raw))

	var res struct {
		Token string `json:"token"`
		User  struct {
			ID uint `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(raw, &res))
	return testUser{ID: res.User.ID, Username: username, Token: res.Token}
}

// befriend runs the request and accept flow between a and b over HTTP.
func (ts *testServer) befriend(t *testing.T, a, b testUser) {
	t.Helper()
	status, raw := ts.do(t, http.MethodPost, fmt.Sprintf("/api/users/friend-request/%d", b.ID), a.Token, nil)
	require.Equal(t, http.StatusCreated, status, string(raw))
	var req struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(raw, &req))
	status, raw = ts.do(t, http.MethodPut, fmt.Sprintf("/api/users/friend-request/%d/accept", req.ID), b.Token, nil)
	require.Equal(t, http.StatusOK, status, string(raw))
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
