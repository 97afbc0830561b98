package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pdf-query-system/internal/config"
	"pdf-query-system/internal/database"
	"pdf-query-system/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeDB struct {
	log        *callLog
	connectErr error
	indexErr   error
	pdfIdxErr  error
	connected  bool
}

func (f *fakeDB) Connect(ctx context.Context) error {
	f.log.add("connect")
	f.connected = f.connectErr == nil
	return f.connectErr
}

func (f *fakeDB) EnsureQueryIndexes(ctx context.Context) error {
	f.log.add("indexes")
	return f.indexErr
}

func (f *fakeDB) EnsurePDFIndexes(ctx context.Context) error {
	f.log.add("pdf-indexes")
	return f.pdfIdxErr
}

func (f *fakeDB) Disconnect(ctx context.Context) error {
	f.log.add("disconnect")
	f.connected = false
	return nil
}

func (f *fakeDB) Connected() bool { return f.connected }

func (f *fakeDB) Ping(ctx context.Context) error { return nil }

type fakeStorage struct {
	log        *callLog
	err        error
	configured bool
}

func (f *fakeStorage) Configure(ctx context.Context) error {
	f.log.add("storage")
	f.configured = f.err == nil
	return f.err
}

func (f *fakeStorage) Configured() bool { return f.configured }

func testConfig() *config.Config {
	return &config.Config{
		DBName:          "test",
		CORSOrigins:     []string{"*"},
		StorageProvider: "cloudinary",
		StartupTimeout:  5,
		ShutdownTimeout: 5,
	}
}

func testGroups() []RouteGroup {
	return []RouteGroup{
		{Tag: "pdf", Register: func(rg *gin.RouterGroup) {
			rg.GET("/pdfs", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("route_tag")) })
		}},
		{Tag: "query", Register: func(rg *gin.RouterGroup) {
			rg.POST("/query", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("route_tag")) })
		}},
	}
}

func newTestApp(db Database, st StorageConfigurer) *App {
	return New(testConfig(), db, st, Options{Groups: testGroups()})
}

func TestWelcome(t *testing.T) {
	log := &callLog{}
	a := newTestApp(&fakeDB{log: log}, &fakeStorage{log: log})

	for _, target := range []string{"/", "/?foo=bar&limit=1"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set("Authorization", "Bearer ignored")
		w := httptest.NewRecorder()
		a.Handler().ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, map[string]string{"message": "Welcome to the PDF Query System API!"}, body)
	}
	assert.Empty(t, log.list())
}

func TestCORSPreflight(t *testing.T) {
	log := &callLog{}
	a := newTestApp(&fakeDB{log: log}, &fakeStorage{log: log})

	for _, path := range []string{"/", "/api/v1/query", "/api/v1/pdfs"} {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		req.Header.Set("Origin", "https://client.example")
		req.Header.Set("Access-Control-Request-Method", "POST")
		w := httptest.NewRecorder()
		a.Handler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code, path)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"), path)
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"), path)
	}
}

func TestAPIUnavailableUntilReady(t *testing.T) {
	log := &callLog{}
	a := newTestApp(&fakeDB{log: log}, &fakeStorage{log: log})

	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/pdfs", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	a.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	require.NoError(t, a.Init(context.Background()))

	w = httptest.NewRecorder()
	a.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/pdfs", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pdf", w.Body.String())

	w = httptest.NewRecorder()
	a.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/query", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "query", w.Body.String())

	w = httptest.NewRecorder()
	a.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadyChecksDependencies(t *testing.T) {
	log := &callLog{}
	db := &fakeDB{log: log}
	st := &fakeStorage{log: log}
	a := newTestApp(db, st)
	require.NoError(t, a.Init(context.Background()))

	ready := func() int {
		w := httptest.NewRecorder()
		a.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
		return w.Code
	}
	assert.Equal(t, http.StatusOK, ready())

	st.configured = false
	assert.Equal(t, http.StatusServiceUnavailable, ready())

	st.configured = true
	db.connected = false
	assert.Equal(t, http.StatusServiceUnavailable, ready())
}

func TestInitOrder(t *testing.T) {
	log := &callLog{}
	a := newTestApp(&fakeDB{log: log}, &fakeStorage{log: log})

	require.NoError(t, a.Init(context.Background()))
	assert.Equal(t, []string{"connect", "storage", "indexes", "pdf-indexes"}, log.list())
	assert.Equal(t, StateReady, a.State())

	assert.ErrorIs(t, a.Init(context.Background()), ErrAlreadyStarted)

	require.NoError(t, a.Shutdown(context.Background()))
	assert.Equal(t, StateTerminated, a.State())
	assert.Equal(t, []string{"connect", "storage", "indexes", "pdf-indexes", "disconnect"}, log.list())

	// second shutdown does not touch the database again
	require.NoError(t, a.Shutdown(context.Background()))
	assert.Len(t, log.list(), 5)
}

func TestInitConnectFailure(t *testing.T) {
	log := &callLog{}
	a := newTestApp(&fakeDB{log: log, connectErr: errors.New("connection refused")}, &fakeStorage{log: log})

	err := a.Init(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"connect"}, log.list())
	assert.False(t, a.Ready())
}

func TestInitStorageFailure(t *testing.T) {
	log := &callLog{}
	a := newTestApp(&fakeDB{log: log}, &fakeStorage{log: log, err: storage.ErrMissingCredentials})

	err := a.Init(context.Background())
	assert.ErrorIs(t, err, storage.ErrMissingCredentials)
	assert.Equal(t, []string{"connect", "storage", "disconnect"}, log.list())
	assert.Equal(t, StateTerminated, a.State())
}

func TestInitIndexFailure(t *testing.T) {
	log := &callLog{}
	a := newTestApp(&fakeDB{log: log, indexErr: errors.New("not authorized")}, &fakeStorage{log: log})

	require.Error(t, a.Init(context.Background()))
	assert.Equal(t, []string{"connect", "storage", "indexes", "disconnect"}, log.list())
	assert.False(t, a.Ready())
}

func TestInitPDFIndexFailure(t *testing.T) {
	log := &callLog{}
	a := newTestApp(&fakeDB{log: log, pdfIdxErr: errors.New("duplicate key")}, &fakeStorage{log: log})

	require.Error(t, a.Init(context.Background()))
	assert.Equal(t, []string{"connect", "storage", "indexes", "pdf-indexes", "disconnect"}, log.list())
	assert.Equal(t, StateTerminated, a.State())
}

func TestShutdownBeforeInit(t *testing.T) {
	log := &callLog{}
	a := newTestApp(&fakeDB{log: log}, &fakeStorage{log: log})

	require.NoError(t, a.Shutdown(context.Background()))
	assert.Empty(t, log.list())
	assert.Equal(t, StateUninitialized, a.State())
}

// managerNoIndexes runs the real manager but skips index creation, which needs a server.
type managerNoIndexes struct {
	*database.Manager
}

func (managerNoIndexes) EnsureQueryIndexes(ctx context.Context) error { return nil }
func (managerNoIndexes) EnsurePDFIndexes(ctx context.Context) error { return nil }

func TestShutdownInvalidatesDatabaseHandle(t *testing.T) {
	// mongo.Connect does not dial, so no server is needed.
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI("mongodb://127.0.0.1:1"))
	require.NoError(t, err)
	manager := database.NewManagerFromClient(client, "test")

	a := New(testConfig(), managerNoIndexes{manager}, &fakeStorage{log: &callLog{}}, Options{})
	require.NoError(t, a.Init(context.Background()))

	_, err = manager.Database()
	require.NoError(t, err)

	require.NoError(t, a.Shutdown(context.Background()))

	_, err = manager.Database()
	assert.ErrorIs(t, err, database.ErrNotConnected)
}
