package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/teashop/internal/models"
	"github.com/Skotchmaster/teashop/internal/repo"
	"github.com/Skotchmaster/teashop/internal/service"
	pkgdb "github.com/Skotchmaster/teashop/pkg/db"
	"github.com/Skotchmaster/teashop/pkg/events"
	pkg_hash "github.com/Skotchmaster/teashop/pkg/hash"
	"github.com/Skotchmaster/teashop/pkg/storage"
	"github.com/Skotchmaster/teashop/pkg/tokens"
)

var testSecret = []byte("http-test-secret")

type testEnv struct {
	E      *echo.Echo
	Repo   *repo.GormRepo
	Bucket *storage.MemoryBucket
	Deps   *Deps
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := pkgdb.Open(ctx, "file:"+uuid.NewString()+"?mode=memory")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pkgdb.Close(db) })

	r := repo.New(db)
	require.NoError(t, r.Migrate(ctx))

	bucket := storage.NewMemoryBucket()
	uploader := storage.NewUploader(bucket)
	pub := events.Noop{}

	catalog := &service.CatalogService{Repo: r, Events: pub}
	orders := &service.OrderService{Repo: r, Events: pub}
	users := &service.UserService{Repo: r, Uploader: uploader}
	auth := &service.AuthService{Repo: r, JWTSecret: testSecret, TokenTTL: time.Hour, Events: pub}
	cart := &service.CartService{Repo: r}

	deps := &Deps{
		Health:    &HealthHTTP{Service: "teashop-test", DB: r},
		Catalog:   &CatalogHTTP{Svc: catalog},
		Orders:    &OrderHTTP{Svc: orders},
		Users:     &UserHTTP{Auth: auth, Users: users, Orders: orders},
		Cart:      &CartHTTP{Svc: cart},
		Admin:     &AdminHTTP{Catalog: catalog, Orders: orders, Users: users, Uploader: uploader},
		Storage:   &StorageHTTP{Bucket: bucket},
		JWTSecret: testSecret,
	}

	e := echo.New()
	Register(e, deps)
	return &testEnv{E: e, Repo: r, Bucket: bucket, Deps: deps}
}

// userToken stores a user with the given role and returns a signed token.
func (env *testEnv) userToken(t *testing.T, email string, role models.Role) (uint, string) {
	t.Helper()
	pw, err := pkg_hash.HashPassword("secret1")
	require.NoError(t, err)

	u := &models.User{Email: email, Name: "Test User", PasswordHash: pw, Role: role}
	require.NoError(t, env.Repo.CreateUser(context.Background(), u))

	tok, _, err := tokens.NewAccessToken(u.ID, u.Email, string(u.Role), time.Hour, testSecret)
	require.NoError(t, err)
	return u.ID, tok
}

func (env *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.E.ServeHTTP(rec, req)
	return rec
}

// doJSONRequest builds a context for calling a handler directly.
func (env *testEnv) doJSONRequest(method, path string, body any, token string) (*httptest.ResponseRecorder, *http.Request, echo.Context) {
	var rdr io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return rec, req, env.E.NewContext(req, rec)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type errorBody struct {
	Message string `json:"message"`
}
