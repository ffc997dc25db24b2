package httpserver

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/teashop/internal/models"
	"github.com/Skotchmaster/teashop/internal/transport"
	"github.com/Skotchmaster/teashop/pkg/tokens"
)

func TestRegisterLoginMe(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/users/register", map[string]string{
		"email": "Hoa@Example.com", "password": "secret1", "name": "Hoa",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reg := decode[transport.AuthResponse](t, rec)
	assert.Equal(t, "hoa@example.com", reg.User.Email)
	assert.NotContains(t, rec.Body.String(), "password")

	claims, err := tokens.AccessClaimsFromToken(reg.Token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "customer", claims.Role)

	rec = env.do(t, http.MethodPost, "/api/users/register", map[string]string{
		"email": "hoa@example.com", "password": "secret1", "name": "Hoa",
	}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/users/login", map[string]string{"email": "hoa@example.com", "password": "nope!!"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid email or password", decode[errorBody](t, rec).Message)

	rec = env.do(t, http.MethodPost, "/api/users/login", map[string]string{"email": "hoa@example.com", "password": "secret1"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	token := decode[transport.AuthResponse](t, rec).Token

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/users/me", nil, "").Code)

	rec = env.do(t, http.MethodGet, "/api/users/me", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hoa", decode[models.User](t, rec).Name)

	rec = env.do(t, http.MethodPut, "/api/users/me", map[string]string{"phone": "0912 345 678"}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0912345678", decode[models.User](t, rec).Phone)

	rec = env.do(t, http.MethodPut, "/api/users/me", map[string]string{"name": "H"}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/users/me/orders", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[transport.ListResponse[models.Order]](t, rec).Data)
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/users/register", map[string]string{
		"email": "not-an-email", "password": "secret1", "name": "Hoa",
	}, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid email address", decode[errorBody](t, rec).Message)
}

func multipartFile(t *testing.T, field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUploadAvatar(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.userToken(t, "hoa@example.com", models.RoleCustomer)

	rec := env.do(t, http.MethodPost, "/api/users/me/avatar", nil, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, strings.HasPrefix(decode[models.User](t, rec).AvatarURL, "https://ui-avatars.com/api/"))

	body, ct := multipartFile(t, "file", "me.webp", "image/webp", []byte("webp-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/users/me/avatar", body)
	req.Header.Set(echo.HeaderContentType, ct)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec = httptest.NewRecorder()
	env.E.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	avatar := decode[models.User](t, rec).AvatarURL
	assert.True(t, strings.HasPrefix(avatar, "http://example.com/api/storage/avatars/"), avatar)

	rec = env.do(t, http.MethodGet, strings.TrimPrefix(avatar, "http://example.com"), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "webp-bytes", rec.Body.String())
	assert.Equal(t, "image/webp", rec.Header().Get(echo.HeaderContentType))
}
