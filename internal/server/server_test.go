package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellerdesk/tellerdesk/internal/auth"
)

func TestShouldSkipJWT(t *testing.T) {
	t.Parallel()

	cases := []struct {
		path string
		want bool
	}{
		{path: "/ping", want: true},
		{path: "/health", want: true},
		{path: "/auth/login", want: true},
		{path: "/ws", want: true},
		{path: "/auth/refresh", want: false},
		{path: "/conversations", want: false},
		{path: "/ws/extra", want: false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, shouldSkipJWT(tc.path), tc.path)
	}
}

type whoami struct{}

func (whoami) Register(e *echo.Echo) {
	e.GET("/whoami", func(c echo.Context) error {
		userID, err := auth.UserIDFromContext(c)
		if err != nil {
			return err
		}
		return c.String(http.StatusOK, userID)
	})
	e.GET("/ping", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
}

func TestServerRequiresToken(t *testing.T) {
	srv := NewServer(nil, "", "secret", whoami{}, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	token, _, err := auth.GenerateToken("user-1", "agent", "secret", time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", rec.Body.String())
}

func TestValidator(t *testing.T) {
	type payload struct {
		Email string `validate:"required,email"`
	}
	v := NewValidator()
	require.NoError(t, v.Validate(payload{Email: "a@b.co"}))

	err := v.Validate(payload{Email: "nope"})
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
}
