package httpx_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aussiebroadwan/tokenbridge/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func requireStatusError(t *testing.T, err error, status int) {
	t.Helper()

	var se *httpx.StatusError
	require.True(t, errors.As(err, &se), "expected *httpx.StatusError, got %v", err)
	require.Equal(t, status, se.Status)
}

func TestParseForm(t *testing.T) {
	t.Parallel()

	t.Run("parses form body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("a=1&b=2&b=3"))
		req.Header.Set("Content-Type", httpx.FormContentType)

		values, err := httpx.ParseForm(req, 0)
		require.NoError(t, err)
		require.Equal(t, "1", values.Get("a"))
		require.Equal(t, []string{"2", "3"}, values["b"])
	})

	t.Run("accepts charset parameter and missing content type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("a=1"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")
		_, err := httpx.ParseForm(req, 0)
		require.NoError(t, err)

		req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("a=1"))
		_, err = httpx.ParseForm(req, 0)
		require.NoError(t, err)
	})

	t.Run("rejects other content types with 415", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":1}`))
		req.Header.Set("Content-Type", "application/json")

		_, err := httpx.ParseForm(req, 0)
		requireStatusError(t, err, http.StatusUnsupportedMediaType)
	})

	t.Run("rejects missing body with 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Content-Type", httpx.FormContentType)

		_, err := httpx.ParseForm(req, 0)
		requireStatusError(t, err, http.StatusBadRequest)
	})

	t.Run("rejects declared oversize with 413", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("a", 64)))
		req.Header.Set("Content-Type", httpx.FormContentType)

		_, err := httpx.ParseForm(req, 32)
		requireStatusError(t, err, http.StatusRequestEntityTooLarge)
	})

	t.Run("rejects undeclared oversize with 413", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("a", 64)))
		req.Header.Set("Content-Type", httpx.FormContentType)
		req.ContentLength = -1

		_, err := httpx.ParseForm(req, 32)
		requireStatusError(t, err, http.StatusRequestEntityTooLarge)
	})

	t.Run("rejects malformed encoding with 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("a=%zz"))
		req.Header.Set("Content-Type", httpx.FormContentType)

		_, err := httpx.ParseForm(req, 0)
		requireStatusError(t, err, http.StatusBadRequest)
	})
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}), mw("first"), mw("second"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"first", "second", "handler"}, order)
}
