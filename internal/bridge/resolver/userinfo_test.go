package resolver_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/tokenbridge/internal/bridge/domain"
	"github.com/aussiebroadwan/tokenbridge/internal/bridge/resolver"
	"github.com/stretchr/testify/require"
)

func userinfoServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "Bearer subject-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func exchangeRequest() *domain.ExchangeRequest {
	return &domain.ExchangeRequest{
		SubjectToken:     "subject-token",
		SubjectTokenType: domain.TokenTypeAccessToken,
	}
}

func TestUserinfoResolve(t *testing.T) {
	t.Parallel()

	t.Run("maps sub acr and amr", func(t *testing.T) {
		srv := userinfoServer(t, http.StatusOK, `{"sub":"alice","acr":"urn:acr:mfa","amr":["pwd","otp"],"email":"a@example.com"}`)

		claims, err := resolver.NewUserinfo(resolver.UserinfoConfig{URL: srv.URL, SubjectPrefix: "est-1/"}).
			Resolve(context.Background(), exchangeRequest())
		require.NoError(t, err)
		require.Equal(t, "est-1/alice", claims.Subject)
		require.Equal(t, "urn:acr:mfa", claims.ACR)
		require.Equal(t, []string{"pwd", "otp"}, claims.AMR)
	})

	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized} {
		t.Run("rejected subject token "+http.StatusText(status), func(t *testing.T) {
			srv := userinfoServer(t, status, `{"error":"invalid_token"}`)

			_, err := resolver.NewUserinfo(resolver.UserinfoConfig{URL: srv.URL}).
				Resolve(context.Background(), exchangeRequest())
			require.ErrorIs(t, err, resolver.ErrInvalidSubjectToken)
		})
	}

	t.Run("other statuses are unexpected", func(t *testing.T) {
		srv := userinfoServer(t, http.StatusBadGateway, `oops`)

		_, err := resolver.NewUserinfo(resolver.UserinfoConfig{URL: srv.URL}).
			Resolve(context.Background(), exchangeRequest())
		require.ErrorIs(t, err, resolver.ErrUnexpectedStatus)
	})

	t.Run("missing sub is invalid", func(t *testing.T) {
		srv := userinfoServer(t, http.StatusOK, `{"email":"a@example.com"}`)

		_, err := resolver.NewUserinfo(resolver.UserinfoConfig{URL: srv.URL}).
			Resolve(context.Background(), exchangeRequest())
		require.ErrorIs(t, err, resolver.ErrInvalidSubjectToken)
	})

	t.Run("times out", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		t.Cleanup(srv.Close)

		_, err := resolver.NewUserinfo(resolver.UserinfoConfig{URL: srv.URL, Timeout: 20 * time.Millisecond}).
			Resolve(context.Background(), exchangeRequest())
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestCachedResolver(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	next := resolver.Func(func(_ context.Context, req *domain.ExchangeRequest) (*domain.SessionClaims, error) {
		calls.Add(1)
		if req.SubjectToken == "bad" {
			return nil, resolver.ErrInvalidSubjectToken
		}
		return &domain.SessionClaims{Subject: "user-" + req.SubjectToken, AMR: []string{"pwd"}}, nil
	})

	cached := resolver.NewCached(next, time.Minute)
	ctx := context.Background()

	first, err := cached.Resolve(ctx, &domain.ExchangeRequest{SubjectToken: "a"})
	require.NoError(t, err)
	first.AMR[0] = "mutated"

	second, err := cached.Resolve(ctx, &domain.ExchangeRequest{SubjectToken: "a"})
	require.NoError(t, err)
	require.Equal(t, "user-a", second.Subject)
	require.Equal(t, []string{"pwd"}, second.AMR)
	require.EqualValues(t, 1, calls.Load())

	_, err = cached.Resolve(ctx, &domain.ExchangeRequest{SubjectToken: "b"})
	require.NoError(t, err)
	require.EqualValues(t, 2, calls.Load())

	for range 2 {
		_, err = cached.Resolve(ctx, &domain.ExchangeRequest{SubjectToken: "bad"})
		require.True(t, errors.Is(err, resolver.ErrInvalidSubjectToken))
	}
	require.EqualValues(t, 4, calls.Load())
	require.Equal(t, 2, cached.(*resolver.Cached).Len())
}

func TestCachedResolverDisabled(t *testing.T) {
	next := resolver.Func(func(context.Context, *domain.ExchangeRequest) (*domain.SessionClaims, error) {
		return &domain.SessionClaims{Subject: "x"}, nil
	})

	_, isCached := resolver.NewCached(next, 0).(*resolver.Cached)
	require.False(t, isCached)
}
