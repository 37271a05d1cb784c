package apiclient_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/socialpulse-lab/socialpulse/pkg/domain/types"
	"github.com/socialpulse-lab/socialpulse/pkg/service/apiclient"
	"github.com/socialpulse-lab/socialpulse/pkg/service/ratelimit"
)

func newTestClient(opts ...apiclient.Option) *apiclient.Client {
	base := []apiclient.Option{
		apiclient.WithBackoffBase(time.Millisecond),
	}
	return apiclient.New(ratelimit.New(), append(base, opts...)...)
}

func TestDoDecodesSuccessResponse(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"name": "insight-account"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	client := newTestClient()

	var out struct {
		Name string `json:"name"`
	}
	err := client.Do(context.Background(), types.PlatformMeta, &apiclient.Request{
		URL:         srv.URL,
		BearerToken: "tok-123",
	}, "profile", &out)
	gt.NoError(t, err).Required()
	gt.Value(t, out.Name).Equal("insight-account")
	gt.Value(t, gotAuth).Equal("Bearer tok-123")
}

func TestDoMapsAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := newTestClient()
	err := client.Do(context.Background(), types.PlatformMeta, &apiclient.Request{URL: srv.URL}, "profile", nil)
	gt.Error(t, err)
	gt.Bool(t, errors.Is(err, types.ErrAuth)).True()
}

func TestDoDoesNotRetryAuthFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := newTestClient()
	err := client.Do(context.Background(), types.PlatformMeta, &apiclient.Request{URL: srv.URL}, "profile", nil)
	gt.Error(t, err)
	gt.Value(t, calls.Load()).Equal(int32(1))
}

func TestDoMapsClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := newTestClient()
	err := client.Do(context.Background(), types.PlatformTikTok, &apiclient.Request{URL: srv.URL}, "videos", nil)
	gt.Error(t, err)
	gt.Bool(t, errors.Is(err, types.ErrRequest)).True()
}

func TestDoRetriesServerErrorThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{}`)) //nolint:errcheck
	}))
	defer srv.Close()

	client := newTestClient()
	err := client.Do(context.Background(), types.PlatformYouTube, &apiclient.Request{URL: srv.URL}, "channel", nil)
	gt.NoError(t, err)
	gt.Value(t, calls.Load()).Equal(int32(3))
}

func TestDoRetriesWithTinyBackoffBase(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{}`)) //nolint:errcheck
	}))
	defer srv.Close()

	// A base of 1ns has no room for jitter; the retry path must still work.
	client := newTestClient(apiclient.WithBackoffBase(time.Nanosecond))
	err := client.Do(context.Background(), types.PlatformMeta, &apiclient.Request{URL: srv.URL}, "profile", nil)
	gt.NoError(t, err)
	gt.Value(t, calls.Load()).Equal(int32(2))
}

func TestDoExhaustedRetriesReturnTransient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := newTestClient(apiclient.WithMaxAttempts(2))
	err := client.Do(context.Background(), types.PlatformTwitter, &apiclient.Request{URL: srv.URL}, "tweets", nil)
	gt.Error(t, err)
	gt.Bool(t, errors.Is(err, types.ErrTransient)).True()
	gt.Value(t, calls.Load()).Equal(int32(2))
}

func TestDoEnforcesLocalRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{}`)) //nolint:errcheck
	}))
	defer srv.Close()

	client := newTestClient(apiclient.WithLimit(types.PlatformMeta, ratelimit.Config{
		Max:    2,
		Window: time.Minute,
		Block:  time.Minute,
	}))

	req := &apiclient.Request{URL: srv.URL}
	gt.NoError(t, client.Do(context.Background(), types.PlatformMeta, req, "profile", nil))
	gt.NoError(t, client.Do(context.Background(), types.PlatformMeta, req, "profile", nil))

	err := client.Do(context.Background(), types.PlatformMeta, req, "profile", nil)
	gt.Error(t, err)
	gt.Bool(t, errors.Is(err, types.ErrRateLimited)).True()
	gt.Value(t, calls.Load()).Equal(int32(2))

	// Operations rate limit independently
	gt.NoError(t, client.Do(context.Background(), types.PlatformMeta, req, "media", nil))
}

func TestDoSendsFormBody(t *testing.T) {
	var gotContentType, gotGrant string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gt.NoError(t, r.ParseForm())
		gotGrant = r.PostForm.Get("grant_type")
		w.Write([]byte(`{}`)) //nolint:errcheck
	}))
	defer srv.Close()

	client := newTestClient()
	form := url.Values{"grant_type": {"refresh_token"}}
	err := client.Do(context.Background(), types.PlatformLinkedIn, &apiclient.Request{
		Method: "POST",
		URL:    srv.URL,
		Form:   form,
	}, "token_refresh", nil)
	gt.NoError(t, err)
	gt.Value(t, gotContentType).Equal("application/x-www-form-urlencoded")
	gt.Value(t, gotGrant).Equal("refresh_token")
}
