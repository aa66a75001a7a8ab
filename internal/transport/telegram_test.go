package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNotifier(url string) *TelegramNotifier {
	return &TelegramNotifier{
		baseURL: url,
		chatID:  "42",
		client:  &http.Client{Timeout: time.Second},
	}
}

func TestSendAlert(t *testing.T) {
	var got sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := newTestNotifier(srv.URL)
	require.NoError(t, n.SendAlert(context.Background(), "<b>hello</b>"))

	assert.Equal(t, "42", got.ChatID)
	assert.Equal(t, "<b>hello</b>", got.Text)
	assert.Equal(t, "HTML", got.ParseMode)
	assert.True(t, got.DisableWebPagePreview)
}

func TestSendAlertErrorKinds(t *testing.T) {
	status := http.StatusBadRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	n := newTestNotifier(srv.URL)

	// 400: broken request, do not retry
	err := n.SendAlert(context.Background(), "x")
	require.Error(t, err)
	assert.False(t, IsTransient(err))

	// 429: rate limited, retryable
	status = http.StatusTooManyRequests
	err = n.SendAlert(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, IsTransient(err))

	// 503: server trouble, retryable
	status = http.StatusServiceUnavailable
	err = n.SendAlert(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestSendAlertConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	n := newTestNotifier(srv.URL)
	err := n.SendAlert(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestErrorTaxonomy(t *testing.T) {
	base := errors.New("boom")

	assert.True(t, IsTransient(Transient("op", base)))
	assert.False(t, IsTransient(Permanent("op", base)))

	// Untagged errors are assumed retryable.
	assert.True(t, IsTransient(base))

	// Wrapped tagged errors keep their kind.
	wrapped := Permanent("op", base)
	assert.ErrorIs(t, wrapped, base)

	var te *Error
	require.True(t, errors.As(wrapped, &te))
	assert.Equal(t, KindPermanent, te.Kind)
	assert.Equal(t, "op", te.Op)
}
