package provider_test

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

	"github.com/ricirt/chatpulse/internal/domain"
	"github.com/ricirt/chatpulse/internal/provider"
)

func pushMessage() *domain.PushMessage {
	return &domain.PushMessage{
		Token: "tok-a",
		Title: "Alice",
		Body:  "hello",
		Data:  map[string]string{"type": "chat", "chatId": "alice_bob"},
		Hints: domain.DeliveryHints{
			Priority:       domain.PriorityHigh,
			AndroidChannel: "high_importance_channel",
			Sound:          "default",
			BadgeIncrement: 1,
		},
	}
}

func TestWebhookProvider_Accepted(t *testing.T) {
	var got provider.SendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"messageId":"m-1","status":"accepted"}`))
	}))
	defer srv.Close()

	p := provider.NewWebhookProvider(srv.URL, time.Second)
	resp, err := p.Send(context.Background(), pushMessage())
	require.NoError(t, err)

	assert.Equal(t, "m-1", resp.MessageID)
	assert.Equal(t, "tok-a", got.Token)
	assert.Equal(t, "high", got.Priority)
	assert.Equal(t, "high_importance_channel", got.AndroidChannel)
	assert.Equal(t, 1, got.Badge)
	assert.Equal(t, "chat", got.Data["type"])
}

func TestWebhookProvider_AcceptedWithUnreadableBody(t *testing.T) {
	for name, body := range map[string]string{"empty": "", "not json": "OK"} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			resp, err := provider.NewWebhookProvider(srv.URL, time.Second).Send(context.Background(), pushMessage())
			require.NoError(t, err)
			require.NotNil(t, resp)
			assert.Empty(t, resp.MessageID)
		})
	}
}

func TestWebhookProvider_RejectionWithCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"unregistered","message":"token not registered"}`))
	}))
	defer srv.Close()

	_, err := provider.NewWebhookProvider(srv.URL, time.Second).Send(context.Background(), pushMessage())
	te, ok := domain.AsTransportError(err)
	require.True(t, ok, "expected transport error, got %v", err)
	assert.Equal(t, domain.CodeUnregistered, te.Code)
	assert.True(t, te.IsInvalidToken())
}

func TestWebhookProvider_GoneWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	_, err := provider.NewWebhookProvider(srv.URL, time.Second).Send(context.Background(), pushMessage())
	te, ok := domain.AsTransportError(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeUnregistered, te.Code)
}

func TestWebhookProvider_OtherRejectionKeepsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := provider.NewWebhookProvider(srv.URL, time.Second).Send(context.Background(), pushMessage())
	te, ok := domain.AsTransportError(err)
	require.True(t, ok)
	assert.Equal(t, "http-403", te.Code)
	assert.False(t, te.IsInvalidToken())
}

func TestWebhookProvider_Unavailable(t *testing.T) {
	for _, status := range []int{http.StatusInternalServerError, http.StatusServiceUnavailable, http.StatusTooManyRequests} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(status)
			}))
			defer srv.Close()

			_, err := provider.NewWebhookProvider(srv.URL, time.Second).Send(context.Background(), pushMessage())
			assert.True(t, errors.Is(err, domain.ErrTransportUnavailable), "got %v", err)
			_, isTE := domain.AsTransportError(err)
			assert.False(t, isTE)
		})
	}
}

func TestWebhookProvider_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	_, err := provider.NewWebhookProvider(srv.URL, 20*time.Millisecond).Send(context.Background(), pushMessage())
	assert.True(t, errors.Is(err, domain.ErrTransportUnavailable), "got %v", err)
}
