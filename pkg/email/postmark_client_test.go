package email_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/drip/pkg/email"
)

func validConfig() email.Config {
	return email.Config{
		PostmarkServerToken:  "server-token",
		PostmarkAccountToken: "account-token",
		SenderEmail:          "sender@example.com",
		SupportEmail:         "support@example.com",
	}
}

func TestNewPostmarkClient_InvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*email.Config)
		errMsg string
	}{
		{"empty server token", func(c *email.Config) { c.PostmarkServerToken = "" }, "PostmarkServerToken is required"},
		{"empty account token", func(c *email.Config) { c.PostmarkAccountToken = "" }, "PostmarkAccountToken is required"},
		{"invalid sender", func(c *email.Config) { c.SenderEmail = "sender" }, "SenderEmail"},
		{"invalid support", func(c *email.Config) { c.SupportEmail = "" }, "SupportEmail"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.modify(&cfg)

			client, err := email.NewPostmarkClient(cfg)
			assert.Nil(t, client)
			assert.ErrorIs(t, err, email.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestPostmarkClient_SendEmail(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		received map[string]any
		token    string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		token = r.Header.Get("X-Postmark-Server-Token")
		received = map[string]any{}
		_ = json.NewDecoder(r.Body).Decode(&received)

		w.Header().Set("Content-Type", "application/json")
		if received["To"] == "bounce@example.com" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"ErrorCode":406,"Message":"Inactive recipient"}`))
			return
		}
		_, _ = w.Write([]byte(`{"To":"alice@example.com","MessageID":"abc","ErrorCode":0,"Message":"OK"}`))
	}))
	t.Cleanup(srv.Close)

	client, err := email.NewPostmarkClient(validConfig(), email.WithPostmarkBaseURL(srv.URL), email.WithPostmarkHTTPClient(srv.Client()))
	require.NoError(t, err)

	err = client.SendEmail(context.Background(), email.SendEmailParams{
		SendTo:   "alice@example.com",
		Subject:  "Your video",
		BodyHTML: "<p>video</p>",
		Tag:      "video_reminder",
	})
	require.NoError(t, err)

	mu.Lock()
	assert.Equal(t, "server-token", token)
	assert.Equal(t, "sender@example.com", received["From"])
	assert.Equal(t, "support@example.com", received["ReplyTo"])
	assert.Equal(t, "video_reminder", received["Tag"])
	assert.Equal(t, "<p>video</p>", received["HtmlBody"])
	mu.Unlock()

	err = client.SendEmail(context.Background(), email.SendEmailParams{
		SendTo:   "bounce@example.com",
		Subject:  "Your video",
		BodyHTML: "<p>video</p>",
	})
	assert.ErrorIs(t, err, email.ErrFailedToSendEmail)

	err = client.SendEmail(context.Background(), email.SendEmailParams{SendTo: "alice@example.com"})
	assert.ErrorIs(t, err, email.ErrInvalidParams)
}
