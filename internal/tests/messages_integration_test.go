package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessage_ProviderAccepts(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "alice", "secret-password")

	status, body := s.postJSON(t, "/messages", token, map[string]any{
		"message": map[string]string{
			"phone_number": "+18777804236",
			"message_body": "Hello from integration test!",
		},
	})
	require.Equal(t, http.StatusCreated, status, "create response: %s", body)

	var created messageJSON
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "sending", created.Status, "queued maps to sending")
	assert.Equal(t, "SM1", created.TwilioSID)
	assert.Equal(t, "outbound", created.Direction)

	// Stored record matches.
	var storedStatus, storedSID string
	err := s.DB.QueryRowContext(context.Background(),
		"SELECT status, twilio_sid FROM messages WHERE id = $1", created.ID,
	).Scan(&storedStatus, &storedSID)
	require.NoError(t, err)
	assert.Equal(t, "sending", storedStatus)
	assert.Equal(t, "SM1", storedSID)
}

func TestSendMessage_ProviderFailure(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "alice", "secret-password")
	s.Twilio.failSends(true)

	status, body := s.postJSON(t, "/messages", token, map[string]any{
		"message": map[string]string{
			"phone_number": "+18777804236",
			"message_body": "this will not go out",
		},
	})
	require.Equal(t, http.StatusUnprocessableEntity, status, "create response: %s", body)
	assert.Contains(t, string(body), "message could not be sent")

	// Record retained with status failed and no provider id.
	var storedStatus string
	var storedSID *string
	err := s.DB.QueryRowContext(context.Background(),
		"SELECT status, twilio_sid FROM messages WHERE owner = 'alice'",
	).Scan(&storedStatus, &storedSID)
	require.NoError(t, err)
	assert.Equal(t, "failed", storedStatus)
	assert.Nil(t, storedSID)
}

func TestSendMessage_ValidationError(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "alice", "secret-password")

	status, body := s.postJSON(t, "/messages", token, map[string]any{
		"message": map[string]string{
			"phone_number": "0123456789",
			"message_body": "leading zero phone",
		},
	})
	require.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, string(body), "phone_number")

	var count int
	require.NoError(t, s.DB.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM messages").Scan(&count))
	assert.Zero(t, count, "no store write on validation failure")
}

func TestWebhook_UpdatesStatusAndIsIdempotent(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "alice", "secret-password")

	status, body := s.postJSON(t, "/messages", token, map[string]any{
		"message": map[string]string{
			"phone_number": "+18777804236",
			"message_body": "webhook target",
		},
	})
	require.Equal(t, http.StatusCreated, status, "create response: %s", body)

	form := url.Values{}
	form.Set("MessageSid", "SM1")
	form.Set("MessageStatus", "delivered")

	status, body = s.postForm(t, "/webhooks/twilio/status", form)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"success"}`, string(body))

	var storedStatus string
	require.NoError(t, s.DB.QueryRowContext(context.Background(),
		"SELECT status FROM messages WHERE twilio_sid = 'SM1'").Scan(&storedStatus))
	assert.Equal(t, "delivered", storedStatus)

	// Repeat delivery of the same callback: unchanged, still success.
	status, body = s.postForm(t, "/webhooks/twilio/status", form)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"success"}`, string(body))

	require.NoError(t, s.DB.QueryRowContext(context.Background(),
		"SELECT status FROM messages WHERE twilio_sid = 'SM1'").Scan(&storedStatus))
	assert.Equal(t, "delivered", storedStatus)
}

func TestWebhook_UnknownSID(t *testing.T) {
	s := newTestServer(t)

	form := url.Values{}
	form.Set("MessageSid", "SM999")
	form.Set("MessageStatus", "delivered")

	status, body := s.postForm(t, "/webhooks/twilio/status", form)
	require.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, string(body), "Message not found")
}

func TestWebhook_IncompletePayload(t *testing.T) {
	s := newTestServer(t)

	form := url.Values{}
	form.Set("MessageSid", "SM1")

	status, body := s.postForm(t, "/webhooks/twilio/status", form)
	require.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(body), "Invalid payload")
}

func TestCheckStatusUpdates_AppliesProviderChanges(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "alice", "secret-password")

	status, _ := s.postJSON(t, "/messages", token, map[string]any{
		"message": map[string]string{
			"phone_number": "+18777804236",
			"message_body": "poll target",
		},
	})
	require.Equal(t, http.StatusCreated, status)

	s.Twilio.setStatus("SM1", "delivered")

	status, body := s.get(t, "/messages/check_status_updates", token)
	require.Equal(t, http.StatusOK, status)

	var resp struct {
		Messages     []messageJSON `json:"messages"`
		UpdatesCount int           `json:"updates_count"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, 1, resp.UpdatesCount)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "delivered", resp.Messages[0].Status)
}

func TestCheckStatusUpdates_NothingEligible(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "alice", "secret-password")

	status, body := s.get(t, "/messages/check_status_updates", token)
	require.Equal(t, http.StatusOK, status)

	var resp struct {
		Messages     []messageJSON `json:"messages"`
		UpdatesCount int           `json:"updates_count"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Zero(t, resp.UpdatesCount)
	assert.Empty(t, resp.Messages)
}

func TestMessages_OwnershipIsolation(t *testing.T) {
	s := newTestServer(t)
	aliceToken := s.register(t, "alice", "secret-password")
	bobToken := s.register(t, "bob", "another-password")

	status, _ := s.postJSON(t, "/messages", aliceToken, map[string]any{
		"message": map[string]string{
			"phone_number": "+18777804236",
			"message_body": "for alice only",
		},
	})
	require.Equal(t, http.StatusCreated, status)

	var aliceMessages, bobMessages []messageJSON

	status, body := s.get(t, "/messages", aliceToken)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &aliceMessages))
	assert.Len(t, aliceMessages, 1)

	status, body = s.get(t, "/messages", bobToken)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &bobMessages))
	assert.Empty(t, bobMessages, "bob must not see alice's messages")
}

func TestMessages_NewestFirst(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "alice", "secret-password")

	for _, text := range []string{"first", "second", "third"} {
		status, _ := s.postJSON(t, "/messages", token, map[string]any{
			"message": map[string]string{
				"phone_number": "+18777804236",
				"message_body": text,
			},
		})
		require.Equal(t, http.StatusCreated, status)
	}

	status, body := s.get(t, "/messages", token)
	require.Equal(t, http.StatusOK, status)

	var messages []messageJSON
	require.NoError(t, json.Unmarshal(body, &messages))
	require.Len(t, messages, 3)
	assert.Equal(t, "third", messages[0].MessageBody)
	assert.Equal(t, "first", messages[2].MessageBody)
}

func TestMessages_RequireAuth(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.get(t, "/messages", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.postJSON(t, "/messages", "", map[string]any{})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.get(t, "/messages/check_status_updates", "")
	assert.Equal(t, http.StatusUnauthorized, status)
}
