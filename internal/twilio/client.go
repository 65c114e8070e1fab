// Package twilio is the delivery gateway: it wraps the provider's REST API
// behind a small client that always returns a plain result or a single error.
// Provider-side failures of every kind (rejection, rate limit, auth, network,
// timeout) come back as one error class; callers decide what a failure means.
package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/smschat/server/internal/config"
)

// DefaultBaseURL is the production Twilio API endpoint.
const DefaultBaseURL = "https://api.twilio.com"

// requestTimeout bounds every provider call. Expiry is reported as a normal
// send failure, not a distinct error class.
const requestTimeout = 10 * time.Second

// Client issues send and status-fetch calls against the Twilio REST API.
type Client struct {
	accountSID        string
	authToken         string
	fromNumber        string
	statusCallbackURL string
	baseURL           string
	client            *http.Client
}

// NewClient creates a gateway client from resolved provider configuration.
func NewClient(cfg config.TwilioConfig) *Client {
	return &Client{
		accountSID:        cfg.AccountSID,
		authToken:         cfg.AuthToken,
		fromNumber:        cfg.FromNumber,
		statusCallbackURL: cfg.StatusCallbackURL,
		baseURL:           DefaultBaseURL,
		client: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// WithBaseURL points the client at a different API host. Used by tests.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// messageResource is the subset of Twilio's message resource the gateway reads.
type messageResource struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorMessage string `json:"message"`
}

// Send submits an outbound SMS. The status callback address is attached so the
// provider can report delivery transitions to the webhook receiver. On success
// it returns the provider-assigned sid and the provider's initial status token.
func (c *Client) Send(ctx context.Context, to, body string) (sid string, status string, err error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.fromNumber)
	form.Set("Body", body)
	if c.statusCallbackURL != "" {
		form.Set("StatusCallback", c.statusCallbackURL)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", "", fmt.Errorf("failed to build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resource, err := c.do(req)
	if err != nil {
		return "", "", err
	}
	if resource.SID == "" {
		return "", "", fmt.Errorf("provider response missing sid")
	}
	return resource.SID, resource.Status, nil
}

// FetchStatus queries the provider for the current status of an accepted message.
func (c *Client) FetchStatus(ctx context.Context, sid string) (string, error) {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages/%s.json", c.baseURL, c.accountSID, sid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build status request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)

	resource, err := c.do(req)
	if err != nil {
		return "", err
	}
	return resource.Status, nil
}

func (c *Client) do(req *http.Request) (messageResource, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return messageResource{}, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var resource messageResource
		if json.Unmarshal(data, &resource) == nil && resource.ErrorMessage != "" {
			return messageResource{}, fmt.Errorf("provider rejected request: status=%d %s", resp.StatusCode, resource.ErrorMessage)
		}
		return messageResource{}, fmt.Errorf("provider rejected request: status=%d body=%q", resp.StatusCode, string(data))
	}

	var resource messageResource
	if err := json.Unmarshal(data, &resource); err != nil {
		return messageResource{}, fmt.Errorf("failed to decode provider response: %w body=%q", err, string(data))
	}
	return resource, nil
}
