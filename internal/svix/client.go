package svix

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/flexprice/recurring/internal/config"
	ierr "github.com/flexprice/recurring/internal/errors"
	svix "github.com/svix/svix-webhooks/go"
	"github.com/svix/svix-webhooks/go/models"
)

// Client delivers lifecycle events through Svix, one application per tenant environment
type Client struct {
	client  *svix.Svix
	baseURL string
	enabled bool
}

// NewClient returns a disabled client when Svix is not configured
func NewClient(cfg *config.Configuration) (*Client, error) {
	if !cfg.Webhook.Svix.Enabled {
		return &Client{enabled: false}, nil
	}

	serverURL, err := url.Parse(cfg.Webhook.Svix.BaseURL)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("Invalid Svix base URL %s", cfg.Webhook.Svix.BaseURL).
			Mark(ierr.ErrValidation)
	}

	svixClient, err := svix.New(cfg.Webhook.Svix.AuthToken, &svix.SvixOptions{
		ServerUrl: serverURL,
	})
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to create Svix client").
			Mark(ierr.ErrSystem)
	}

	return &Client{
		client:  svixClient,
		baseURL: cfg.Webhook.Svix.BaseURL,
		enabled: true,
	}, nil
}

func (c *Client) Enabled() bool {
	return c.enabled && c.client != nil
}

// ApplicationID is the uid of the Svix application owning a tenant environment
func ApplicationID(tenantID, environmentID string) string {
	return fmt.Sprintf("%s_%s", tenantID, environmentID)
}

// GetOrCreateApplication returns the application uid, creating the application on first use
func (c *Client) GetOrCreateApplication(ctx context.Context, tenantID, environmentID string) (string, error) {
	if !c.Enabled() {
		return "", nil
	}

	appID := ApplicationID(tenantID, environmentID)
	if _, err := c.client.Application.Get(ctx, appID); err == nil {
		return appID, nil
	}

	app, err := c.client.Application.Create(ctx, models.ApplicationIn{
		Name: appID,
		Uid:  &appID,
	}, &svix.ApplicationCreateOptions{})
	if err != nil {
		return "", ierr.WithError(err).
			WithHintf("Failed to create Svix application for tenant %s", tenantID).
			Mark(ierr.ErrHTTPClient)
	}

	return app.Id, nil
}

// SendMessage posts payload as a message of eventName to the application
func (c *Client) SendMessage(ctx context.Context, applicationID string, eventName string, payload json.RawMessage) error {
	if !c.Enabled() {
		return nil
	}

	var body map[string]interface{}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ierr.WithError(err).
			WithHint("Webhook payload must be a JSON object").
			Mark(ierr.ErrValidation)
	}

	_, err := c.client.Message.Create(ctx, applicationID, models.MessageIn{
		EventType: eventName,
		Payload:   body,
	}, &svix.MessageCreateOptions{})
	if err != nil {
		// applications removed from the Svix dashboard stop receiving events
		if strings.Contains(err.Error(), "not found") {
			return nil
		}
		return ierr.WithError(err).
			WithHintf("Failed to send %s through Svix", eventName).
			Mark(ierr.ErrHTTPClient)
	}

	return nil
}
