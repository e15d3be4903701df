package paypal

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/flexprice/recurring/internal/config"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/httpclient"
	"github.com/flexprice/recurring/internal/logger"
	"github.com/flexprice/recurring/internal/types"
)

// Adapter implements gateway.Adapter for PayPal billing agreements
type Adapter struct {
	cfg    config.PayPalConfig
	http   httpclient.Client
	logger *logger.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewAdapter(cfg config.PayPalConfig, client httpclient.Client, log *logger.Logger) (*Adapter, error) {
	if cfg.BaseURL == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ierr.NewError("paypal credentials are incomplete").
			WithHint("Set gateway.paypal.base_url, client_id and client_secret to enable PayPal").
			Mark(ierr.ErrValidation)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Adapter{cfg: cfg, http: client, logger: log}, nil
}

func (a *Adapter) Gateway() types.GatewayType {
	return types.GatewayTypePayPal
}

func (a *Adapter) SupportsRetry() bool {
	return true
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// token returns a cached OAuth access token, refreshing it a minute before expiry
func (a *Adapter) token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.accessToken != "" && time.Now().Before(a.tokenExpiry) {
		return a.accessToken, nil
	}

	resp, err := a.http.Send(ctx, &httpclient.Request{
		Method: http.MethodPost,
		URL:    a.cfg.BaseURL + "/v1/oauth2/token",
		Headers: map[string]string{
			"Authorization": "Basic " + basicAuth(a.cfg.ClientID, a.cfg.ClientSecret),
			"Accept":        "application/json",
		},
		Body: []byte("grant_type=client_credentials"),
		Form: true,
	})
	if err != nil {
		return "", gatewayError(err, "oauth_token", "")
	}

	var tok tokenResponse
	if err := json.Unmarshal(resp.Body, &tok); err != nil || tok.AccessToken == "" {
		return "", ierr.NewError("paypal token response is invalid").
			WithHint("PayPal authentication failed").
			Mark(ierr.ErrGateway)
	}

	a.accessToken = tok.AccessToken
	a.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return a.accessToken, nil
}

// call issues an authenticated JSON request against the PayPal REST API
func (a *Adapter) call(ctx context.Context, method, path string, body any) (*httpclient.Response, error) {
	return a.callWithHeaders(ctx, method, path, body, nil)
}

func (a *Adapter) callWithHeaders(ctx context.Context, method, path string, body any, extra map[string]string) (*httpclient.Response, error) {
	tok, err := a.token(ctx)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to encode PayPal request").
				Mark(ierr.ErrSystem)
		}
	}

	headers := map[string]string{
		"Authorization": "Bearer " + tok,
		"Accept":        "application/json",
	}
	for k, v := range extra {
		headers[k] = v
	}

	return a.http.Send(ctx, &httpclient.Request{
		Method:  method,
		URL:     a.cfg.BaseURL + path,
		Headers: headers,
		Body:    payload,
	})
}

// gatewayError maps a PayPal API failure onto ErrGateway, keeping the remote status
func gatewayError(err error, op string, resourceID string) error {
	details := map[string]any{
		"operation":   op,
		"resource_id": resourceID,
	}
	if httpErr, ok := httpclient.IsHTTPError(err); ok {
		details["http_status"] = httpErr.StatusCode
		var apiErr struct {
			Name    string `json:"name"`
			Message string `json:"message"`
		}
		if json.Unmarshal(httpErr.Response, &apiErr) == nil && apiErr.Name != "" {
			details["paypal_error"] = apiErr.Name
		}
	}

	return ierr.WithError(err).
		WithHint("PayPal request failed").
		WithReportableDetails(details).
		Mark(ierr.ErrGateway)
}
