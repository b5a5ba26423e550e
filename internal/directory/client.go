package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/locallink-app/locallink/backend/internal/fault"
	"go.uber.org/zap"
)

const patchOpSchema = "urn:ietf:params:scim:api:messages:2.0:PatchOp"

var (
	errMissingBaseURL = errors.New("directory: base url required")
	errMissingOrg     = errors.New("directory: organization name required")
	// ErrInvalidClientConfig wraps constructor validation failures.
	ErrInvalidClientConfig = errors.New("directory: invalid client config")
)

// ClientConfig bundles configuration required to instantiate a Client.
type ClientConfig struct {
	// BaseURL is the identity provider host, e.g. https://api.eu.asgardeo.io.
	BaseURL string
	// Org is the tenant the SCIM2 endpoints are scoped to.
	Org        string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client reads and patches user data in the external identity directory over
// its SCIM2 protocol. Every call passes the caller's bearer token through
// verbatim; the client holds no credentials of its own.
type Client struct {
	baseURL    string
	org        string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient constructs a directory client with validated configuration.
func NewClient(cfg ClientConfig) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClientConfig, errMissingBaseURL)
	}
	org := strings.TrimSpace(cfg.Org)
	if org == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClientConfig, errMissingOrg)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:    baseURL,
		org:        org,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// ProfileUpdate carries the profile fields a caller may replace.
type ProfileUpdate struct {
	GivenName   string
	FamilyName  string
	Email       string
	PhoneNumber string
}

// Me fetches the caller's own profile and returns the upstream body untouched.
func (c *Client) Me(ctx context.Context, bearerToken string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, c.endpoint("Me"), bearerToken, nil, "Failed to fetch profile")
}

// UpdateMe replaces the caller's profile fields through a SCIM PatchOp and
// returns the upstream body untouched.
func (c *Client) UpdateMe(ctx context.Context, bearerToken string, update ProfileUpdate) (json.RawMessage, error) {
	body := map[string]any{
		"schemas": []string{patchOpSchema},
		"Operations": []map[string]any{
			{
				"op": "replace",
				"value": map[string]any{
					"name": map[string]string{
						"givenName":  update.GivenName,
						"familyName": update.FamilyName,
					},
					"emails": []map[string]any{
						{"value": update.Email, "type": "home", "primary": true},
					},
					"phoneNumbers": []map[string]any{
						{"value": update.PhoneNumber, "type": "mobile"},
					},
				},
			},
		},
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fault.Upstream("Failed to update profile", 0, nil, err)
	}
	return c.do(ctx, http.MethodPatch, c.endpoint("Me"), bearerToken, encoded, "Failed to update profile")
}

// ListUsers fetches the tenant's full user listing.
func (c *Client) ListUsers(ctx context.Context, bearerToken string) ([]User, error) {
	raw, err := c.do(ctx, http.MethodGet, c.endpoint("Users"), bearerToken, nil, "Failed to fetch directory users")
	if err != nil {
		return nil, err
	}

	var listing struct {
		TotalResults int    `json:"totalResults"`
		Resources    []User `json:"Resources"`
	}
	if err := json.Unmarshal(raw, &listing); err != nil {
		c.logger.Error("directory listing decode failed", zap.Error(err))
		return nil, fault.Upstream("Failed to fetch directory users", 0, nil, err)
	}
	return listing.Resources, nil
}

func (c *Client) endpoint(resource string) string {
	return fmt.Sprintf("%s/t/%s/scim2/%s", c.baseURL, c.org, resource)
}

func (c *Client) do(ctx context.Context, method, url, bearerToken string, body []byte, failureMessage string) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	request, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fault.Upstream(failureMessage, 0, nil, err)
	}
	request.Header.Set("Authorization", "Bearer "+bearerToken)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		c.logger.Error("directory request failed",
			zap.String("method", method),
			zap.String("url", url),
			zap.Error(err))
		return nil, fault.Upstream(failureMessage, 0, nil, err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fault.Upstream(failureMessage, 0, nil, err)
	}

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		// Full detail stays server-side; callers only see status and body.
		c.logger.Warn("directory returned error",
			zap.String("method", method),
			zap.String("url", url),
			zap.Int("status", response.StatusCode),
			zap.ByteString("body", responseBody))
		return nil, fault.Upstream(failureMessage, response.StatusCode, responseBody, nil)
	}

	return json.RawMessage(responseBody), nil
}
