// Package identity предоставляет клиент внешнего провайдера идентификации.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/mmeshcher/dealerhub-system/internal/model"
)

// Client инкапсулирует HTTP-взаимодействие с провайдером идентификации.
type Client struct {
	baseURL    string
	httpClient *retryablehttp.Client
}

type createIdentityRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createIdentityResponse struct {
	ID string `json:"id"`
}

// NewClient создаёт клиент провайдера идентификации по указанному адресу.
func NewClient(baseURL string) *Client {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 2
	httpClient.RetryWaitMin = 200 * time.Millisecond
	httpClient.RetryWaitMax = 2 * time.Second
	httpClient.HTTPClient.Timeout = 5 * time.Second
	httpClient.Logger = nil

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (c *Client) endpoint(path string) string {
	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return base + path
}

// CreateIdentity регистрирует новую личность и возвращает её идентификатор.
func (c *Client) CreateIdentity(ctx context.Context, email, password string) (string, error) {
	if c == nil || c.baseURL == "" {
		return "", fmt.Errorf("%w: identity client not configured", model.ErrIdentity)
	}

	body, err := json.Marshal(createIdentityRequest{Email: email, Password: password})
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", model.ErrIdentity, err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/api/identities"), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", model.ErrIdentity, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: do request: %v", model.ErrIdentity, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("%w: unexpected status %d", model.ErrIdentity, resp.StatusCode)
	}

	var result createIdentityResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", model.ErrIdentity, err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("%w: empty identity id in response", model.ErrIdentity)
	}

	return result.ID, nil
}

// DeleteIdentity удаляет личность по идентификатору.
func (c *Client) DeleteIdentity(ctx context.Context, id string) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("%w: identity client not configured", model.ErrIdentity)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodDelete, c.endpoint("/api/identities/"+id), nil)
	if err != nil {
		return fmt.Errorf("%w: create request: %v", model.ErrIdentity, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: do request: %v", model.ErrIdentity, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("%w: unexpected status %d", model.ErrIdentity, resp.StatusCode)
	}

	return nil
}
