// Package api provides the single gateway client for backend communication.
// Every page controller goes through it: the client attaches the bearer
// token, classifies failures into typed errors, and delegates unauthorized
// responses to the session controller's refresh path exactly once.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Sachin-dot-py/Grocify/internal/domain/inventory"
	"github.com/Sachin-dot-py/Grocify/internal/domain/recipe"
	"github.com/Sachin-dot-py/Grocify/internal/infrastructure/config"
	apperrors "github.com/Sachin-dot-py/Grocify/pkg/errors"
)

// Credentials supplies the bearer token for a call and the refresh path
// taken on an unauthorized response. The session controller implements it;
// the client never inspects tokens beyond attaching them.
type Credentials interface {
	// Token returns the current access token, empty when unauthenticated.
	Token() string
	// Refresh attempts to mint a new access token. Implementations must
	// persist the new token before returning it.
	Refresh(ctx context.Context) (string, error)
}

type staticToken string

func (s staticToken) Token() string { return string(s) }

func (s staticToken) Refresh(context.Context) (string, error) {
	return "", apperrors.NewUnauthorizedError("session expired")
}

// StaticToken wraps a raw token as non-refreshable credentials.
func StaticToken(token string) Credentials {
	return staticToken(token)
}

// Client handles communication with the backend API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new gateway client from configuration.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.API.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.API.Timeout,
		},
		logger: logger,
	}
}

// Authentication

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	body := map[string]string{"username": username, "password": password}
	var pair TokenPair
	if err := c.do(ctx, http.MethodPost, "/api/login", nil, body, &pair); err != nil {
		return nil, err
	}
	return &pair, nil
}

// Register creates a new account. It does not log the user in.
func (c *Client) Register(ctx context.Context, username, password string) error {
	body := map[string]string{"username": username, "password": password}
	return c.do(ctx, http.MethodPost, "/api/register", nil, body, nil)
}

// RefreshAccessToken mints a new access token using the refresh token as
// bearer. Callers persist the returned token before retrying anything.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	// Deliberately no Credentials here: a 401 on refresh is terminal.
	err := c.doWithToken(ctx, http.MethodPost, "/api/refresh", refreshToken, nil, &resp)
	if err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}

// Logout invalidates the session server-side.
func (c *Client) Logout(ctx context.Context, creds Credentials) error {
	return c.do(ctx, http.MethodPost, "/api/logout", creds, nil, nil)
}

// UserInfo fetches the authenticated user's profile. It doubles as the
// identity lookup that promotes a stored token to an authenticated session.
func (c *Client) UserInfo(ctx context.Context, creds Credentials) (*UserInfo, error) {
	var info UserInfo
	if err := c.do(ctx, http.MethodGet, "/api/user-info", creds, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// UpdateUserInfo persists the user's dietary restrictions.
func (c *Client) UpdateUserInfo(ctx context.Context, creds Credentials, dietary []string) error {
	body := map[string][]string{"dietary_restrictions": dietary}
	return c.do(ctx, http.MethodPut, "/api/user-info", creds, body, nil)
}

// Inventory

// Inventory fetches all items for the authenticated user. An empty slice is
// a valid result, distinct from an error.
func (c *Client) Inventory(ctx context.Context, creds Credentials) ([]inventory.Item, error) {
	var items []inventory.Item
	if err := c.do(ctx, http.MethodGet, "/api/inventory", creds, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// DeleteItem removes one inventory item.
func (c *Client) DeleteItem(ctx context.Context, creds Credentials, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/inventory/"+id, creds, nil, nil)
}

// UpdateItemQuantity persists a quantity change and returns the item as the
// backend now holds it.
func (c *Client) UpdateItemQuantity(ctx context.Context, creds Credentials, id string, quantity int) (*inventory.Item, error) {
	body := map[string]int{"quantity": quantity}
	var item inventory.Item
	if err := c.do(ctx, http.MethodPut, "/api/inventory/"+id, creds, body, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// AddItem submits a new item and returns the created entry.
func (c *Client) AddItem(ctx context.Context, creds Credentials, req AddItemRequest) (*inventory.Item, error) {
	var item inventory.Item
	if err := c.do(ctx, http.MethodPost, "/api/add-item", creds, req, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// Capture enrichment

// BarcodeLookup resolves a scanned code to a product identity. An unknown
// code surfaces as NOT_FOUND so the scan flow can stay in place for retry.
func (c *Client) BarcodeLookup(ctx context.Context, creds Credentials, code string) (*Product, error) {
	var product Product
	if err := c.do(ctx, http.MethodGet, "/api/barcode/"+code, creds, nil, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// ExtractInfo runs image recognition on a camera snapshot.
func (c *Client) ExtractInfo(ctx context.Context, creds Credentials, image string) (*Extraction, error) {
	body := map[string]string{"image": image}
	var ext Extraction
	if err := c.do(ctx, http.MethodPost, "/api/extract-info", creds, body, &ext); err != nil {
		return nil, err
	}
	return &ext, nil
}

// ItemInfo enriches a named item with an estimated expiry date and a
// dietary compatibility flag.
func (c *Client) ItemInfo(ctx context.Context, creds Credentials, itemName string) (*ItemInfo, error) {
	body := map[string]string{"item_name": itemName}
	var info ItemInfo
	if err := c.do(ctx, http.MethodPost, "/api/get-item-info", creds, body, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Recipes

// GenerateRecipe requests a recipe keyed on the given ingredient set.
func (c *Client) GenerateRecipe(ctx context.Context, creds Credentials, items []inventory.Item) (*recipe.Recipe, error) {
	body := map[string]interface{}{"ingredients": items}
	var r recipe.Recipe
	if err := c.do(ctx, http.MethodPost, "/api/generate-recipe", creds, body, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// GenerateCustomRecipe requests a recipe with dietary, cuisine and free-text
// constraints attached.
func (c *Client) GenerateCustomRecipe(ctx context.Context, creds Credentials, items []inventory.Item, constraints CustomRecipeConstraints) (*recipe.Recipe, error) {
	body := map[string]interface{}{
		"ingredients":          items,
		"dietary_restrictions": constraints.DietaryRestrictions,
		"cuisine":              constraints.Cuisine,
		"special_requests":     constraints.SpecialRequests,
	}
	var r recipe.Recipe
	if err := c.do(ctx, http.MethodPost, "/api/generate-custom-recipe", creds, body, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ChatRecipe sends the full transcript plus recipe context and returns the
// assistant's reply.
func (c *Client) ChatRecipe(ctx context.Context, creds Credentials, req ChatRequest) (*recipe.Message, error) {
	var msg recipe.Message
	if err := c.do(ctx, http.MethodPost, "/api/chat-recipe", creds, req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Health

// VerifyConnection checks whether the backend is reachable at all.
func (c *Client) VerifyConnection(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/inventory", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("Connection verification failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}

// Request plumbing

// do issues one request under the uniform call contract: bearer attachment,
// a single delegated refresh-and-retry on 401, and typed classification of
// the final failure.
func (c *Client) do(ctx context.Context, method, path string, creds Credentials, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return apperrors.Wrap(err, "failed to encode request")
		}
	}

	token := ""
	if creds != nil {
		token = creds.Token()
	}

	status, respBody, err := c.send(ctx, method, path, token, payload)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized && creds != nil {
		// Exactly one refresh attempt per failed call. The refreshed token
		// is persisted by the credentials before the retry goes out; a
		// refresh failure is terminal for this call.
		newToken, refreshErr := creds.Refresh(ctx)
		if refreshErr != nil {
			c.logger.Debug("Token refresh failed",
				zap.String("path", path),
				zap.Error(refreshErr),
			)
			return apperrors.NewUnauthorizedError("session expired")
		}
		status, respBody, err = c.send(ctx, method, path, newToken, payload)
		if err != nil {
			return err
		}
	}

	if status >= 400 {
		appErr := apperrors.FromStatusCode(status, errorDetail(respBody))
		c.logger.Error("API error response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
		)
		return appErr
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return apperrors.Wrap(err, "failed to decode response")
		}
	}
	return nil
}

// doWithToken issues a request with an explicit bearer token and no refresh
// delegation.
func (c *Client) doWithToken(ctx context.Context, method, path, token string, body, out interface{}) error {
	return c.do(ctx, method, path, staticToken(token), body, out)
}

// send performs a single HTTP exchange. Transport failures come back as
// NETWORK_ERROR; status classification is left to the caller so the 401
// refresh path can run first.
func (c *Client) send(ctx context.Context, method, path, token string, payload []byte) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, apperrors.Wrap(err, "failed to create request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.Debug("API request",
		zap.String("method", method),
		zap.String("path", path),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, apperrors.NewNetworkError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, apperrors.NewNetworkError(err)
	}
	return resp.StatusCode, respBody, nil
}

// errorDetail extracts the backend's error message when the body carries
// one, otherwise returns the raw body trimmed.
func errorDetail(body []byte) string {
	var wire struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &wire); err == nil && wire.Error != "" {
		return wire.Error
	}
	const max = 256
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		s = fmt.Sprintf("%s...", s[:max])
	}
	return s
}
