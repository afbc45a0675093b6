package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"orderstate/src/model"
	"orderstate/src/security"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"
)

// APIError is a non-2xx answer from the service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("orderstate api: status %d: %s", e.StatusCode, e.Message)
}

// Client talks to the order state HTTP API. Requests are never retried.
type Client struct {
	baseURL string
	http    *resty.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(baseURL, "/")

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if token != "" {
		httpClient.SetHeader(security.TokenHeader, token)
	}

	return &Client{baseURL: baseURL, http: httpClient}
}

func NewClientFromConfig(config Config) *Client {
	return NewClient(config.BaseURL, config.Token, config.Timeout)
}

func (c *Client) PlaceOrder(ctx context.Context, payload model.UpdatePayload) (*model.Response, error) {
	var out model.Response
	if err := c.do(ctx, resty.MethodPost, "/api/place_order", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ActiveOrders(ctx context.Context) (*model.ActiveStateResponse, error) {
	var out model.ActiveStateResponse
	if err := c.do(ctx, resty.MethodGet, "/api/get_active_orders", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) TPLevels(ctx context.Context, symbol string) (*model.TPLevelsResponse, error) {
	var out model.TPLevelsResponse
	path := "/api/get_tp_levels/" + url.PathEscape(symbol)
	if err := c.do(ctx, resty.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SaveTPLevels(ctx context.Context, symbol string, levels []model.TPLevelInput) (*model.Response, error) {
	var out model.Response
	path := "/api/save_tp_levels/" + url.PathEscape(symbol)
	body := model.SaveTPLevelsPayload{TPLevels: levels}
	if err := c.do(ctx, resty.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateTPLevel(ctx context.Context, symbol string, index int, patch model.TPLevelInput) (*model.Response, error) {
	var out model.Response
	path := "/api/save_tp_level/" + url.PathEscape(symbol) + "/" + strconv.Itoa(index)
	if err := c.do(ctx, resty.MethodPut, path, patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		logger.WithError(err).WithFields(map[string]interface{}{
			"method": method,
			"path":   path,
		}).Error("orderstate request failed")
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	if resp.IsError() {
		var failure model.Response
		msg := strings.TrimSpace(resp.String())
		if jsonErr := json.Unmarshal(resp.Body(), &failure); jsonErr == nil && failure.Message != "" {
			msg = failure.Message
		}
		return &APIError{StatusCode: resp.StatusCode(), Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
