package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// HTTPClient wraps http.Client with the run's timeout and credentials.
type HTTPClient struct {
	client  *http.Client
	baseURL string
	token   string
}

func newHTTPClient(cfg *Config) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
	}
}

func (c *HTTPClient) do(req *http.Request, identity string) (*http.Response, error) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	} else if identity != "" {
		req.Header.Set("X-User-ID", identity)
	}
	return c.client.Do(req)
}

// waitHealthy polls /healthz until it answers 200 or ctx ends.
func (c *HTTPClient) waitHealthy(ctx context.Context, maxWait time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxWait
	return backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", http.NoBody)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("health check status %d", resp.StatusCode)
		}
		return nil
	}, backoff.WithContext(b, ctx))
}

// predict uploads one image and returns the HTTP status with the parsed body.
func (c *HTTPClient) predict(ctx context.Context, u Upload) (int, predictResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", u.Name)
	if err != nil {
		return 0, predictResponse{}, err
	}
	if _, err := fw.Write(u.Data); err != nil {
		return 0, predictResponse{}, err
	}
	if err := mw.Close(); err != nil {
		return 0, predictResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", &body)
	if err != nil {
		return 0, predictResponse{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.do(req, u.Identity)
	if err != nil {
		return 0, predictResponse{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	var out predictResponse
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return resp.StatusCode, out, fmt.Errorf("decode predict response: %w", err)
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, out, nil
}

// history fetches the records of identity.
func (c *HTTPClient) history(ctx context.Context, identity string) ([]historyEntry, error) {
	u := c.baseURL + "/history?user_id=" + url.QueryEscape(identity)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req, identity)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("history status %d", resp.StatusCode)
	}

	var out historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode history response: %w", err)
	}
	return out.Data, nil
}
