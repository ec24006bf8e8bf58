package noroff

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/phenrril/rainydays/internal/domain"
)

const DefaultBaseURL = "https://v2.api.noroff.dev"

// Client reads the rainy-days product API. Every call is a single request:
// no cache, no retry.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: &http.Client{Timeout: timeout}}
}

func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	body, status, err := c.get(ctx, "/rainy-days")
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, &domain.FetchError{Status: status}
	}
	payload, err := unwrap(body)
	if err != nil {
		return nil, err
	}
	var raw []domain.Product
	if !isNull(payload) {
		if err := json.Unmarshal(payload, &raw); err != nil {
			return nil, &domain.FetchError{Err: errors.Wrap(err, "decode products")}
		}
	}
	out := make([]domain.Product, 0, len(raw))
	for _, p := range raw {
		p.Normalize()
		if p.ID == "" {
			log.Warn().Str("title", p.Title).Msg("product without id dropped")
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (c *Client) GetProduct(ctx context.Context, id domain.ProductID) (*domain.Product, error) {
	body, status, err := c.get(ctx, "/rainy-days/"+url.PathEscape(id.String()))
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, errors.Wrapf(domain.ErrNotFound, "product %s", id)
	}
	if status >= 300 {
		return nil, &domain.FetchError{Status: status}
	}
	payload, err := unwrap(body)
	if err != nil {
		return nil, err
	}
	if isNull(payload) || bytes.Equal(payload, []byte("{}")) {
		return nil, errors.Wrapf(domain.ErrNotFound, "product %s", id)
	}
	var p domain.Product
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, &domain.FetchError{Err: errors.Wrap(err, "decode product")}
	}
	p.Normalize()
	if p.ID == "" {
		return nil, errors.Wrapf(domain.ErrNotFound, "product %s", id)
	}
	return &p, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, &domain.FetchError{Err: err}
	}
	req.Header.Set("Accept", "application/json")
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &domain.FetchError{Err: errors.Wrap(err, "request")}
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, res.StatusCode, &domain.FetchError{Status: res.StatusCode, Err: errors.Wrap(err, "read body")}
	}
	log.Debug().Str("path", path).Int("status", res.StatusCode).Int("bytes", len(body)).Msg("product api")
	return body, res.StatusCode, nil
}

// unwrap accepts both {"data": ...} and a bare payload.
func unwrap(body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, &domain.FetchError{Err: errors.New("empty response")}
	}
	if !json.Valid(trimmed) {
		return nil, &domain.FetchError{Err: errors.New("malformed json")}
	}
	if trimmed[0] == '{' {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &probe); err != nil {
			return nil, &domain.FetchError{Err: errors.Wrap(err, "decode envelope")}
		}
		if data, ok := probe["data"]; ok {
			return data, nil
		}
	}
	return trimmed, nil
}

func isNull(b []byte) bool {
	return len(b) == 0 || bytes.Equal(bytes.TrimSpace(b), []byte("null"))
}
