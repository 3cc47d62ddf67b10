package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Provider is one reseller endpoint with its auth key. The primary provider
// is always configured; a secondary provider may be configured as a
// transient-failure fallback with its own per-platform service ids.
type Provider struct {
	Name       string
	Endpoint   string
	Key        string
	ServiceIDs map[string]string // platform -> service id, fallback only
	httpClient *http.Client
}

func NewProvider(name, endpoint, key string, httpClient *http.Client) *Provider {
	return &Provider{
		Name:       name,
		Endpoint:   endpoint,
		Key:        key,
		httpClient: httpClient,
	}
}

// MapService translates a primary service id to this provider's id for the
// platform. Providers without a mapping keep the id as-is.
func (p *Provider) MapService(platform, serviceID string) (string, bool) {
	if len(p.ServiceIDs) == 0 {
		return serviceID, true
	}
	mapped, ok := p.ServiceIDs[platform]
	return mapped, ok
}

// call performs one form-encoded POST against the provider. The reseller
// exposes a single endpoint dispatched on the "action" parameter.
func (p *Provider) call(ctx context.Context, action string, params url.Values) ([]byte, error) {
	form := url.Values{}
	form.Set("key", p.Key)
	form.Set("action", action)
	for k, vs := range params {
		for _, v := range vs {
			form.Add(k, v)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &TransientError{Provider: p.Name, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &TransientError{Provider: p.Name, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransientError{
			Provider: p.Name,
			Err:      fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	return body, nil
}
