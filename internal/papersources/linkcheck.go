package papersources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// LinkResolver follows redirects of a paper's external URL and reports
// whether the final location answers. It satisfies the harvest
// coordinator's optional link validator.
type LinkResolver struct {
	client *HTTPClient
}

// NewLinkResolver creates a resolver. Retries are disabled unless set
// explicitly since a dead link is an answer, not a transient failure.
func NewLinkResolver(cfg HTTPClientConfig) *LinkResolver {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = -1
	}
	return &LinkResolver{client: NewHTTPClient(cfg)}
}

// Resolve returns the URL reached after redirects and whether it responded
// with a non-error status. Servers rejecting HEAD are retried with GET.
func (r *LinkResolver) Resolve(ctx context.Context, rawURL string) (string, bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return rawURL, false, fmt.Errorf("invalid link %q", rawURL)
	}

	final, status, err := r.probe(ctx, http.MethodHead, rawURL)
	if err == nil && (status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented) {
		final, status, err = r.probe(ctx, http.MethodGet, rawURL)
	}
	if err != nil {
		return rawURL, false, err
	}
	return final, status < http.StatusBadRequest, nil
}

func (r *LinkResolver) probe(ctx context.Context, method, rawURL string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return "", 0, fmt.Errorf("create request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer drainAndClose(resp)

	final := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}
	return final, resp.StatusCode, nil
}
