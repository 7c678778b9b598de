package health

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// HTTPChecker returns a [Checker] that probes the /health endpoint of an
// inference collaborator at baseURL. A 2xx response counts as healthy.
func HTTPChecker(name, baseURL string, client *http.Client) Checker {
	if client == nil {
		client = http.DefaultClient
	}
	endpoint, _ := url.JoinPath(baseURL, "health")
	return Checker{
		Name: name,
		Check: func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return fmt.Errorf("build request: %w", err)
			}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("probe %s: %w", name, err)
			}
			defer resp.Body.Close()
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return fmt.Errorf("probe %s: unexpected status %d", name, resp.StatusCode)
			}
			return nil
		},
	}
}

// StaticChecker returns a [Checker] that always reports the given error
// (nil meaning healthy). Useful for endpoints that have no remote
// dependency, such as a natively loaded model.
func StaticChecker(name string, err error) Checker {
	return Checker{
		Name:  name,
		Check: func(context.Context) error { return err },
	}
}
