package rail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/cuongbtq/claims-pipeline/internal/classify"
	"github.com/cuongbtq/claims-pipeline/internal/gate"
)

// maxResponseBytes limits how much of a rail response is read
const maxResponseBytes = 1 << 20

// exchange performs one JSON request through the gated client. Non-2xx
// responses are returned as *classify.StatusError.
func exchange(ctx context.Context, client *gate.Client, method, rawURL string, body any, decorate func(*http.Request), out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return classify.New(classify.KindValidation, fmt.Sprintf("failed to encode request: %v", err), nil)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return classify.New(classify.KindValidation, fmt.Sprintf("failed to create request: %v", err), nil)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if decorate != nil {
		decorate(req)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &classify.StatusError{StatusCode: resp.StatusCode, Body: data}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return classify.New(classify.KindUnknown, fmt.Sprintf("failed to decode response: %v", err), map[string]any{
			"status_code": resp.StatusCode,
		})
	}

	return nil
}

// joinURL appends escaped path segments to a base URL
func joinURL(base string, segments ...string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", classify.New(classify.KindValidation, fmt.Sprintf("invalid rail base url: %v", err), nil)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", classify.New(classify.KindValidation, fmt.Sprintf("invalid rail base url %q", base), nil)
	}

	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return u.JoinPath(escaped...).String(), nil
}
