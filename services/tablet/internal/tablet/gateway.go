package tablet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/appetiteclub/notices/pkg/notice"
)

var (
	ErrGateway    = errors.New("notice service unavailable")
	ErrSuperseded = errors.New("notice service holds a newer copy")
)

// SupersededError is returned when the notice service kept its stored record
// instead of the one sent. Current is the stored record.
type SupersededError struct {
	Current notice.OrderNotice
}

func (e *SupersededError) Error() string {
	return fmt.Sprintf("%s: %s updated at %s", ErrSuperseded, e.Current.ID, e.Current.UpdatedAt.Format(time.RFC3339Nano))
}

func (e *SupersededError) Unwrap() error {
	return ErrSuperseded
}

// RemoteNoticeGateway is the shared store every surface reconciles against.
type RemoteNoticeGateway interface {
	Save(ctx context.Context, n notice.OrderNotice, restaurantID string) error
	Fetch(ctx context.Context, restaurantIDs []string) ([]notice.OrderNotice, error)
}

// HTTPGateway talks to the notice service.
type HTTPGateway struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPGateway(baseURL string) *HTTPGateway {
	if baseURL == "" {
		baseURL = "http://localhost:8090"
	}
	return &HTTPGateway{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type saveResponse struct {
	Data struct {
		Notice  *notice.OrderNotice `json:"notice"`
		Applied *bool               `json:"applied"`
	} `json:"data"`
}

type noticesResponse struct {
	Data struct {
		Notices []notice.OrderNotice `json:"notices"`
	} `json:"data"`
}

func (g *HTTPGateway) Save(ctx context.Context, n notice.OrderNotice, restaurantID string) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("cannot encode notice: %w", err)
	}

	endpoint := fmt.Sprintf("%s/notices/%s?restaurant_id=%s", g.baseURL, n.ID.String(), url.QueryEscape(restaurantID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: save returned status %d", ErrGateway, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	var out saveResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Data.Applied != nil && !*out.Data.Applied {
		current := n
		if out.Data.Notice != nil {
			current = *out.Data.Notice
		}
		return &SupersededError{Current: current}
	}
	return nil
}

func (g *HTTPGateway) Fetch(ctx context.Context, restaurantIDs []string) ([]notice.OrderNotice, error) {
	q := url.Values{}
	for _, id := range restaurantIDs {
		q.Add("restaurant_id", id)
	}

	endpoint := fmt.Sprintf("%s/notices?%s", g.baseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetch returned status %d", ErrGateway, resp.StatusCode)
	}

	var out noticesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return out.Data.Notices, nil
}
