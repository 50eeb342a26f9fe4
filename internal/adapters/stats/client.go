package stats

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"eventlisting/internal/domain"
)

// TimeLayout is the stats service wire format for timestamps.
const TimeLayout = "2006-01-02 15:04:05"

// viewWindow is how far back view counts reach.
const viewWindow = 20 * 365 * 24 * time.Hour

type endpointHit struct {
	App       string `json:"app"`
	URI       string `json:"uri"`
	IP        string `json:"ip"`
	Timestamp string `json:"timestamp"`
}

type viewStats struct {
	App  string `json:"app"`
	URI  string `json:"uri"`
	Hits int64  `json:"hits"`
}

type httpClient struct {
	baseURL string
	client  *http.Client
	now     func() time.Time
}

// NewHTTPClient returns a StatsClient that calls the stats service at baseURL.
func NewHTTPClient(baseURL string, client *http.Client) domain.StatsClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpClient{baseURL: baseURL, client: client, now: time.Now}
}

func (c *httpClient) RecordHit(ctx context.Context, hit domain.EndpointHit) error {
	body, err := json.Marshal(endpointHit{
		App:       hit.App,
		URI:       hit.URI,
		IP:        hit.IP,
		Timestamp: hit.Timestamp.Format(TimeLayout),
	})
	if err != nil {
		return fmt.Errorf("failed to encode hit: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/hit", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to record hit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("stats api returned status: %d", resp.StatusCode)
	}
	return nil
}

func (c *httpClient) ViewCounts(ctx context.Context, uris []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(uris))
	if len(uris) == 0 {
		return counts, nil
	}
	now := c.now()
	q := url.Values{}
	q.Set("start", now.Add(-viewWindow).Format(TimeLayout))
	q.Set("end", now.Format(TimeLayout))
	q.Set("unique", "true")
	for _, u := range uris {
		q.Add("uris", u)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/stats?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stats: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stats api returned status: %d", resp.StatusCode)
	}

	var data []viewStats
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode stats response: %w", err)
	}
	for _, s := range data {
		counts[s.URI] += s.Hits
	}
	return counts, nil
}
