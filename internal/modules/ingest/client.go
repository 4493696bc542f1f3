package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Client fetches team statistics from the upstream NitroType API
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient creates a new upstream API client
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     log.With().Str("client", "upstream").Logger(),
	}
}

// FetchTeamData retrieves the raw team payload. The body is returned
// untouched; parsing happens downstream in the normalizer.
func (c *Client) FetchTeamData(ctx context.Context, team string) ([]byte, error) {
	url := fmt.Sprintf("%s/api/v2/teams/%s", c.baseURL, team)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch team %s: %w", team, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream returned status %d for team %s", resp.StatusCode, team)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.log.Debug().Str("team", team).Int("bytes", len(body)).Msg("Fetched team data")
	return body, nil
}
