// Package address wraps the external address-search collaborator used by
// the show_address_search action surface.
package address

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// Result is one road-address candidate from the lookup service. The raw
// result has no unit or apartment number, so a resolved address is always
// handed back to the user for a detail edit instead of being sent as-is.
type Result struct {
	RoadAddress  string `json:"road_address"`
	JibunAddress string `json:"jibun_address,omitempty"`
	ZoneCode     string `json:"zone_code,omitempty"`
	LegalDong    string `json:"legal_dong,omitempty"`
	BuildingName string `json:"building_name,omitempty"`
	IsApartment  bool   `json:"is_apartment,omitempty"`
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c != nil && c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: defaultTimeout}
}

// Search queries the lookup service for road-address candidates.
func (c *Client) Search(ctx context.Context, keyword string) ([]Result, error) {
	if c == nil {
		return nil, errors.New("nil address client")
	}
	base := strings.TrimSpace(c.BaseURL)
	if base == "" {
		return nil, errors.New("address search url is not configured")
	}
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, errors.New("search keyword is empty")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	reqCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	endpoint := strings.TrimRight(base, "/") + "/search?keyword=" + url.QueryEscape(keyword)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.resolvedHTTPClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("address api error: %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	var out struct {
		Results []Result `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Results, nil
}

// recognized legal-dong suffixes: 동, 로, 가
var dongSuffixes = []string{"동", "로", "가"}

func hasDongSuffix(name string) bool {
	for _, s := range dongSuffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

// FormatRoadAddress renders a result as the single line pre-filled into the
// chat input. The legal-dong and building qualifiers are joined into one
// parenthetical suffix, emitted only when the legal-dong name carries a
// recognized suffix and the apartment flag with a building name is present.
func FormatRoadAddress(r Result) string {
	road := strings.TrimSpace(r.RoadAddress)
	if road == "" {
		return strings.TrimSpace(r.JibunAddress)
	}
	dong := strings.TrimSpace(r.LegalDong)
	building := strings.TrimSpace(r.BuildingName)
	if dong == "" || !hasDongSuffix(dong) || !r.IsApartment || building == "" {
		return road
	}
	return road + " (" + dong + ", " + building + ")"
}
