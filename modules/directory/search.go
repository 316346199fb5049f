package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

// Searcher finds stations in an external directory.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Station, error)
}

// RadioBrowser queries a radio-browser.info compatible API.
type RadioBrowser struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewRadioBrowser(baseURL string, timeout time.Duration, logger *slog.Logger) *RadioBrowser {
	if timeout == 0 {
		timeout = defaultSearchTimeout
	}
	return &RadioBrowser{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type radioBrowserStation struct {
	StationUUID string `json:"stationuuid"`
	Name        string `json:"name"`
	URLResolved string `json:"url_resolved"`
	Tags        string `json:"tags"`
	Homepage    string `json:"homepage"`
}

// Search queries /json/stations/search by name. Search results carry the
// provider's UUID as station ID so they can be added to favourites or the
// fallback list only after being put into the local stations file.
func (rb *RadioBrowser) Search(ctx context.Context, query string, limit int) ([]Station, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	u := fmt.Sprintf("%s/json/stations/search?name=%s&limit=%d&hidebroken=true",
		rb.baseURL, url.QueryEscape(query), limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating search request")
	}
	req.Header.Set("User-Agent", "tunehop")

	resp, err := rb.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "search request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("search provider returned %s", resp.Status)
	}

	var results []radioBrowserStation
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, errors.Wrap(err, "decoding search response")
	}

	stations := make([]Station, 0, len(results))
	for _, r := range results {
		if r.URLResolved == "" {
			continue
		}
		stations = append(stations, Station{
			ID:        r.StationUUID,
			Name:      r.Name,
			StreamURL: r.URLResolved,
			Genre:     r.Tags,
			Homepage:  r.Homepage,
		})
	}

	return stations, nil
}
