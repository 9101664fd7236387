// Package pvpc fetches the Spanish regulated day-ahead electricity price
// (PVPC) from the ESIOS public archive.
package pvpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/edsmon/edsmon/pkg/common"
	"github.com/edsmon/edsmon/pkg/log"
	"github.com/edsmon/edsmon/pkg/types"
	"github.com/levenlabs/go-lflag"
)

const defaultAPIURL = "https://api.esios.ree.es/archives/70/download_json"

// Client retrieves hourly PVPC prices. Each civil day is fetched at most
// once and cached; prices for a published day never change.
type Client struct {
	apiURL string
	client *http.Client

	mu    sync.Mutex
	cache map[string][]types.Price
}

// NewClient creates a Client against the given archive URL.
func NewClient(apiURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		apiURL: apiURL,
		client: httpClient,
		cache:  make(map[string][]types.Price),
	}
}

// Configured sets up the PVPC client based on flags.
func Configured() *Client {
	apiURL := lflag.String("pvpc-api-url", defaultAPIURL, "URL for the ESIOS PVPC archive download")

	c := NewClient(defaultAPIURL, nil)

	lflag.Do(func() {
		c.apiURL = *apiURL
	})

	return c
}

// Validate ensures the configuration is valid.
func (c *Client) Validate() error {
	if c.apiURL == "" {
		return fmt.Errorf("pvpc-api-url is required")
	}
	if _, err := url.Parse(c.apiURL); err != nil {
		return fmt.Errorf("failed to parse pvpc url (%s): %w", c.apiURL, err)
	}
	return nil
}

// pvpcEntry is one hourly row of the archive. Prices are €/MWh with a comma
// decimal separator.
type pvpcEntry struct {
	Dia  string `json:"Dia"`
	Hora string `json:"Hora"`
	PCB  string `json:"PCB"`
}

// PricesForDay returns the hourly prices of one civil day in the grid's
// time zone, fetching from the archive on first use.
func (c *Client) PricesForDay(ctx context.Context, day time.Time) ([]types.Price, error) {
	day = day.In(common.Madrid)
	key := day.Format("2006-01-02")

	c.mu.Lock()
	if prices, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return prices, nil
	}
	c.mu.Unlock()

	prices, err := c.fetchDay(ctx, day)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[key] = prices
	c.mu.Unlock()
	return prices, nil
}

// PricesForRange returns hourly prices for every civil day between start
// and end, inclusive. Days the archive does not have yet are skipped.
func (c *Client) PricesForRange(ctx context.Context, start, end time.Time) ([]types.Price, error) {
	start = start.In(common.Madrid)
	end = end.In(common.Madrid)

	var all []types.Price
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		prices, err := c.PricesForDay(ctx, day)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to fetch pvpc day",
				slog.String("day", day.Format("2006-01-02")),
				slog.Any("error", err))
			continue
		}
		all = append(all, prices...)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("no pvpc prices available between %s and %s",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return all, nil
}

func (c *Client) fetchDay(ctx context.Context, day time.Time) ([]types.Price, error) {
	u, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api url: %w", err)
	}
	params := url.Values{}
	params.Set("locale", "es")
	params.Set("date", day.Format("2006-01-02"))
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	log.Ctx(ctx).DebugContext(ctx, "fetching pvpc prices", slog.String("url", u.String()))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pvpc prices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pvpc api returned status: %d", resp.StatusCode)
	}

	var payload struct {
		PVPC []pvpcEntry `json:"PVPC"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode pvpc response: %w", err)
	}

	prices := make([]types.Price, 0, len(payload.PVPC))
	for _, entry := range payload.PVPC {
		date, err := time.ParseInLocation("02/01/2006", entry.Dia, common.Madrid)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to parse pvpc day", slog.String("value", entry.Dia), slog.Any("error", err))
			continue
		}
		first, _, ok := strings.Cut(entry.Hora, "-")
		if !ok {
			log.Ctx(ctx).WarnContext(ctx, "failed to parse pvpc hour", slog.String("value", entry.Hora))
			continue
		}
		hour, err := strconv.Atoi(strings.TrimSpace(first))
		if err != nil || hour < 0 || hour > 23 {
			log.Ctx(ctx).WarnContext(ctx, "failed to parse pvpc hour", slog.String("value", entry.Hora))
			continue
		}
		eurosPerMWH, err := strconv.ParseFloat(strings.ReplaceAll(entry.PCB, ",", "."), 64)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to parse pvpc price", slog.String("value", entry.PCB), slog.Any("error", err))
			continue
		}
		start := date.Add(time.Duration(hour) * time.Hour)
		prices = append(prices, types.Price{
			TSStart:     start,
			TSEnd:       start.Add(time.Hour),
			EurosPerKWH: eurosPerMWH / 1000,
		})
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("pvpc archive has no rows for %s", day.Format("2006-01-02"))
	}
	return prices, nil
}
