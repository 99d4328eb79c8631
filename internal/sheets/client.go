package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

const (
	defaultFetchTimeout      = 15 * time.Second
	defaultRequestsPerSecond = 1.0
	defaultRange             = "A:Z"
)

// ErrTimedOut is returned when the upstream call does not finish in time.
var ErrTimedOut = errors.New("sheets: request timed out")

// Fetcher reads a range of cell values from a spreadsheet.
type Fetcher interface {
	Fetch(ctx context.Context, spreadsheetID, cellRange string) ([][]string, error)
}

// ClientConfig configures a Client.
type ClientConfig struct {
	APIKey            string
	Endpoint          string
	Timeout           time.Duration
	RequestsPerSecond float64
	// Options are appended after the ones derived from the fields above.
	Options []option.ClientOption
}

// Client reads spreadsheet values through the Google Sheets API.
type Client struct {
	service *sheetsapi.Service
	timeout time.Duration
	limiter *rate.Limiter
}

// NewClient constructs a Client.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	opts := make([]option.ClientOption, 0, len(cfg.Options)+2)
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		opts = append(opts, option.WithAPIKey(key))
	} else if len(cfg.Options) == 0 {
		opts = append(opts, option.WithoutAuthentication())
	}
	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	opts = append(opts, cfg.Options...)

	service, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		service: service,
		timeout: timeout,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}, nil
}

// Fetch reads cellRange (default A:Z) from the spreadsheet. When the call
// outlives the client timeout it is aborted and ErrTimedOut is returned.
func (c *Client) Fetch(ctx context.Context, spreadsheetID, cellRange string) ([][]string, error) {
	if c == nil || c.service == nil {
		return nil, fmt.Errorf("sheets fetch: client not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, ErrInvalidURL
	}
	cellRange = strings.TrimSpace(cellRange)
	if cellRange == "" {
		cellRange = defaultRange
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if errWait := c.limiter.Wait(reqCtx); errWait != nil {
		return nil, c.classify(ctx, reqCtx, errWait)
	}

	started := time.Now()
	resp, err := c.service.Spreadsheets.Values.Get(spreadsheetID, cellRange).
		MajorDimension("ROWS").
		Context(reqCtx).
		Do()
	if err != nil {
		return nil, c.classify(ctx, reqCtx, err)
	}
	log.WithFields(log.Fields{
		"spreadsheet": spreadsheetID,
		"range":       cellRange,
		"rows":        len(resp.Values),
		"elapsed":     time.Since(started).String(),
	}).Debug("sheets fetch finished")
	return normalizeRows(resp.Values), nil
}

func (c *Client) classify(parent, reqCtx context.Context, err error) error {
	if parent.Err() == nil && errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimedOut, c.timeout)
	}
	if errors.Is(parent.Err(), context.Canceled) {
		return context.Canceled
	}
	return fmt.Errorf("sheets fetch: %w", err)
}

func normalizeRows(values [][]interface{}) [][]string {
	rows := make([][]string, 0, len(values))
	for _, row := range values {
		cells := make([]string, len(row))
		for i, cell := range row {
			if cell == nil {
				continue
			}
			cells[i] = strings.TrimSpace(fmt.Sprint(cell))
		}
		rows = append(rows, cells)
	}
	return rows
}
