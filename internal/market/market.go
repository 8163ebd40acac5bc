// Package market fetches trending prediction-market proposals from PolyMarket
// and normalizes them into the shape the debate pipeline and front-end use.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("robodebate-market")

// ErrNoProposals is returned when a feed answers but yields nothing usable.
var ErrNoProposals = errors.New("market: no proposals returned")

const (
	DefaultPrimaryURL   = "https://polymarket.com/api/biggest-movers?category=all"
	DefaultSecondaryURL = "https://gamma-api.polymarket.com/events?closed=false&limit=6"

	// MaxProposals caps how many proposals a fetch returns.
	MaxProposals = 3
	userAgent    = "ProperPredictionMarket/1.0"
)

// Proposal is a normalized prediction-market entry.
type Proposal struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Volume      string      `json:"volume"`
	Image       string      `json:"image"`
	Category    string      `json:"category"`
	Slug        string      `json:"slug"`
	Conditions  []Condition `json:"conditions"`
	PriceChange float64     `json:"priceChange"`
}

// Condition is one market question with parallel outcome labels and integer
// percentage prices. len(Outcomes) == len(Prices) always holds after
// normalization.
type Condition struct {
	Question string   `json:"question"`
	Outcomes []string `json:"outcomes"`
	Prices   []int    `json:"prices"`
}

// FallbackDepth controls how far Fetch falls back when the feeds fail.
type FallbackDepth int

const (
	// FallbackSecondary tries the primary feed, then Gamma events, then fails.
	FallbackSecondary FallbackDepth = iota
	// FallbackStatic additionally returns StaticProposals instead of failing.
	FallbackStatic
)

func (d FallbackDepth) String() string {
	if d == FallbackStatic {
		return "static"
	}
	return "secondary"
}

// Source yields proposals.
type Source interface {
	Fetch(ctx context.Context) ([]Proposal, error)
}

// Fetcher reads the PolyMarket feeds over HTTP.
type Fetcher struct {
	httpClient   *http.Client
	primaryURL   string
	secondaryURL string
	depth        FallbackDepth
	log          *slog.Logger
	now          func() time.Time
}

// Option configures a Fetcher.
type Option func(*Fetcher)

func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.httpClient = c }
}

// WithEndpoints overrides the primary (biggest movers) and secondary (Gamma
// events) URLs.
func WithEndpoints(primary, secondary string) Option {
	return func(f *Fetcher) {
		f.primaryURL = primary
		f.secondaryURL = secondary
	}
}

func WithFallbackDepth(d FallbackDepth) Option {
	return func(f *Fetcher) { f.depth = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) { f.now = now }
}

func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		primaryURL:   DefaultPrimaryURL,
		secondaryURL: DefaultSecondaryURL,
		depth:        FallbackSecondary,
		log:          slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Depth reports the configured fallback depth.
func (f *Fetcher) Depth() FallbackDepth { return f.depth }

// Fetch returns up to MaxProposals proposals, falling back from the primary
// feed to Gamma events and, with FallbackStatic, to StaticProposals.
func (f *Fetcher) Fetch(ctx context.Context) ([]Proposal, error) {
	ctx, span := tracer.Start(ctx, "market.fetch")
	defer span.End()
	span.SetAttributes(attribute.String("fallback_depth", f.depth.String()))

	props, err := f.fetchPrimary(ctx)
	if err == nil {
		span.SetAttributes(attribute.String("source", "primary"), attribute.Int("count", len(props)))
		return props, nil
	}
	f.log.WarnContext(ctx, "PolyMarket movers feed failed, trying Gamma fallback", "error", err)

	props, err2 := f.fetchSecondary(ctx)
	if err2 == nil {
		span.SetAttributes(attribute.String("source", "secondary"), attribute.Int("count", len(props)))
		return props, nil
	}

	if f.depth == FallbackStatic {
		f.log.WarnContext(ctx, "Both market feeds failed, serving static proposals", "error", err2)
		span.SetAttributes(attribute.String("source", "static"))
		return StaticProposals(), nil
	}

	span.RecordError(err2)
	span.SetStatus(codes.Error, "both feeds failed")
	return nil, fmt.Errorf("both PolyMarket feeds failed: primary: %v; secondary: %w", err, err2)
}

func (f *Fetcher) fetchPrimary(ctx context.Context) ([]Proposal, error) {
	body, err := f.get(ctx, f.primaryURL)
	if err != nil {
		return nil, err
	}

	var markets []moverMarket
	if err := decodeMovers(body, &markets); err != nil {
		return nil, fmt.Errorf("decode movers: %w", err)
	}

	props := normalizeMovers(markets, f.now)
	if len(props) == 0 {
		return nil, ErrNoProposals
	}
	return props, nil
}

func (f *Fetcher) fetchSecondary(ctx context.Context) ([]Proposal, error) {
	body, err := f.get(ctx, f.secondaryURL)
	if err != nil {
		return nil, err
	}

	var events []gammaEvent
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("decode gamma events: %w", err)
	}

	props := normalizeEvents(events, f.now)
	if len(props) == 0 {
		return nil, ErrNoProposals
	}
	return props, nil
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	res, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s returned %d", url, res.StatusCode)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

func fallbackID(now func() time.Time) string {
	return strconv.FormatInt(now().UnixMilli(), 10)
}
