// Package oanda reads historical candles from the OANDA v20 REST API.
package oanda

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// MaxCandles is the largest page the candles endpoint returns.
const MaxCandles = 5000

type Client struct {
	BaseURL string // e.g. https://api-fxpractice.oanda.com
	Token   string
	HTTP    *http.Client
	Log     *zerolog.Logger
}

// NewClient returns a client for the "practice" or "live" environment.
func NewClient(env, token string) (*Client, error) {
	base, err := BaseURL(env)
	if err != nil {
		return nil, err
	}
	return &Client{BaseURL: base, Token: token}, nil
}

func BaseURL(env string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "practice", "demo":
		return "https://api-fxpractice.oanda.com", nil
	case "live", "trade":
		return "https://api-fxtrade.oanda.com", nil
	default:
		return "", fmt.Errorf("unknown OANDA env %q (want practice|live)", env)
	}
}

func (c *Client) log() *zerolog.Logger {
	if c.Log == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return c.Log
}

type CandlesOptions struct {
	Instrument  string
	Granularity string // e.g. M1, H1, D
	Price       string // M, B, A, BA

	From  time.Time // optional
	To    time.Time // optional
	Count int       // optional (used if >0)

	// ExcludeFirst drops the candle at From; used when paging.
	ExcludeFirst bool
}

type ohlc struct {
	O string `json:"o"`
	H string `json:"h"`
	L string `json:"l"`
	C string `json:"c"`
}

type candle struct {
	Complete bool   `json:"complete"`
	Time     string `json:"time"`
	Volume   int    `json:"volume"`

	Mid *ohlc `json:"mid,omitempty"`
	Bid *ohlc `json:"bid,omitempty"`
	Ask *ohlc `json:"ask,omitempty"`
}

// pick returns the price component selected by price.
func (cd candle) pick(price string) (*ohlc, error) {
	switch price {
	case "M":
		return cd.Mid, nil
	case "B":
		return cd.Bid, nil
	case "A":
		return cd.Ask, nil
	default:
		// BA returns both bid and ask sets; a bar holds one.
		return nil, fmt.Errorf("price=BA not supported for CSV output yet; use M/B/A")
	}
}

type candlesResp struct {
	Instrument  string   `json:"instrument"`
	Granularity string   `json:"granularity"`
	Candles     []candle `json:"candles"`
}

func (c *Client) candles(ctx context.Context, opts CandlesOptions) (*candlesResp, string, error) {
	if c.Token == "" {
		return nil, "", fmt.Errorf("oanda: missing token")
	}
	if c.BaseURL == "" {
		return nil, "", fmt.Errorf("oanda: missing base url")
	}
	if opts.Instrument == "" {
		return nil, "", fmt.Errorf("oanda: missing instrument")
	}
	if opts.Granularity == "" {
		return nil, "", fmt.Errorf("oanda: missing granularity")
	}
	price := strings.ToUpper(strings.TrimSpace(opts.Price))
	if price == "" {
		price = "M"
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, "", err
	}
	u.Path = fmt.Sprintf("/v3/instruments/%s/candles", opts.Instrument)

	q := u.Query()
	q.Set("granularity", opts.Granularity)
	q.Set("price", price)
	if !opts.From.IsZero() {
		q.Set("from", opts.From.UTC().Format(time.RFC3339Nano))
	}
	if opts.Count > 0 {
		q.Set("count", strconv.Itoa(opts.Count))
	} else if !opts.To.IsZero() {
		q.Set("to", opts.To.UTC().Format(time.RFC3339Nano))
	}
	if opts.ExcludeFirst {
		q.Set("includeFirst", "false")
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", "application/json")

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, "", fmt.Errorf("oanda candles http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var cr candlesResp
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, "", err
	}
	c.log().Debug().
		Str("instrument", opts.Instrument).
		Str("granularity", opts.Granularity).
		Int("candles", len(cr.Candles)).
		Msg("oanda candles page")
	return &cr, price, nil
}
