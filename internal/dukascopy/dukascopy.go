// Package dukascopy builds bars from the Dukascopy hourly tick archive.
package dukascopy

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/ulikunitz/xz/lzma"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/gridtrader/market"
)

const DefaultBaseURL = "https://datafeed.dukascopy.com/datafeed"

// tickSize is the length of one bi5 record: ms offset, ask, bid (uint32)
// then ask and bid volume (float32), big-endian.
const tickSize = 20

var _ market.Source = (*Source)(nil)

// Source downloads hourly tick files, optionally caching the compressed
// files under CacheDir, and aggregates mid prices into bars.
type Source struct {
	BaseURL  string
	HTTP     *http.Client
	CacheDir string
	Workers  int
	Log      zerolog.Logger
}

// New returns a Source for the public datafeed.
func New(cacheDir string) *Source {
	return &Source{
		BaseURL:  DefaultBaseURL,
		HTTP:     &http.Client{Timeout: 45 * time.Second},
		CacheDir: cacheDir,
		Log:      zerolog.Nop(),
	}
}

// Tick is one decoded quote.
type Tick struct {
	Time    time.Time
	Ask     float64
	Bid     float64
	AskSize float64
	BidSize float64
}

func (t Tick) Mid() float64 { return (t.Ask + t.Bid) / 2 }

// Symbol maps EURUSD=X, EUR/USD and EUR_USD to the archive's EURUSD.
func Symbol(s string) string {
	s = strings.ToUpper(strings.TrimSuffix(strings.TrimSpace(s), "=X"))
	return strings.NewReplacer("/", "", "_", "", "-", "").Replace(s)
}

// pointSize is the price divisor of the archive's integer quotes.
func pointSize(symbol string) float64 {
	if strings.Contains(symbol, "JPY") {
		return 1e3
	}
	return 1e5
}

func tickURL(base, symbol string, hour time.Time) string {
	// months are zero-based in the path: Jan=00 ... Dec=11
	return fmt.Sprintf("%s/%s/%04d/%02d/%02d/%02dh_ticks.bi5",
		strings.TrimRight(base, "/"), symbol,
		hour.Year(), int(hour.Month())-1, hour.Day(), hour.Hour())
}

// Fetch returns bars of the given interval for [start, end). A zero end means
// the current hour.
func (s *Source) Fetch(ctx context.Context, symbol string, start, end time.Time, interval string) ([]market.Bar, error) {
	step, err := market.ParseInterval(interval)
	if err != nil {
		return nil, err
	}
	if start.IsZero() {
		return nil, market.Configf("dukascopy needs a start time")
	}
	if end.IsZero() {
		end = time.Now().UTC().Truncate(time.Hour)
	}
	if !end.After(start) {
		return nil, market.Configf("end %s is not after start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	sym := Symbol(symbol)
	var hours []time.Time
	for h := start.UTC().Truncate(time.Hour); h.Before(end); h = h.Add(time.Hour) {
		hours = append(hours, h)
	}

	workers := s.Workers
	if workers <= 0 {
		workers = max(4, runtime.NumCPU())
	}
	perHour := make([][]Tick, len(hours))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, h := range hours {
		g.Go(func() error {
			ticks, err := s.hour(gctx, sym, h)
			if err != nil {
				return fmt.Errorf("%s %s: %w", sym, h.Format("2006-01-02T15"), err)
			}
			perHour[i] = ticks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var ticks []Tick
	for _, ts := range perHour {
		for _, t := range ts {
			if !t.Time.Before(start) && t.Time.Before(end) {
				ticks = append(ticks, t)
			}
		}
	}
	bars := Aggregate(ticks, step)
	if len(bars) == 0 {
		return nil, fmt.Errorf("dukascopy %s [%s, %s): %w", sym, start.Format(time.RFC3339), end.Format(time.RFC3339), market.ErrNoData)
	}
	if err := market.Validate(bars); err != nil {
		return nil, err
	}

	s.Log.Info().
		Str("symbol", sym).
		Int("hours", len(hours)).
		Int("ticks", len(ticks)).
		Int("bars", len(bars)).
		Msg("dukascopy bars built")
	return bars, nil
}

// hour downloads, or reads from cache, one hour of ticks. Missing hours
// (weekends, holidays) yield no ticks.
func (s *Source) hour(ctx context.Context, sym string, h time.Time) ([]Tick, error) {
	var cache string
	if s.CacheDir != "" {
		cache = filepath.Join(s.CacheDir, sym,
			fmt.Sprintf("%04d", h.Year()), fmt.Sprintf("%02d", h.Month()), fmt.Sprintf("%02d", h.Day()),
			fmt.Sprintf("%02dh_ticks.bi5", h.Hour()))
		if raw, err := os.ReadFile(cache); err == nil {
			return Decode(raw, h, pointSize(sym))
		}
	}

	raw, err := s.download(ctx, tickURL(s.BaseURL, sym, h))
	if err != nil || raw == nil {
		return nil, err
	}
	if cache != "" {
		if err := writeAtomic(cache, raw); err != nil {
			s.Log.Warn().Err(err).Str("path", cache).Msg("tick cache write failed")
		}
	}
	return Decode(raw, h, pointSize(sym))
}

// download returns nil, nil on 404.
func (s *Source) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "gridtrader/1.0")

	client := s.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func writeAtomic(dst string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp := dst + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

// Decode decompresses one bi5 file. An empty file holds no ticks.
func Decode(raw []byte, hour time.Time, point float64) ([]Tick, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	r, err := lzma.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("bi5: %w", err)
	}
	flat, err := io.ReadAll(r)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("bi5: %w", err)
	}
	if len(flat)%tickSize != 0 {
		return nil, fmt.Errorf("bi5: %d bytes is not a whole number of ticks", len(flat))
	}

	ticks := make([]Tick, 0, len(flat)/tickSize)
	for off := 0; off < len(flat); off += tickSize {
		rec := flat[off : off+tickSize]
		ms := binary.BigEndian.Uint32(rec[0:4])
		ticks = append(ticks, Tick{
			Time:    hour.Add(time.Duration(ms) * time.Millisecond),
			Ask:     float64(binary.BigEndian.Uint32(rec[4:8])) / point,
			Bid:     float64(binary.BigEndian.Uint32(rec[8:12])) / point,
			AskSize: float64(math.Float32frombits(binary.BigEndian.Uint32(rec[12:16]))),
			BidSize: float64(math.Float32frombits(binary.BigEndian.Uint32(rec[16:20]))),
		})
	}
	return ticks, nil
}

// Aggregate buckets time-ordered ticks into mid-price bars of width step,
// aligned to UTC. Buckets without ticks produce no bar.
func Aggregate(ticks []Tick, step time.Duration) []market.Bar {
	var bars []market.Bar
	for _, t := range ticks {
		bucket := t.Time.UTC().Truncate(step)
		px := t.Mid()
		vol := t.AskSize + t.BidSize

		if n := len(bars); n > 0 && bars[n-1].Time.Equal(bucket) {
			b := &bars[n-1]
			b.High = math.Max(b.High, px)
			b.Low = math.Min(b.Low, px)
			b.Close = px
			b.Volume += vol
			continue
		}
		bars = append(bars, market.Bar{
			Time:   bucket,
			Open:   px,
			High:   px,
			Low:    px,
			Close:  px,
			Volume: vol,
		})
	}
	return bars
}
