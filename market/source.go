package market

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Source supplies an ordered bar sequence for a symbol and time range. An
// empty result is reported as ErrNoData.
type Source interface {
	Fetch(ctx context.Context, symbol string, start, end time.Time, interval string) ([]Bar, error)
}

// CSVSource reads bars from a CSV file. Two layouts are accepted, chosen by
// the header row:
//
//	time,instrument,granularity,complete,volume,o,h,l,c
//	time|date|datetime,open,high,low,close[,volume]
//
// Rows are filtered to [start, end). When the file carries an instrument
// column, rows for other symbols are skipped.
type CSVSource struct {
	Path string
}

func (s CSVSource) Fetch(ctx context.Context, symbol string, start, end time.Time, interval string) ([]Bar, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bars, err := ReadCSV(ctx, f, symbol)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}
	bars = Between(bars, start, end)
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s %s [%s, %s): %w", s.Path, symbol, fmtBound(start), fmtBound(end), ErrNoData)
	}
	return bars, nil
}

func fmtBound(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}

type csvColumns struct {
	time, instrument, complete    int
	open, high, low, close, volume int
}

func parseHeader(row []string) (csvColumns, error) {
	c := csvColumns{-1, -1, -1, -1, -1, -1, -1, -1}
	for i, h := range row {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "time", "date", "datetime", "timestamp":
			c.time = i
		case "instrument", "symbol":
			c.instrument = i
		case "complete":
			c.complete = i
		case "o", "open":
			c.open = i
		case "h", "high":
			c.high = i
		case "l", "low":
			c.low = i
		case "c", "close":
			c.close = i
		case "volume", "v":
			c.volume = i
		}
	}
	if c.time < 0 || c.open < 0 || c.high < 0 || c.low < 0 || c.close < 0 {
		return c, fmt.Errorf("csv header must name time, open, high, low and close columns: %v", row)
	}
	return c, nil
}

// ReadCSV parses a bar CSV from r, sorts it by time and validates it. symbol
// filters rows when the input carries an instrument column; an empty symbol
// keeps every row.
func ReadCSV(ctx context.Context, r io.Reader, symbol string) ([]Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrNoData
	}
	if err != nil {
		return nil, err
	}
	cols, err := parseHeader(header)
	if err != nil {
		return nil, err
	}

	var bars []Bar
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}

		if cols.instrument >= 0 && symbol != "" && cols.instrument < len(row) {
			if !sameSymbol(row[cols.instrument], symbol) {
				continue
			}
		}
		if cols.complete >= 0 && cols.complete < len(row) {
			if ok, _ := strconv.ParseBool(strings.TrimSpace(row[cols.complete])); !ok {
				continue
			}
		}

		b, err := parseBarRow(row, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, b)
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	if err := Validate(bars); err != nil {
		return nil, err
	}
	return bars, nil
}

func sameSymbol(a, b string) bool {
	norm := func(s string) string {
		s = strings.ToUpper(strings.TrimSpace(s))
		return strings.NewReplacer("_", "", "/", "", "-", "", "=X", "").Replace(s)
	}
	return norm(a) == norm(b)
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseBarRow(row []string, c csvColumns) (Bar, error) {
	var b Bar
	t, err := ParseTime(field(row, c.time))
	if err != nil {
		return b, err
	}
	b.Time = t

	prices := []struct {
		dst  *float64
		idx  int
		name string
	}{
		{&b.Open, c.open, "open"},
		{&b.High, c.high, "high"},
		{&b.Low, c.low, "low"},
		{&b.Close, c.close, "close"},
	}
	for _, p := range prices {
		s := field(row, p.idx)
		if s == "" {
			return b, &DataIntegrityError{Time: t, Reason: "missing " + p.name}
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return b, fmt.Errorf("bad %s %q: %w", p.name, s, err)
		}
		*p.dst = v
	}

	if s := field(row, c.volume); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return b, fmt.Errorf("bad volume %q: %w", s, err)
		}
		b.Volume = v
	}
	return b, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime accepts RFC3339 timestamps, plain dates and space-separated
// datetimes. Values without a zone are taken as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("bad time %q", s)
}

// WriteCSV writes bars in the generic time,open,high,low,close,volume layout.
func WriteCSV(w io.Writer, bars []Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	for _, b := range bars {
		if err := cw.Write([]string{
			b.Time.UTC().Format(time.RFC3339),
			ff(b.Open), ff(b.High), ff(b.Low), ff(b.Close), ff(b.Volume),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ff(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
