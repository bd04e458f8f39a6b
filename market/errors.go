package market

import (
	"errors"
	"fmt"
	"time"
)

// Error kinds shared by every stage of a backtest. Callers test for them
// with errors.Is.
var (
	ErrConfiguration    = errors.New("configuration error")
	ErrDataIntegrity    = errors.New("data integrity error")
	ErrInsufficientData = errors.New("insufficient data")
	ErrNoData           = errors.New("no data")
)

// DataIntegrityError reports the first malformed bar in a sequence.
type DataIntegrityError struct {
	Index  int
	Time   time.Time
	Reason string
}

func (e *DataIntegrityError) Error() string {
	if e.Time.IsZero() {
		return fmt.Sprintf("bar %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("bar %d (%s): %s", e.Index, e.Time.Format(time.RFC3339), e.Reason)
}

func (e *DataIntegrityError) Unwrap() error { return ErrDataIntegrity }

// Configf returns a configuration error with a formatted message.
func Configf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
