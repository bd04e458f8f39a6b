package journal

import (
	"encoding/json"
	"os"
)

// WriteMetricsJSON writes the metrics map as indented JSON. Keys are sorted
// by encoding/json.
func WriteMetricsJSON(path string, metrics map[string]float64) error {
	b, err := json.MarshalIndent(metrics, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}
