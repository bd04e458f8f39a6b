package market

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Asset holds grid defaults for a tradable symbol.
type Asset struct {
	Symbol       string  `yaml:"symbol" json:"symbol"`
	Name         string  `yaml:"name" json:"name"`
	Class        string  `yaml:"class" json:"class"`
	Reference    float64 `yaml:"reference" json:"reference"`
	GridDistance float64 `yaml:"grid_distance" json:"grid_distance"`
	GridRange    float64 `yaml:"grid_range" json:"grid_range"`
	// Instrument is the OANDA instrument name, set for FX pairs.
	Instrument string `yaml:"instrument,omitempty" json:"instrument,omitempty"`
}

//go:embed assets.yaml
var assetsYAML []byte

var (
	assetsOnce sync.Once
	assets     map[string]Asset
	assetsErr  error
)

func loadAssets() {
	var list []Asset
	if err := yaml.Unmarshal(assetsYAML, &list); err != nil {
		assetsErr = fmt.Errorf("parse assets: %w", err)
		return
	}
	assets = make(map[string]Asset, len(list))
	for _, a := range list {
		assets[strings.ToUpper(a.Symbol)] = a
	}
}

// Assets returns the built-in asset table sorted by class then symbol.
func Assets() ([]Asset, error) {
	assetsOnce.Do(loadAssets)
	if assetsErr != nil {
		return nil, assetsErr
	}
	out := make([]Asset, 0, len(assets))
	for _, a := range assets {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Class != out[j].Class {
			return out[i].Class < out[j].Class
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out, nil
}

// LookupAsset finds an asset by symbol or OANDA instrument name.
func LookupAsset(symbol string) (Asset, bool) {
	assetsOnce.Do(loadAssets)
	if assetsErr != nil {
		return Asset{}, false
	}
	if a, ok := assets[strings.ToUpper(strings.TrimSpace(symbol))]; ok {
		return a, true
	}
	for _, a := range assets {
		if a.Instrument != "" && sameSymbol(a.Instrument, symbol) {
			return a, true
		}
	}
	return Asset{}, false
}
