package quote

import (
	"encoding/json"
	"fmt"
	"os"
)

// Quote is one entry of the source collection.
type Quote struct {
	ID     int    `json:"id"`
	Quote  string `json:"quote"`
	Author string `json:"author"`
}

// Language is a translation target. Code keys the output file, Name goes
// into the translation instruction.
type Language struct {
	Code string `json:"code" yaml:"code"`
	Name string `json:"name" yaml:"name"`
}

// LoadFile reads a JSON array of quotes.
func LoadFile(path string) ([]Quote, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read quotes file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a JSON array of quotes and rejects duplicate ids.
func Parse(data []byte) ([]Quote, error) {
	var quotes []Quote
	if err := json.Unmarshal(data, &quotes); err != nil {
		return nil, fmt.Errorf("parse quotes: %w", err)
	}

	seen := make(map[int]struct{}, len(quotes))
	for _, q := range quotes {
		if _, ok := seen[q.ID]; ok {
			return nil, fmt.Errorf("duplicate quote id %d", q.ID)
		}
		seen[q.ID] = struct{}{}
	}
	return quotes, nil
}
