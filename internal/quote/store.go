package quote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/MimeLyc/quote-translator/pkg/file"
)

// Entry is the stored value for one quote.
type Entry struct {
	Quote        string            `json:"quote"`
	Translations map[string]string `json:"translations"`
}

// Store maps quote ids to their translations. It is safe for concurrent
// use; entries keep the order of the quotes it was created from.
type Store struct {
	mu      sync.Mutex
	order   []int
	entries map[int]*Entry
}

// NewStore creates an entry with no translations for every quote.
func NewStore(quotes []Quote) *Store {
	s := &Store{
		order:   make([]int, 0, len(quotes)),
		entries: make(map[int]*Entry, len(quotes)),
	}
	for _, q := range quotes {
		if _, ok := s.entries[q.ID]; ok {
			continue
		}
		s.order = append(s.order, q.ID)
		s.entries[q.ID] = &Entry{
			Quote:        q.Quote,
			Translations: make(map[string]string),
		}
	}
	return s
}

// Set records a translation. Unknown quote ids are rejected.
func (s *Store) Set(quoteID int, langCode, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[quoteID]
	if !ok {
		return fmt.Errorf("unknown quote id %d", quoteID)
	}
	entry.Translations[langCode] = text
	return nil
}

// Get returns the translation for a quote and language.
func (s *Store) Get(quoteID int, langCode string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[quoteID]
	if !ok {
		return "", false
	}
	text, ok := entry.Translations[langCode]
	return text, ok
}

// Len returns the number of quotes in the store.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// CountLanguage returns how many quotes have a translation for langCode.
func (s *Store) CountLanguage(langCode string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, entry := range s.entries {
		if _, ok := entry.Translations[langCode]; ok {
			n++
		}
	}
	return n
}

// MarshalJSON writes an object keyed by quote id in quote order, with
// non-ASCII and HTML characters left unescaped.
func (s *Store) MarshalJSON() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range s.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(strconv.Itoa(id)))
		buf.WriteByte(':')

		value, err := marshalNoEscape(s.entries[id])
		if err != nil {
			return nil, fmt.Errorf("marshal quote %d: %w", id, err)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// WriteFile persists the store as indented UTF-8 JSON in one pass.
func (s *Store) WriteFile(path string) error {
	raw, err := s.MarshalJSON()
	if err != nil {
		return err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return fmt.Errorf("indent translations: %w", err)
	}
	out.WriteByte('\n')

	if err := file.WriteAtomic(path, out.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write translations file %s: %w", path, err)
	}
	return nil
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
