package config

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
	"gopkg.in/yaml.v3"

	"github.com/MimeLyc/quote-translator/internal/quote"
)

// DefaultLanguages are the six target languages of the quote catalogue.
var DefaultLanguages = []quote.Language{
	{Code: "ko", Name: "Korean"},
	{Code: "ja", Name: "Japanese"},
	{Code: "zh", Name: "Chinese (Simplified)"},
	{Code: "es", Name: "Spanish"},
	{Code: "fr", Name: "French"},
	{Code: "pt", Name: "Portuguese"},
}

type languagesFile struct {
	Languages []quote.Language `yaml:"languages"`
}

func languagesFromEnv() ([]quote.Language, error) {
	if path := getEnvString("LANGUAGES_FILE", ""); path != "" {
		return LoadLanguagesFile(path)
	}
	if list := getEnvString("TARGET_LANGUAGES", ""); list != "" {
		return ParseLanguages(list)
	}
	return append([]quote.Language(nil), DefaultLanguages...), nil
}

// ParseLanguages parses a comma separated list of "code" or "code:Name"
// entries. Entries without a name get the English display name of the code.
func ParseLanguages(list string) ([]quote.Language, error) {
	ret := make([]quote.Language, 0)
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		code, name, _ := strings.Cut(item, ":")
		lang, err := newLanguage(code, name)
		if err != nil {
			return nil, err
		}
		ret = append(ret, lang)
	}
	if err := validateLanguages(ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// LoadLanguagesFile reads a YAML document of the form
//
//	languages:
//	  - code: ko
//	    name: Korean
func LoadLanguagesFile(path string) ([]quote.Language, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read languages file %s: %w", path, err)
	}

	var doc languagesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse languages file %s: %w", path, err)
	}

	ret := make([]quote.Language, 0, len(doc.Languages))
	for _, l := range doc.Languages {
		lang, err := newLanguage(l.Code, l.Name)
		if err != nil {
			return nil, err
		}
		ret = append(ret, lang)
	}
	if err := validateLanguages(ret); err != nil {
		return nil, err
	}
	return ret, nil
}

func newLanguage(code, name string) (quote.Language, error) {
	code = strings.TrimSpace(code)
	name = strings.TrimSpace(name)

	tag, err := language.Parse(code)
	if err != nil {
		return quote.Language{}, fmt.Errorf("invalid language code %q: %w", code, err)
	}
	if name == "" {
		name = display.English.Tags().Name(tag)
	}
	return quote.Language{Code: code, Name: name}, nil
}

func validateLanguages(langs []quote.Language) error {
	if len(langs) == 0 {
		return fmt.Errorf("at least one target language is required")
	}
	seen := make(map[string]struct{}, len(langs))
	for _, l := range langs {
		if l.Code == "" {
			return fmt.Errorf("language code is required")
		}
		if l.Name == "" {
			return fmt.Errorf("language %s has no name", l.Code)
		}
		if _, ok := seen[l.Code]; ok {
			return fmt.Errorf("duplicate language code %s", l.Code)
		}
		seen[l.Code] = struct{}{}
	}
	return nil
}
