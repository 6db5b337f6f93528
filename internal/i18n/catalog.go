// Package i18n holds the bilingual (English/French) user-facing message
// catalogs. Catalogs are embedded YAML keyed by message ID; lookup falls back
// to English when a language or key is missing.
package i18n

import (
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed catalogs/*.yaml
var catalogsFS embed.FS

const (
	LangEnglish = "en"
	LangFrench  = "fr"
)

// Catalog holds every loaded language keyed by language code.
type Catalog struct {
	messages map[string]map[string]string
}

// Load parses the embedded catalogs. It fails if the English catalog is
// missing or any file is malformed.
func Load() (*Catalog, error) {
	entries, err := catalogsFS.ReadDir("catalogs")
	if err != nil {
		return nil, fmt.Errorf("failed to read catalogs directory: %w", err)
	}

	c := &Catalog{messages: make(map[string]map[string]string)}
	for _, entry := range entries {
		lang := entry.Name()
		if ext := ".yaml"; len(lang) > len(ext) && lang[len(lang)-len(ext):] == ext {
			lang = lang[:len(lang)-len(ext)]
		}

		content, err := catalogsFS.ReadFile("catalogs/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog %s: %w", entry.Name(), err)
		}

		msgs := make(map[string]string)
		if err := yaml.Unmarshal(content, &msgs); err != nil {
			return nil, fmt.Errorf("failed to parse catalog %s: %w", entry.Name(), err)
		}
		c.messages[lang] = msgs
	}

	if _, ok := c.messages[LangEnglish]; !ok {
		return nil, fmt.Errorf("english catalog is required")
	}

	return c, nil
}

// For returns a Localizer bound to the given language.
func (c *Catalog) For(lang string) *Localizer {
	if _, ok := c.messages[lang]; !ok {
		lang = LangEnglish
	}
	return &Localizer{catalog: c, lang: lang}
}

// Localizer formats messages in a single language.
type Localizer struct {
	catalog *Catalog
	lang    string
}

// Lang returns the bound language code.
func (l *Localizer) Lang() string {
	return l.lang
}

// T looks up a message by key and interpolates fmt-style arguments. Unknown
// keys return the key itself so a missing translation is visible rather than
// silent.
func (l *Localizer) T(key string, args ...any) string {
	msg, ok := l.catalog.messages[l.lang][key]
	if !ok {
		msg, ok = l.catalog.messages[LangEnglish][key]
	}
	if !ok {
		return key
	}
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}
