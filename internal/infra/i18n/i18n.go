// Package i18n looks up localized UI strings for the core-built surfaces
// (tray, context menus). Catalogs are nested JSON objects addressed by
// dotted keys such as "tray.showWindow".
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"

	"golang.org/x/text/language"
)

//go:embed locales/*.json
var locales embed.FS

// Default is the language used when nothing better matches.
const Default = "zh"

var supported = []language.Tag{
	language.Chinese, // first entry is the matcher fallback
	language.English,
}

var matcher = language.NewMatcher(supported)

// Match maps an arbitrary tag ("en-US", "zh-Hans-CN") to a supported
// catalog name.
func Match(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		return Default
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return Default
	}
	base, _ := supported[idx].Base()
	return base.String()
}

// Translator resolves keys against the current language's catalog.
type Translator struct {
	catalogs map[string]map[string]string

	mu   sync.RWMutex
	lang string
}

// New loads the embedded catalogs and selects lang.
func New(lang string) (*Translator, error) {
	entries, err := locales.ReadDir("locales")
	if err != nil {
		return nil, err
	}
	t := &Translator{catalogs: make(map[string]map[string]string, len(entries))}
	for _, e := range entries {
		data, err := locales.ReadFile(path.Join("locales", e.Name()))
		if err != nil {
			return nil, err
		}
		var tree map[string]any
		if err := json.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", e.Name(), err)
		}
		flat := make(map[string]string)
		flatten("", tree, flat)
		t.catalogs[strings.TrimSuffix(e.Name(), ".json")] = flat
	}
	t.SetLanguage(lang)
	return t, nil
}

// SetLanguage switches the active catalog.
func (t *Translator) SetLanguage(lang string) {
	t.mu.Lock()
	t.lang = Match(lang)
	t.mu.Unlock()
}

// Language returns the active catalog name.
func (t *Translator) Language() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lang
}

// T returns the translation for key, or key itself when it has none.
func (t *Translator) T(key string) string {
	if key == "" {
		return ""
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if s, ok := t.catalogs[t.lang][key]; ok {
		return s
	}
	return key
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case string:
			out[key] = val
		case map[string]any:
			flatten(key, val, out)
		}
	}
}
