// Package i18n loads the embedded participant-facing message catalogs and
// registers them with golang.org/x/text/message.
//
// English is the base locale. Keys missing from another locale fall back
// to the English text.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

// BaseLocale is the fallback locale.
const BaseLocale = "en"

//go:embed locales/*.yaml
var localeFS embed.FS

type catalogFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

// Bundle holds the messages of every locale.
type Bundle struct {
	locales map[string]map[string]string
	catalog *catalog.Builder
	tags    []language.Tag
	matcher language.Matcher
}

var (
	defaultOnce   sync.Once
	defaultBundle *Bundle
	defaultErr    error
)

// Default returns the bundle built from the embedded catalogs.
func Default() (*Bundle, error) {
	defaultOnce.Do(func() {
		defaultBundle, defaultErr = LoadFromFS(localeFS)
	})
	return defaultBundle, defaultErr
}

// LoadFromFS loads locales/*.yaml from fsys.
func LoadFromFS(fsys fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	sort.Strings(paths)

	b := &Bundle{locales: make(map[string]map[string]string)}
	for _, path := range paths {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", path, err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", path, err)
		}
		locale := strings.TrimSpace(file.Locale)
		if locale == "" {
			return nil, fmt.Errorf("catalog %s: locale is required", path)
		}
		if _, dup := b.locales[locale]; dup {
			return nil, fmt.Errorf("catalog %s: locale %q defined twice", path, locale)
		}
		b.locales[locale] = file.Messages
	}
	if _, ok := b.locales[BaseLocale]; !ok {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}
	if err := b.build(); err != nil {
		return nil, err
	}
	return b, nil
}

// build registers every locale with a private catalog, filling gaps from
// the base locale.
func (b *Bundle) build() error {
	base := b.locales[BaseLocale]
	b.catalog = catalog.NewBuilder(catalog.Fallback(language.English))

	locales := b.Locales()
	// Base locale first so the matcher falls back to it.
	sort.SliceStable(locales, func(i, j int) bool { return locales[i] == BaseLocale && locales[j] != BaseLocale })

	for _, locale := range locales {
		tag, err := language.Parse(locale)
		if err != nil {
			return fmt.Errorf("parse locale tag %q: %w", locale, err)
		}
		b.tags = append(b.tags, tag)
		msgs := b.locales[locale]
		for key, text := range base {
			if v, ok := msgs[key]; ok {
				text = v
			}
			if err := b.catalog.SetString(tag, key, text); err != nil {
				return fmt.Errorf("register %s/%s: %w", locale, key, err)
			}
		}
	}
	b.matcher = language.NewMatcher(b.tags)
	return nil
}

// Locales returns the available locale identifiers, sorted.
func (b *Bundle) Locales() []string {
	out := make([]string, 0, len(b.locales))
	for locale := range b.locales {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

// Translator renders messages for one language.
type Translator struct {
	tag     language.Tag
	printer *message.Printer
}

// Translator returns a translator for lang, matched against the available
// locales. Unknown languages get the base locale.
func (b *Bundle) Translator(lang string) *Translator {
	tag := language.English
	if want, err := language.Parse(lang); err == nil {
		_, idx, conf := b.matcher.Match(want)
		if conf != language.No {
			tag = b.tags[idx]
		}
	}
	return &Translator{
		tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(b.catalog)),
	}
}

// Language returns the matched language tag.
func (t *Translator) Language() language.Tag {
	return t.tag
}

// T renders key with printf-style args.
func (t *Translator) T(key string, args ...any) string {
	return t.printer.Sprintf(key, args...)
}

// MustEnglish returns an English translator from the embedded catalogs.
// It panics if they fail to load; intended for tests and defaults.
func MustEnglish() *Translator {
	b, err := Default()
	if err != nil {
		panic(err)
	}
	return b.Translator(BaseLocale)
}
