package normalize

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/wine-ingest/constants"
	"github.com/joseph-ayodele/wine-ingest/internal/entity"
)

//go:embed dictionary.yaml
var defaultDictionary []byte

// FieldSynonyms lists the header spellings of one canonical field.
type FieldSynonyms struct {
	Field    entity.Field `yaml:"field"`
	Synonyms []string     `yaml:"synonyms"`
}

// TypeRule maps value keywords to a wine type.
type TypeRule struct {
	Type     constants.WineType `yaml:"type"`
	Keywords []string           `yaml:"keywords"`
}

// Dictionary is the immutable synonym and keyword data the normalizer runs on.
type Dictionary struct {
	Version       string            `yaml:"version"`
	Fields        []FieldSynonyms   `yaml:"fields"`
	TypeKeywords  []TypeRule        `yaml:"type_keywords"`
	Placeholders  []string          `yaml:"placeholders"`
	CategoryTerms map[string]string `yaml:"category_terms"`
	Suppliers     []string          `yaml:"suppliers"`
	Wineries      []string          `yaml:"wineries"`
	SupplierHints []string          `yaml:"supplier_hints"`

	synonyms     []synonym
	placeholders map[string]struct{}
	categories   map[string]constants.WineType
	suppliers    []string
	wineries     []string
	hints        []string
}

type synonym struct {
	clean     string
	stem      string
	field     entity.Field
	authority int
}

// DefaultDictionary parses the embedded dictionary.
func DefaultDictionary() (*Dictionary, error) {
	return ParseDictionary(defaultDictionary)
}

// LoadDictionary reads a dictionary file, or the embedded default when path is empty.
func LoadDictionary(path string) (*Dictionary, error) {
	if path == "" {
		return DefaultDictionary()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	return ParseDictionary(data)
}

// ParseDictionary decodes YAML and builds the lookup indexes.
func ParseDictionary(data []byte) (*Dictionary, error) {
	var d Dictionary
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode dictionary: %w", err)
	}
	if len(d.Fields) == 0 {
		return nil, fmt.Errorf("dictionary has no fields")
	}

	seen := map[entity.Field]bool{}
	for _, fs := range d.Fields {
		if _, ok := entity.ParseField(string(fs.Field)); !ok {
			return nil, fmt.Errorf("dictionary: unknown field %q", fs.Field)
		}
		if seen[fs.Field] {
			return nil, fmt.Errorf("dictionary: field %q listed twice", fs.Field)
		}
		seen[fs.Field] = true
		for _, s := range fs.Synonyms {
			clean := CleanHeader(s)
			if clean == "" {
				continue
			}
			d.synonyms = append(d.synonyms, synonym{
				clean:     clean,
				stem:      stemPhrase(clean),
				field:     fs.Field,
				authority: len(d.synonyms),
			})
		}
	}

	for _, r := range d.TypeKeywords {
		if !constants.IsWineType(string(r.Type)) {
			return nil, fmt.Errorf("dictionary: unknown wine type %q", r.Type)
		}
	}

	d.placeholders = make(map[string]struct{}, len(d.Placeholders))
	for _, p := range d.Placeholders {
		d.placeholders[strings.ToLower(strings.TrimSpace(p))] = struct{}{}
	}

	d.categories = make(map[string]constants.WineType, len(d.CategoryTerms))
	for term, t := range d.CategoryTerms {
		if !constants.IsWineType(t) {
			return nil, fmt.Errorf("dictionary: category %q has unknown wine type %q", term, t)
		}
		d.categories[Fold(term)] = constants.WineType(t)
	}

	d.suppliers = compactAll(d.Suppliers)
	d.wineries = compactAll(d.Wineries)
	for _, h := range d.SupplierHints {
		if h = compact(h); h != "" {
			d.hints = append(d.hints, h)
		}
	}
	return &d, nil
}

// IsPlaceholder reports whether a trimmed cell only stands for "no value".
func (d *Dictionary) IsPlaceholder(s string) bool {
	_, ok := d.placeholders[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// CategoryType returns the wine type of a bare category label such as "Bolle".
func (d *Dictionary) CategoryType(s string) (constants.WineType, bool) {
	t, ok := d.categories[Fold(s)]
	return t, ok
}

func compactAll(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if c := compact(n); len([]rune(c)) >= partyMinLen {
			out = append(out, c)
		}
	}
	return out
}
