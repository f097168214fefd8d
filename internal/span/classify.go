package span

import (
	"strings"

	"github.com/polematch/internal/normalize"
	"github.com/polematch/internal/symspell"
)

// CategoryRule lists the keywords that file a wire under Category. Type
// keywords describe the wire itself ("primary", "fiber"); owner keywords
// name companies known to attach only one kind of wire.
type CategoryRule struct {
	Category Category `yaml:"category" json:"category" validate:"required,oneof=communication electrical other"`
	Types    []string `yaml:"types" json:"types"`
	Owners   []string `yaml:"owners" json:"owners"`
}

// Table is the classification data. Rules are tried in order.
type Table struct {
	Rules   []CategoryRule `yaml:"rules" json:"rules" validate:"dive"`
	Default Category       `yaml:"default" json:"default" validate:"omitempty,oneof=communication electrical other"`
}

// Classification explains which keyword decided a category.
type Classification struct {
	Category Category `json:"category"`
	Field    string   `json:"field,omitempty"` // "type" or "owner"
	Keyword  string   `json:"keyword,omitempty"`
	Fuzzy    bool     `json:"fuzzy,omitempty"`
}

type phrase struct {
	text     string
	category Category
}

// Classifier applies a Table. Whole-phrase matches are tried first; when
// none hits, single words are resolved through a spelling-tolerant index
// so "Verizn" still finds "verizon".
type Classifier struct {
	types    []phrase
	owners   []phrase
	typeIdx  *symspell.Index
	ownerIdx *symspell.Index
	fallback Category
}

// NewClassifier compiles a table. cfg tunes the fuzzy lookup; nil uses the
// symspell defaults.
func NewClassifier(table Table, cfg *symspell.Config) *Classifier {
	c := &Classifier{
		typeIdx:  symspell.NewIndex(cfg),
		ownerIdx: symspell.NewIndex(cfg),
		fallback: table.Default,
	}
	if c.fallback == "" {
		c.fallback = Other
	}
	for _, rule := range table.Rules {
		c.types = addPhrases(c.types, c.typeIdx, rule.Types, rule.Category)
		c.owners = addPhrases(c.owners, c.ownerIdx, rule.Owners, rule.Category)
	}
	return c
}

func addPhrases(list []phrase, idx *symspell.Index, keywords []string, cat Category) []phrase {
	for _, kw := range keywords {
		text := normalize.Text(kw)
		if text == "" {
			continue
		}
		list = append(list, phrase{text: text, category: cat})
		if !strings.Contains(text, " ") {
			idx.Add(text, string(cat), 1)
		}
	}
	return list
}

// Classify files a wire by its type first and its owner second.
func (c *Classifier) Classify(owner, wireType string) Classification {
	if cl, ok := match(c.types, c.typeIdx, wireType); ok {
		cl.Field = "type"
		return cl
	}
	if cl, ok := match(c.owners, c.ownerIdx, owner); ok {
		cl.Field = "owner"
		return cl
	}
	return Classification{Category: c.fallback}
}

// ClassifierStats sizes the fuzzy dictionaries behind a Classifier.
type ClassifierStats struct {
	Types  symspell.DictionaryStats `json:"types"`
	Owners symspell.DictionaryStats `json:"owners"`
}

// Stats reports the single-word keywords available to fuzzy lookup.
func (c *Classifier) Stats() ClassifierStats {
	return ClassifierStats{Types: c.typeIdx.Stats(), Owners: c.ownerIdx.Stats()}
}

func match(phrases []phrase, idx *symspell.Index, raw string) (Classification, bool) {
	text := normalize.Text(raw)
	if text == "" {
		return Classification{}, false
	}

	padded := " " + text + " "
	for _, p := range phrases {
		if strings.Contains(padded, " "+p.text+" ") {
			return Classification{Category: p.category, Keyword: p.text}, true
		}
	}

	for _, word := range strings.Fields(text) {
		if res, ok := idx.Resolve(word); ok {
			return Classification{Category: Category(res.Value), Keyword: strings.ToLower(res.Term), Fuzzy: res.Distance > 0}, true
		}
	}
	return Classification{}, false
}
