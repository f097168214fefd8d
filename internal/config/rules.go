package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/polematch/internal/correlate"
	"github.com/polematch/internal/extract"
	"github.com/polematch/internal/reconcile"
	"github.com/polematch/internal/span"
	"github.com/polematch/internal/symspell"
)

//go:embed default_rules.yaml
var defaultRulesYAML []byte

// Rules is everything the engine needs to know about the two exports and
// the span data: where identities live, how to merge attributes and how to
// classify wires. It is data, so a schema change in an export is a YAML
// edit.
type Rules struct {
	Sources        Sources           `yaml:"sources" json:"sources"`
	Correlation    correlate.Options `yaml:"correlation" json:"correlation"`
	Reconcile      reconcile.Rules   `yaml:"reconcile" json:"reconcile"`
	Spans          span.FieldMap     `yaml:"spans" json:"spans"`
	Classification span.Table        `yaml:"classification" json:"classification"`
	Symspell       symspell.Config   `yaml:"symspell" json:"symspell"`
}

// Sources holds one field map per export.
type Sources struct {
	A extract.FieldMap `yaml:"a" json:"a"`
	B extract.FieldMap `yaml:"b" json:"b"`
}

// FieldMap returns the field map for source s.
func (s Sources) FieldMap(src extract.Source) extract.FieldMap {
	if src == extract.SourceB {
		return s.B
	}
	return s.A
}

var rulesValidate = validator.New()

// DefaultRules returns the embedded rules.
func DefaultRules() (*Rules, error) {
	r := &Rules{}
	if err := yaml.Unmarshal(defaultRulesYAML, r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the embedded rules: %w", err)
	}
	return r, nil
}

// LoadRules loads rules with priority: env > file > embedded defaults. An
// empty path skips the file.
func LoadRules(path string) (*Rules, error) {
	r, err := DefaultRules()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load rules file: %w", err)
		}
		if err := r.Merge(data); err != nil {
			return nil, err
		}
	}

	r.ApplyEnv()

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Merge decodes YAML over r. Keys present in data replace the current
// values; lists are replaced, not appended to.
func (r *Rules) Merge(data []byte) error {
	if err := yaml.Unmarshal(data, r); err != nil {
		return fmt.Errorf("parse rules: %w", err)
	}
	return nil
}

// ApplyEnv overrides tunables from POLEMATCH_* variables.
func (r *Rules) ApplyEnv() {
	c := &r.Correlation
	c.GeoCutoffMeters = GetEnvFloat(EnvPrefix+"GEO_CUTOFF_M", c.GeoCutoffMeters)
	c.PartialMinSimilarity = GetEnvFloat(EnvPrefix+"PARTIAL_MIN_SIMILARITY", c.PartialMinSimilarity)
	c.Assignment = correlate.Assignment(strings.ToLower(GetEnv(EnvPrefix+"ASSIGNMENT", string(c.Assignment))))
	c.Workers = GetEnvInt(EnvPrefix+"WORKERS", c.Workers)

	s := &r.Symspell
	s.Enabled = GetEnvBool(EnvPrefix+"SYMSPELL_ENABLED", s.Enabled)
	s.MaxEditDistance = GetEnvInt(EnvPrefix+"SYMSPELL_MAX_EDIT_DISTANCE", s.MaxEditDistance)
	s.MinTermLength = GetEnvInt(EnvPrefix+"SYMSPELL_MIN_TERM_LENGTH", s.MinTermLength)
}

// Validate checks struct tags and the cross-field rules tags cannot say.
func (r *Rules) Validate() error {
	if err := rulesValidate.Struct(r); err != nil {
		return fmt.Errorf("invalid rules: %w", err)
	}

	seen := make(map[string]bool, len(r.Reconcile.Fields))
	for _, f := range r.Reconcile.Fields {
		if seen[f.Field] {
			return fmt.Errorf("invalid rules: reconcile field %q defined twice", f.Field)
		}
		seen[f.Field] = true
		for _, src := range f.Precedence {
			if len(f.Paths[src]) == 0 {
				return fmt.Errorf("invalid rules: reconcile field %q lists source %s without paths", f.Field, src)
			}
		}
	}
	return nil
}
