package api

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Spec is a fully merged map specification.
// It maps a shape-file dataset, a feature selection and a projection onto a
// single styled SVG document.
type Spec struct {
	// ShapeData names the dataset to download and read.
	ShapeData ShapeData `yaml:"shape_data"`
	// Repos is the table of known dataset repositories, keyed by id.
	Repos map[string]Repo `yaml:"repos"`
	// Parameters select and project the features.
	Parameters Parameters `yaml:"parameters"`
	// Style holds base CSS rules, in declaration order.
	Style Rules `yaml:"style"`
}

// ShapeData locates a dataset archive within a repository.
type ShapeData struct {
	Repo     string `yaml:"repo"`
	Base     string `yaml:"base"`
	Filename string `yaml:"filename"`
}

// Repo describes a dataset repository.
type Repo struct {
	BaseURL string `yaml:"base_url"`
}

// Parameters controls feature selection, labelling and projection.
type Parameters struct {
	// Countries is the ordered set of country codes to keep, each with an
	// optional style override.
	Countries Countries `yaml:"countries"`
	// Filter selects the filter mode. Nil means no filtering.
	Filter *Filter `yaml:"filter"`
	// Classes lists the feature properties used to build path class labels.
	Classes    []string   `yaml:"classes"`
	Projection Projection `yaml:"projection"`
}

// Filter modes.
const (
	FilterCountries = "countries"
	FilterArray     = "array"
	FilterAll       = "all"
)

// Filter describes how features are selected from the dataset.
type Filter struct {
	Type  string   `yaml:"type"`
	Key   string   `yaml:"key"`
	Array []string `yaml:"array"`
}

// Projection parameters. Angles are in degrees.
type Projection struct {
	Type      string    `yaml:"type"`
	Center    []float64 `yaml:"center"`
	Scale     float64   `yaml:"scale"`
	Width     float64   `yaml:"width"`
	Height    float64   `yaml:"height"`
	Rotation  []float64 `yaml:"rotation"`
	Parallels []float64 `yaml:"parallels"`
	// Translate overrides the default [width/2, height/2] offset.
	Translate []float64 `yaml:"translate"`
	// LegacyTranslate reproduces the historical [width/2, width/2] offset.
	LegacyTranslate bool `yaml:"legacy_translate"`
	// Precision is the number of decimals kept in path data. Nil means 3.
	Precision *int `yaml:"precision"`
}

// Property is a single CSS declaration.
type Property struct {
	Name  string
	Value string
}

// Declarations is a CSS declaration block. It decodes either from a mapping
// (property: value, order kept) or from a raw string body.
type Declarations struct {
	Raw   string
	Props []Property
}

// Empty reports whether the block would render nothing.
func (d Declarations) Empty() bool {
	return strings.TrimSpace(d.Raw) == "" && len(d.Props) == 0
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Declarations) UnmarshalYAML(n *yaml.Node) error {
	*d = Declarations{}
	switch n.Kind {
	case yaml.ScalarNode:
		if falsy(n) {
			return nil
		}
		d.Raw = n.Value
		return nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if v.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: value of %q must be a scalar", v.Line, k.Value)
			}
			if falsy(v) {
				continue
			}
			d.Props = append(d.Props, Property{Name: k.Value, Value: v.Value})
		}
		return nil
	case yaml.AliasNode:
		return d.UnmarshalYAML(n.Alias)
	default:
		return fmt.Errorf("line %d: declarations must be a mapping or a string", n.Line)
	}
}

// Rule is a selector with its declarations.
type Rule struct {
	Selector string
	Decls    Declarations
}

// Rules is an ordered list of CSS rules decoded from a mapping.
type Rules []Rule

// UnmarshalYAML implements yaml.Unmarshaler.
func (r *Rules) UnmarshalYAML(n *yaml.Node) error {
	*r = nil
	if n.Kind == yaml.ScalarNode && falsy(n) {
		return nil
	}
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: style must be a mapping of selector to declarations", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		var d Declarations
		if err := d.UnmarshalYAML(n.Content[i+1]); err != nil {
			return fmt.Errorf("style %q: %w", n.Content[i].Value, err)
		}
		*r = append(*r, Rule{Selector: n.Content[i].Value, Decls: d})
	}
	return nil
}

// Country is a selected country code with an optional style override.
type Country struct {
	Code  string
	Decls Declarations
}

// Countries is the ordered country selection. It decodes from a mapping of
// code to declarations or from a plain list of codes.
type Countries []Country

// Codes returns the country codes in declaration order.
func (c Countries) Codes() []string {
	out := make([]string, 0, len(c))
	for _, ct := range c {
		out = append(out, ct.Code)
	}
	return out
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *Countries) UnmarshalYAML(n *yaml.Node) error {
	*c = nil
	switch n.Kind {
	case yaml.ScalarNode:
		if falsy(n) {
			return nil
		}
		return fmt.Errorf("line %d: countries must be a mapping or a list", n.Line)
	case yaml.SequenceNode:
		for _, it := range n.Content {
			if it.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: country code must be a scalar", it.Line)
			}
			*c = append(*c, Country{Code: it.Value})
		}
		return nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			var d Declarations
			if err := d.UnmarshalYAML(n.Content[i+1]); err != nil {
				return fmt.Errorf("country %q: %w", n.Content[i].Value, err)
			}
			*c = append(*c, Country{Code: n.Content[i].Value, Decls: d})
		}
		return nil
	default:
		return fmt.Errorf("line %d: countries must be a mapping or a list", n.Line)
	}
}

func falsy(n *yaml.Node) bool {
	if n.Kind != yaml.ScalarNode {
		return false
	}
	switch n.ShortTag() {
	case "!!null":
		return true
	case "!!bool":
		return strings.EqualFold(n.Value, "false")
	}
	return n.Value == ""
}
