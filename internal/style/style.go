// Package style composes the CSS fragment embedded in rendered maps.
package style

import (
	"strings"

	"github.com/agentic-research/mapmaker/api"
)

// DefaultKey is the feature property used for per-country selectors.
const DefaultKey = "ADM0_A3"

// Build concatenates one rule per non-empty base entry, then one rule per
// country with a non-empty override, both in declaration order. Country
// rules are scoped to the class ".<key>-<code>", matching the labels the
// renderer puts on each path.
func Build(base api.Rules, countries api.Countries, key string) string {
	if key == "" {
		key = DefaultKey
	}
	var b strings.Builder
	for _, r := range base {
		writeRule(&b, r.Selector, r.Decls)
	}
	for _, c := range countries {
		writeRule(&b, Selector(key, c.Code), c.Decls)
	}
	return b.String()
}

// Selector returns the class selector for a property value.
func Selector(key, value string) string {
	return "." + ClassName(key, value)
}

// ClassName is the class token "<key>-<value>".
func ClassName(key, value string) string {
	return key + "-" + value
}

func writeRule(b *strings.Builder, selector string, d api.Declarations) {
	if d.Empty() {
		return
	}
	b.WriteString(selector)
	b.WriteByte('{')
	if raw := strings.TrimSpace(d.Raw); raw != "" {
		b.WriteString(raw)
		if !strings.HasSuffix(raw, ";") {
			b.WriteByte(';')
		}
	}
	for _, p := range d.Props {
		b.WriteString(p.Name)
		b.WriteByte(':')
		b.WriteString(p.Value)
		b.WriteByte(';')
	}
	b.WriteString("}\n")
}
