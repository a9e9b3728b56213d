package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// mergeNodes overlays src onto dst and returns the result.
// Mappings merge key by key (dst keeps its key order, new keys append);
// anything else in src replaces dst.
func mergeNodes(dst, src *yaml.Node) *yaml.Node {
	if src == nil {
		return dst
	}
	if dst == nil || dst.Kind != yaml.MappingNode || src.Kind != yaml.MappingNode {
		return src
	}
	for i := 0; i+1 < len(src.Content); i += 2 {
		k, v := src.Content[i], src.Content[i+1]
		if j := mappingIndex(dst, k.Value); j >= 0 {
			dst.Content[j+1] = mergeNodes(dst.Content[j+1], v)
			continue
		}
		dst.Content = append(dst.Content, k, v)
	}
	return dst
}

func mappingIndex(m *yaml.Node, key string) int {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return i
		}
	}
	return -1
}

// parseDocument parses a YAML (or JSON) document and returns its root
// mapping. An empty document yields an empty mapping.
func parseDocument(data []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return emptyMapping(), nil
	}
	root := doc.Content[0]
	if root.Kind == yaml.ScalarNode && root.ShortTag() == "!!null" {
		return emptyMapping(), nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("top level must be a mapping, got %s", kindName(root.Kind))
	}
	return root, nil
}

// encodeOverride turns an in-memory override into a mapping node.
// Map keys are encoded in sorted order.
func encodeOverride(override map[string]any) (*yaml.Node, error) {
	var n yaml.Node
	if err := n.Encode(override); err != nil {
		return nil, err
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("override must be a mapping, got %s", kindName(n.Kind))
	}
	return &n, nil
}

func emptyMapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "empty"
	}
}
