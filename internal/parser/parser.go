package parser

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

type Document struct {
	Frontmatter map[string]any
	Body        string
	SourceFile  string

	// node keeps the parsed mapping so Render can preserve key order and
	// formatting of untouched values.
	node *yaml.Node
}

var (
	ErrNoFrontmatter = errors.New("no frontmatter found")
	ErrInvalidYAML   = errors.New("invalid YAML in frontmatter")
	ErrNotMapping    = errors.New("frontmatter is not a mapping")
)

const delimiter = "---"

func ParseFile(fsys afero.Fs, path string) (*Document, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, err
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	doc.SourceFile = path
	return doc, nil
}

func Parse(content []byte) (*Document, error) {
	content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	trimmed := bytes.TrimLeft(content, "\ufeff\n\r\t ")
	if !bytes.HasPrefix(trimmed, []byte(delimiter+"\n")) {
		return nil, ErrNoFrontmatter
	}

	rest := trimmed[len(delimiter+"\n"):]
	yamlBytes, body, ok := splitClosing(rest)
	if !ok {
		return nil, ErrNoFrontmatter
	}

	doc := &Document{Body: string(body), Frontmatter: map[string]any{}}
	if len(bytes.TrimSpace(yamlBytes)) == 0 {
		return doc, nil
	}

	var root yaml.Node
	if err := yaml.Unmarshal(yamlBytes, &root); err != nil {
		return nil, ErrInvalidYAML
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return doc, nil
	}
	mapping := root.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return nil, ErrNotMapping
	}

	var frontmatter map[string]any
	if err := mapping.Decode(&frontmatter); err != nil {
		return nil, ErrInvalidYAML
	}
	if frontmatter != nil {
		doc.Frontmatter = frontmatter
	}
	doc.node = mapping
	return doc, nil
}

// splitClosing finds the closing delimiter, which must sit on its own line.
func splitClosing(rest []byte) ([]byte, []byte, bool) {
	if bytes.HasPrefix(rest, []byte(delimiter+"\n")) {
		return nil, rest[len(delimiter+"\n"):], true
	}
	if bytes.Equal(rest, []byte(delimiter)) {
		return nil, nil, true
	}
	marker := []byte("\n" + delimiter + "\n")
	if end := bytes.Index(rest, marker); end != -1 {
		return rest[:end+1], rest[end+len(marker):], true
	}
	if bytes.HasSuffix(rest, []byte("\n"+delimiter)) {
		return rest[:len(rest)-len(delimiter)], nil, true
	}
	return nil, nil, false
}

// New builds a document that has not been read from disk. Keys listed in
// order are written first, remaining keys follow alphabetically.
func New(frontmatter map[string]any, order []string, body string) *Document {
	if frontmatter == nil {
		frontmatter = map[string]any{}
	}
	mapping := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, key := range order {
		if _, ok := frontmatter[key]; !ok {
			continue
		}
		mapping.Content = append(mapping.Content, keyNode(key), &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null"})
	}
	return &Document{Frontmatter: frontmatter, Body: body, node: mapping}
}

// Render serialises the document back to markdown. Keys already present keep
// their position; values that did not change keep their original formatting.
func Render(doc *Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("render: nil document")
	}
	mapping := doc.node
	if mapping == nil {
		mapping = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	}

	seen := make(map[string]struct{}, len(doc.Frontmatter))
	content := make([]*yaml.Node, 0, len(mapping.Content))
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		keyNode, valueNode := mapping.Content[i], mapping.Content[i+1]
		key := keyNode.Value
		value, ok := doc.Frontmatter[key]
		if !ok {
			continue
		}
		seen[key] = struct{}{}
		if !sameValue(valueNode, value) {
			encoded, err := encodeValue(value)
			if err != nil {
				return nil, fmt.Errorf("encoding %s: %w", key, err)
			}
			valueNode = encoded
		}
		content = append(content, keyNode, valueNode)
	}

	for _, key := range sortedKeys(doc.Frontmatter) {
		if _, ok := seen[key]; ok {
			continue
		}
		encoded, err := encodeValue(doc.Frontmatter[key])
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", key, err)
		}
		content = append(content, keyNode(key), encoded)
	}

	var buf bytes.Buffer
	buf.WriteString(delimiter + "\n")
	if len(content) > 0 {
		out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Content: content, Style: mapping.Style}
		var yamlBuf bytes.Buffer
		enc := yaml.NewEncoder(&yamlBuf)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return nil, fmt.Errorf("encoding frontmatter: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encoding frontmatter: %w", err)
		}
		buf.Write(yamlBuf.Bytes())
	}
	buf.WriteString(delimiter + "\n")
	buf.WriteString(doc.Body)

	doc.node = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Content: content}
	return buf.Bytes(), nil
}

func keyNode(key string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
}

func encodeValue(value any) (*yaml.Node, error) {
	var node yaml.Node
	if err := node.Encode(value); err != nil {
		return nil, err
	}
	return &node, nil
}

func sameValue(node *yaml.Node, value any) bool {
	var decoded any
	if err := node.Decode(&decoded); err != nil {
		return false
	}
	return equalValues(decoded, value)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sortStrings(keys)
	return keys
}

// StringList accepts a scalar string or a list of strings, the two shapes a
// frontmatter list field takes when edited by hand.
func StringList(value any) ([]string, error) {
	if value == nil {
		return nil, nil
	}
	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		return []string{v}, nil
	case []string:
		return compact(v), nil
	case []any:
		values := make([]string, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("list items must be strings")
			}
			values = append(values, s)
		}
		return compact(values), nil
	default:
		return nil, fmt.Errorf("value must be string or list of strings")
	}
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			continue
		}
		out = append(out, value)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
