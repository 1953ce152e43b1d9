package entity

import (
	"fmt"
	"strings"

	"github.com/pmos/brain/internal/brainerr"
	"gopkg.in/yaml.v3"
)

// frontMatterDelim brackets the structured header block at the top of an
// entity file. The body follows, free-form, beneath the closing delimiter.
const frontMatterDelim = "---"

// knownHeaderKeys lists the struct-backed header fields, used to decide
// which mapping-node pairs belong in Header.Extra on decode and which
// Extra keys must be written back out on encode.
var knownHeaderKeys = map[string]bool{
	"schema_version": true, "id": true, "type": true, "version": true,
	"created": true, "updated": true, "name": true, "aliases": true,
	"status": true, "confidence": true, "valid_from": true, "valid_to": true,
	"relationships": true, "events": true, "orphan_reason": true,
}

// split separates raw entity file content into its front-matter block and
// body. Returns brainerr.ErrMalformed when the file has no header block at
// all, per spec.md §4.1 ("readers must tolerate partial writes only by
// detecting absent/malformed header and returning an error").
func split(data []byte) (headerYAML, body string, err error) {
	text := string(data)
	if !strings.HasPrefix(strings.TrimLeft(text, "\n"), frontMatterDelim) {
		return "", "", brainerr.Wrap("entity.split", brainerr.ErrMalformed, fmt.Errorf("missing front-matter delimiter"))
	}
	text = strings.TrimPrefix(strings.TrimLeft(text, "\n"), frontMatterDelim)
	text = strings.TrimPrefix(text, "\n")

	idx := strings.Index(text, "\n"+frontMatterDelim)
	if idx < 0 {
		return "", "", brainerr.Wrap("entity.split", brainerr.ErrMalformed, fmt.Errorf("unterminated front-matter block"))
	}
	headerYAML = text[:idx]
	rest := text[idx+len("\n"+frontMatterDelim):]
	rest = strings.TrimPrefix(rest, "\n")
	return headerYAML, rest, nil
}

// decodeHeader parses a front-matter YAML block into a Header, retaining
// every key the Header struct does not model in Header.Extra so that a
// subsequent encode can restore them.
func decodeHeader(headerYAML string) (Header, *yaml.Node, error) {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(headerYAML), &root); err != nil {
		return Header{}, nil, brainerr.Wrap("entity.decodeHeader", brainerr.ErrMalformed, err)
	}
	if len(root.Content) == 0 {
		return Header{}, nil, brainerr.Wrap("entity.decodeHeader", brainerr.ErrMalformed, fmt.Errorf("empty header"))
	}
	mapping := root.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return Header{}, nil, brainerr.Wrap("entity.decodeHeader", brainerr.ErrMalformed, fmt.Errorf("header is not a mapping"))
	}

	var h Header
	if err := mapping.Decode(&h); err != nil {
		return Header{}, nil, brainerr.Wrap("entity.decodeHeader", brainerr.ErrMalformed, err)
	}

	h.Extra = map[string]interface{}{}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key := mapping.Content[i].Value
		if knownHeaderKeys[key] {
			continue
		}
		var v interface{}
		if err := mapping.Content[i+1].Decode(&v); err == nil {
			h.Extra[key] = v
		}
	}

	return h, &root, nil
}

// encodeHeader serializes h back to YAML. When orig is non-nil, scalar and
// sequence values for keys already present are updated in place and
// existing key order is preserved (grounded on the teacher's
// SetReposInYAML node-surgery pattern); new keys are appended at the end,
// satisfying spec.md §6's "key order preserved; unknown keys preserved".
func encodeHeader(h Header, orig *yaml.Node) (string, error) {
	var fresh yaml.Node
	if err := fresh.Encode(h); err != nil {
		return "", brainerr.Wrap("entity.encodeHeader", brainerr.ErrIO, err)
	}
	freshMapping := &fresh

	var mapping *yaml.Node
	if orig != nil && len(orig.Content) > 0 && orig.Content[0].Kind == yaml.MappingNode {
		mapping = orig.Content[0]
	} else {
		mapping = &yaml.Node{Kind: yaml.MappingNode}
	}

	setKey := func(key string, value *yaml.Node) {
		for i := 0; i+1 < len(mapping.Content); i += 2 {
			if mapping.Content[i].Value == key {
				mapping.Content[i+1] = value
				return
			}
		}
		mapping.Content = append(mapping.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: key}, value)
	}

	for i := 0; i+1 < len(freshMapping.Content); i += 2 {
		key := freshMapping.Content[i].Value
		setKey(key, freshMapping.Content[i+1])
	}
	for key, value := range h.Extra {
		var v yaml.Node
		if err := v.Encode(value); err != nil {
			continue
		}
		setKey(key, &v)
	}

	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{mapping}}
	var buf strings.Builder
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return "", brainerr.Wrap("entity.encodeHeader", brainerr.ErrIO, err)
	}
	if err := enc.Close(); err != nil {
		return "", brainerr.Wrap("entity.encodeHeader", brainerr.ErrIO, err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// Marshal renders an Entity back to its on-disk byte-for-byte form.
func Marshal(e Entity, orig *yaml.Node) ([]byte, error) {
	headerYAML, err := encodeHeader(e.Header, orig)
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	sb.WriteString(frontMatterDelim)
	sb.WriteString("\n")
	sb.WriteString(headerYAML)
	sb.WriteString("\n")
	sb.WriteString(frontMatterDelim)
	sb.WriteString("\n")
	sb.WriteString(e.Body)
	return []byte(sb.String()), nil
}

// Unmarshal parses raw entity file bytes into an Entity and the original
// header yaml.Node (needed by Marshal to preserve key order on rewrite).
func Unmarshal(path string, data []byte) (Entity, *yaml.Node, error) {
	headerYAML, body, err := split(data)
	if err != nil {
		return Entity{}, nil, err
	}
	h, node, err := decodeHeader(headerYAML)
	if err != nil {
		return Entity{}, nil, err
	}
	return Entity{Path: path, Header: h, Body: body}, node, nil
}
