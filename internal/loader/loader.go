// Package loader reads ambiance YAML files into plain nested values.
//
// A scalar tagged !include is replaced by the parsed contents of the named
// file, resolved relative to the file that contains the tag:
//
//	music: !include music.yaml
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// IncludeTag marks a scalar naming a file to splice in.
const IncludeTag = "!include"

// IncludeCycleError reports a file that includes itself, directly or not.
type IncludeCycleError struct {
	Chain []string
}

func (e *IncludeCycleError) Error() string {
	return fmt.Sprintf("include cycle: %v", e.Chain)
}

// Load parses path and returns its document as maps, slices and scalars.
func Load(path string) (map[string]any, error) {
	root, err := loadNode(path, nil)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if root == nil {
		return out, nil
	}
	if err := root.Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return out, nil
}

// loadNode returns the resolved content node of path, or nil for an empty file.
func loadNode(path string, chain []string) (*yaml.Node, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if slices.Contains(chain, abs) {
		return nil, &IncludeCycleError{Chain: append(slices.Clone(chain), abs)}
	}
	chain = append(chain, abs)

	data, err := os.ReadFile(abs) //nolint:gosec // G304: user supplied ambiance file
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	if err := resolveIncludes(root, filepath.Dir(abs), chain); err != nil {
		return nil, err
	}
	return root, nil
}

func resolveIncludes(n *yaml.Node, dir string, chain []string) error {
	if n.Kind == yaml.ScalarNode && n.Tag == IncludeTag {
		target := n.Value
		if !filepath.IsAbs(target) {
			target = filepath.Join(dir, target)
		}
		included, err := loadNode(target, chain)
		if err != nil {
			var cycle *IncludeCycleError
			if errors.As(err, &cycle) {
				return err
			}
			return fmt.Errorf("%s at line %d: %w", IncludeTag, n.Line, err)
		}
		if included == nil {
			*n = yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: ""}
			return nil
		}
		*n = *included
		return nil
	}
	for _, child := range n.Content {
		if err := resolveIncludes(child, dir, chain); err != nil {
			return err
		}
	}
	return nil
}
