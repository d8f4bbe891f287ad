package detector

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

var lower = cases.Lower(language.Und)

// NormalizeLabel trims and lower-cases a class name so model and configuration
// vocabularies compare reliably.
func NormalizeLabel(s string) string {
	return lower.String(strings.TrimSpace(s))
}

// NormalizeLabels applies NormalizeLabel to every entry.
func NormalizeLabels(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = NormalizeLabel(s)
	}
	return out
}

type dataYAML struct {
	Names yaml.Node `yaml:"names"`
}

// LoadLabels reads class names from an ultralytics data.yaml. The names key may
// be a sequence or an index map ({0: box, 1: hole}).
func LoadLabels(path string) ([]string, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	labels, err := ParseLabels(raw)
	if err != nil {
		return nil, fmt.Errorf("parse labels %s: %w", path, err)
	}
	return labels, nil
}

// ParseLabels decodes the names key of a data.yaml document.
func ParseLabels(raw []byte) ([]string, error) {
	var doc dataYAML
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	switch doc.Names.Kind {
	case yaml.SequenceNode:
		var names []string
		if err := doc.Names.Decode(&names); err != nil {
			return nil, err
		}
		return NormalizeLabels(names), nil

	case yaml.MappingNode:
		var indexed map[int]string
		if err := doc.Names.Decode(&indexed); err != nil {
			return nil, err
		}
		ids := make([]int, 0, len(indexed))
		for id := range indexed {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		names := make([]string, len(ids))
		for i, id := range ids {
			if id != i {
				return nil, fmt.Errorf("class ids must be contiguous from 0, missing %d", i)
			}
			names[i] = indexed[id]
		}
		return NormalizeLabels(names), nil

	case 0:
		return nil, errors.New("missing names key")
	default:
		return nil, errors.New("names must be a list or an index map")
	}
}

// resolveLabels picks inline labels over the labels file.
func resolveLabels(cfg Config) ([]string, error) {
	if len(cfg.Labels) > 0 {
		return NormalizeLabels(cfg.Labels), nil
	}
	if cfg.LabelsPath != "" {
		return LoadLabels(cfg.LabelsPath)
	}
	return nil, errors.New("no class labels configured (set labels or labels_path)")
}
