// Package identity maps recognized person names to external profile IDs.
package identity

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed identities.yaml
var defaultTableYAML []byte

// Entry ties an external ID to the label a person name is matched against.
type Entry struct {
	ExternalID string `yaml:"external_id"`
	Label      string `yaml:"label"`
}

// Table is an ordered, read-only identity table. It is safe for concurrent use.
type Table struct {
	entries []Entry
}

type tableDocument struct {
	Identities []Entry `yaml:"identities"`
}

// NewTable copies entries into a table.
func NewTable(entries []Entry) *Table {
	return &Table{entries: append([]Entry(nil), entries...)}
}

// Default returns the table compiled into the binary.
func Default() (*Table, error) {
	return Parse(defaultTableYAML)
}

// Load reads a YAML table from path, or the embedded table when path is empty.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read identity table: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML identity table.
func Parse(data []byte) (*Table, error) {
	var doc tableDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("could not parse identity table: %w", err)
	}
	for i, e := range doc.Identities {
		if strings.TrimSpace(e.ExternalID) == "" || strings.TrimSpace(e.Label) == "" {
			return nil, fmt.Errorf("identity table entry %d: %w", i, errIncompleteEntry)
		}
	}
	return NewTable(doc.Identities), nil
}

var errIncompleteEntry = errors.New("external_id and label are required")

// Resolve returns the external ID of the first entry whose label contains
// name. An empty name never matches.
func (t *Table) Resolve(name string) (string, bool) {
	if t == nil || name == "" {
		return "", false
	}
	for _, e := range t.entries {
		if strings.Contains(e.Label, name) {
			return e.ExternalID, true
		}
	}
	return "", false
}

// Len returns the number of entries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}
