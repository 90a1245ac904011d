// Package catalog maps marketplace item ids to license binding modes.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/purlock/purlock/internal/models"
	"gopkg.in/yaml.v3"
)

// ErrUnknownItem indicates the item id is not in the configured catalog.
var ErrUnknownItem = errors.New("unknown item id")

// Catalog is the static item-to-mode mapping loaded at process start.
// It is read-only after construction.
type Catalog struct {
	modes map[string]models.BindingMode
}

// New builds a catalog from an item-id to binding-mode map.
// Any mode other than device or network is a configuration error.
func New(modes map[string]models.BindingMode) (*Catalog, error) {
	if len(modes) == 0 {
		return nil, errors.New("catalog has no items configured")
	}
	m := make(map[string]models.BindingMode, len(modes))
	for itemID, mode := range modes {
		if itemID == "" {
			return nil, errors.New("catalog contains an empty item id")
		}
		if !mode.IsValid() {
			return nil, fmt.Errorf("item %s: invalid binding mode %q", itemID, mode)
		}
		m[itemID] = mode
	}
	return &Catalog{modes: m}, nil
}

// Resolve returns the binding mode configured for an item id.
// Unknown ids return ErrUnknownItem.
func (c *Catalog) Resolve(itemID string) (models.BindingMode, error) {
	mode, ok := c.modes[itemID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	return mode, nil
}

// Len returns the number of configured items.
func (c *Catalog) Len() int {
	return len(c.modes)
}

// catalogFile is the YAML shape of a catalog file:
//
//	items:
//	  "100": device
//	  "200": network
type catalogFile struct {
	Items map[string]models.BindingMode `yaml:"items"`
}

// LoadFile reads a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}
	return New(f.Items)
}

// Parse builds a catalog from the compact "item:mode,item:mode" form used by
// the CATALOG environment variable.
func Parse(s string) (*Catalog, error) {
	modes := make(map[string]models.BindingMode)
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		itemID, mode, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("invalid catalog entry %q", entry)
		}
		modes[strings.TrimSpace(itemID)] = models.BindingMode(strings.TrimSpace(mode))
	}
	return New(modes)
}
