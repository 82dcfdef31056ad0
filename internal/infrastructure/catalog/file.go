// Package catalog loads the ingredient vocabulary from a YAML file.
package catalog

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/recipebox/backend/internal/domain"
)

// FileCatalog is a domain.IngredientCatalog read from a YAML document of the form
//
//	ingredients:
//	  - {id: 1, name: garlic, category: 3}
//	aliases:
//	  - {id: 1, alias: celery stalk, ingredient: 9}
//
// Row order in the file is the table order the matcher uses for tie-breaks.
type FileCatalog struct {
	path    string
	mu      sync.RWMutex
	catalog domain.Catalog
}

// NewFileCatalog reads and validates path
func NewFileCatalog(path string) (*FileCatalog, error) {
	c := &FileCatalog{path: path}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the file, keeping the previous contents on failure
func (c *FileCatalog) Reload() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}

	parsed, err := Parse(data)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrCatalogUnavailable, c.path, err)
	}

	c.mu.Lock()
	c.catalog = *parsed
	c.mu.Unlock()
	return nil
}

// Parse decodes and validates a catalog document
func Parse(data []byte) (*domain.Catalog, error) {
	var catalog domain.Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	seen := make(map[int64]bool, len(catalog.Ingredients))
	for i, ing := range catalog.Ingredients {
		if strings.TrimSpace(ing.Name) == "" {
			return nil, fmt.Errorf("ingredient #%d has no name", i+1)
		}
		if seen[ing.ID] {
			return nil, fmt.Errorf("duplicate ingredient id %d", ing.ID)
		}
		seen[ing.ID] = true
	}
	for i, alias := range catalog.Aliases {
		if strings.TrimSpace(alias.Alias) == "" {
			return nil, fmt.Errorf("alias #%d is empty", i+1)
		}
	}

	return &catalog, nil
}

// ListIngredients returns a copy of the ingredient table
func (c *FileCatalog) ListIngredients(ctx context.Context) ([]domain.CanonicalIngredient, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.CanonicalIngredient(nil), c.catalog.Ingredients...), nil
}

// ListAliases returns a copy of the alias table
func (c *FileCatalog) ListAliases(ctx context.Context) ([]domain.IngredientAlias, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.IngredientAlias(nil), c.catalog.Aliases...), nil
}
