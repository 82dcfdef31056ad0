package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/recipebox/backend/internal/domain"
)

// ListIngredients returns the ingredient table in id order
func (s *Store) ListIngredients(ctx context.Context) ([]domain.CanonicalIngredient, error) {
	query, args, err := sq.Select("id", "name", "category_id").From("ingredients").OrderBy("id").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}
	defer rows.Close()

	ingredients := []domain.CanonicalIngredient{}
	for rows.Next() {
		var ing domain.CanonicalIngredient
		if err := rows.Scan(&ing.ID, &ing.Name, &ing.CategoryID); err != nil {
			return nil, err
		}
		ingredients = append(ingredients, ing)
	}
	return ingredients, rows.Err()
}

// ListAliases returns the alias table in id order
func (s *Store) ListAliases(ctx context.Context) ([]domain.IngredientAlias, error) {
	query, args, err := sq.Select("id", "alias", "ingredient_id").From("ingredient_aliases").OrderBy("id").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}
	defer rows.Close()

	aliases := []domain.IngredientAlias{}
	for rows.Next() {
		var a domain.IngredientAlias
		if err := rows.Scan(&a.ID, &a.Alias, &a.IngredientID); err != nil {
			return nil, err
		}
		aliases = append(aliases, a)
	}
	return aliases, rows.Err()
}

// UpsertIngredient inserts or renames a canonical ingredient
func (s *Store) UpsertIngredient(ctx context.Context, ing domain.CanonicalIngredient) error {
	return exec(ctx, s.db, upsertIngredient(ing))
}

// UpsertAlias inserts or replaces an alias row
func (s *Store) UpsertAlias(ctx context.Context, alias domain.IngredientAlias) error {
	return exec(ctx, s.db, upsertAlias(alias))
}

// SeedCatalog loads a whole catalog in one transaction, leaving rows that are
// not in it untouched
func (s *Store) SeedCatalog(ctx context.Context, catalog *domain.Catalog) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, ing := range catalog.Ingredients {
		if err := exec(ctx, tx, upsertIngredient(ing)); err != nil {
			return fmt.Errorf("ingredient %d: %w", ing.ID, err)
		}
	}
	for _, alias := range catalog.Aliases {
		if err := exec(ctx, tx, upsertAlias(alias)); err != nil {
			return fmt.Errorf("alias %d: %w", alias.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.logger.Info("seeded ingredient catalog",
		zap.Int("ingredients", len(catalog.Ingredients)),
		zap.Int("aliases", len(catalog.Aliases)))
	return nil
}

func upsertIngredient(ing domain.CanonicalIngredient) sq.InsertBuilder {
	return sq.Insert("ingredients").
		Columns("id", "name", "category_id").
		Values(ing.ID, ing.Name, ing.CategoryID).
		Suffix("ON CONFLICT(id) DO UPDATE SET name = excluded.name, category_id = excluded.category_id")
}

func upsertAlias(alias domain.IngredientAlias) sq.InsertBuilder {
	return sq.Insert("ingredient_aliases").
		Columns("id", "alias", "ingredient_id").
		Values(alias.ID, alias.Alias, alias.IngredientID).
		Suffix("ON CONFLICT(id) DO UPDATE SET alias = excluded.alias, ingredient_id = excluded.ingredient_id")
}
