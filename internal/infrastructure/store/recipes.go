package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/recipebox/backend/internal/domain"
)

// recipeColumns must match the scan order in scanRecipe
var recipeColumns = []string{
	"id", "owner_id", "name", "description", "prep_minutes", "cook_minutes", "total_minutes",
	"yield", "categories", "notes", "source_name", "source_url", "image_url", "created_at", "updated_at",
}

// SaveRecipe writes a recipe with its lines, steps and matches. An existing
// recipe of the same id is replaced only when the owner matches; its child
// rows are cleared and rewritten in the same transaction.
func (s *Store) SaveRecipe(ctx context.Context, recipe *domain.SavedRecipe) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var existingOwner, createdAt string
	err = tx.QueryRowContext(ctx, `SELECT owner_id, created_at FROM recipes WHERE id = ?`, recipe.ID).
		Scan(&existingOwner, &createdAt)
	exists := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("load recipe: %w", err)
	}
	if exists && existingOwner != recipe.OwnerID {
		return domain.ErrForbidden
	}

	now := time.Now().UTC()
	recipe.UpdatedAt = now
	if exists {
		if recipe.CreatedAt, err = parseTime(createdAt); err != nil {
			return err
		}
	} else {
		recipe.CreatedAt = now
	}

	categories, err := json.Marshal(nonNil(recipe.Recipe.Categories))
	if err != nil {
		return err
	}

	r := recipe.Recipe
	values := map[string]any{
		"owner_id":      recipe.OwnerID,
		"name":          r.Name,
		"description":   r.Description,
		"prep_minutes":  durationMinutes(r.PrepTime),
		"cook_minutes":  durationMinutes(r.CookTime),
		"total_minutes": durationMinutes(r.TotalTime),
		"yield":         r.Yield,
		"categories":    string(categories),
		"notes":         r.Notes,
		"source_name":   r.SourceName,
		"source_url":    r.SourceURL,
		"image_url":     r.ImageURL,
		"updated_at":    formatTime(recipe.UpdatedAt),
	}

	if exists {
		err = exec(ctx, tx, sq.Update("recipes").SetMap(values).Where(sq.Eq{"id": recipe.ID}))
	} else {
		values["id"] = recipe.ID
		values["created_at"] = formatTime(recipe.CreatedAt)
		err = exec(ctx, tx, sq.Insert("recipes").SetMap(values))
	}
	if err != nil {
		return fmt.Errorf("write recipe: %w", err)
	}

	for _, table := range []string{"recipe_ingredient_lines", "recipe_steps", "recipe_ingredient_matches"} {
		if err := exec(ctx, tx, sq.Delete(table).Where(sq.Eq{"recipe_id": recipe.ID})); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if len(r.Ingredients) > 0 {
		insert := sq.Insert("recipe_ingredient_lines").Columns("recipe_id", "position", "line")
		for i, line := range r.Ingredients {
			insert = insert.Values(recipe.ID, i, line)
		}
		if err := exec(ctx, tx, insert); err != nil {
			return fmt.Errorf("write ingredient lines: %w", err)
		}
	}

	if len(r.Instructions) > 0 {
		insert := sq.Insert("recipe_steps").Columns("recipe_id", "position", "text")
		for i, step := range r.Instructions {
			insert = insert.Values(recipe.ID, i, step)
		}
		if err := exec(ctx, tx, insert); err != nil {
			return fmt.Errorf("write steps: %w", err)
		}
	}

	if matched := matchedOnly(recipe.IngredientMatches); len(matched) > 0 {
		insert := sq.Insert("recipe_ingredient_matches").Columns(
			"recipe_id", "position", "line", "match_key", "ingredient_id",
			"ingredient_name", "match_type", "matched_term", "score")
		for i, m := range matched {
			insert = insert.Values(recipe.ID, i, m.Line, m.Key, m.Ingredient.ID,
				m.Ingredient.Name, string(m.MatchType), m.MatchedTerm, m.Score)
		}
		if err := exec(ctx, tx, insert); err != nil {
			return fmt.Errorf("write ingredient matches: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.logger.Debug("saved recipe",
		zap.String("id", recipe.ID),
		zap.Bool("replaced", exists),
		zap.Int("lines", len(r.Ingredients)))
	return nil
}

// GetRecipe loads a recipe and its child rows; ErrRecipeNotFound when absent
func (s *Store) GetRecipe(ctx context.Context, id string) (*domain.SavedRecipe, error) {
	query, args, err := sq.Select(recipeColumns...).From("recipes").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}

	saved, err := scanRecipe(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRecipeNotFound
	}
	if err != nil {
		return nil, err
	}

	if saved.Recipe.Ingredients, err = s.loadStrings(ctx, "recipe_ingredient_lines", "line", id); err != nil {
		return nil, err
	}
	if saved.Recipe.Instructions, err = s.loadStrings(ctx, "recipe_steps", "text", id); err != nil {
		return nil, err
	}
	if saved.IngredientMatches, err = s.loadMatches(ctx, id); err != nil {
		return nil, err
	}
	return saved, nil
}

func scanRecipe(row interface{ Scan(dest ...any) error }) (*domain.SavedRecipe, error) {
	var (
		saved                domain.SavedRecipe
		prep, cook, total    sql.NullInt64
		categories           string
		createdAt, updatedAt string
	)
	r := &saved.Recipe
	err := row.Scan(
		&saved.ID, &saved.OwnerID, &r.Name, &r.Description, &prep, &cook, &total,
		&r.Yield, &categories, &r.Notes, &r.SourceName, &r.SourceURL, &r.ImageURL,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.PrepTime = minutesDuration(prep)
	r.CookTime = minutesDuration(cook)
	r.TotalTime = minutesDuration(total)
	if err := json.Unmarshal([]byte(categories), &r.Categories); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	if len(r.Categories) == 0 {
		r.Categories = nil
	}
	if saved.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if saved.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &saved, nil
}

func (s *Store) loadStrings(ctx context.Context, table, column, recipeID string) ([]string, error) {
	query, args, err := sq.Select(column).From(table).
		Where(sq.Eq{"recipe_id": recipeID}).OrderBy("position").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) loadMatches(ctx context.Context, recipeID string) ([]domain.MatchResult, error) {
	query, args, err := sq.Select("line", "match_key", "ingredient_id", "ingredient_name", "match_type", "matched_term", "score").
		From("recipe_ingredient_matches").
		Where(sq.Eq{"recipe_id": recipeID}).OrderBy("position").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.MatchResult{}
	for rows.Next() {
		var (
			m         domain.MatchResult
			ing       domain.CanonicalIngredient
			matchType string
		)
		if err := rows.Scan(&m.Line, &m.Key, &ing.ID, &ing.Name, &matchType, &m.MatchedTerm, &m.Score); err != nil {
			return nil, err
		}
		m.Ingredient = &ing
		m.MatchType = domain.MatchType(matchType)
		out = append(out, m)
	}
	return out, rows.Err()
}

func matchedOnly(matches []domain.MatchResult) []domain.MatchResult {
	out := make([]domain.MatchResult, 0, len(matches))
	for _, m := range matches {
		if m.Ingredient != nil {
			out = append(out, m)
		}
	}
	return out
}

func durationMinutes(d *domain.Duration) any {
	if d == nil {
		return nil
	}
	return int64(d.ToTimeDuration() / time.Minute)
}

func minutesDuration(v sql.NullInt64) *domain.Duration {
	if !v.Valid {
		return nil
	}
	return domain.Minutes(int(v.Int64))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
