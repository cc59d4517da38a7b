package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kioskpos/pos-backend/pkg/db"
	"github.com/kioskpos/pos-backend/pkg/db/models"
	pkgerrors "github.com/kioskpos/pos-backend/pkg/errors"
)

// RecipeLine is the number of ingredient units consumed by one unit of a menu item.
type RecipeLine struct {
	IngredientID int64
	Amount       int
}

// ResolvedItem is a menu item ready to be priced and fulfilled.
type ResolvedItem struct {
	ID        int64
	Name      string
	UnitPrice decimal.Decimal
	Recipe    []RecipeLine
}

// Resolver maps menu item names to prices and recipes. It never writes.
type Resolver struct {
	repo Repository
}

func NewResolver(repo Repository) (*Resolver, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &Resolver{repo: repo}, nil
}

// WithTx returns a resolver reading through the supplied transaction.
func (r *Resolver) WithTx(tx *gorm.DB) *Resolver {
	return &Resolver{repo: r.repo.WithTx(tx)}
}

// Resolve fails with NOT_FOUND when name does not match an active menu item.
func (r *Resolver) Resolve(ctx context.Context, name string) (*ResolvedItem, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "menu item name is empty")
	}
	item, err := r.repo.FindActiveByName(ctx, trimmed)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "menu item %q not found", trimmed)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load menu item")
	}
	return toResolved(item), nil
}

// ResolveMany resolves every name it can and returns the names it could not.
// Results are keyed by the name as given.
func (r *Resolver) ResolveMany(ctx context.Context, names []string) (map[string]*ResolvedItem, []string, error) {
	lookup := make([]string, 0, len(names))
	for _, name := range names {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			lookup = append(lookup, trimmed)
		}
	}
	items, err := r.repo.ListActiveByNames(ctx, lookup)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load menu items")
	}
	byName := make(map[string]*models.MenuItem, len(items))
	for i := range items {
		byName[items[i].Name] = &items[i]
	}

	resolved := make(map[string]*ResolvedItem, len(names))
	var missing []string
	for _, name := range names {
		item, ok := byName[strings.TrimSpace(name)]
		if !ok {
			missing = append(missing, name)
			continue
		}
		resolved[name] = toResolved(item)
	}
	return resolved, missing, nil
}

func toResolved(item *models.MenuItem) *ResolvedItem {
	recipe := make([]RecipeLine, 0, len(item.Recipe))
	for _, line := range item.Recipe {
		recipe = append(recipe, RecipeLine{IngredientID: line.IngredientID, Amount: line.Amount})
	}
	return &ResolvedItem{
		ID:        item.ID,
		Name:      item.Name,
		UnitPrice: item.Price,
		Recipe:    recipe,
	}
}
