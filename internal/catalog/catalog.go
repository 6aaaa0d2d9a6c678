// Package catalog loads a tenant's recipes from the database and converts
// them into costing values.
package catalog

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"platecost/internal/costing"
	"platecost/models"
)

// ErrNoDatabase is returned when no database handle is supplied.
var ErrNoDatabase = errors.New("catalog: database is not configured")

// Graph is the set of recipes reachable from a request, plus their
// ingredients. It is not safe for concurrent use.
type Graph struct {
	recipes     map[uint]*models.Recipe
	converted   map[uint]*costing.Recipe
	ingredients map[uint]*costing.Ingredient
}

// LoadRecipeGraph loads the recipes named by ids and every sub-recipe they
// reach, breadth first, restricted to ownerID. Recipes that do not exist for
// the owner are simply absent from the graph. Cyclic references terminate
// because every id is fetched at most once.
func LoadRecipeGraph(ctx context.Context, db *gorm.DB, ownerID uint, ids []uint) (*Graph, error) {
	if db == nil {
		return nil, ErrNoDatabase
	}

	g := &Graph{
		recipes:     make(map[uint]*models.Recipe),
		converted:   make(map[uint]*costing.Recipe),
		ingredients: make(map[uint]*costing.Ingredient),
	}
	requested := make(map[uint]struct{})
	frontier := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := requested[id]; ok {
			continue
		}
		requested[id] = struct{}{}
		frontier = append(frontier, id)
	}

	for len(frontier) > 0 {
		var batch []models.Recipe
		err := db.WithContext(ctx).
			Where("owner_id = ? AND id IN ?", ownerID, frontier).
			Preload("Items", func(tx *gorm.DB) *gorm.DB {
				return tx.Order("sort_order ASC").Order("id ASC")
			}).
			Preload("Items.Ingredient", "owner_id = ?", ownerID).
			Find(&batch).Error
		if err != nil {
			return nil, err
		}

		frontier = frontier[:0]
		for i := range batch {
			recipe := &batch[i]
			g.recipes[recipe.ID] = recipe
			for _, item := range recipe.Items {
				if item.SubRecipeID == nil {
					continue
				}
				sub := *item.SubRecipeID
				if _, ok := requested[sub]; ok {
					continue
				}
				requested[sub] = struct{}{}
				frontier = append(frontier, sub)
			}
		}
	}
	return g, nil
}

// Model returns the loaded database row for id.
func (g *Graph) Model(id uint) (*models.Recipe, bool) {
	recipe, ok := g.recipes[id]
	return recipe, ok
}

// Recipe converts the loaded recipe id into a costing value. Recipes are
// converted once, so shared sub-recipes are shared values and cyclic data
// becomes a pointer cycle that the calculator reports.
func (g *Graph) Recipe(id uint) (*costing.Recipe, bool) {
	if converted, ok := g.converted[id]; ok {
		return converted, true
	}
	source, ok := g.recipes[id]
	if !ok {
		return nil, false
	}

	out := &costing.Recipe{
		ID:           source.ID,
		Name:         source.Name,
		YieldQty:     source.YieldQty,
		YieldUnit:    source.YieldUnit,
		SellingPrice: source.SellingPrice,
		Items:        make([]costing.Item, 0, len(source.Items)),
	}
	g.converted[id] = out

	for _, item := range source.Items {
		switch {
		case item.IngredientID != nil:
			out.Items = append(out.Items, costing.Item{
				ID:        item.ID,
				RecipeID:  source.ID,
				Quantity:  item.Quantity,
				Unit:      item.Unit,
				Component: costing.IngredientComponent{ID: *item.IngredientID, Ingredient: g.ingredient(item.Ingredient)},
			})
		case item.SubRecipeID != nil:
			sub, _ := g.Recipe(*item.SubRecipeID)
			out.Items = append(out.Items, costing.NewSubRecipeItem(item.ID, source.ID, item.Quantity, item.Unit, sub))
		default:
			out.Items = append(out.Items, costing.Item{ID: item.ID, RecipeID: source.ID, Quantity: item.Quantity, Unit: item.Unit})
		}
	}
	return out, true
}

// Lookup converts every loaded recipe, keyed by id.
func (g *Graph) Lookup() map[uint]*costing.Recipe {
	out := make(map[uint]*costing.Recipe, len(g.recipes))
	for id := range g.recipes {
		recipe, _ := g.Recipe(id)
		out[id] = recipe
	}
	return out
}

func (g *Graph) ingredient(source *models.Ingredient) *costing.Ingredient {
	if source == nil {
		return nil
	}
	if converted, ok := g.ingredients[source.ID]; ok {
		return converted
	}
	converted := ToIngredient(*source)
	g.ingredients[source.ID] = converted
	return converted
}

// ToIngredient converts a stored ingredient into a costing value.
func ToIngredient(source models.Ingredient) *costing.Ingredient {
	return &costing.Ingredient{
		ID:               source.ID,
		Name:             source.Name,
		PurchaseUnit:     source.PurchaseUnit,
		PurchaseQty:      source.PurchaseQty,
		PurchasePrice:    source.PurchasePrice,
		RecipeUnit:       source.RecipeUnit,
		ConversionFactor: source.ConversionFactor,
		YieldPercent:     source.YieldPercent,
		Density:          source.Density,
	}
}
