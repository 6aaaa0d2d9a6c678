// Package costing prices ingredients and recipes.
//
// The calculator works on in-memory values only. Callers load the recipe
// graph (to whatever depth they need) and hand it over; nothing here touches
// storage, and every function is safe for concurrent use.
package costing

import "github.com/shopspring/decimal"

// Ingredient carries the purchase and yield economics of a raw material.
type Ingredient struct {
	ID   uint
	Name string

	PurchaseUnit  string
	PurchaseQty   decimal.Decimal
	PurchasePrice decimal.Decimal

	// RecipeUnit is the unit ingredient quantities are expressed in by
	// default, ConversionFactor is how many RecipeUnits one PurchaseUnit holds.
	RecipeUnit       string
	ConversionFactor decimal.Decimal

	// YieldPercent is the usable share after prep waste, in (0, 100].
	YieldPercent decimal.Decimal

	// Density in g/ml. When set, weight and volume units can price each other.
	Density decimal.NullDecimal
}

// Recipe is a batch that yields YieldQty YieldUnits.
type Recipe struct {
	ID           uint
	Name         string
	YieldQty     decimal.Decimal
	YieldUnit    string
	SellingPrice decimal.NullDecimal
	Items        []Item
}

// Item is one line of a recipe: Quantity of Unit of a Component.
type Item struct {
	ID        uint
	RecipeID  uint
	Quantity  decimal.Decimal
	Unit      string
	Component Component
}

// Component is what a recipe item consumes. The only implementations are
// IngredientComponent and SubRecipeComponent.
type Component interface {
	component()
}

// IngredientComponent references a raw ingredient. ID is kept when the
// ingredient itself could not be resolved.
type IngredientComponent struct {
	ID         uint
	Ingredient *Ingredient
}

// SubRecipeComponent references another recipe used as a component.
type SubRecipeComponent struct {
	Recipe *Recipe
}

func (IngredientComponent) component() {}
func (SubRecipeComponent) component()  {}

// NewIngredientItem builds an item consuming an ingredient.
func NewIngredientItem(id, recipeID uint, quantity decimal.Decimal, unit string, ingredient *Ingredient) Item {
	c := IngredientComponent{Ingredient: ingredient}
	if ingredient != nil {
		c.ID = ingredient.ID
	}
	return Item{ID: id, RecipeID: recipeID, Quantity: quantity, Unit: unit, Component: c}
}

// NewSubRecipeItem builds an item consuming quantity units of another recipe's yield.
func NewSubRecipeItem(id, recipeID uint, quantity decimal.Decimal, unit string, sub *Recipe) Item {
	return Item{ID: id, RecipeID: recipeID, Quantity: quantity, Unit: unit, Component: SubRecipeComponent{Recipe: sub}}
}

// Ingredient returns the referenced ingredient, if any.
func (i Item) Ingredient() (*Ingredient, bool) {
	c, ok := i.Component.(IngredientComponent)
	if !ok || c.Ingredient == nil {
		return nil, false
	}
	return c.Ingredient, true
}

// SubRecipe returns the referenced sub-recipe, if any.
func (i Item) SubRecipe() (*Recipe, bool) {
	c, ok := i.Component.(SubRecipeComponent)
	if !ok || c.Recipe == nil {
		return nil, false
	}
	return c.Recipe, true
}

// Name returns a label for the item's component.
func (i Item) Name() string {
	if ing, ok := i.Ingredient(); ok {
		return ing.Name
	}
	if sub, ok := i.SubRecipe(); ok {
		return sub.Name
	}
	return ""
}

// Kind returns "ingredient", "sub_recipe" or "" for an unresolved item.
func (i Item) Kind() string {
	switch i.Component.(type) {
	case IngredientComponent:
		return "ingredient"
	case SubRecipeComponent:
		return "sub_recipe"
	default:
		return ""
	}
}
