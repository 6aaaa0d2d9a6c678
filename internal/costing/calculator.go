package costing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"platecost/internal/units"
)

var (
	// One is the unit scale.
	One     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// IngredientUnitCost returns the cost of one targetUnit of ingredient,
// accounting for purchase price, conversion factor and yield. An empty
// targetUnit prices the ingredient's own RecipeUnit.
func IngredientUnitCost(ingredient *Ingredient, targetUnit string) (decimal.Decimal, error) {
	if ingredient == nil {
		return decimal.Zero, calcErr("", "ingredient is not resolved", nil)
	}
	if ingredient.PurchaseQty.IsZero() {
		return decimal.Zero, calcErr(ingredientSubject(ingredient), "zero purchase quantity", nil)
	}
	if ingredient.ConversionFactor.IsZero() {
		return decimal.Zero, calcErr(ingredientSubject(ingredient), "zero conversion factor", nil)
	}
	if ingredient.YieldPercent.IsZero() {
		return decimal.Zero, calcErr(ingredientSubject(ingredient), "zero yield percent", nil)
	}

	perPurchaseUnit := ingredient.PurchasePrice.Div(ingredient.PurchaseQty)
	perRecipeUnit := perPurchaseUnit.Div(ingredient.ConversionFactor)
	withYield := perRecipeUnit.Div(ingredient.YieldPercent.Div(hundred))

	native := units.Normalize(ingredient.RecipeUnit)
	target := units.Normalize(targetUnit)
	if target == "" || target == native {
		return withYield, nil
	}

	var (
		nativePerTarget decimal.Decimal
		err             error
	)
	if ingredient.Density.Valid {
		nativePerTarget, err = units.ConvertWithDensity(One, target, native, ingredient.Density.Decimal)
	} else {
		nativePerTarget, err = units.Convert(One, target, native)
	}
	if err != nil {
		return decimal.Zero, calcErr(ingredientSubject(ingredient), fmt.Sprintf("cannot convert %s to %s", target, native), err)
	}
	return withYield.Mul(nativePerTarget), nil
}

// ItemCost prices one recipe item at scale. Sub-recipes are priced as a full
// batch (scale 1) and charged per unit of their yield. path holds the recipe
// ids already entered on the way down.
func ItemCost(item Item, scale decimal.Decimal, path *Path) (decimal.Decimal, error) {
	cost, _, err := itemCost(item, scale, path)
	return cost, err
}

func itemCost(item Item, scale decimal.Decimal, path *Path) (decimal.Decimal, bool, error) {
	quantity := item.Quantity.Mul(scale)

	switch c := item.Component.(type) {
	case IngredientComponent:
		if c.Ingredient == nil {
			return decimal.Zero, false, calcErr(itemSubject(item), "ingredient is not resolved", nil)
		}
		unitCost, err := IngredientUnitCost(c.Ingredient, item.Unit)
		if err != nil {
			return decimal.Zero, false, err
		}
		return quantity.Mul(unitCost), false, nil

	case SubRecipeComponent:
		sub := c.Recipe
		if sub == nil {
			return decimal.Zero, false, calcErr(itemSubject(item), "sub-recipe is not resolved", nil)
		}
		if path.Contains(sub.ID) {
			return decimal.Zero, false, &CycleError{RecipeID: sub.ID, Name: sub.Name}
		}
		// Walk the sub-recipe before the yield guard so cycles below it stay fatal.
		batch, err := breakdown(sub, One, path.With(item.RecipeID))
		if err != nil {
			return decimal.Zero, false, err
		}
		if sub.YieldQty.IsZero() {
			return decimal.Zero, false, calcErr(recipeSubject(sub), "sub-recipe has zero yield", nil)
		}
		return batch.Total.Div(sub.YieldQty).Mul(quantity), !batch.Complete(), nil

	default:
		return decimal.Zero, false, calcErr(itemSubject(item), "item has no ingredient or sub-recipe", nil)
	}
}

// RecipeCost returns the total cost of recipe at scale. Lines that cannot be
// priced count as unknown and are left out of the total; use Break to see
// them. A cycle anywhere below recipe aborts the computation.
func RecipeCost(recipe *Recipe, scale decimal.Decimal, path *Path) (decimal.Decimal, error) {
	b, err := breakdown(recipe, scale, path)
	if err != nil {
		return decimal.Zero, err
	}
	return b.Total, nil
}

// CostPerPortion is RecipeCost divided by the scaled yield.
func CostPerPortion(recipe *Recipe, scale decimal.Decimal) (decimal.Decimal, error) {
	total, err := RecipeCost(recipe, scale, nil)
	if err != nil {
		return decimal.Zero, err
	}
	yield := recipe.YieldQty.Mul(scale)
	if yield.IsZero() {
		return decimal.Zero, calcErr(recipeSubject(recipe), "zero yield", nil)
	}
	return total.Div(yield), nil
}

// FoodCostPercentage returns cost per portion as a percentage of the selling
// price. price overrides the recipe's own selling price when valid. The
// result is null when there is no price or the price is zero.
func FoodCostPercentage(recipe *Recipe, price decimal.NullDecimal) (decimal.NullDecimal, error) {
	if recipe == nil {
		return decimal.NullDecimal{}, calcErr("", "recipe is not resolved", nil)
	}
	if !price.Valid {
		price = recipe.SellingPrice
	}
	if !price.Valid || price.Decimal.IsZero() {
		return decimal.NullDecimal{}, nil
	}
	perPortion, err := CostPerPortion(recipe, One)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(perPortion.Div(price.Decimal).Mul(hundred)), nil
}

// Line is the priced outcome of one recipe item.
type Line struct {
	Item Item
	// Cost is null when the line could not be priced; Err says why.
	Cost decimal.NullDecimal
	Err  error
	// Partial marks sub-recipe lines whose own breakdown had unknown lines.
	Partial bool
}

// Breakdown is a recipe's cost split per item.
type Breakdown struct {
	RecipeID uint
	Scale    decimal.Decimal
	Total    decimal.Decimal
	Lines    []Line
}

// Complete reports whether every line, including nested sub-recipe lines,
// was priced.
func (b Breakdown) Complete() bool {
	for _, line := range b.Lines {
		if !line.Cost.Valid || line.Partial {
			return false
		}
	}
	return true
}

// Unknown returns the lines that could not be priced.
func (b Breakdown) Unknown() []Line {
	var out []Line
	for _, line := range b.Lines {
		if !line.Cost.Valid {
			out = append(out, line)
		}
	}
	return out
}

// Break prices every line of recipe at scale.
func Break(recipe *Recipe, scale decimal.Decimal) (Breakdown, error) {
	return breakdown(recipe, scale, nil)
}

func breakdown(recipe *Recipe, scale decimal.Decimal, path *Path) (Breakdown, error) {
	if recipe == nil {
		return Breakdown{}, calcErr("", "recipe is not resolved", nil)
	}
	if path.Contains(recipe.ID) {
		return Breakdown{}, &CycleError{RecipeID: recipe.ID, Name: recipe.Name}
	}
	inner := path.With(recipe.ID)

	out := Breakdown{
		RecipeID: recipe.ID,
		Scale:    scale,
		Total:    decimal.Zero,
		Lines:    make([]Line, 0, len(recipe.Items)),
	}
	for _, item := range recipe.Items {
		cost, partial, err := itemCost(item, scale, inner)
		if err != nil {
			if errors.Is(err, ErrRecipeCycle) {
				return Breakdown{}, err
			}
			out.Lines = append(out.Lines, Line{Item: item, Err: err})
			continue
		}
		out.Total = out.Total.Add(cost)
		out.Lines = append(out.Lines, Line{Item: item, Cost: decimal.NewNullDecimal(cost), Partial: partial})
	}
	return out, nil
}

func ingredientSubject(ingredient *Ingredient) string {
	if ingredient.Name != "" {
		return fmt.Sprintf("ingredient %q", ingredient.Name)
	}
	return fmt.Sprintf("ingredient %d", ingredient.ID)
}

func recipeSubject(recipe *Recipe) string {
	if recipe.Name != "" {
		return fmt.Sprintf("recipe %q", recipe.Name)
	}
	return fmt.Sprintf("recipe %d", recipe.ID)
}

func itemSubject(item Item) string {
	return fmt.Sprintf("recipe item %d", item.ID)
}
