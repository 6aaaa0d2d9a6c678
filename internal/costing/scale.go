package costing

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ScaledItem is a recipe item with its quantity multiplied for a new yield.
type ScaledItem struct {
	Item             Item
	OriginalQuantity decimal.Decimal
	Quantity         decimal.Decimal
}

// ScaledRecipe describes a recipe rescaled to a target number of portions.
type ScaledRecipe struct {
	RecipeID       uint
	Name           string
	OriginalYield  decimal.Decimal
	TargetYield    decimal.Decimal
	ScaleFactor    decimal.Decimal
	Items          []ScaledItem
	TotalCost      decimal.NullDecimal
	CostPerPortion decimal.NullDecimal
	// Complete is false when some lines could not be priced and TotalCost
	// covers only the known ones.
	Complete bool
}

// Scale rescales recipe to targetPortions. Item quantities are always
// returned; costs are null when the recipe cannot be priced at all. Cycles
// are reported as errors.
func Scale(recipe *Recipe, targetPortions decimal.Decimal) (*ScaledRecipe, error) {
	if recipe == nil {
		return nil, calcErr("", "recipe is not resolved", nil)
	}
	if recipe.YieldQty.IsZero() {
		return nil, calcErr(recipeSubject(recipe), "zero yield", nil)
	}
	if !targetPortions.IsPositive() {
		return nil, calcErr(recipeSubject(recipe), "target portions must be positive", nil)
	}

	factor := targetPortions.Div(recipe.YieldQty)
	out := &ScaledRecipe{
		RecipeID:      recipe.ID,
		Name:          recipe.Name,
		OriginalYield: recipe.YieldQty,
		TargetYield:   targetPortions,
		ScaleFactor:   factor,
		Items:         make([]ScaledItem, 0, len(recipe.Items)),
	}
	for _, item := range recipe.Items {
		out.Items = append(out.Items, ScaledItem{
			Item:             item,
			OriginalQuantity: item.Quantity,
			Quantity:         item.Quantity.Mul(factor),
		})
	}

	b, err := Break(recipe, factor)
	if err != nil {
		if errors.Is(err, ErrRecipeCycle) {
			return nil, err
		}
		return out, nil
	}
	out.TotalCost = decimal.NewNullDecimal(b.Total)
	out.CostPerPortion = decimal.NewNullDecimal(b.Total.Div(targetPortions))
	out.Complete = b.Complete()
	return out, nil
}

// WouldCreateCycle reports whether adding candidate as a sub-recipe of the
// recipe identified by parentID would make parentID reachable from itself.
// It terminates on graphs that already contain cycles.
func WouldCreateCycle(parentID uint, candidate *Recipe) bool {
	seen := make(map[uint]struct{})
	var reaches func(r *Recipe) bool
	reaches = func(r *Recipe) bool {
		if r == nil {
			return false
		}
		if r.ID == parentID {
			return true
		}
		if _, ok := seen[r.ID]; ok {
			return false
		}
		seen[r.ID] = struct{}{}
		for _, item := range r.Items {
			if sub, ok := item.SubRecipe(); ok && reaches(sub) {
				return true
			}
		}
		return false
	}
	return reaches(candidate)
}
