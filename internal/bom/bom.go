// Package bom consolidates scaled recipes into one priced shopping list.
//
// Only direct recipe to ingredient edges become lines; sub-recipe items are
// not expanded. Each line records which recipes contributed to it and how
// much, so a generated bill can be audited back to its recipes.
package bom

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"platecost/internal/costing"
	"platecost/internal/units"
)

var (
	// ErrRecipeNotFound matches requests naming recipes absent from the lookup.
	ErrRecipeNotFound = errors.New("recipe not found")
	// ErrInvalidRequest matches malformed requests.
	ErrInvalidRequest = errors.New("invalid bill of materials request")
)

// MissingRecipesError lists every requested recipe id that could not be resolved.
type MissingRecipesError struct {
	IDs []uint
}

func (e *MissingRecipesError) Error() string {
	ids := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		ids[i] = fmt.Sprint(id)
	}
	return "recipes not found: " + strings.Join(ids, ", ")
}

func (e *MissingRecipesError) Is(target error) bool {
	return target == ErrRecipeNotFound
}

// Request asks for Portions portions of a recipe.
type Request struct {
	RecipeID uint
	Portions decimal.Decimal
}

// RecipeSummary describes one requested recipe after scaling.
type RecipeSummary struct {
	RecipeID          uint
	Name              string
	Portions          decimal.Decimal
	EffectivePortions decimal.Decimal
	Scale             decimal.Decimal
}

// Contribution is one recipe's share of an aggregated line, expressed in the
// line's unit.
type Contribution struct {
	RecipeID   uint
	RecipeName string
	Quantity   decimal.Decimal
}

// Line is one ingredient on the shopping list.
type Line struct {
	IngredientID   uint
	IngredientName string
	Quantity       decimal.Decimal
	Unit           string
	// UnitCost is the price of one Unit; null when it cannot be priced.
	UnitCost decimal.NullDecimal
	// Cost sums the priced contributions; null when none could be priced.
	Cost          decimal.NullDecimal
	Contributions []Contribution
	// Err is the first pricing failure among the contributions.
	Err error
}

// AuditItem is a single recipe item's contribution before aggregation.
type AuditItem struct {
	RecipeID       uint
	RecipeName     string
	Portions       decimal.Decimal
	IngredientID   uint
	IngredientName string
	Quantity       decimal.Decimal
	Unit           string
	UnitCost       decimal.NullDecimal
	LineCost       decimal.NullDecimal
	Err            error
}

// Result is an aggregated, priced bill of materials.
type Result struct {
	ScaleFactor decimal.Decimal
	Recipes     []RecipeSummary
	Lines       []Line
	Items       []AuditItem
	Total       decimal.Decimal
}

// Complete reports whether every line was priced.
func (r *Result) Complete() bool {
	for _, line := range r.Lines {
		if line.Err != nil {
			return false
		}
	}
	return true
}

// UnknownLines counts lines with at least one unpriced contribution.
func (r *Result) UnknownLines() int {
	n := 0
	for _, line := range r.Lines {
		if line.Err != nil {
			n++
		}
	}
	return n
}

type lineKey struct {
	ingredientID uint
	unit         string
}

type aggregator struct {
	lines   []Line
	primary map[uint]int
	byUnit  map[lineKey]int
	ings    map[int]*costing.Ingredient
}

// Aggregate builds a bill of materials from requests. Each request's
// effective portions are Portions*scaleFactor; a zero scaleFactor means 1.
// lookup must hold every requested recipe with its ingredients resolved.
func Aggregate(requests []Request, scaleFactor decimal.Decimal, lookup map[uint]*costing.Recipe) (*Result, error) {
	if len(requests) == 0 {
		return nil, fmt.Errorf("%w: at least one recipe is required", ErrInvalidRequest)
	}
	if scaleFactor.IsZero() {
		scaleFactor = decimal.NewFromInt(1)
	}
	if scaleFactor.IsNegative() {
		return nil, fmt.Errorf("%w: scale factor must be positive", ErrInvalidRequest)
	}

	var missing []uint
	seenMissing := make(map[uint]struct{})
	for _, req := range requests {
		if !req.Portions.IsPositive() {
			return nil, fmt.Errorf("%w: portions for recipe %d must be positive", ErrInvalidRequest, req.RecipeID)
		}
		if lookup[req.RecipeID] != nil {
			continue
		}
		if _, dup := seenMissing[req.RecipeID]; !dup {
			seenMissing[req.RecipeID] = struct{}{}
			missing = append(missing, req.RecipeID)
		}
	}
	if len(missing) > 0 {
		sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
		return nil, &MissingRecipesError{IDs: missing}
	}

	result := &Result{ScaleFactor: scaleFactor, Total: decimal.Zero}
	agg := &aggregator{
		primary: make(map[uint]int),
		byUnit:  make(map[lineKey]int),
		ings:    make(map[int]*costing.Ingredient),
	}

	for _, req := range requests {
		recipe := lookup[req.RecipeID]
		if recipe.YieldQty.IsZero() {
			return nil, &costing.CalculationError{Subject: fmt.Sprintf("recipe %q", recipe.Name), Reason: "zero yield"}
		}
		effective := req.Portions.Mul(scaleFactor)
		scale := effective.Div(recipe.YieldQty)
		result.Recipes = append(result.Recipes, RecipeSummary{
			RecipeID:          recipe.ID,
			Name:              recipe.Name,
			Portions:          req.Portions,
			EffectivePortions: effective,
			Scale:             scale,
		})

		for _, item := range recipe.Items {
			var (
				ing        *costing.Ingredient
				unresolved bool
			)
			switch c := item.Component.(type) {
			case costing.SubRecipeComponent:
				continue
			case costing.IngredientComponent:
				ing = c.Ingredient
				if ing == nil {
					ing = &costing.Ingredient{ID: c.ID, Name: fmt.Sprintf("ingredient %d", c.ID)}
					unresolved = true
				}
			default:
				ing = &costing.Ingredient{Name: "unresolved item"}
				unresolved = true
			}
			audit := AuditItem{
				RecipeID:       recipe.ID,
				RecipeName:     recipe.Name,
				Portions:       effective,
				IngredientID:   ing.ID,
				IngredientName: ing.Name,
				Quantity:       item.Quantity.Mul(scale),
				Unit:           units.Normalize(item.Unit),
			}
			var (
				unitCost decimal.Decimal
				err      error
			)
			if unresolved {
				_, err = costing.ItemCost(item, scale, nil)
			} else {
				unitCost, err = costing.IngredientUnitCost(ing, item.Unit)
			}
			if err != nil {
				audit.Err = err
			} else {
				audit.UnitCost = decimal.NewNullDecimal(unitCost)
				audit.LineCost = decimal.NewNullDecimal(audit.Quantity.Mul(unitCost))
			}
			result.Items = append(result.Items, audit)
			agg.add(ing, audit)
		}
	}

	for i := range agg.lines {
		line := &agg.lines[i]
		if unitCost, err := costing.IngredientUnitCost(agg.ings[i], line.Unit); err == nil {
			line.UnitCost = decimal.NewNullDecimal(unitCost)
		}
		if line.Cost.Valid {
			result.Total = result.Total.Add(line.Cost.Decimal)
		}
	}
	result.Lines = agg.lines
	return result, nil
}

// add folds one audit item into the line for its ingredient. Quantities in
// another unit are converted into the line's unit when possible; otherwise
// they get a line of their own for that ingredient and unit.
func (a *aggregator) add(ing *costing.Ingredient, audit AuditItem) {
	idx, quantity := a.target(ing, audit)
	line := &a.lines[idx]
	line.Quantity = line.Quantity.Add(quantity)
	line.Contributions = append(line.Contributions, Contribution{
		RecipeID:   audit.RecipeID,
		RecipeName: audit.RecipeName,
		Quantity:   quantity,
	})
	if audit.Err != nil {
		if line.Err == nil {
			line.Err = audit.Err
		}
		return
	}
	if line.Cost.Valid {
		line.Cost.Decimal = line.Cost.Decimal.Add(audit.LineCost.Decimal)
	} else {
		line.Cost = audit.LineCost
	}
}

func (a *aggregator) target(ing *costing.Ingredient, audit AuditItem) (int, decimal.Decimal) {
	if idx, ok := a.primary[ing.ID]; ok {
		if converted, ok := convertInto(ing, audit.Quantity, audit.Unit, a.lines[idx].Unit); ok {
			return idx, converted
		}
	}
	key := lineKey{ingredientID: ing.ID, unit: audit.Unit}
	if idx, ok := a.byUnit[key]; ok {
		return idx, audit.Quantity
	}

	idx := len(a.lines)
	a.lines = append(a.lines, Line{
		IngredientID:   ing.ID,
		IngredientName: ing.Name,
		Quantity:       decimal.Zero,
		Unit:           audit.Unit,
	})
	a.byUnit[key] = idx
	a.ings[idx] = ing
	if _, ok := a.primary[ing.ID]; !ok {
		a.primary[ing.ID] = idx
	}
	return idx, audit.Quantity
}

func convertInto(ing *costing.Ingredient, quantity decimal.Decimal, from, to string) (decimal.Decimal, bool) {
	var (
		out decimal.Decimal
		err error
	)
	if ing.Density.Valid {
		out, err = units.ConvertWithDensity(quantity, from, to, ing.Density.Decimal)
	} else {
		out, err = units.Convert(quantity, from, to)
	}
	return out, err == nil
}
