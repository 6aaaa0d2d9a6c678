package bom

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"platecost/internal/costing"
)

func d(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func assertDecimal(t *testing.T, label string, got decimal.Decimal, want string) {
	t.Helper()
	if got.Sub(d(want)).Abs().GreaterThan(d("0.000001")) {
		t.Fatalf("%s = %s, want %s", label, got, want)
	}
}

func tomatoes() *costing.Ingredient {
	return &costing.Ingredient{
		ID:               1,
		Name:             "Crushed tomatoes",
		PurchaseUnit:     "l",
		PurchaseQty:      d("1"),
		PurchasePrice:    d("2.36588"),
		RecipeUnit:       "cup",
		ConversionFactor: d("4.22675"),
		YieldPercent:     d("100"),
	}
}

func cheese() *costing.Ingredient {
	return &costing.Ingredient{
		ID:               2,
		Name:             "Mozzarella",
		PurchaseUnit:     "kg",
		PurchaseQty:      d("1"),
		PurchasePrice:    d("10"),
		RecipeUnit:       "g",
		ConversionFactor: d("1000"),
		YieldPercent:     d("100"),
	}
}

func sauceRecipe(ing *costing.Ingredient) *costing.Recipe {
	r := &costing.Recipe{ID: 10, Name: "Marinara", YieldQty: d("4"), YieldUnit: "portion"}
	r.Items = []costing.Item{costing.NewIngredientItem(100, r.ID, d("2"), "cup", ing)}
	return r
}

func TestAggregatePortionsAndScaleFactorCompose(t *testing.T) {
	t.Parallel()

	recipe := sauceRecipe(tomatoes())
	lookup := map[uint]*costing.Recipe{recipe.ID: recipe}

	tests := []struct {
		name     string
		portions string
		factor   decimal.Decimal
	}{
		{"portions only", "8", decimal.NewFromInt(1)},
		{"default factor", "8", decimal.Zero},
		{"portions times factor", "4", decimal.NewFromInt(2)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			result, err := Aggregate([]Request{{RecipeID: recipe.ID, Portions: d(tt.portions)}}, tt.factor, lookup)
			if err != nil {
				t.Fatalf("Aggregate error = %v", err)
			}
			if len(result.Lines) != 1 {
				t.Fatalf("lines = %d, want 1", len(result.Lines))
			}
			line := result.Lines[0]
			assertDecimal(t, "totalQty", line.Quantity, "4")
			if line.Unit != "cup" {
				t.Fatalf("unit = %q, want cup", line.Unit)
			}
			assertDecimal(t, "scale", result.Recipes[0].Scale, "2")
			assertDecimal(t, "effective portions", result.Recipes[0].EffectivePortions, "8")
			if !line.Cost.Valid || !result.Complete() {
				t.Fatalf("expected a priced line, got %+v", line)
			}
			assertDecimal(t, "total", result.Total, line.Cost.Decimal.String())
		})
	}
}

func TestAggregateSumsSharedIngredient(t *testing.T) {
	t.Parallel()

	mozz := cheese()
	pizza := &costing.Recipe{ID: 1, Name: "Pizza", YieldQty: d("2")}
	pizza.Items = []costing.Item{costing.NewIngredientItem(1, pizza.ID, d("200"), "g", mozz)}
	lasagna := &costing.Recipe{ID: 2, Name: "Lasagna", YieldQty: d("8")}
	lasagna.Items = []costing.Item{costing.NewIngredientItem(2, lasagna.ID, d("400"), "g", mozz)}

	lookup := map[uint]*costing.Recipe{pizza.ID: pizza, lasagna.ID: lasagna}
	requests := []Request{
		{RecipeID: pizza.ID, Portions: d("6")},
		{RecipeID: lasagna.ID, Portions: d("4")},
	}

	result, err := Aggregate(requests, decimal.NewFromInt(1), lookup)
	if err != nil {
		t.Fatalf("Aggregate error = %v", err)
	}
	if len(result.Lines) != 1 {
		t.Fatalf("lines = %d, want 1", len(result.Lines))
	}
	line := result.Lines[0]
	// pizza: 200 * 3 = 600 g; lasagna: 400 * 0.5 = 200 g
	assertDecimal(t, "qty", line.Quantity, "800")
	assertDecimal(t, "cost", line.Cost.Decimal, "8")
	assertDecimal(t, "unit cost", line.UnitCost.Decimal, "0.01")
	if len(line.Contributions) != 2 {
		t.Fatalf("contributions = %d, want 2", len(line.Contributions))
	}
	assertDecimal(t, "pizza share", line.Contributions[0].Quantity, "600")
	assertDecimal(t, "lasagna share", line.Contributions[1].Quantity, "200")
	if len(result.Items) != 2 {
		t.Fatalf("audit items = %d, want 2", len(result.Items))
	}
	assertDecimal(t, "grand total", result.Total, "8")
}

func TestAggregateMissingRecipes(t *testing.T) {
	t.Parallel()

	recipe := sauceRecipe(tomatoes())
	lookup := map[uint]*costing.Recipe{recipe.ID: recipe}
	requests := []Request{
		{RecipeID: 42, Portions: d("1")},
		{RecipeID: recipe.ID, Portions: d("1")},
		{RecipeID: 7, Portions: d("1")},
		{RecipeID: 42, Portions: d("2")},
	}

	result, err := Aggregate(requests, decimal.Zero, lookup)
	if result != nil {
		t.Fatal("expected no partial result")
	}
	if !errors.Is(err, ErrRecipeNotFound) {
		t.Fatalf("expected ErrRecipeNotFound, got %v", err)
	}
	var missing *MissingRecipesError
	if !errors.As(err, &missing) {
		t.Fatalf("expected *MissingRecipesError, got %T", err)
	}
	if len(missing.IDs) != 2 || missing.IDs[0] != 7 || missing.IDs[1] != 42 {
		t.Fatalf("missing ids = %v, want [7 42]", missing.IDs)
	}
}

func TestAggregateToleratesUnknownCost(t *testing.T) {
	t.Parallel()

	beef := &costing.Ingredient{
		ID:               3,
		Name:             "Beef",
		PurchaseUnit:     "lb",
		PurchaseQty:      d("5"),
		PurchasePrice:    d("10"),
		RecipeUnit:       "oz",
		ConversionFactor: d("16"),
		YieldPercent:     d("100"),
	}
	chili := &costing.Recipe{ID: 1, Name: "Chili", YieldQty: d("4")}
	chili.Items = []costing.Item{
		costing.NewIngredientItem(1, chili.ID, d("2"), "cup", beef),
		costing.NewIngredientItem(2, chili.ID, d("100"), "g", cheese()),
	}

	result, err := Aggregate([]Request{{RecipeID: chili.ID, Portions: d("4")}}, decimal.NewFromInt(1), map[uint]*costing.Recipe{chili.ID: chili})
	if err != nil {
		t.Fatalf("Aggregate error = %v", err)
	}
	if result.Complete() || result.UnknownLines() != 1 {
		t.Fatalf("expected one unknown line, got %d", result.UnknownLines())
	}
	if result.Lines[0].Cost.Valid || result.Lines[0].Err == nil {
		t.Fatalf("beef line = %+v, want unknown", result.Lines[0])
	}
	assertDecimal(t, "beef qty", result.Lines[0].Quantity, "2")
	assertDecimal(t, "total", result.Total, "1")
}

func TestAggregateMixedUnits(t *testing.T) {
	t.Parallel()

	mozz := cheese()
	eggs := &costing.Ingredient{
		ID:               4,
		Name:             "Eggs",
		PurchaseUnit:     "dozen",
		PurchaseQty:      d("1"),
		PurchasePrice:    d("3.60"),
		RecipeUnit:       "each",
		ConversionFactor: d("12"),
		YieldPercent:     d("100"),
	}
	first := &costing.Recipe{ID: 1, Name: "Calzone", YieldQty: d("1")}
	first.Items = []costing.Item{
		costing.NewIngredientItem(1, first.ID, d("100"), "g", mozz),
		costing.NewIngredientItem(2, first.ID, d("2"), "each", eggs),
	}
	second := &costing.Recipe{ID: 2, Name: "Frittata", YieldQty: d("1")}
	second.Items = []costing.Item{
		costing.NewIngredientItem(3, second.ID, d("0.5"), "kg", mozz),
		costing.NewIngredientItem(4, second.ID, d("1"), "dozen", eggs),
		costing.NewIngredientItem(5, second.ID, d("1"), "cup", mozz),
	}

	result, err := Aggregate([]Request{
		{RecipeID: first.ID, Portions: d("1")},
		{RecipeID: second.ID, Portions: d("1")},
	}, decimal.NewFromInt(1), map[uint]*costing.Recipe{first.ID: first, second.ID: second})
	if err != nil {
		t.Fatalf("Aggregate error = %v", err)
	}

	if len(result.Lines) != 3 {
		t.Fatalf("lines = %d, want 3: %+v", len(result.Lines), result.Lines)
	}
	cheeseLine, eggLine, cupLine := result.Lines[0], result.Lines[1], result.Lines[2]

	if cheeseLine.Unit != "g" {
		t.Fatalf("cheese unit = %q, want first-seen g", cheeseLine.Unit)
	}
	assertDecimal(t, "cheese qty", cheeseLine.Quantity, "600")
	assertDecimal(t, "cheese cost", cheeseLine.Cost.Decimal, "6")

	assertDecimal(t, "egg qty", eggLine.Quantity, "14")
	assertDecimal(t, "egg cost", eggLine.Cost.Decimal, "4.2")

	// cup cannot become grams without a density, so it stays separate
	if cupLine.IngredientID != mozz.ID || cupLine.Unit != "cup" {
		t.Fatalf("separate line = %+v", cupLine)
	}
	if cupLine.Err == nil || cupLine.Cost.Valid {
		t.Fatalf("cup line should be unpriced, got %+v", cupLine)
	}
	assertDecimal(t, "total", result.Total, "10.2")
}

func TestAggregateSkipsSubRecipeItems(t *testing.T) {
	t.Parallel()

	sauce := sauceRecipe(tomatoes())
	pizza := &costing.Recipe{ID: 20, Name: "Pizza", YieldQty: d("1")}
	pizza.Items = []costing.Item{
		costing.NewSubRecipeItem(1, pizza.ID, d("1"), "portion", sauce),
		costing.NewIngredientItem(2, pizza.ID, d("100"), "g", cheese()),
	}

	result, err := Aggregate([]Request{{RecipeID: pizza.ID, Portions: d("1")}}, decimal.Zero, map[uint]*costing.Recipe{pizza.ID: pizza})
	if err != nil {
		t.Fatalf("Aggregate error = %v", err)
	}
	if len(result.Lines) != 1 || result.Lines[0].IngredientID != 2 {
		t.Fatalf("lines = %+v, want only the direct cheese line", result.Lines)
	}
}

func TestAggregateRecordsUnresolvedIngredient(t *testing.T) {
	t.Parallel()

	recipe := &costing.Recipe{ID: 30, Name: "Soup", YieldQty: d("2")}
	recipe.Items = []costing.Item{
		{ID: 1, RecipeID: recipe.ID, Quantity: d("2"), Unit: "cup", Component: costing.IngredientComponent{ID: 7}},
		costing.NewIngredientItem(2, recipe.ID, d("100"), "g", cheese()),
	}

	result, err := Aggregate([]Request{{RecipeID: recipe.ID, Portions: d("4")}}, decimal.Zero, map[uint]*costing.Recipe{recipe.ID: recipe})
	if err != nil {
		t.Fatalf("Aggregate error = %v", err)
	}
	if result.Complete() {
		t.Fatal("expected incomplete bill with an unresolved ingredient")
	}
	if len(result.Items) != 2 || len(result.Lines) != 2 {
		t.Fatalf("items = %d, lines = %d, want 2 and 2", len(result.Items), len(result.Lines))
	}

	audit := result.Items[0]
	if audit.IngredientID != 7 || !errors.Is(audit.Err, costing.ErrCostCalculation) || audit.LineCost.Valid {
		t.Fatalf("audit item = %+v, want unpriced ingredient 7", audit)
	}
	assertDecimal(t, "unresolved qty", audit.Quantity, "4")

	line := result.Lines[0]
	if line.IngredientID != 7 || line.Unit != "cup" || line.Err == nil || line.Cost.Valid || line.UnitCost.Valid {
		t.Fatalf("line = %+v, want unknown line for ingredient 7", line)
	}
	if result.UnknownLines() != 1 {
		t.Fatalf("unknown lines = %d, want 1", result.UnknownLines())
	}
	assertDecimal(t, "grand total", result.Total, "2")
}

func TestAggregateRejectsBadRequests(t *testing.T) {
	t.Parallel()

	recipe := sauceRecipe(tomatoes())
	lookup := map[uint]*costing.Recipe{recipe.ID: recipe}
	zeroYield := &costing.Recipe{ID: 11, Name: "Broken", YieldQty: decimal.Zero}

	if _, err := Aggregate(nil, decimal.Zero, lookup); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("empty request error = %v", err)
	}
	if _, err := Aggregate([]Request{{RecipeID: recipe.ID, Portions: decimal.Zero}}, decimal.Zero, lookup); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("zero portions error = %v", err)
	}
	if _, err := Aggregate([]Request{{RecipeID: recipe.ID, Portions: d("1")}}, d("-1"), lookup); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("negative factor error = %v", err)
	}
	if _, err := Aggregate([]Request{{RecipeID: zeroYield.ID, Portions: d("1")}}, decimal.Zero, map[uint]*costing.Recipe{zeroYield.ID: zeroYield}); !errors.Is(err, costing.ErrCostCalculation) {
		t.Fatalf("zero yield error = %v", err)
	}
}
