package costing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"platecost/internal/units"
)

func d(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func one() decimal.Decimal {
	return decimal.NewFromInt(1)
}

func assertDecimal(t *testing.T, label string, got decimal.Decimal, want string) {
	t.Helper()
	if got.Sub(d(want)).Abs().GreaterThan(d("0.000001")) {
		t.Fatalf("%s = %s, want %s", label, got, want)
	}
}

func beef() *Ingredient {
	return &Ingredient{
		ID:               1,
		Name:             "Ground beef",
		PurchaseUnit:     "lb",
		PurchaseQty:      d("5"),
		PurchasePrice:    d("10"),
		RecipeUnit:       "oz",
		ConversionFactor: d("16"),
		YieldPercent:     d("100"),
	}
}

func flour() *Ingredient {
	return &Ingredient{
		ID:               2,
		Name:             "Flour",
		PurchaseUnit:     "kg",
		PurchaseQty:      d("1"),
		PurchasePrice:    d("2"),
		RecipeUnit:       "g",
		ConversionFactor: d("1000"),
		YieldPercent:     d("100"),
	}
}

func TestIngredientUnitCost(t *testing.T) {
	t.Parallel()

	ing := beef()
	got, err := IngredientUnitCost(ing, "")
	if err != nil {
		t.Fatalf("IngredientUnitCost error = %v", err)
	}
	assertDecimal(t, "unit cost", got, "0.125")

	ing.YieldPercent = d("80")
	got, err = IngredientUnitCost(ing, "oz")
	if err != nil {
		t.Fatalf("IngredientUnitCost error = %v", err)
	}
	assertDecimal(t, "unit cost at 80% yield", got, "0.15625")
}

func TestIngredientUnitCostConvertsTargetUnit(t *testing.T) {
	t.Parallel()

	got, err := IngredientUnitCost(beef(), "lb")
	if err != nil {
		t.Fatalf("IngredientUnitCost error = %v", err)
	}
	// one lb is 453.592/28.3495 oz at 0.125 per oz
	want := d("0.125").Mul(d("453.592").Div(d("28.3495")))
	assertDecimal(t, "cost per lb", got, want.String())

	got, err = IngredientUnitCost(flour(), "kg")
	if err != nil {
		t.Fatalf("IngredientUnitCost error = %v", err)
	}
	assertDecimal(t, "flour per kg", got, "2")
}

func TestIngredientUnitCostWithDensity(t *testing.T) {
	t.Parallel()

	milk := &Ingredient{
		ID:               3,
		Name:             "Milk",
		PurchaseUnit:     "l",
		PurchaseQty:      d("1"),
		PurchasePrice:    d("1.50"),
		RecipeUnit:       "ml",
		ConversionFactor: d("1000"),
		YieldPercent:     d("100"),
	}
	if _, err := IngredientUnitCost(milk, "g"); !errors.Is(err, units.ErrDensityRequired) {
		t.Fatalf("expected density error, got %v", err)
	}

	milk.Density = decimal.NewNullDecimal(d("1"))
	got, err := IngredientUnitCost(milk, "g")
	if err != nil {
		t.Fatalf("IngredientUnitCost error = %v", err)
	}
	assertDecimal(t, "milk per g", got, "0.0015")
}

func TestIngredientUnitCostYieldMonotonic(t *testing.T) {
	t.Parallel()

	var previous decimal.Decimal
	for i, yield := range []string{"100", "90", "75", "50", "10"} {
		ing := beef()
		ing.YieldPercent = d(yield)
		got, err := IngredientUnitCost(ing, "")
		if err != nil {
			t.Fatalf("IngredientUnitCost(yield=%s) error = %v", yield, err)
		}
		if i > 0 && !got.GreaterThan(previous) {
			t.Fatalf("unit cost at yield %s = %s, want more than %s", yield, got, previous)
		}
		previous = got
	}
}

func TestIngredientUnitCostFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Ingredient)
		unit   string
		unwrap error
	}{
		{name: "zero purchase qty", mutate: func(i *Ingredient) { i.PurchaseQty = decimal.Zero }},
		{name: "zero conversion factor", mutate: func(i *Ingredient) { i.ConversionFactor = decimal.Zero }},
		{name: "zero yield", mutate: func(i *Ingredient) { i.YieldPercent = decimal.Zero }},
		{name: "incompatible unit", mutate: func(*Ingredient) {}, unit: "dozen", unwrap: units.ErrIncompatible},
		{name: "unknown unit", mutate: func(*Ingredient) {}, unit: "handful", unwrap: units.ErrUnknownUnit},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ing := beef()
			tt.mutate(ing)
			_, err := IngredientUnitCost(ing, tt.unit)
			if !errors.Is(err, ErrCostCalculation) {
				t.Fatalf("expected ErrCostCalculation, got %v", err)
			}
			var calc *CalculationError
			if !errors.As(err, &calc) {
				t.Fatalf("expected *CalculationError, got %T", err)
			}
			if calc.Subject != `ingredient "Ground beef"` {
				t.Fatalf("subject = %q", calc.Subject)
			}
			if tt.unwrap != nil && !errors.Is(err, tt.unwrap) {
				t.Fatalf("expected %v inside %v", tt.unwrap, err)
			}
		})
	}

	if _, err := IngredientUnitCost(nil, "g"); !errors.Is(err, ErrCostCalculation) {
		t.Fatalf("nil ingredient error = %v", err)
	}
}

func TestRecipeCostIsAdditive(t *testing.T) {
	t.Parallel()

	recipe := &Recipe{ID: 10, Name: "Meat pie", YieldQty: d("4"), YieldUnit: "portion"}
	recipe.Items = []Item{
		NewIngredientItem(1, recipe.ID, d("8"), "oz", beef()),
		NewIngredientItem(2, recipe.ID, d("250"), "g", flour()),
	}

	for _, scale := range []string{"1", "2.5", "0.5"} {
		s := d(scale)
		total, err := RecipeCost(recipe, s, nil)
		if err != nil {
			t.Fatalf("RecipeCost error = %v", err)
		}
		sum := decimal.Zero
		for _, item := range recipe.Items {
			cost, err := ItemCost(item, s, nil)
			if err != nil {
				t.Fatalf("ItemCost error = %v", err)
			}
			sum = sum.Add(cost)
		}
		if !total.Equal(sum) {
			t.Fatalf("RecipeCost at %s = %s, sum of items = %s", scale, total, sum)
		}
	}

	// 8 oz * 0.125 + 250 g * 0.002
	total, _ := RecipeCost(recipe, one(), nil)
	assertDecimal(t, "meat pie", total, "1.5")
}

func TestRecipeCostPartialFailure(t *testing.T) {
	t.Parallel()

	recipe := &Recipe{ID: 20, Name: "Chili", YieldQty: d("4"), YieldUnit: "portion"}
	recipe.Items = []Item{
		NewIngredientItem(1, recipe.ID, d("2"), "cup", beef()),
		NewIngredientItem(2, recipe.ID, d("100"), "g", flour()),
	}

	b, err := Break(recipe, one())
	if err != nil {
		t.Fatalf("Break error = %v", err)
	}
	if b.Complete() {
		t.Fatal("expected incomplete breakdown")
	}
	if len(b.Lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(b.Lines))
	}
	if b.Lines[0].Cost.Valid || b.Lines[0].Err == nil {
		t.Fatalf("cup line = %+v, want unknown cost with error", b.Lines[0])
	}
	if !errors.Is(b.Lines[0].Err, units.ErrDensityRequired) {
		t.Fatalf("cup line error = %v", b.Lines[0].Err)
	}
	if unknown := b.Unknown(); len(unknown) != 1 || unknown[0].Item.ID != 1 {
		t.Fatalf("Unknown() = %+v", unknown)
	}
	assertDecimal(t, "partial total", b.Total, "0.2")

	total, err := RecipeCost(recipe, one(), nil)
	if err != nil {
		t.Fatalf("RecipeCost error = %v", err)
	}
	assertDecimal(t, "RecipeCost", total, "0.2")
}

func TestSubRecipeCost(t *testing.T) {
	t.Parallel()

	dough := &Recipe{ID: 30, Name: "Dough", YieldQty: d("500"), YieldUnit: "g"}
	dough.Items = []Item{NewIngredientItem(1, dough.ID, d("500"), "g", flour())}

	pizza := &Recipe{ID: 31, Name: "Pizza", YieldQty: d("2"), YieldUnit: "portion"}
	pizza.Items = []Item{
		NewSubRecipeItem(2, pizza.ID, d("250"), "g", dough),
		NewIngredientItem(3, pizza.ID, d("4"), "oz", beef()),
	}

	// dough batch = 1.00 for 500 g, 250 g = 0.50; beef 4 oz = 0.50
	total, err := RecipeCost(pizza, one(), nil)
	if err != nil {
		t.Fatalf("RecipeCost error = %v", err)
	}
	assertDecimal(t, "pizza", total, "1")

	doubled, err := RecipeCost(pizza, d("2"), nil)
	if err != nil {
		t.Fatalf("RecipeCost error = %v", err)
	}
	assertDecimal(t, "pizza x2", doubled, "2")

	perPortion, err := CostPerPortion(pizza, d("2"))
	if err != nil {
		t.Fatalf("CostPerPortion error = %v", err)
	}
	assertDecimal(t, "per portion", perPortion, "0.5")
}

func TestSubRecipePartialPropagates(t *testing.T) {
	t.Parallel()

	sauce := &Recipe{ID: 40, Name: "Sauce", YieldQty: d("1"), YieldUnit: "l"}
	sauce.Items = []Item{
		NewIngredientItem(1, sauce.ID, d("1"), "cup", beef()),
		NewIngredientItem(2, sauce.ID, d("100"), "g", flour()),
	}
	dish := &Recipe{ID: 41, Name: "Dish", YieldQty: d("1"), YieldUnit: "portion"}
	dish.Items = []Item{NewSubRecipeItem(3, dish.ID, d("1"), "l", sauce)}

	b, err := Break(dish, one())
	if err != nil {
		t.Fatalf("Break error = %v", err)
	}
	if !b.Lines[0].Cost.Valid || !b.Lines[0].Partial {
		t.Fatalf("line = %+v, want known partial cost", b.Lines[0])
	}
	if b.Complete() {
		t.Fatal("expected incomplete breakdown")
	}
}

func TestRecipeCycleDetected(t *testing.T) {
	t.Parallel()

	a := &Recipe{ID: 1, Name: "A", YieldQty: d("1")}
	b := &Recipe{ID: 2, Name: "B", YieldQty: d("1")}
	a.Items = []Item{
		NewIngredientItem(1, a.ID, d("1"), "g", flour()),
		NewSubRecipeItem(2, a.ID, d("1"), "portion", b),
	}
	b.Items = []Item{NewSubRecipeItem(3, b.ID, d("1"), "portion", a)}

	_, err := RecipeCost(a, one(), nil)
	if !errors.Is(err, ErrRecipeCycle) {
		t.Fatalf("expected ErrRecipeCycle, got %v", err)
	}
	if !errors.Is(err, ErrCostCalculation) {
		t.Fatalf("cycle error should also match ErrCostCalculation, got %v", err)
	}
	var cycle *CycleError
	if !errors.As(err, &cycle) || cycle.RecipeID != a.ID {
		t.Fatalf("expected cycle naming recipe %d, got %v", a.ID, err)
	}

	if _, err := Break(b, one()); !errors.Is(err, ErrRecipeCycle) {
		t.Fatalf("Break(b) error = %v", err)
	}
	if _, err := Scale(a, d("4")); !errors.Is(err, ErrRecipeCycle) {
		t.Fatalf("Scale error = %v", err)
	}
}

func TestSelfReferenceIsCycle(t *testing.T) {
	t.Parallel()

	r := &Recipe{ID: 5, Name: "Ouroboros", YieldQty: d("1")}
	r.Items = []Item{NewSubRecipeItem(1, r.ID, d("1"), "portion", r)}
	if _, err := RecipeCost(r, one(), nil); !errors.Is(err, ErrRecipeCycle) {
		t.Fatalf("expected cycle, got %v", err)
	}
}

func TestCycleThroughZeroYieldSubRecipe(t *testing.T) {
	t.Parallel()

	a := &Recipe{ID: 1, Name: "A", YieldQty: d("1")}
	broken := &Recipe{ID: 2, Name: "Broken", YieldQty: decimal.Zero}
	a.Items = []Item{NewSubRecipeItem(1, a.ID, d("1"), "portion", broken)}
	broken.Items = []Item{NewSubRecipeItem(2, broken.ID, d("1"), "portion", a)}

	if _, err := RecipeCost(a, one(), nil); !errors.Is(err, ErrRecipeCycle) {
		t.Fatalf("expected cycle, got %v", err)
	}
	if _, err := Break(a, one()); !errors.Is(err, ErrRecipeCycle) {
		t.Fatalf("Break error = %v", err)
	}
}

func TestSharedSubRecipeIsNotACycle(t *testing.T) {
	t.Parallel()

	stock := &Recipe{ID: 1, Name: "Stock", YieldQty: d("1000"), YieldUnit: "ml"}
	stock.Items = []Item{NewIngredientItem(1, stock.ID, d("1000"), "g", flour())}
	soup := &Recipe{ID: 2, Name: "Soup", YieldQty: d("1")}
	soup.Items = []Item{
		NewSubRecipeItem(2, soup.ID, d("500"), "ml", stock),
		NewSubRecipeItem(3, soup.ID, d("500"), "ml", stock),
	}

	total, err := RecipeCost(soup, one(), nil)
	if err != nil {
		t.Fatalf("siblings sharing a sub-recipe reported %v", err)
	}
	assertDecimal(t, "soup", total, "2")
}

func TestItemCostFailures(t *testing.T) {
	t.Parallel()

	zeroYield := &Recipe{ID: 9, Name: "Broken", YieldQty: decimal.Zero}
	tests := []struct {
		name string
		item Item
	}{
		{"no component", Item{ID: 1, RecipeID: 1, Quantity: one(), Unit: "g"}},
		{"nil ingredient", NewIngredientItem(2, 1, one(), "g", nil)},
		{"nil sub-recipe", NewSubRecipeItem(3, 1, one(), "g", nil)},
		{"zero yield sub-recipe", NewSubRecipeItem(4, 1, one(), "g", zeroYield)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ItemCost(tt.item, one(), nil)
			if !errors.Is(err, ErrCostCalculation) {
				t.Fatalf("expected ErrCostCalculation, got %v", err)
			}
			if errors.Is(err, ErrRecipeCycle) {
				t.Fatalf("unexpected cycle error %v", err)
			}
		})
	}
}

func TestCostPerPortionZeroYield(t *testing.T) {
	t.Parallel()

	r := &Recipe{ID: 1, Name: "Empty", YieldQty: decimal.Zero}
	if _, err := CostPerPortion(r, one()); !errors.Is(err, ErrCostCalculation) {
		t.Fatalf("expected ErrCostCalculation, got %v", err)
	}
}

func TestFoodCostPercentage(t *testing.T) {
	t.Parallel()

	recipe := &Recipe{ID: 1, Name: "Burger", YieldQty: d("2"), YieldUnit: "portion"}
	recipe.Items = []Item{NewIngredientItem(1, recipe.ID, d("16"), "oz", beef())}
	// 16 oz = 2.00, 1.00 per portion

	pct, err := FoodCostPercentage(recipe, decimal.NullDecimal{})
	if err != nil {
		t.Fatalf("FoodCostPercentage error = %v", err)
	}
	if pct.Valid {
		t.Fatalf("expected null without a price, got %s", pct.Decimal)
	}

	recipe.SellingPrice = decimal.NewNullDecimal(d("4"))
	pct, err = FoodCostPercentage(recipe, decimal.NullDecimal{})
	if err != nil {
		t.Fatalf("FoodCostPercentage error = %v", err)
	}
	assertDecimal(t, "pct", pct.Decimal, "25")

	pct, err = FoodCostPercentage(recipe, decimal.NewNullDecimal(d("5")))
	if err != nil {
		t.Fatalf("FoodCostPercentage error = %v", err)
	}
	assertDecimal(t, "pct override", pct.Decimal, "20")

	pct, err = FoodCostPercentage(recipe, decimal.NewNullDecimal(decimal.Zero))
	if err != nil || pct.Valid {
		t.Fatalf("zero price = %v, %v; want null", pct, err)
	}
}
