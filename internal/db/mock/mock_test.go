package mock

import (
	"context"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"platecost/internal/catalog"
	"platecost/internal/costing"
	"platecost/models"
)

func TestNewSeedsExpectedRecords(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := New(ctx)
	if err != nil {
		t.Fatalf("mock database initialization failed: %v", err)
	}

	var ingredients []models.Ingredient
	if err := db.WithContext(ctx).Find(&ingredients).Error; err != nil {
		t.Fatalf("query ingredients: %v", err)
	}
	if len(ingredients) == 0 {
		t.Fatal("expected seeded ingredients")
	}

	var items []models.RecipeItem
	if err := db.WithContext(ctx).Find(&items).Error; err != nil {
		t.Fatalf("query recipe items: %v", err)
	}
	if len(items) == 0 {
		t.Fatal("expected seeded recipe items")
	}

	var user models.User
	if err := db.WithContext(ctx).Where("email = ?", DemoEmail).First(&user).Error; err != nil {
		t.Fatalf("query user: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(DemoPassword)); err != nil {
		t.Fatalf("unexpected password hash: %v", err)
	}
	if user.APIKey != DemoAPIKey {
		t.Fatalf("api key = %q", user.APIKey)
	}
}

func TestSeededRecipesArePriced(t *testing.T) {
	ctx := context.Background()
	db, err := New(ctx)
	if err != nil {
		t.Fatalf("mock database initialization failed: %v", err)
	}

	var user models.User
	if err := db.WithContext(ctx).Where("email = ?", DemoEmail).First(&user).Error; err != nil {
		t.Fatalf("query user: %v", err)
	}
	var recipes []models.Recipe
	if err := db.WithContext(ctx).Where("owner_id = ?", user.ID).Find(&recipes).Error; err != nil {
		t.Fatalf("query recipes: %v", err)
	}

	ids := make([]uint, len(recipes))
	for i, recipe := range recipes {
		ids[i] = recipe.ID
	}
	graph, err := catalog.LoadRecipeGraph(ctx, db, user.ID, ids)
	if err != nil {
		t.Fatalf("load graph: %v", err)
	}
	for _, id := range ids {
		recipe, ok := graph.Recipe(id)
		if !ok {
			t.Fatalf("recipe %d missing from graph", id)
		}
		breakdown, err := costing.Break(recipe, costing.One)
		if err != nil {
			t.Fatalf("cost %s: %v", recipe.Name, err)
		}
		if !breakdown.Complete() {
			t.Fatalf("seeded recipe %s has unpriced lines: %+v", recipe.Name, breakdown.Unknown())
		}
		if !breakdown.Total.IsPositive() {
			t.Fatalf("seeded recipe %s costs %s", recipe.Name, breakdown.Total)
		}
	}
}
