package mock

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"platecost/internal/db"
	applog "platecost/internal/log"
	"platecost/models"
)

const (
	// DemoEmail and DemoPassword sign in to the seeded kitchen.
	DemoEmail    = "chef@platecost.dev"
	DemoPassword = "mise-en-place"
	// DemoAPIKey authenticates API calls as the seeded kitchen.
	DemoAPIKey = "demo-kitchen-key"
)

// New returns an in-memory sqlite database seeded with a small bakery and
// pizzeria catalogue.
func New(ctx context.Context) (*gorm.DB, error) {
	applog.Debug(ctx, "initialising mock database")

	database, err := gorm.Open(sqlite.Open("file:platecost-mock?mode=memory&cache=shared"), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		PrepareStmt:                              true,
		SkipDefaultTransaction:                   true,
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(database); err != nil {
		return nil, err
	}

	var existing int64
	if err := database.WithContext(ctx).Model(&models.User{}).Where("email = ?", DemoEmail).Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing == 0 {
		if err := seed(ctx, database); err != nil {
			return nil, err
		}
	}

	applog.Debug(ctx, "mock database ready")
	return database, nil
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func seed(ctx context.Context, database *gorm.DB) error {
	applog.Debug(ctx, "seeding mock database")

	password, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user := &models.User{
			Name:         "Corner Bistro",
			Email:        DemoEmail,
			PasswordHash: string(password),
			APIKey:       DemoAPIKey,
			IsActive:     true,
		}
		if err := tx.Create(user).Error; err != nil {
			return err
		}

		flour := models.Ingredient{OwnerID: user.ID, Name: "All-purpose flour", PurchaseUnit: "kg", PurchaseQty: dec("25"), PurchasePrice: dec("18.75"), RecipeUnit: "g", ConversionFactor: dec("1000"), YieldPercent: dec("100"), Density: decimal.NewNullDecimal(dec("0.53"))}
		butter := models.Ingredient{OwnerID: user.ID, Name: "Unsalted butter", PurchaseUnit: "lb", PurchaseQty: dec("1"), PurchasePrice: dec("4.50"), RecipeUnit: "oz", ConversionFactor: dec("16"), YieldPercent: dec("100"), Density: decimal.NewNullDecimal(dec("0.911"))}
		eggs := models.Ingredient{OwnerID: user.ID, Name: "Eggs", PurchaseUnit: "dozen", PurchaseQty: dec("1"), PurchasePrice: dec("3.60"), RecipeUnit: "each", ConversionFactor: dec("12"), YieldPercent: dec("100")}
		milk := models.Ingredient{OwnerID: user.ID, Name: "Whole milk", PurchaseUnit: "l", PurchaseQty: dec("1"), PurchasePrice: dec("1.20"), RecipeUnit: "ml", ConversionFactor: dec("1000"), YieldPercent: dec("100"), Density: decimal.NewNullDecimal(dec("1.03"))}
		sugar := models.Ingredient{OwnerID: user.ID, Name: "Granulated sugar", PurchaseUnit: "kg", PurchaseQty: dec("2"), PurchasePrice: dec("3.00"), RecipeUnit: "g", ConversionFactor: dec("1000"), YieldPercent: dec("100"), Density: decimal.NewNullDecimal(dec("0.85"))}
		tomatoes := models.Ingredient{OwnerID: user.ID, Name: "Roma tomatoes", Description: "Cored and peeled before use.", PurchaseUnit: "lb", PurchaseQty: dec("10"), PurchasePrice: dec("14.00"), RecipeUnit: "oz", ConversionFactor: dec("16"), YieldPercent: dec("85")}
		mozzarella := models.Ingredient{OwnerID: user.ID, Name: "Fresh mozzarella", PurchaseUnit: "kg", PurchaseQty: dec("1"), PurchasePrice: dec("9.80"), RecipeUnit: "g", ConversionFactor: dec("1000"), YieldPercent: dec("100")}

		ingredients := []*models.Ingredient{&flour, &butter, &eggs, &milk, &sugar, &tomatoes, &mozzarella}
		for _, ingredient := range ingredients {
			if err := tx.Create(ingredient).Error; err != nil {
				return err
			}
		}

		dough := models.Recipe{OwnerID: user.ID, Name: "Pizza dough", YieldQty: dec("1000"), YieldUnit: "g", TargetCostPct: dec("30")}
		sauce := models.Recipe{OwnerID: user.ID, Name: "Tomato sauce", YieldQty: dec("1000"), YieldUnit: "ml", TargetCostPct: dec("30")}
		pizza := models.Recipe{OwnerID: user.ID, Name: "Margherita pizza", YieldQty: dec("4"), YieldUnit: "portion", SellingPrice: decimal.NewNullDecimal(dec("14.00")), TargetCostPct: dec("28")}
		pancakes := models.Recipe{OwnerID: user.ID, Name: "Buttermilk pancakes", YieldQty: dec("8"), YieldUnit: "portion", SellingPrice: decimal.NewNullDecimal(dec("6.50")), TargetCostPct: dec("25"), Instructions: "Whisk wet into dry, rest 10 minutes, cook on a buttered griddle."}

		for _, recipe := range []*models.Recipe{&dough, &sauce, &pizza, &pancakes} {
			if err := tx.Create(recipe).Error; err != nil {
				return err
			}
		}

		items := []models.RecipeItem{
			ingredientItem(dough.ID, flour.ID, "600", "g", 0),
			ingredientItem(dough.ID, milk.ID, "380", "ml", 1),
			ingredientItem(dough.ID, butter.ID, "1", "oz", 2),

			ingredientItem(sauce.ID, tomatoes.ID, "40", "oz", 0),
			ingredientItem(sauce.ID, sugar.ID, "1", "tbsp", 1),

			subRecipeItem(pizza.ID, dough.ID, "1000", "g", 0),
			subRecipeItem(pizza.ID, sauce.ID, "240", "ml", 1),
			ingredientItem(pizza.ID, mozzarella.ID, "250", "g", 2),

			ingredientItem(pancakes.ID, flour.ID, "250", "g", 0),
			ingredientItem(pancakes.ID, milk.ID, "2", "cup", 1),
			ingredientItem(pancakes.ID, eggs.ID, "2", "each", 2),
			ingredientItem(pancakes.ID, butter.ID, "2", "tbsp", 3),
			ingredientItem(pancakes.ID, sugar.ID, "25", "g", 4),
		}
		for i := range items {
			if err := tx.Create(&items[i]).Error; err != nil {
				return err
			}
		}

		applog.Debug(ctx, "mock database seeded", "ingredients", len(ingredients), "items", len(items))
		return nil
	})
}

func ingredientItem(recipeID, ingredientID uint, quantity, unit string, order int) models.RecipeItem {
	id := ingredientID
	return models.RecipeItem{RecipeID: recipeID, IngredientID: &id, Quantity: dec(quantity), Unit: unit, SortOrder: order}
}

func subRecipeItem(recipeID, subRecipeID uint, quantity, unit string, order int) models.RecipeItem {
	id := subRecipeID
	return models.RecipeItem{RecipeID: recipeID, SubRecipeID: &id, Quantity: dec(quantity), Unit: unit, SortOrder: order}
}
