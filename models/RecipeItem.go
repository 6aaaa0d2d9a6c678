package models

import (
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrItemReference is returned for items that reference both an ingredient
// and a sub-recipe, or neither.
var ErrItemReference = errors.New("recipe item must reference exactly one of ingredient or sub-recipe")

type RecipeItem struct {
	gorm.Model
	RecipeID  uint            `gorm:"not null;index" json:"recipe_id"`
	Quantity  decimal.Decimal `gorm:"type:numeric(12,4);not null" json:"quantity"`
	Unit      string          `gorm:"size:32;not null" json:"unit"`
	SortOrder int             `gorm:"not null;default:0" json:"sort_order"`
	Notes     string          `gorm:"type:text" json:"notes"`

	// Exactly one of these is set.
	IngredientID *uint `gorm:"index" json:"ingredient_id,omitempty"`
	SubRecipeID  *uint `gorm:"index" json:"sub_recipe_id,omitempty"`

	Ingredient *Ingredient `gorm:"foreignKey:IngredientID" json:"ingredient,omitempty"`
	SubRecipe  *Recipe     `gorm:"foreignKey:SubRecipeID" json:"sub_recipe,omitempty"`
}

// Validate checks the ingredient/sub-recipe exclusivity.
func (i *RecipeItem) Validate() error {
	if (i.IngredientID == nil) == (i.SubRecipeID == nil) {
		return ErrItemReference
	}
	return nil
}

// BeforeSave rejects items that break the exclusivity rule.
func (i *RecipeItem) BeforeSave(*gorm.DB) error {
	return i.Validate()
}
