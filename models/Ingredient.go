package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Ingredient struct {
	gorm.Model
	OwnerID     uint   `gorm:"not null;uniqueIndex:idx_ingredient_owner_name" json:"owner_id"`
	Owner       *User  `gorm:"foreignKey:OwnerID" json:"-"`
	Name        string `gorm:"not null;uniqueIndex:idx_ingredient_owner_name" json:"name"`
	Description string `gorm:"type:text" json:"description"`

	PurchaseUnit  string          `gorm:"size:32;not null" json:"purchase_unit"`
	PurchaseQty   decimal.Decimal `gorm:"type:numeric(12,4);not null" json:"purchase_qty"`
	PurchasePrice decimal.Decimal `gorm:"type:numeric(12,4);not null" json:"purchase_price"`

	// RecipeUnit is the unit recipes use by default; ConversionFactor is the
	// number of RecipeUnits in one PurchaseUnit.
	RecipeUnit       string          `gorm:"size:32;not null" json:"recipe_unit"`
	ConversionFactor decimal.Decimal `gorm:"type:numeric(14,6);not null" json:"conversion_factor"`
	YieldPercent     decimal.Decimal `gorm:"type:numeric(6,2);not null;default:100" json:"yield_percent"`

	// Density in g/ml, optional.
	Density decimal.NullDecimal `gorm:"type:numeric(10,4)" json:"density"`
}
