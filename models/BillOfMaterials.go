package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BillOfMaterials is a generated, immutable shopping list.
type BillOfMaterials struct {
	gorm.Model
	OwnerID     uint            `gorm:"not null;index" json:"owner_id"`
	Name        string          `gorm:"not null" json:"name"`
	Date        *time.Time      `json:"date,omitempty"`
	ScaleFactor decimal.Decimal `gorm:"type:numeric(10,4);not null;default:1" json:"scale_factor"`
	TotalCost   decimal.Decimal `gorm:"type:numeric(14,4);not null" json:"total_cost"`
	Complete    bool            `gorm:"not null" json:"complete"`
	Recipes     []BOMRecipe     `gorm:"foreignKey:BOMID" json:"recipes"`
	Lines       []BOMLine       `gorm:"foreignKey:BOMID" json:"lines"`
	Items       []BOMItem       `gorm:"foreignKey:BOMID" json:"items"`
}

func (BillOfMaterials) TableName() string {
	return "bills_of_materials"
}

// BOMRecipe is a recipe requested for a bill of materials.
type BOMRecipe struct {
	gorm.Model
	BOMID             uint            `gorm:"not null;index" json:"bom_id"`
	RecipeID          uint            `gorm:"not null" json:"recipe_id"`
	RecipeName        string          `json:"recipe_name"`
	Portions          decimal.Decimal `gorm:"type:numeric(10,3);not null" json:"portions"`
	EffectivePortions decimal.Decimal `gorm:"type:numeric(12,4);not null" json:"effective_portions"`
	Scale             decimal.Decimal `gorm:"type:numeric(14,6);not null" json:"scale"`
}

// BOMLine is one aggregated ingredient of a bill of materials.
type BOMLine struct {
	gorm.Model
	BOMID          uint                `gorm:"not null;index" json:"bom_id"`
	SortOrder      int                 `gorm:"not null" json:"sort_order"`
	IngredientID   uint                `gorm:"not null" json:"ingredient_id"`
	IngredientName string              `json:"ingredient_name"`
	TotalQty       decimal.Decimal     `gorm:"type:numeric(14,4);not null" json:"total_qty"`
	Unit           string              `gorm:"size:32;not null" json:"unit"`
	UnitCost       decimal.NullDecimal `gorm:"type:numeric(14,6)" json:"unit_cost"`
	LineCost       decimal.NullDecimal `gorm:"type:numeric(14,4)" json:"line_cost"`
	Error          string              `json:"error,omitempty"`
	Contributions  []BOMContribution   `gorm:"foreignKey:BOMLineID" json:"contributions"`
}

// BOMContribution is one recipe's share of a BOMLine, in the line's unit.
type BOMContribution struct {
	gorm.Model
	BOMLineID  uint            `gorm:"not null;index" json:"bom_line_id"`
	RecipeID   uint            `gorm:"not null" json:"recipe_id"`
	RecipeName string          `json:"recipe_name"`
	Quantity   decimal.Decimal `gorm:"type:numeric(14,4);not null" json:"quantity"`
}

// BOMItem is the audit record of a single recipe item's contribution.
type BOMItem struct {
	gorm.Model
	BOMID          uint                `gorm:"not null;index" json:"bom_id"`
	RecipeID       uint                `gorm:"not null" json:"recipe_id"`
	RecipeName     string              `json:"recipe_name"`
	Portions       decimal.Decimal     `gorm:"type:numeric(12,4);not null" json:"portions"`
	IngredientID   uint                `gorm:"not null" json:"ingredient_id"`
	IngredientName string              `json:"ingredient_name"`
	TotalQty       decimal.Decimal     `gorm:"type:numeric(14,4);not null" json:"total_qty"`
	Unit           string              `gorm:"size:32;not null" json:"unit"`
	UnitCost       decimal.NullDecimal `gorm:"type:numeric(14,6)" json:"unit_cost"`
	LineCost       decimal.NullDecimal `gorm:"type:numeric(14,4)" json:"line_cost"`
	Error          string              `json:"error,omitempty"`
}
