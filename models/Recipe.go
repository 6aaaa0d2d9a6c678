package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Recipe struct {
	gorm.Model
	OwnerID       uint                `gorm:"not null;index" json:"owner_id"`
	Owner         *User               `gorm:"foreignKey:OwnerID" json:"-"`
	Name          string              `gorm:"not null" json:"name"`
	Description   string              `gorm:"type:text" json:"description"`
	YieldQty      decimal.Decimal     `gorm:"type:numeric(10,3);not null" json:"yield_qty"`
	YieldUnit     string              `gorm:"size:32;not null;default:portion" json:"yield_unit"`
	SellingPrice  decimal.NullDecimal `gorm:"type:numeric(10,2)" json:"selling_price"`
	TargetCostPct decimal.Decimal     `gorm:"type:numeric(5,2);not null;default:30" json:"target_cost_pct"`
	PrepMinutes   *int                `json:"prep_minutes,omitempty"`
	CookMinutes   *int                `json:"cook_minutes,omitempty"`
	Instructions  string              `gorm:"type:text" json:"instructions"`
	Items         []RecipeItem        `gorm:"foreignKey:RecipeID" json:"items"`
}
