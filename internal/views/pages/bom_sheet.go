package pages

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/shopspring/decimal"

	"platecost/models"
)

// BOMSheetLine is one row of the printable shopping list.
type BOMSheetLine struct {
	Order         int
	Ingredient    string
	Quantity      string
	UnitCost      string
	LineCost      string
	Note          string
	Contributions []string
}

// BOMSheetRecipe is a requested recipe as printed in the sheet header.
type BOMSheetRecipe struct {
	Name     string
	Portions string
	Scale    string
}

// BOMSheetData aggregates everything the production sheet renders.
type BOMSheetData struct {
	Name        string
	Date        string
	ScaleFactor string
	Total       string
	Complete    bool
	GeneratedAt time.Time
	Recipes     []BOMSheetRecipe
	Lines       []BOMSheetLine
}

// NewBOMSheetData formats a stored bill of materials for printing.
func NewBOMSheetData(bom *models.BillOfMaterials, generatedAt time.Time) BOMSheetData {
	data := BOMSheetData{
		Name:        bom.Name,
		ScaleFactor: bom.ScaleFactor.String(),
		Total:       FormatMoney(decimal.NewNullDecimal(bom.TotalCost)),
		Complete:    bom.Complete,
		GeneratedAt: generatedAt,
	}
	if bom.Date != nil {
		data.Date = FormatReportDate(*bom.Date)
	}
	for _, recipe := range bom.Recipes {
		data.Recipes = append(data.Recipes, BOMSheetRecipe{
			Name:     recipe.RecipeName,
			Portions: recipe.EffectivePortions.StringFixed(1),
			Scale:    recipe.Scale.StringFixed(3),
		})
	}
	for i, line := range bom.Lines {
		row := BOMSheetLine{
			Order:      i + 1,
			Ingredient: line.IngredientName,
			Quantity:   FormatQuantity(line.TotalQty, line.Unit),
			UnitCost:   FormatMoney(line.UnitCost),
			LineCost:   FormatMoney(line.LineCost),
			Note:       line.Error,
		}
		for _, c := range line.Contributions {
			row.Contributions = append(row.Contributions, fmt.Sprintf("%s: %s", c.RecipeName, FormatQuantity(c.Quantity, line.Unit)))
		}
		data.Lines = append(data.Lines, row)
	}
	return data
}

// FormatQuantity renders a quantity with up to two decimals and its unit.
// Milligrams and counts are rounded to whole numbers.
func FormatQuantity(value decimal.Decimal, unit string) string {
	switch strings.ToLower(unit) {
	case "mg", "each", "piece":
		return fmt.Sprintf("%s %s", value.Round(0).String(), unit)
	}
	return fmt.Sprintf("%s %s", value.Round(2).String(), unit)
}

// FormatMoney renders a cost with two decimals, or a dash when unknown.
func FormatMoney(value decimal.NullDecimal) string {
	if !value.Valid {
		return "–"
	}
	return value.Decimal.StringFixed(2)
}

// FormatReportDate renders the supplied time using a production-friendly layout.
func FormatReportDate(v time.Time) string {
	if v.IsZero() {
		return ""
	}
	return v.Format("02 Jan 2006")
}

// BOMSheet renders a printable production sheet for a bill of materials.
func BOMSheet(data BOMSheetData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		sw := &sheetWriter{w: w}
		sw.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>`)
		sw.text(data.Name)
		sw.raw(`</title><style>body{font-family:sans-serif;margin:2rem}table{border-collapse:collapse;width:100%}th,td{border-bottom:1px solid #ccc;padding:.35rem .5rem;text-align:left}td.num{text-align:right}.warn{color:#a33}</style></head><body>`)

		sw.raw(`<header><h1>`)
		sw.text(data.Name)
		sw.raw(`</h1><p>`)
		if data.Date != "" {
			sw.raw(`Production date: `)
			sw.text(data.Date)
			sw.raw(` · `)
		}
		sw.raw(`Scale factor: `)
		sw.text(data.ScaleFactor)
		sw.raw(`</p></header>`)

		sw.raw(`<section data-section="recipes"><h2>Recipes</h2><ul>`)
		for _, recipe := range data.Recipes {
			sw.raw(`<li>`)
			sw.text(recipe.Name)
			sw.raw(` · `)
			sw.text(recipe.Portions)
			sw.raw(` portions (×`)
			sw.text(recipe.Scale)
			sw.raw(`)</li>`)
		}
		sw.raw(`</ul></section>`)

		sw.raw(`<section data-section="ingredients"><h2>Shopping list</h2><table><thead><tr><th>#</th><th>Ingredient</th><th>Quantity</th><th>Unit cost</th><th>Line cost</th><th>Used by</th></tr></thead><tbody>`)
		for _, line := range data.Lines {
			sw.raw(`<tr><td>`)
			sw.text(fmt.Sprint(line.Order))
			sw.raw(`</td><td>`)
			sw.text(line.Ingredient)
			if line.Note != "" {
				sw.raw(` <span class="warn" title="`)
				sw.text(line.Note)
				sw.raw(`">unpriced</span>`)
			}
			sw.raw(`</td><td class="num">`)
			sw.text(line.Quantity)
			sw.raw(`</td><td class="num">`)
			sw.text(line.UnitCost)
			sw.raw(`</td><td class="num">`)
			sw.text(line.LineCost)
			sw.raw(`</td><td>`)
			sw.text(strings.Join(line.Contributions, "; "))
			sw.raw(`</td></tr>`)
		}
		sw.raw(`</tbody><tfoot><tr><th colspan="4">Total</th><td class="num">`)
		sw.text(data.Total)
		sw.raw(`</td><td>`)
		if !data.Complete {
			sw.raw(`<span class="warn">Some lines could not be priced.</span>`)
		}
		sw.raw(`</td></tr></tfoot></table></section>`)

		if !data.GeneratedAt.IsZero() {
			sw.raw(`<footer><small>Generated `)
			sw.text(data.GeneratedAt.UTC().Format(time.RFC1123))
			sw.raw(`</small></footer>`)
		}
		sw.raw(`</body></html>`)
		return sw.err
	})
}

// sheetWriter remembers the first write error so rendering reads linearly.
type sheetWriter struct {
	w   io.Writer
	err error
}

func (s *sheetWriter) raw(value string) {
	if s.err != nil {
		return
	}
	_, s.err = io.WriteString(s.w, value)
}

func (s *sheetWriter) text(value string) {
	s.raw(templ.EscapeString(value))
}
