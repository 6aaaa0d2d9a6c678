// Package export renders stored bills of materials as spreadsheets.
package export

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"platecost/models"
)

const (
	SheetIngredients = "Ingredients"
	SheetRecipes     = "Recipes"
	SheetAudit       = "Audit"

	// ContentType is the MIME type of the rendered workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// BOMWorkbook lays out bom on three sheets: the aggregated shopping list,
// the requested recipes and the per-item audit trail. bom must have its
// Recipes, Lines and Items loaded.
func BOMWorkbook(bom *models.BillOfMaterials) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName(f.GetSheetName(0), SheetIngredients); err != nil {
		return nil, err
	}
	for _, sheet := range []string{SheetRecipes, SheetAudit} {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", sheet, err)
		}
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	ingredients := [][]any{{"Ingredient", "Quantity", "Unit", "Unit cost", "Line cost", "Note"}}
	for _, line := range bom.Lines {
		ingredients = append(ingredients, []any{
			line.IngredientName,
			line.TotalQty.InexactFloat64(),
			line.Unit,
			nullable(line.UnitCost),
			nullable(line.LineCost),
			line.Error,
		})
	}
	ingredients = append(ingredients, []any{}, []any{"Total", nil, nil, nil, bom.TotalCost.InexactFloat64(), completeNote(bom.Complete)})

	recipes := [][]any{{"Recipe", "Portions", "Effective portions", "Scale"}}
	for _, recipe := range bom.Recipes {
		recipes = append(recipes, []any{
			recipe.RecipeName,
			recipe.Portions.InexactFloat64(),
			recipe.EffectivePortions.InexactFloat64(),
			recipe.Scale.InexactFloat64(),
		})
	}

	audit := [][]any{{"Recipe", "Portions", "Ingredient", "Quantity", "Unit", "Unit cost", "Line cost", "Note"}}
	for _, item := range bom.Items {
		audit = append(audit, []any{
			item.RecipeName,
			item.Portions.InexactFloat64(),
			item.IngredientName,
			item.TotalQty.InexactFloat64(),
			item.Unit,
			nullable(item.UnitCost),
			nullable(item.LineCost),
			item.Error,
		})
	}

	for sheet, rows := range map[string][][]any{
		SheetIngredients: ingredients,
		SheetRecipes:     recipes,
		SheetAudit:       audit,
	} {
		if err := writeRows(f, sheet, rows, header); err != nil {
			return nil, err
		}
	}

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   bom.Name,
		Creator: "platecost",
	}); err != nil {
		return nil, err
	}
	return f, nil
}

// BOMBytes renders bom and serialises the workbook.
func BOMBytes(bom *models.BillOfMaterials) ([]byte, error) {
	f, err := BOMWorkbook(bom)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("serialise workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", "A", 28)
}

func nullable(value decimal.NullDecimal) any {
	if !value.Valid {
		return nil
	}
	return value.Decimal.InexactFloat64()
}

func completeNote(complete bool) string {
	if complete {
		return ""
	}
	return "some lines could not be priced"
}
