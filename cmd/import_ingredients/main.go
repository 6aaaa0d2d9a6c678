package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"platecost/internal/config"
	"platecost/internal/db"
	"platecost/internal/units"
	"platecost/models"
)

var headerPattern = regexp.MustCompile(`[^a-z0-9]+`)

var headerAliases = map[string]string{
	"ingredient":   "name",
	"price":        "purchase_price",
	"yield":        "yield_percent",
	"yield_pct":    "yield_percent",
	"density_g_ml": "density",
}

func main() {
	path := "ingredients.csv"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	if err := run(path); err != nil {
		fmt.Fprintf(os.Stderr, "import failed: %v\n", err)
		os.Exit(1)
	}
}

func run(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("input path must not be empty")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("locate input: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.UseMock {
		return fmt.Errorf("DATABASE_URL must point at a real database")
	}

	database, err := db.Initialize(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(database); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	ctx := context.Background()
	ownerID, err := resolveImportOwner(ctx, database, os.Getenv("PLATECOST_IMPORT_OWNER_EMAIL"))
	if err != nil {
		return fmt.Errorf("resolve owner: %w", err)
	}

	records, err := readRecords(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}

	summary, err := importRecords(ctx, database, ownerID, records)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Imported %d ingredients (%d created, %d updated) from %s\n",
		summary.created+summary.updated, summary.created, summary.updated, filepath.Base(path))
	return nil
}

func resolveImportOwner(ctx context.Context, database *gorm.DB, email string) (uint, error) {
	if database == nil {
		return 0, fmt.Errorf("database handle is nil")
	}

	var user models.User
	if email = models.NormalizeEmail(email); email != "" {
		if err := database.WithContext(ctx).Where("lower(email) = ?", email).First(&user).Error; err != nil {
			return 0, fmt.Errorf("find owner by email %q: %w", email, err)
		}
		return user.ID, nil
	}

	if err := database.WithContext(ctx).Order("id asc").First(&user).Error; err != nil {
		return 0, fmt.Errorf("find default owner: %w", err)
	}
	return user.ID, nil
}

// readRecords loads rows keyed by normalized header from a .csv file or the
// first sheet of an .xlsx workbook.
func readRecords(path string) ([]map[string]string, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = readXLSX(path)
	case ".csv", "":
		rows, err = readCSV(path)
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("input is empty")
	}

	header := make([]string, len(rows[0]))
	for idx, key := range rows[0] {
		header[idx] = normalizeHeader(key)
	}

	records := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		record := make(map[string]string, len(header))
		for idx, key := range header {
			if idx >= len(row) || key == "" {
				continue
			}
			record[key] = strings.TrimSpace(row[idx])
		}
		records = append(records, record)
	}
	return records, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	return reader.ReadAll()
}

func readXLSX(path string) ([][]string, error) {
	workbook, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer workbook.Close()

	sheets := workbook.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	return workbook.GetRows(sheets[0])
}

func normalizeHeader(value string) string {
	key := strings.Trim(headerPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(value)), "_"), "_")
	if alias, ok := headerAliases[key]; ok {
		return alias
	}
	return key
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// buildIngredient validates one row. Yield defaults to 100 and density is
// optional.
func buildIngredient(row map[string]string) (models.Ingredient, error) {
	ingredient := models.Ingredient{
		Name:         strings.TrimSpace(row["name"]),
		Description:  strings.TrimSpace(row["description"]),
		PurchaseUnit: units.Normalize(row["purchase_unit"]),
		RecipeUnit:   units.Normalize(row["recipe_unit"]),
		YieldPercent: decimal.NewFromInt(100),
	}
	if ingredient.Name == "" {
		return ingredient, errors.New("name is required")
	}
	if ingredient.PurchaseUnit == "" || ingredient.RecipeUnit == "" {
		return ingredient, errors.New("purchase_unit and recipe_unit are required")
	}

	var err error
	if ingredient.PurchaseQty, err = parsePositive(row, "purchase_qty"); err != nil {
		return ingredient, err
	}
	if ingredient.PurchasePrice, err = parseDecimal(row, "purchase_price"); err != nil {
		return ingredient, err
	}
	if ingredient.PurchasePrice.IsNegative() {
		return ingredient, errors.New("purchase_price must not be negative")
	}
	if ingredient.ConversionFactor, err = parsePositive(row, "conversion_factor"); err != nil {
		return ingredient, err
	}
	if strings.TrimSpace(row["yield_percent"]) != "" {
		if ingredient.YieldPercent, err = parsePositive(row, "yield_percent"); err != nil {
			return ingredient, err
		}
		if ingredient.YieldPercent.GreaterThan(decimal.NewFromInt(100)) {
			return ingredient, errors.New("yield_percent must not exceed 100")
		}
	}
	if strings.TrimSpace(row["density"]) != "" {
		density, err := parsePositive(row, "density")
		if err != nil {
			return ingredient, err
		}
		ingredient.Density = decimal.NewNullDecimal(density)
	}
	return ingredient, nil
}

func parseDecimal(row map[string]string, key string) (decimal.Decimal, error) {
	raw := strings.TrimPrefix(strings.ReplaceAll(strings.TrimSpace(row[key]), ",", ""), "$")
	if raw == "" {
		return decimal.Zero, fmt.Errorf("%s is required", key)
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %q is not a number", key, row[key])
	}
	return value, nil
}

func parsePositive(row map[string]string, key string) (decimal.Decimal, error) {
	value, err := parseDecimal(row, key)
	if err != nil {
		return value, err
	}
	if !value.IsPositive() {
		return value, fmt.Errorf("%s must be greater than 0", key)
	}
	return value, nil
}

type importSummary struct {
	created int
	updated int
}

// importRecords upserts every record by (owner, case-insensitive name), one
// transaction per row.
func importRecords(ctx context.Context, database *gorm.DB, ownerID uint, records []map[string]string) (importSummary, error) {
	var summary importSummary
	for idx, record := range records {
		ingredient, err := buildIngredient(record)
		if err != nil {
			return summary, fmt.Errorf("record %d (%s): %w", idx+1, record["name"], err)
		}
		ingredient.OwnerID = ownerID

		created := false
		err = database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var existing models.Ingredient
			err := tx.Where("owner_id = ? AND lower(name) = ?", ownerID, strings.ToLower(ingredient.Name)).First(&existing).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				created = true
				if err := tx.Create(&ingredient).Error; err != nil {
					return fmt.Errorf("create ingredient %q: %w", ingredient.Name, err)
				}
				return nil
			}
			if err != nil {
				return fmt.Errorf("find ingredient %q: %w", ingredient.Name, err)
			}

			updates := map[string]any{
				"name":              ingredient.Name,
				"description":       ingredient.Description,
				"purchase_unit":     ingredient.PurchaseUnit,
				"purchase_qty":      ingredient.PurchaseQty,
				"purchase_price":    ingredient.PurchasePrice,
				"recipe_unit":       ingredient.RecipeUnit,
				"conversion_factor": ingredient.ConversionFactor,
				"yield_percent":     ingredient.YieldPercent,
				"density":           ingredient.Density,
			}
			if err := tx.Model(&existing).Updates(updates).Error; err != nil {
				return fmt.Errorf("update ingredient %q: %w", ingredient.Name, err)
			}
			return nil
		})
		if err != nil {
			return summary, fmt.Errorf("record %d (%s): %w", idx+1, record["name"], err)
		}
		if created {
			summary.created++
		} else {
			summary.updated++
		}
	}
	return summary, nil
}
