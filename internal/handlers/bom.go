package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"platecost/internal/bom"
	"platecost/internal/cache"
	"platecost/internal/catalog"
	"platecost/internal/costing"
	"platecost/internal/export"
	applog "platecost/internal/log"
	"platecost/internal/views/pages"
	"platecost/models"
)

const (
	bomPrefix  = "/api/v1/bom"
	dateLayout = "2006-01-02"
)

var nowFunc = time.Now

type bomRecipeRequest struct {
	RecipeID uint            `json:"recipe_id" validate:"required"`
	Portions decimal.Decimal `json:"portions" validate:"dgt=0"`
}

type bomGenerateRequest struct {
	Name        string              `json:"name" validate:"required,max=255"`
	Date        string              `json:"date" validate:"omitempty,datetime=2006-01-02"`
	ScaleFactor decimal.NullDecimal `json:"scale_factor" validate:"omitempty,dgt=0"`
	Recipes     []bomRecipeRequest  `json:"recipes" validate:"required,min=1,dive"`
}

type bomRecipeResponse struct {
	RecipeID          uint            `json:"recipe_id"`
	RecipeName        string          `json:"recipe_name"`
	Portions          decimal.Decimal `json:"portions"`
	EffectivePortions decimal.Decimal `json:"effective_portions"`
	Scale             decimal.Decimal `json:"scale"`
}

type bomContributionResponse struct {
	RecipeID   uint            `json:"recipe_id"`
	RecipeName string          `json:"recipe_name"`
	Quantity   decimal.Decimal `json:"quantity"`
}

type bomLineResponse struct {
	IngredientID   uint                      `json:"ingredient_id"`
	IngredientName string                    `json:"ingredient_name"`
	TotalQty       decimal.Decimal           `json:"total_qty"`
	Unit           string                    `json:"unit"`
	UnitCost       decimal.NullDecimal       `json:"unit_cost"`
	LineCost       decimal.NullDecimal       `json:"line_cost"`
	Error          string                    `json:"error,omitempty"`
	FromRecipes    []bomContributionResponse `json:"from_recipes"`
}

type bomItemResponse struct {
	ID             uint                `json:"id"`
	RecipeID       uint                `json:"recipe_id"`
	RecipeName     string              `json:"recipe_name"`
	Portions       decimal.Decimal     `json:"portions"`
	IngredientID   uint                `json:"ingredient_id"`
	IngredientName string              `json:"ingredient_name"`
	TotalQty       decimal.Decimal     `json:"total_qty"`
	Unit           string              `json:"unit"`
	UnitCost       decimal.NullDecimal `json:"unit_cost"`
	LineCost       decimal.NullDecimal `json:"line_cost"`
	Error          string              `json:"error,omitempty"`
}

type bomResponse struct {
	ID          uint                `json:"id"`
	OwnerID     uint                `json:"owner_id"`
	Name        string              `json:"name"`
	Date        *string             `json:"date"`
	ScaleFactor decimal.Decimal     `json:"scale_factor"`
	TotalCost   decimal.Decimal     `json:"total_cost"`
	Complete    bool                `json:"complete"`
	CreatedAt   time.Time           `json:"created_at"`
	Recipes     []bomRecipeResponse `json:"recipes"`
	Ingredients []bomLineResponse   `json:"ingredients"`
	Items       []bomItemResponse   `json:"items"`
}

type bomSummaryResponse struct {
	ID              uint            `json:"id"`
	Name            string          `json:"name"`
	Date            *string         `json:"date"`
	TotalCost       decimal.Decimal `json:"total_cost"`
	Complete        bool            `json:"complete"`
	RecipeCount     int             `json:"recipe_count"`
	IngredientCount int             `json:"ingredient_count"`
	CreatedAt       time.Time       `json:"created_at"`
}

// BOMResource handles generation and retrieval of bills of materials.
func BOMResource(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		applog.Debug(r.Context(), "bom request missing authenticated user")
		writeJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	segments := resourcePath(r, bomPrefix)
	if len(segments) == 0 {
		if r.Method == http.MethodGet {
			listBOMs(w, r, userID)
			return
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if len(segments) == 1 && segments[0] == "generate" {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		generateBOM(w, r, userID)
		return
	}

	bomID, err := parseID(segments[0])
	if err != nil {
		applog.Debug(r.Context(), "invalid bom identifier", "identifier", segments[0], "error", err)
		http.NotFound(w, r)
		return
	}

	switch {
	case len(segments) == 1:
		switch r.Method {
		case http.MethodGet:
			showBOM(w, r, bomID, userID)
		case http.MethodDelete:
			deleteBOM(w, r, bomID, userID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case len(segments) == 2 && segments[1] == "export.xlsx":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		exportBOM(w, r, bomID, userID)
	case len(segments) == 2 && segments[1] == "sheet":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		renderBOMSheet(w, r, bomID, userID)
	default:
		http.NotFound(w, r)
	}
}

func generateBOM(w http.ResponseWriter, r *http.Request, userID uint) {
	ctx := r.Context()
	var req bomGenerateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if req.ScaleFactor.Valid && !req.ScaleFactor.Decimal.IsPositive() {
		writeJSONError(w, http.StatusUnprocessableEntity, "scale_factor must be greater than 0")
		return
	}

	var date *time.Time
	if req.Date != "" {
		parsed, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			writeJSONError(w, http.StatusUnprocessableEntity, "date must use YYYY-MM-DD")
			return
		}
		date = &parsed
	}

	requests := make([]bom.Request, 0, len(req.Recipes))
	ids := make([]uint, 0, len(req.Recipes))
	for _, recipe := range req.Recipes {
		requests = append(requests, bom.Request{RecipeID: recipe.RecipeID, Portions: recipe.Portions})
		ids = append(ids, recipe.RecipeID)
	}

	graph, err := catalog.LoadRecipeGraph(ctx, database, userID, ids)
	if err != nil {
		applog.Error(ctx, "failed to load recipe graph for bom", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to generate bill of materials")
		return
	}

	result, err := bom.Aggregate(requests, req.ScaleFactor.Decimal, graph.Lookup())
	if err != nil {
		writeBOMError(w, r, err)
		return
	}

	record := bomRecord(userID, strings.TrimSpace(req.Name), date, result)
	if err := database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(record).Error
	}); err != nil {
		applog.Error(ctx, "failed to persist bill of materials", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to save bill of materials")
		return
	}

	services.Metrics.BOMGenerated()
	services.Metrics.UnknownLines("bom", result.UnknownLines())
	applog.Info(ctx, "bill of materials generated",
		"id", record.ID,
		"user", userID,
		"recipes", len(result.Recipes),
		"lines", len(result.Lines),
		"complete", result.Complete(),
	)
	writeJSON(w, http.StatusCreated, projectBOM(record))
}

func writeBOMError(w http.ResponseWriter, r *http.Request, err error) {
	var calcErr *costing.CalculationError
	switch {
	case errors.Is(err, bom.ErrRecipeNotFound):
		applog.Debug(r.Context(), "bom references unknown recipes", "error", err)
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, bom.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &calcErr):
		writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		applog.Error(r.Context(), "bill of materials aggregation failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to generate bill of materials")
	}
}

// bomRecord converts an aggregation result into its stored form.
func bomRecord(userID uint, name string, date *time.Time, result *bom.Result) *models.BillOfMaterials {
	record := &models.BillOfMaterials{
		OwnerID:     userID,
		Name:        name,
		Date:        date,
		ScaleFactor: result.ScaleFactor,
		TotalCost:   result.Total,
		Complete:    result.Complete(),
	}
	for _, recipe := range result.Recipes {
		record.Recipes = append(record.Recipes, models.BOMRecipe{
			RecipeID:          recipe.RecipeID,
			RecipeName:        recipe.Name,
			Portions:          recipe.Portions,
			EffectivePortions: recipe.EffectivePortions,
			Scale:             recipe.Scale,
		})
	}
	for i, line := range result.Lines {
		stored := models.BOMLine{
			SortOrder:      i,
			IngredientID:   line.IngredientID,
			IngredientName: line.IngredientName,
			TotalQty:       line.Quantity,
			Unit:           line.Unit,
			UnitCost:       line.UnitCost,
			LineCost:       line.Cost,
			Error:          errorText(line.Err),
		}
		for _, c := range line.Contributions {
			stored.Contributions = append(stored.Contributions, models.BOMContribution{
				RecipeID:   c.RecipeID,
				RecipeName: c.RecipeName,
				Quantity:   c.Quantity,
			})
		}
		record.Lines = append(record.Lines, stored)
	}
	for _, item := range result.Items {
		record.Items = append(record.Items, models.BOMItem{
			RecipeID:       item.RecipeID,
			RecipeName:     item.RecipeName,
			Portions:       item.Portions,
			IngredientID:   item.IngredientID,
			IngredientName: item.IngredientName,
			TotalQty:       item.Quantity,
			Unit:           item.Unit,
			UnitCost:       item.UnitCost,
			LineCost:       item.LineCost,
			Error:          errorText(item.Err),
		})
	}
	return record
}

func listBOMs(w http.ResponseWriter, r *http.Request, userID uint) {
	ctx := r.Context()
	p, err := parsePage(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	query := database.WithContext(ctx).Model(&models.BillOfMaterials{}).Where("owner_id = ?", userID).Session(&gorm.Session{})
	var total int64
	if err := query.Count(&total).Error; err != nil {
		applog.Error(ctx, "failed to count bills of materials", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to load bills of materials")
		return
	}

	var records []models.BillOfMaterials
	err = query.Preload("Recipes").Preload("Lines").
		Order("created_at desc").Order("id desc").
		Offset(p.Offset).Limit(p.Limit).
		Find(&records).Error
	if err != nil {
		applog.Error(ctx, "failed to list bills of materials", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to load bills of materials")
		return
	}

	items := make([]bomSummaryResponse, 0, len(records))
	for _, record := range records {
		recipes := make(map[uint]struct{}, len(record.Recipes))
		for _, recipe := range record.Recipes {
			recipes[recipe.RecipeID] = struct{}{}
		}
		items = append(items, bomSummaryResponse{
			ID:              record.ID,
			Name:            record.Name,
			Date:            formatDate(record.Date),
			TotalCost:       record.TotalCost,
			Complete:        record.Complete,
			RecipeCount:     len(recipes),
			IngredientCount: len(record.Lines),
			CreatedAt:       record.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, listResponse[bomSummaryResponse]{Items: items, Total: total, Offset: p.Offset, Limit: p.Limit})
}

func findBOM(w http.ResponseWriter, r *http.Request, bomID, userID uint) (*models.BillOfMaterials, bool) {
	ctx := r.Context()
	var record models.BillOfMaterials
	err := database.WithContext(ctx).
		Where("id = ? AND owner_id = ?", bomID, userID).
		Preload("Recipes", func(tx *gorm.DB) *gorm.DB { return tx.Order("id asc") }).
		Preload("Lines", func(tx *gorm.DB) *gorm.DB { return tx.Order("sort_order asc") }).
		Preload("Lines.Contributions", func(tx *gorm.DB) *gorm.DB { return tx.Order("id asc") }).
		Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("id asc") }).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			applog.Debug(ctx, "bom not found or not owned", "id", bomID, "user", userID)
			writeJSONError(w, http.StatusNotFound, fmt.Sprintf("BOM with id %d not found", bomID))
			return nil, false
		}
		applog.Error(ctx, "failed to load bill of materials", "error", err, "id", bomID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load bill of materials")
		return nil, false
	}
	return &record, true
}

func showBOM(w http.ResponseWriter, r *http.Request, bomID, userID uint) {
	record, ok := findBOM(w, r, bomID, userID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, projectBOM(record))
}

func deleteBOM(w http.ResponseWriter, r *http.Request, bomID, userID uint) {
	ctx := r.Context()
	record, ok := findBOM(w, r, bomID, userID)
	if !ok {
		return
	}

	lineIDs := make([]uint, 0, len(record.Lines))
	for _, line := range record.Lines {
		lineIDs = append(lineIDs, line.ID)
	}
	err := database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(lineIDs) > 0 {
			if err := tx.Where("bom_line_id IN ?", lineIDs).Delete(&models.BOMContribution{}).Error; err != nil {
				return err
			}
		}
		for _, child := range []any{&models.BOMLine{}, &models.BOMItem{}, &models.BOMRecipe{}} {
			if err := tx.Where("bom_id = ?", record.ID).Delete(child).Error; err != nil {
				return err
			}
		}
		return tx.Delete(record).Error
	})
	if err != nil {
		applog.Error(ctx, "failed to delete bill of materials", "error", err, "id", bomID)
		writeJSONError(w, http.StatusInternalServerError, "unable to delete bill of materials")
		return
	}

	if err := services.Cache.Delete(ctx, cache.BOMExportKey(userID, bomID)); err != nil {
		applog.Error(ctx, "failed to invalidate bom export cache", "error", err, "id", bomID)
	}
	w.WriteHeader(http.StatusNoContent)
}

func exportBOM(w http.ResponseWriter, r *http.Request, bomID, userID uint) {
	ctx := r.Context()
	key := cache.BOMExportKey(userID, bomID)

	body, err := services.Cache.Get(ctx, key)
	status := "HIT"
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			applog.Error(ctx, "bom export cache read failed", "error", err, "id", bomID)
		}
		record, ok := findBOM(w, r, bomID, userID)
		if !ok {
			return
		}
		body, err = export.BOMBytes(record)
		if err != nil {
			applog.Error(ctx, "failed to render bom workbook", "error", err, "id", bomID)
			writeJSONError(w, http.StatusInternalServerError, "unable to export bill of materials")
			return
		}
		if err := services.Cache.Set(ctx, key, body, services.ExportTTL); err != nil {
			applog.Error(ctx, "bom export cache write failed", "error", err, "id", bomID)
		}
		status = "MISS"
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="bom-%d.xlsx"`, bomID))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Header().Set("X-Cache", status)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		applog.Error(ctx, "failed to write bom export", "error", err, "id", bomID)
	}
}

func renderBOMSheet(w http.ResponseWriter, r *http.Request, bomID, userID uint) {
	record, ok := findBOM(w, r, bomID, userID)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.BOMSheet(pages.NewBOMSheetData(record, nowFunc().UTC())).Render(r.Context(), w); err != nil {
		applog.Error(r.Context(), "failed to render bom sheet", "error", err, "id", bomID)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func formatDate(date *time.Time) *string {
	if date == nil {
		return nil
	}
	formatted := date.Format(dateLayout)
	return &formatted
}

func projectBOM(record *models.BillOfMaterials) bomResponse {
	resp := bomResponse{
		ID:          record.ID,
		OwnerID:     record.OwnerID,
		Name:        record.Name,
		Date:        formatDate(record.Date),
		ScaleFactor: record.ScaleFactor,
		TotalCost:   record.TotalCost,
		Complete:    record.Complete,
		CreatedAt:   record.CreatedAt,
		Recipes:     make([]bomRecipeResponse, 0, len(record.Recipes)),
		Ingredients: make([]bomLineResponse, 0, len(record.Lines)),
		Items:       make([]bomItemResponse, 0, len(record.Items)),
	}
	for _, recipe := range record.Recipes {
		resp.Recipes = append(resp.Recipes, bomRecipeResponse{
			RecipeID:          recipe.RecipeID,
			RecipeName:        recipe.RecipeName,
			Portions:          recipe.Portions,
			EffectivePortions: recipe.EffectivePortions,
			Scale:             recipe.Scale,
		})
	}
	for _, line := range record.Lines {
		out := bomLineResponse{
			IngredientID:   line.IngredientID,
			IngredientName: line.IngredientName,
			TotalQty:       line.TotalQty,
			Unit:           line.Unit,
			UnitCost:       line.UnitCost,
			LineCost:       line.LineCost,
			Error:          line.Error,
			FromRecipes:    make([]bomContributionResponse, 0, len(line.Contributions)),
		}
		for _, c := range line.Contributions {
			out.FromRecipes = append(out.FromRecipes, bomContributionResponse{
				RecipeID:   c.RecipeID,
				RecipeName: c.RecipeName,
				Quantity:   c.Quantity,
			})
		}
		resp.Ingredients = append(resp.Ingredients, out)
	}
	for _, item := range record.Items {
		resp.Items = append(resp.Items, bomItemResponse{
			ID:             item.ID,
			RecipeID:       item.RecipeID,
			RecipeName:     item.RecipeName,
			Portions:       item.Portions,
			IngredientID:   item.IngredientID,
			IngredientName: item.IngredientName,
			TotalQty:       item.TotalQty,
			Unit:           item.Unit,
			UnitCost:       item.UnitCost,
			LineCost:       item.LineCost,
			Error:          item.Error,
		})
	}
	return resp
}
