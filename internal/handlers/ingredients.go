package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"platecost/internal/catalog"
	"platecost/internal/costing"
	applog "platecost/internal/log"
	"platecost/models"
)

const ingredientsPrefix = "/api/v1/ingredients"

type ingredientResponse struct {
	ID               uint                `json:"id"`
	OwnerID          uint                `json:"owner_id"`
	Name             string              `json:"name"`
	Description      string              `json:"description"`
	PurchaseUnit     string              `json:"purchase_unit"`
	PurchaseQty      decimal.Decimal     `json:"purchase_qty"`
	PurchasePrice    decimal.Decimal     `json:"purchase_price"`
	RecipeUnit       string              `json:"recipe_unit"`
	ConversionFactor decimal.Decimal     `json:"conversion_factor"`
	YieldPercent     decimal.Decimal     `json:"yield_percent"`
	Density          decimal.NullDecimal `json:"density"`
	UnitCost         decimal.NullDecimal `json:"unit_cost"`
	CostError        string              `json:"cost_error,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

type ingredientRequest struct {
	Name             string              `json:"name" validate:"required,max=255"`
	Description      string              `json:"description"`
	PurchaseUnit     string              `json:"purchase_unit" validate:"required,max=32"`
	PurchaseQty      decimal.Decimal     `json:"purchase_qty" validate:"dgt=0"`
	PurchasePrice    decimal.Decimal     `json:"purchase_price" validate:"dgte=0"`
	RecipeUnit       string              `json:"recipe_unit" validate:"required,max=32"`
	ConversionFactor decimal.Decimal     `json:"conversion_factor" validate:"dgt=0"`
	YieldPercent     decimal.NullDecimal `json:"yield_percent" validate:"omitempty,dgt=0,dlte=100"`
	Density          decimal.NullDecimal `json:"density" validate:"omitempty,dgt=0"`
}

// ingredientUpdateRequest is a partial update; a zero density clears it.
type ingredientUpdateRequest struct {
	Name             *string          `json:"name" validate:"omitempty,min=1,max=255"`
	Description      *string          `json:"description"`
	PurchaseUnit     *string          `json:"purchase_unit" validate:"omitempty,min=1,max=32"`
	PurchaseQty      *decimal.Decimal `json:"purchase_qty" validate:"omitempty,dgt=0"`
	PurchasePrice    *decimal.Decimal `json:"purchase_price" validate:"omitempty,dgte=0"`
	RecipeUnit       *string          `json:"recipe_unit" validate:"omitempty,min=1,max=32"`
	ConversionFactor *decimal.Decimal `json:"conversion_factor" validate:"omitempty,dgt=0"`
	YieldPercent     *decimal.Decimal `json:"yield_percent" validate:"omitempty,dgt=0,dlte=100"`
	Density          *decimal.Decimal `json:"density" validate:"omitempty,dgte=0"`
}

// IngredientResource handles REST-style interactions for ingredient records.
func IngredientResource(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		applog.Debug(r.Context(), "ingredient request missing authenticated user")
		writeJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	segments := resourcePath(r, ingredientsPrefix)
	if len(segments) == 0 {
		switch r.Method {
		case http.MethodGet:
			listIngredients(w, r, userID)
		case http.MethodPost:
			createIngredient(w, r, userID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}
	if len(segments) > 1 {
		http.NotFound(w, r)
		return
	}

	ingredientID, err := parseID(segments[0])
	if err != nil {
		applog.Debug(r.Context(), "invalid ingredient identifier", "identifier", segments[0], "error", err)
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		showIngredient(w, r, ingredientID, userID)
	case http.MethodPatch:
		updateIngredient(w, r, ingredientID, userID)
	case http.MethodDelete:
		deleteIngredient(w, r, ingredientID, userID)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func listIngredients(w http.ResponseWriter, r *http.Request, userID uint) {
	ctx := r.Context()
	p, err := parsePage(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	query := database.WithContext(ctx).Model(&models.Ingredient{}).Where("owner_id = ?", userID)
	if search := strings.TrimSpace(r.URL.Query().Get("search")); search != "" {
		query = query.Where("lower(name) LIKE ? ESCAPE '\\'", likePattern(search))
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		applog.Error(ctx, "failed to count ingredients", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to load ingredients")
		return
	}

	var results []models.Ingredient
	if err := query.Order("name asc").Order("id asc").Offset(p.Offset).Limit(p.Limit).Find(&results).Error; err != nil {
		applog.Error(ctx, "failed to list ingredients", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to load ingredients")
		return
	}

	items := make([]ingredientResponse, 0, len(results))
	for _, ingredient := range results {
		items = append(items, projectIngredient(ingredient))
	}
	writeJSON(w, http.StatusOK, listResponse[ingredientResponse]{Items: items, Total: total, Offset: p.Offset, Limit: p.Limit})
}

func createIngredient(w http.ResponseWriter, r *http.Request, userID uint) {
	ctx := r.Context()
	var req ingredientRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	// omitempty lets an explicit zero through for nullable decimals.
	if req.YieldPercent.Valid && !req.YieldPercent.Decimal.IsPositive() {
		writeJSONError(w, http.StatusUnprocessableEntity, "yield_percent must be greater than 0")
		return
	}
	if req.Density.Valid && !req.Density.Decimal.IsPositive() {
		writeJSONError(w, http.StatusUnprocessableEntity, "density must be greater than 0")
		return
	}

	name := strings.TrimSpace(req.Name)
	if taken, err := ingredientNameTaken(r, userID, name, 0); err != nil {
		applog.Error(ctx, "failed to check ingredient name", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to create ingredient")
		return
	} else if taken {
		writeJSONError(w, http.StatusConflict, fmt.Sprintf("ingredient %q already exists", name))
		return
	}

	ingredient := models.Ingredient{
		OwnerID:          userID,
		Name:             name,
		Description:      strings.TrimSpace(req.Description),
		PurchaseUnit:     strings.TrimSpace(req.PurchaseUnit),
		PurchaseQty:      req.PurchaseQty,
		PurchasePrice:    req.PurchasePrice,
		RecipeUnit:       strings.TrimSpace(req.RecipeUnit),
		ConversionFactor: req.ConversionFactor,
		YieldPercent:     decimal.NewFromInt(100),
		Density:          req.Density,
	}
	if req.YieldPercent.Valid {
		ingredient.YieldPercent = req.YieldPercent.Decimal
	}

	if err := database.WithContext(ctx).Create(&ingredient).Error; err != nil {
		applog.Error(ctx, "failed to create ingredient", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to create ingredient")
		return
	}

	applog.Debug(ctx, "ingredient created", "id", ingredient.ID, "user", userID)
	writeJSON(w, http.StatusCreated, projectIngredient(ingredient))
}

func findIngredient(w http.ResponseWriter, r *http.Request, ingredientID, userID uint) (*models.Ingredient, bool) {
	ctx := r.Context()
	var ingredient models.Ingredient
	if err := database.WithContext(ctx).Where("id = ? AND owner_id = ?", ingredientID, userID).First(&ingredient).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			applog.Debug(ctx, "ingredient not found or not owned", "id", ingredientID, "user", userID)
			writeJSONError(w, http.StatusNotFound, fmt.Sprintf("ingredient %d not found", ingredientID))
			return nil, false
		}
		applog.Error(ctx, "failed to load ingredient", "error", err, "id", ingredientID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load ingredient")
		return nil, false
	}
	return &ingredient, true
}

func showIngredient(w http.ResponseWriter, r *http.Request, ingredientID, userID uint) {
	ingredient, ok := findIngredient(w, r, ingredientID, userID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, projectIngredient(*ingredient))
}

func updateIngredient(w http.ResponseWriter, r *http.Request, ingredientID, userID uint) {
	ctx := r.Context()
	ingredient, ok := findIngredient(w, r, ingredientID, userID)
	if !ok {
		return
	}

	var req ingredientUpdateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		taken, err := ingredientNameTaken(r, userID, name, ingredient.ID)
		if err != nil {
			applog.Error(ctx, "failed to check ingredient name", "error", err)
			writeJSONError(w, http.StatusInternalServerError, "unable to update ingredient")
			return
		}
		if taken {
			writeJSONError(w, http.StatusConflict, fmt.Sprintf("ingredient %q already exists", name))
			return
		}
		ingredient.Name = name
	}
	if req.Description != nil {
		ingredient.Description = strings.TrimSpace(*req.Description)
	}
	if req.PurchaseUnit != nil {
		ingredient.PurchaseUnit = strings.TrimSpace(*req.PurchaseUnit)
	}
	if req.PurchaseQty != nil {
		ingredient.PurchaseQty = *req.PurchaseQty
	}
	if req.PurchasePrice != nil {
		ingredient.PurchasePrice = *req.PurchasePrice
	}
	if req.RecipeUnit != nil {
		ingredient.RecipeUnit = strings.TrimSpace(*req.RecipeUnit)
	}
	if req.ConversionFactor != nil {
		ingredient.ConversionFactor = *req.ConversionFactor
	}
	if req.YieldPercent != nil {
		ingredient.YieldPercent = *req.YieldPercent
	}
	if req.Density != nil {
		if req.Density.IsZero() {
			ingredient.Density = decimal.NullDecimal{}
		} else {
			ingredient.Density = decimal.NewNullDecimal(*req.Density)
		}
	}

	if err := database.WithContext(ctx).Save(ingredient).Error; err != nil {
		applog.Error(ctx, "failed to update ingredient", "error", err, "id", ingredientID)
		writeJSONError(w, http.StatusInternalServerError, "unable to update ingredient")
		return
	}

	writeJSON(w, http.StatusOK, projectIngredient(*ingredient))
}

func deleteIngredient(w http.ResponseWriter, r *http.Request, ingredientID, userID uint) {
	ctx := r.Context()
	ingredient, ok := findIngredient(w, r, ingredientID, userID)
	if !ok {
		return
	}

	var uses int64
	if err := database.WithContext(ctx).Model(&models.RecipeItem{}).Where("ingredient_id = ?", ingredient.ID).Count(&uses).Error; err != nil {
		applog.Error(ctx, "failed to count ingredient usage", "error", err, "id", ingredientID)
		writeJSONError(w, http.StatusInternalServerError, "unable to delete ingredient")
		return
	}
	if uses > 0 {
		applog.Debug(ctx, "delete denied: ingredient in use", "id", ingredientID, "uses", uses)
		writeJSONError(w, http.StatusConflict, fmt.Sprintf("ingredient %q is used by %d recipe items", ingredient.Name, uses))
		return
	}

	// Hard delete so the (owner, name) pair can be reused.
	if err := database.WithContext(ctx).Unscoped().Delete(ingredient).Error; err != nil {
		applog.Error(ctx, "failed to delete ingredient", "error", err, "id", ingredientID)
		writeJSONError(w, http.StatusInternalServerError, "unable to delete ingredient")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func ingredientNameTaken(r *http.Request, userID uint, name string, exceptID uint) (bool, error) {
	var count int64
	query := database.WithContext(r.Context()).Model(&models.Ingredient{}).
		Where("owner_id = ? AND lower(name) = ?", userID, strings.ToLower(name))
	if exceptID != 0 {
		query = query.Where("id <> ?", exceptID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func projectIngredient(ingredient models.Ingredient) ingredientResponse {
	resp := ingredientResponse{
		ID:               ingredient.ID,
		OwnerID:          ingredient.OwnerID,
		Name:             ingredient.Name,
		Description:      ingredient.Description,
		PurchaseUnit:     ingredient.PurchaseUnit,
		PurchaseQty:      ingredient.PurchaseQty,
		PurchasePrice:    ingredient.PurchasePrice,
		RecipeUnit:       ingredient.RecipeUnit,
		ConversionFactor: ingredient.ConversionFactor,
		YieldPercent:     ingredient.YieldPercent,
		Density:          ingredient.Density,
		CreatedAt:        ingredient.CreatedAt,
		UpdatedAt:        ingredient.UpdatedAt,
	}
	unitCost, err := costing.IngredientUnitCost(catalog.ToIngredient(ingredient), ingredient.RecipeUnit)
	if err != nil {
		resp.CostError = err.Error()
		return resp
	}
	resp.UnitCost = decimal.NewNullDecimal(unitCost)
	return resp
}
