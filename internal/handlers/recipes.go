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

const recipesPrefix = "/api/v1/recipes"

type recipeItemRequest struct {
	IngredientID *uint           `json:"ingredient_id" validate:"required_without=SubRecipeID,excluded_with=SubRecipeID"`
	SubRecipeID  *uint           `json:"sub_recipe_id" validate:"required_without=IngredientID"`
	Quantity     decimal.Decimal `json:"quantity" validate:"dgt=0"`
	Unit         string          `json:"unit" validate:"required,max=32"`
	SortOrder    *int            `json:"sort_order"`
	Notes        string          `json:"notes" validate:"max=255"`
}

type recipeItemUpdateRequest struct {
	Quantity  *decimal.Decimal `json:"quantity" validate:"omitempty,dgt=0"`
	Unit      *string          `json:"unit" validate:"omitempty,min=1,max=32"`
	SortOrder *int             `json:"sort_order"`
	Notes     *string          `json:"notes" validate:"omitempty,max=255"`
}

type recipeRequest struct {
	Name          string              `json:"name" validate:"required,max=255"`
	Description   string              `json:"description"`
	YieldQty      decimal.Decimal     `json:"yield_qty" validate:"dgt=0"`
	YieldUnit     string              `json:"yield_unit" validate:"max=32"`
	SellingPrice  decimal.NullDecimal `json:"selling_price" validate:"omitempty,dgte=0"`
	TargetCostPct decimal.NullDecimal `json:"target_cost_pct" validate:"omitempty,dgte=0,dlte=100"`
	PrepMinutes   *int                `json:"prep_minutes" validate:"omitempty,gte=0"`
	CookMinutes   *int                `json:"cook_minutes" validate:"omitempty,gte=0"`
	Instructions  string              `json:"instructions"`
	Items         []recipeItemRequest `json:"items" validate:"dive"`
}

type recipeUpdateRequest struct {
	Name          *string          `json:"name" validate:"omitempty,min=1,max=255"`
	Description   *string          `json:"description"`
	YieldQty      *decimal.Decimal `json:"yield_qty" validate:"omitempty,dgt=0"`
	YieldUnit     *string          `json:"yield_unit" validate:"omitempty,max=32"`
	SellingPrice  *decimal.Decimal `json:"selling_price" validate:"omitempty,dgte=0"`
	TargetCostPct *decimal.Decimal `json:"target_cost_pct" validate:"omitempty,dgte=0,dlte=100"`
	PrepMinutes   *int             `json:"prep_minutes" validate:"omitempty,gte=0"`
	CookMinutes   *int             `json:"cook_minutes" validate:"omitempty,gte=0"`
	Instructions  *string          `json:"instructions"`
}

type scaleRequest struct {
	Portions decimal.Decimal `json:"portions" validate:"dgt=0"`
}

type recipeItemResponse struct {
	ID           uint                `json:"id"`
	RecipeID     uint                `json:"recipe_id"`
	IngredientID *uint               `json:"ingredient_id"`
	SubRecipeID  *uint               `json:"sub_recipe_id"`
	Name         string              `json:"name"`
	Type         string              `json:"type"`
	Quantity     decimal.Decimal     `json:"quantity"`
	Unit         string              `json:"unit"`
	SortOrder    int                 `json:"sort_order"`
	Notes        string              `json:"notes"`
	ItemCost     decimal.NullDecimal `json:"item_cost"`
	Partial      bool                `json:"partial,omitempty"`
	Error        string              `json:"error,omitempty"`
}

type recipeResponse struct {
	ID             uint                 `json:"id"`
	OwnerID        uint                 `json:"owner_id"`
	Name           string               `json:"name"`
	Description    string               `json:"description"`
	YieldQty       decimal.Decimal      `json:"yield_qty"`
	YieldUnit      string               `json:"yield_unit"`
	SellingPrice   decimal.NullDecimal  `json:"selling_price"`
	TargetCostPct  decimal.Decimal      `json:"target_cost_pct"`
	PrepMinutes    *int                 `json:"prep_minutes"`
	CookMinutes    *int                 `json:"cook_minutes"`
	Instructions   string               `json:"instructions"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
	Items          []recipeItemResponse `json:"items"`
	TotalCost      decimal.NullDecimal  `json:"total_cost"`
	CostPerPortion decimal.NullDecimal  `json:"cost_per_portion"`
	FoodCostPct    decimal.NullDecimal  `json:"food_cost_pct"`
	CostComplete   bool                 `json:"cost_complete"`
	CostError      string               `json:"cost_error,omitempty"`
}

type costLineResponse struct {
	ID       uint                `json:"id"`
	Name     string              `json:"name"`
	Type     string              `json:"type"`
	Quantity decimal.Decimal     `json:"quantity"`
	Unit     string              `json:"unit"`
	Cost     decimal.NullDecimal `json:"cost"`
	Partial  bool                `json:"partial,omitempty"`
	Error    string              `json:"error,omitempty"`
}

type costResponse struct {
	RecipeID       uint                `json:"recipe_id"`
	RecipeName     string              `json:"recipe_name"`
	YieldQty       decimal.Decimal     `json:"yield_qty"`
	YieldUnit      string              `json:"yield_unit"`
	Portions       decimal.Decimal     `json:"portions"`
	TotalCost      decimal.Decimal     `json:"total_cost"`
	CostPerPortion decimal.Decimal     `json:"cost_per_portion"`
	FoodCostPct    decimal.NullDecimal `json:"food_cost_pct"`
	TargetCostPct  decimal.Decimal     `json:"target_cost_pct"`
	SellingPrice   decimal.NullDecimal `json:"selling_price"`
	Complete       bool                `json:"complete"`
	Items          []costLineResponse  `json:"items"`
}

type scaledItemResponse struct {
	ID               uint            `json:"id"`
	Name             string          `json:"name"`
	Type             string          `json:"type"`
	OriginalQuantity decimal.Decimal `json:"original_quantity"`
	Quantity         decimal.Decimal `json:"quantity"`
	Unit             string          `json:"unit"`
}

type scaleResponse struct {
	RecipeID       uint                 `json:"recipe_id"`
	RecipeName     string               `json:"recipe_name"`
	OriginalYield  decimal.Decimal      `json:"original_yield"`
	TargetYield    decimal.Decimal      `json:"target_yield"`
	YieldUnit      string               `json:"yield_unit"`
	ScaleFactor    decimal.Decimal      `json:"scale_factor"`
	Items          []scaledItemResponse `json:"items"`
	TotalCost      decimal.NullDecimal  `json:"total_cost"`
	CostPerPortion decimal.NullDecimal  `json:"cost_per_portion"`
	CostComplete   bool                 `json:"cost_complete"`
}

// RecipeResource handles REST-style interactions for recipes and their items.
func RecipeResource(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		applog.Debug(r.Context(), "recipe request missing authenticated user")
		writeJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	segments := resourcePath(r, recipesPrefix)
	if len(segments) == 0 {
		switch r.Method {
		case http.MethodGet:
			listRecipes(w, r, userID)
		case http.MethodPost:
			createRecipe(w, r, userID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	recipeID, err := parseID(segments[0])
	if err != nil {
		applog.Debug(r.Context(), "invalid recipe identifier", "identifier", segments[0], "error", err)
		http.NotFound(w, r)
		return
	}

	switch {
	case len(segments) == 1:
		switch r.Method {
		case http.MethodGet:
			showRecipe(w, r, recipeID, userID)
		case http.MethodPatch:
			updateRecipe(w, r, recipeID, userID)
		case http.MethodDelete:
			deleteRecipe(w, r, recipeID, userID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case len(segments) == 2 && segments[1] == "items":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		addRecipeItem(w, r, recipeID, userID)
	case len(segments) == 3 && segments[1] == "items":
		itemID, err := parseID(segments[2])
		if err != nil {
			http.NotFound(w, r)
			return
		}
		switch r.Method {
		case http.MethodPatch:
			updateRecipeItem(w, r, recipeID, itemID, userID)
		case http.MethodDelete:
			removeRecipeItem(w, r, recipeID, itemID, userID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case len(segments) == 2 && segments[1] == "scale":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		scaleRecipe(w, r, recipeID, userID)
	case len(segments) == 2 && segments[1] == "cost":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		recipeCost(w, r, recipeID, userID)
	default:
		http.NotFound(w, r)
	}
}

func listRecipes(w http.ResponseWriter, r *http.Request, userID uint) {
	ctx := r.Context()
	p, err := parsePage(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	query := database.WithContext(ctx).Model(&models.Recipe{}).Where("owner_id = ?", userID)
	if search := strings.TrimSpace(r.URL.Query().Get("search")); search != "" {
		query = query.Where("lower(name) LIKE ? ESCAPE '\\'", likePattern(search))
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		applog.Error(ctx, "failed to count recipes", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to load recipes")
		return
	}

	var ids []uint
	if err := query.Order("name asc").Order("id asc").Offset(p.Offset).Limit(p.Limit).Pluck("id", &ids).Error; err != nil {
		applog.Error(ctx, "failed to list recipes", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to load recipes")
		return
	}

	graph, err := catalog.LoadRecipeGraph(ctx, database, userID, ids)
	if err != nil {
		applog.Error(ctx, "failed to load recipe graph", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to load recipes")
		return
	}

	items := make([]recipeResponse, 0, len(ids))
	for _, id := range ids {
		if _, ok := graph.Model(id); ok {
			items = append(items, projectRecipe(r, graph, id))
		}
	}
	writeJSON(w, http.StatusOK, listResponse[recipeResponse]{Items: items, Total: total, Offset: p.Offset, Limit: p.Limit})
}

func createRecipe(w http.ResponseWriter, r *http.Request, userID uint) {
	ctx := r.Context()
	var req recipeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := checkItemReferences(r, userID, req.Items); err != nil {
		writeItemReferenceError(w, r, err)
		return
	}

	recipe := models.Recipe{
		OwnerID:       userID,
		Name:          strings.TrimSpace(req.Name),
		Description:   strings.TrimSpace(req.Description),
		YieldQty:      req.YieldQty,
		YieldUnit:     strings.TrimSpace(req.YieldUnit),
		SellingPrice:  req.SellingPrice,
		TargetCostPct: decimal.NewFromInt(30),
		PrepMinutes:   req.PrepMinutes,
		CookMinutes:   req.CookMinutes,
		Instructions:  req.Instructions,
	}
	if recipe.YieldUnit == "" {
		recipe.YieldUnit = "portion"
	}
	if req.TargetCostPct.Valid {
		recipe.TargetCostPct = req.TargetCostPct.Decimal
	}
	for i, item := range req.Items {
		recipe.Items = append(recipe.Items, newRecipeItem(item, i))
	}

	err := database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&recipe).Error
	})
	if err != nil {
		applog.Error(ctx, "failed to create recipe", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to create recipe")
		return
	}

	applog.Debug(ctx, "recipe created", "id", recipe.ID, "user", userID, "items", len(recipe.Items))
	graph, ok := loadRecipeGraph(w, r, userID, recipe.ID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusCreated, projectRecipe(r, graph, recipe.ID))
}

func newRecipeItem(req recipeItemRequest, position int) models.RecipeItem {
	item := models.RecipeItem{
		IngredientID: req.IngredientID,
		SubRecipeID:  req.SubRecipeID,
		Quantity:     req.Quantity,
		Unit:         strings.TrimSpace(req.Unit),
		SortOrder:    position,
		Notes:        strings.TrimSpace(req.Notes),
	}
	if req.SortOrder != nil {
		item.SortOrder = *req.SortOrder
	}
	return item
}

var errMissingReference = errors.New("referenced record not found")

// checkItemReferences verifies every referenced ingredient and sub-recipe
// belongs to userID.
func checkItemReferences(r *http.Request, userID uint, items []recipeItemRequest) error {
	var ingredientIDs, recipeIDs []uint
	for _, item := range items {
		if item.IngredientID != nil {
			ingredientIDs = append(ingredientIDs, *item.IngredientID)
		}
		if item.SubRecipeID != nil {
			recipeIDs = append(recipeIDs, *item.SubRecipeID)
		}
	}
	if err := checkOwned(r, &models.Ingredient{}, "ingredient", userID, ingredientIDs); err != nil {
		return err
	}
	return checkOwned(r, &models.Recipe{}, "sub-recipe", userID, recipeIDs)
}

func checkOwned(r *http.Request, model any, label string, userID uint, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	var found []uint
	err := database.WithContext(r.Context()).Model(model).
		Where("owner_id = ? AND id IN ?", userID, ids).
		Pluck("id", &found).Error
	if err != nil {
		return err
	}
	present := make(map[uint]struct{}, len(found))
	for _, id := range found {
		present[id] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := present[id]; !ok {
			return fmt.Errorf("%w: %s with id %d", errMissingReference, label, id)
		}
	}
	return nil
}

func writeItemReferenceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errMissingReference) {
		applog.Debug(r.Context(), "recipe item reference rejected", "error", err)
		writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	applog.Error(r.Context(), "failed to verify recipe item references", "error", err)
	writeJSONError(w, http.StatusInternalServerError, "unable to verify recipe items")
}

// loadRecipeGraph loads recipeID and everything below it, writing a 404 when
// the recipe is not owned by userID.
func loadRecipeGraph(w http.ResponseWriter, r *http.Request, userID, recipeID uint) (*catalog.Graph, bool) {
	ctx := r.Context()
	graph, err := catalog.LoadRecipeGraph(ctx, database, userID, []uint{recipeID})
	if err != nil {
		applog.Error(ctx, "failed to load recipe graph", "error", err, "id", recipeID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load recipe")
		return nil, false
	}
	if _, ok := graph.Model(recipeID); !ok {
		applog.Debug(ctx, "recipe not found or not owned", "id", recipeID, "user", userID)
		writeJSONError(w, http.StatusNotFound, fmt.Sprintf("recipe with id %d not found", recipeID))
		return nil, false
	}
	return graph, true
}

func findRecipe(w http.ResponseWriter, r *http.Request, recipeID, userID uint) (*models.Recipe, bool) {
	ctx := r.Context()
	var recipe models.Recipe
	if err := database.WithContext(ctx).Where("id = ? AND owner_id = ?", recipeID, userID).First(&recipe).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			applog.Debug(ctx, "recipe not found or not owned", "id", recipeID, "user", userID)
			writeJSONError(w, http.StatusNotFound, fmt.Sprintf("recipe with id %d not found", recipeID))
			return nil, false
		}
		applog.Error(ctx, "failed to load recipe", "error", err, "id", recipeID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load recipe")
		return nil, false
	}
	return &recipe, true
}

func showRecipe(w http.ResponseWriter, r *http.Request, recipeID, userID uint) {
	graph, ok := loadRecipeGraph(w, r, userID, recipeID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, projectRecipe(r, graph, recipeID))
}

func updateRecipe(w http.ResponseWriter, r *http.Request, recipeID, userID uint) {
	ctx := r.Context()
	recipe, ok := findRecipe(w, r, recipeID, userID)
	if !ok {
		return
	}

	var req recipeUpdateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if req.Name != nil {
		recipe.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		recipe.Description = strings.TrimSpace(*req.Description)
	}
	if req.YieldQty != nil {
		recipe.YieldQty = *req.YieldQty
	}
	if req.YieldUnit != nil {
		recipe.YieldUnit = strings.TrimSpace(*req.YieldUnit)
		if recipe.YieldUnit == "" {
			recipe.YieldUnit = "portion"
		}
	}
	if req.SellingPrice != nil {
		recipe.SellingPrice = decimal.NewNullDecimal(*req.SellingPrice)
	}
	if req.TargetCostPct != nil {
		recipe.TargetCostPct = *req.TargetCostPct
	}
	if req.PrepMinutes != nil {
		recipe.PrepMinutes = req.PrepMinutes
	}
	if req.CookMinutes != nil {
		recipe.CookMinutes = req.CookMinutes
	}
	if req.Instructions != nil {
		recipe.Instructions = *req.Instructions
	}

	if err := database.WithContext(ctx).Save(recipe).Error; err != nil {
		applog.Error(ctx, "failed to update recipe", "error", err, "id", recipeID)
		writeJSONError(w, http.StatusInternalServerError, "unable to update recipe")
		return
	}

	graph, ok := loadRecipeGraph(w, r, userID, recipeID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, projectRecipe(r, graph, recipeID))
}

func deleteRecipe(w http.ResponseWriter, r *http.Request, recipeID, userID uint) {
	ctx := r.Context()
	recipe, ok := findRecipe(w, r, recipeID, userID)
	if !ok {
		return
	}

	var uses int64
	if err := database.WithContext(ctx).Model(&models.RecipeItem{}).Where("sub_recipe_id = ?", recipe.ID).Count(&uses).Error; err != nil {
		applog.Error(ctx, "failed to count sub-recipe usage", "error", err, "id", recipeID)
		writeJSONError(w, http.StatusInternalServerError, "unable to delete recipe")
		return
	}
	if uses > 0 {
		applog.Debug(ctx, "delete denied: recipe used as sub-recipe", "id", recipeID, "uses", uses)
		writeJSONError(w, http.StatusConflict, fmt.Sprintf("recipe %q is used as a sub-recipe in other recipes", recipe.Name))
		return
	}

	err := database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("recipe_id = ?", recipe.ID).Delete(&models.RecipeItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(recipe).Error
	})
	if err != nil {
		applog.Error(ctx, "failed to delete recipe", "error", err, "id", recipeID)
		writeJSONError(w, http.StatusInternalServerError, "unable to delete recipe")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func addRecipeItem(w http.ResponseWriter, r *http.Request, recipeID, userID uint) {
	ctx := r.Context()
	recipe, ok := findRecipe(w, r, recipeID, userID)
	if !ok {
		return
	}

	var req recipeItemRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := checkItemReferences(r, userID, []recipeItemRequest{req}); err != nil {
		writeItemReferenceError(w, r, err)
		return
	}
	if req.SubRecipeID != nil && !checkNoCycle(w, r, recipe, *req.SubRecipeID, userID) {
		return
	}

	var position int64
	if err := database.WithContext(ctx).Model(&models.RecipeItem{}).Where("recipe_id = ?", recipe.ID).Count(&position).Error; err != nil {
		applog.Error(ctx, "failed to count recipe items", "error", err, "id", recipeID)
		writeJSONError(w, http.StatusInternalServerError, "unable to add recipe item")
		return
	}

	item := newRecipeItem(req, int(position))
	item.RecipeID = recipe.ID
	if err := database.WithContext(ctx).Create(&item).Error; err != nil {
		applog.Error(ctx, "failed to create recipe item", "error", err, "recipe", recipeID)
		writeJSONError(w, http.StatusInternalServerError, "unable to add recipe item")
		return
	}

	applog.Debug(ctx, "recipe item added", "recipe", recipeID, "item", item.ID)
	writeRecipeItem(w, r, userID, recipeID, item.ID, http.StatusCreated)
}

// checkNoCycle rejects adding candidateID below recipe when recipe is
// reachable from the candidate.
func checkNoCycle(w http.ResponseWriter, r *http.Request, recipe *models.Recipe, candidateID, userID uint) bool {
	ctx := r.Context()
	graph, err := catalog.LoadRecipeGraph(ctx, database, userID, []uint{candidateID})
	if err != nil {
		applog.Error(ctx, "failed to load sub-recipe graph", "error", err, "id", candidateID)
		writeJSONError(w, http.StatusInternalServerError, "unable to verify sub-recipe")
		return false
	}
	candidate, _ := graph.Recipe(candidateID)
	if candidateID == recipe.ID || costing.WouldCreateCycle(recipe.ID, candidate) {
		services.Metrics.Cycle()
		applog.Debug(ctx, "sub-recipe rejected: cycle", "recipe", recipe.ID, "candidate", candidateID)
		writeJSONError(w, http.StatusConflict, fmt.Sprintf("adding sub-recipe %d to recipe %q would create a cycle", candidateID, recipe.Name))
		return false
	}
	return true
}

func updateRecipeItem(w http.ResponseWriter, r *http.Request, recipeID, itemID, userID uint) {
	ctx := r.Context()
	if _, ok := findRecipe(w, r, recipeID, userID); !ok {
		return
	}

	var item models.RecipeItem
	if err := database.WithContext(ctx).Where("id = ? AND recipe_id = ?", itemID, recipeID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSONError(w, http.StatusNotFound, "recipe or item not found")
			return
		}
		applog.Error(ctx, "failed to load recipe item", "error", err, "item", itemID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load recipe item")
		return
	}

	var req recipeItemUpdateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if req.Quantity != nil {
		item.Quantity = *req.Quantity
	}
	if req.Unit != nil {
		item.Unit = strings.TrimSpace(*req.Unit)
	}
	if req.SortOrder != nil {
		item.SortOrder = *req.SortOrder
	}
	if req.Notes != nil {
		item.Notes = strings.TrimSpace(*req.Notes)
	}

	if err := database.WithContext(ctx).Save(&item).Error; err != nil {
		applog.Error(ctx, "failed to update recipe item", "error", err, "item", itemID)
		writeJSONError(w, http.StatusInternalServerError, "unable to update recipe item")
		return
	}
	writeRecipeItem(w, r, userID, recipeID, item.ID, http.StatusOK)
}

func removeRecipeItem(w http.ResponseWriter, r *http.Request, recipeID, itemID, userID uint) {
	ctx := r.Context()
	if _, ok := findRecipe(w, r, recipeID, userID); !ok {
		return
	}

	result := database.WithContext(ctx).Where("id = ? AND recipe_id = ?", itemID, recipeID).Delete(&models.RecipeItem{})
	if result.Error != nil {
		applog.Error(ctx, "failed to delete recipe item", "error", result.Error, "item", itemID)
		writeJSONError(w, http.StatusInternalServerError, "unable to remove recipe item")
		return
	}
	if result.RowsAffected == 0 {
		writeJSONError(w, http.StatusNotFound, "recipe or item not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeRecipeItem(w http.ResponseWriter, r *http.Request, userID, recipeID, itemID uint, status int) {
	graph, ok := loadRecipeGraph(w, r, userID, recipeID)
	if !ok {
		return
	}
	resp := projectRecipe(r, graph, recipeID)
	for _, item := range resp.Items {
		if item.ID == itemID {
			writeJSON(w, status, item)
			return
		}
	}
	writeJSONError(w, http.StatusNotFound, "recipe or item not found")
}

func scaleRecipe(w http.ResponseWriter, r *http.Request, recipeID, userID uint) {
	var req scaleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	graph, ok := loadRecipeGraph(w, r, userID, recipeID)
	if !ok {
		return
	}
	recipe, _ := graph.Recipe(recipeID)

	scaled, err := costing.Scale(recipe, req.Portions)
	if err != nil {
		writeCostingError(w, r, err)
		return
	}

	resp := scaleResponse{
		RecipeID:       scaled.RecipeID,
		RecipeName:     scaled.Name,
		OriginalYield:  scaled.OriginalYield,
		TargetYield:    scaled.TargetYield,
		YieldUnit:      recipe.YieldUnit,
		ScaleFactor:    scaled.ScaleFactor,
		Items:          make([]scaledItemResponse, 0, len(scaled.Items)),
		TotalCost:      scaled.TotalCost,
		CostPerPortion: scaled.CostPerPortion,
		CostComplete:   scaled.Complete,
	}
	for _, item := range scaled.Items {
		resp.Items = append(resp.Items, scaledItemResponse{
			ID:               item.Item.ID,
			Name:             item.Item.Name(),
			Type:             item.Item.Kind(),
			OriginalQuantity: item.OriginalQuantity,
			Quantity:         item.Quantity,
			Unit:             item.Item.Unit,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func recipeCost(w http.ResponseWriter, r *http.Request, recipeID, userID uint) {
	ctx := r.Context()
	graph, ok := loadRecipeGraph(w, r, userID, recipeID)
	if !ok {
		return
	}
	model, _ := graph.Model(recipeID)
	recipe, _ := graph.Recipe(recipeID)
	if recipe.YieldQty.IsZero() {
		writeJSONError(w, http.StatusUnprocessableEntity, fmt.Sprintf("recipe %q has zero yield", recipe.Name))
		return
	}

	portions := recipe.YieldQty
	if raw := strings.TrimSpace(r.URL.Query().Get("portions")); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil || !parsed.IsPositive() {
			writeJSONError(w, http.StatusBadRequest, "portions must be a positive number")
			return
		}
		portions = parsed
	}
	scale := portions.Div(recipe.YieldQty)

	b, err := costing.Break(recipe, scale)
	if err != nil {
		writeCostingError(w, r, err)
		return
	}
	services.Metrics.UnknownLines("recipe", len(b.Unknown()))

	pct, err := costing.FoodCostPercentage(recipe, decimal.NullDecimal{})
	if err != nil {
		applog.Debug(ctx, "food cost percentage unavailable", "recipe", recipeID, "error", err)
	}

	resp := costResponse{
		RecipeID:       recipe.ID,
		RecipeName:     recipe.Name,
		YieldQty:       recipe.YieldQty,
		YieldUnit:      recipe.YieldUnit,
		Portions:       portions,
		TotalCost:      b.Total,
		CostPerPortion: b.Total.Div(portions),
		FoodCostPct:    pct,
		TargetCostPct:  model.TargetCostPct,
		SellingPrice:   recipe.SellingPrice,
		Complete:       b.Complete(),
		Items:          make([]costLineResponse, 0, len(b.Lines)),
	}
	for _, line := range b.Lines {
		resp.Items = append(resp.Items, costLineResponse{
			ID:       line.Item.ID,
			Name:     line.Item.Name(),
			Type:     line.Item.Kind(),
			Quantity: line.Item.Quantity.Mul(scale),
			Unit:     line.Item.Unit,
			Cost:     line.Cost,
			Partial:  line.Partial,
			Error:    errorText(line.Err),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeCostingError maps calculator failures that abort a whole request.
func writeCostingError(w http.ResponseWriter, r *http.Request, err error) {
	var calcErr *costing.CalculationError
	switch {
	case errors.Is(err, costing.ErrRecipeCycle):
		services.Metrics.Cycle()
		applog.Debug(r.Context(), "recipe cycle detected", "error", err)
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.As(err, &calcErr):
		applog.Debug(r.Context(), "cost calculation rejected", "error", err)
		writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		applog.Error(r.Context(), "cost calculation failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to calculate cost")
	}
}

// projectRecipe renders a loaded recipe with its costs. A recipe that cannot
// be priced is still returned, with null costs and the reason.
func projectRecipe(r *http.Request, graph *catalog.Graph, recipeID uint) recipeResponse {
	model, _ := graph.Model(recipeID)
	recipe, _ := graph.Recipe(recipeID)

	resp := recipeResponse{
		ID:            model.ID,
		OwnerID:       model.OwnerID,
		Name:          model.Name,
		Description:   model.Description,
		YieldQty:      model.YieldQty,
		YieldUnit:     model.YieldUnit,
		SellingPrice:  model.SellingPrice,
		TargetCostPct: model.TargetCostPct,
		PrepMinutes:   model.PrepMinutes,
		CookMinutes:   model.CookMinutes,
		Instructions:  model.Instructions,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
		Items:         make([]recipeItemResponse, 0, len(model.Items)),
	}

	lines := make(map[uint]costing.Line, len(recipe.Items))
	b, err := costing.Break(recipe, costing.One)
	if err != nil {
		if errors.Is(err, costing.ErrRecipeCycle) {
			services.Metrics.Cycle()
		}
		applog.Debug(r.Context(), "recipe cost unavailable", "recipe", recipeID, "error", err)
		resp.CostError = err.Error()
	} else {
		for _, line := range b.Lines {
			lines[line.Item.ID] = line
		}
		services.Metrics.UnknownLines("recipe", len(b.Unknown()))
		resp.TotalCost = decimal.NewNullDecimal(b.Total)
		resp.CostComplete = b.Complete()
		if !model.YieldQty.IsZero() {
			resp.CostPerPortion = decimal.NewNullDecimal(b.Total.Div(model.YieldQty))
		}
		if pct, err := costing.FoodCostPercentage(recipe, decimal.NullDecimal{}); err == nil {
			resp.FoodCostPct = pct
		}
	}

	for i, item := range model.Items {
		out := recipeItemResponse{
			ID:           item.ID,
			RecipeID:     item.RecipeID,
			IngredientID: item.IngredientID,
			SubRecipeID:  item.SubRecipeID,
			Name:         recipe.Items[i].Name(),
			Type:         recipe.Items[i].Kind(),
			Quantity:     item.Quantity,
			Unit:         item.Unit,
			SortOrder:    item.SortOrder,
			Notes:        item.Notes,
		}
		if line, ok := lines[item.ID]; ok {
			out.ItemCost = line.Cost
			out.Partial = line.Partial
			out.Error = errorText(line.Err)
		}
		resp.Items = append(resp.Items, out)
	}
	return resp
}
