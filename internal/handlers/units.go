package handlers

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	applog "platecost/internal/log"
	"platecost/internal/units"
)

type convertRequest struct {
	Value   decimal.Decimal     `json:"value"`
	From    string              `json:"from" validate:"required"`
	To      string              `json:"to" validate:"required"`
	Density decimal.NullDecimal `json:"density" validate:"omitempty,dgt=0"`
}

type convertResponse struct {
	Value  decimal.Decimal `json:"value"`
	From   string          `json:"from"`
	To     string          `json:"to"`
	Result decimal.Decimal `json:"result"`
}

// Units lists the supported units grouped by category.
func Units(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": units.Known()})
}

// ConvertUnits converts a quantity between two units.
func ConvertUnits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req convertRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	var (
		result decimal.Decimal
		err    error
	)
	if req.Density.Valid {
		result, err = units.ConvertWithDensity(req.Value, req.From, req.To, req.Density.Decimal)
	} else {
		result, err = units.Convert(req.Value, req.From, req.To)
	}
	if err != nil {
		var convErr *units.ConversionError
		if errors.As(err, &convErr) {
			applog.Debug(r.Context(), "unit conversion rejected", "from", req.From, "to", req.To, "error", err)
			writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		applog.Error(r.Context(), "unit conversion failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "unable to convert")
		return
	}

	writeJSON(w, http.StatusOK, convertResponse{
		Value:  req.Value,
		From:   units.Normalize(req.From),
		To:     units.Normalize(req.To),
		Result: result,
	})
}
