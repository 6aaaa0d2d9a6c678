package handlers

import (
	"net/http"
	"testing"

	"platecost/internal/units"
)

func TestUnits(t *testing.T) {
	t.Parallel()

	w := serve(t, Units, http.MethodGet, "/api/v1/units", nil, 0)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Categories map[units.Category][]string `json:"categories"`
	}
	decodeBody(t, w, &resp)
	if got := resp.Categories[units.Weight]; len(got) == 0 || got[0] != "mg" {
		t.Fatalf("expected weight units starting with mg, got %v", got)
	}
	if len(resp.Categories[units.Count]) != 3 {
		t.Fatalf("expected 3 count units, got %v", resp.Categories[units.Count])
	}
}

func TestConvertUnits(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		body   string
		status int
		result string
	}{
		{name: "same category", body: `{"value":"2","from":"lb","to":"g"}`, status: http.StatusOK, result: "907.184"},
		{name: "normalized names", body: `{"value":"1","from":" KG ","to":"g"}`, status: http.StatusOK, result: "1000"},
		{name: "density bridge", body: `{"value":"1","from":"cup","to":"g","density":"1"}`, status: http.StatusOK, result: "236.588"},
		{name: "density missing", body: `{"value":"1","from":"cup","to":"g"}`, status: http.StatusUnprocessableEntity},
		{name: "count to weight", body: `{"value":"1","from":"each","to":"g","density":"1"}`, status: http.StatusUnprocessableEntity},
		{name: "unknown unit", body: `{"value":"1","from":"smidgen","to":"g"}`, status: http.StatusUnprocessableEntity},
		{name: "missing target", body: `{"value":"1","from":"g"}`, status: http.StatusUnprocessableEntity},
		{name: "negative density", body: `{"value":"1","from":"cup","to":"g","density":"-1"}`, status: http.StatusUnprocessableEntity},
		{name: "malformed", body: `{"value":`, status: http.StatusBadRequest},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			w := serve(t, ConvertUnits, http.MethodPost, "/api/v1/units/convert", tc.body, 0)
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, w.Code, w.Body.String())
			}
			if tc.result == "" {
				return
			}
			var resp convertResponse
			decodeBody(t, w, &resp)
			assertDecimal(t, "result", resp.Result, tc.result)
		})
	}
}
