// Package units converts quantities between units of measure used in recipes.
//
// Units belong to one of three categories: weight (base unit grams), volume
// (base unit milliliters) and count (base unit "each"). Conversions inside a
// category go through the base unit. Weight and volume can be bridged when a
// density in grams per milliliter is known; count never converts to anything
// outside its category.
package units

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Category groups units that measure the same physical quantity.
type Category string

const (
	Weight Category = "weight"
	Volume Category = "volume"
	Count  Category = "count"
)

var (
	ErrUnknownUnit     = errors.New("unknown unit")
	ErrDensityRequired = errors.New("density required")
	ErrIncompatible    = errors.New("incompatible unit categories")
	ErrZeroDensity     = errors.New("density must not be zero")
)

// ConversionError describes why a conversion could not be performed.
type ConversionError struct {
	From string
	To   string
	Err  error
}

func (e *ConversionError) Error() string {
	switch {
	case errors.Is(e.Err, ErrUnknownUnit) && e.To == "":
		return fmt.Sprintf("unit conversion: unknown unit %q", e.From)
	case e.To == "":
		return fmt.Sprintf("unit conversion: %s: %v", e.From, e.Err)
	default:
		return fmt.Sprintf("unit conversion: %s to %s: %v", e.From, e.To, e.Err)
	}
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

type unitDef struct {
	category Category
	factor   decimal.Decimal
}

var table = map[string]unitDef{
	"mg": {Weight, decimal.RequireFromString("0.001")},
	"g":  {Weight, decimal.RequireFromString("1")},
	"kg": {Weight, decimal.RequireFromString("1000")},
	"oz": {Weight, decimal.RequireFromString("28.3495")},
	"lb": {Weight, decimal.RequireFromString("453.592")},

	"ml":    {Volume, decimal.RequireFromString("1")},
	"l":     {Volume, decimal.RequireFromString("1000")},
	"tsp":   {Volume, decimal.RequireFromString("4.92892")},
	"tbsp":  {Volume, decimal.RequireFromString("14.7868")},
	"fl_oz": {Volume, decimal.RequireFromString("29.5735")},
	"cup":   {Volume, decimal.RequireFromString("236.588")},
	"pt":    {Volume, decimal.RequireFromString("473.176")},
	"qt":    {Volume, decimal.RequireFromString("946.353")},
	"gal":   {Volume, decimal.RequireFromString("3785.41")},

	"each":  {Count, decimal.RequireFromString("1")},
	"piece": {Count, decimal.RequireFromString("1")},
	"dozen": {Count, decimal.RequireFromString("12")},
}

// Normalize trims and lowercases a unit string.
func Normalize(unit string) string {
	return strings.ToLower(strings.TrimSpace(unit))
}

func lookup(unit string) (unitDef, error) {
	def, ok := table[unit]
	if !ok {
		return unitDef{}, &ConversionError{From: unit, Err: ErrUnknownUnit}
	}
	return def, nil
}

// CategoryOf returns the category for unit.
func CategoryOf(unit string) (Category, error) {
	def, err := lookup(Normalize(unit))
	if err != nil {
		return "", err
	}
	return def.category, nil
}

// Compatible reports whether a and b can be converted into each other. When
// allowDensity is set, weight and volume are considered compatible.
func Compatible(a, b string, allowDensity bool) bool {
	ca, err := CategoryOf(a)
	if err != nil {
		return false
	}
	cb, err := CategoryOf(b)
	if err != nil {
		return false
	}
	if ca == cb {
		return true
	}
	return allowDensity && crossable(ca, cb)
}

func crossable(a, b Category) bool {
	return (a == Weight && b == Volume) || (a == Volume && b == Weight)
}

// Convert converts value between two units of the same category.
func Convert(value decimal.Decimal, from, to string) (decimal.Decimal, error) {
	return convert(value, from, to, nil)
}

// ConvertWithDensity converts value between units, bridging weight and volume
// with density expressed in grams per milliliter.
func ConvertWithDensity(value decimal.Decimal, from, to string, density decimal.Decimal) (decimal.Decimal, error) {
	return convert(value, from, to, &density)
}

func convert(value decimal.Decimal, from, to string, density *decimal.Decimal) (decimal.Decimal, error) {
	from, to = Normalize(from), Normalize(to)
	if from == to {
		return value, nil
	}

	src, err := lookup(from)
	if err != nil {
		return decimal.Zero, err
	}
	dst, err := lookup(to)
	if err != nil {
		return decimal.Zero, err
	}

	base := value.Mul(src.factor)
	if src.category == dst.category {
		return base.Div(dst.factor), nil
	}

	if !crossable(src.category, dst.category) {
		return decimal.Zero, &ConversionError{From: from, To: to, Err: fmt.Errorf("%w: %s and %s", ErrIncompatible, src.category, dst.category)}
	}
	if density == nil {
		return decimal.Zero, &ConversionError{From: from, To: to, Err: fmt.Errorf("%w: %s (%s) to %s (%s)", ErrDensityRequired, from, src.category, to, dst.category)}
	}
	if density.IsZero() {
		return decimal.Zero, &ConversionError{From: from, To: to, Err: ErrZeroDensity}
	}

	// g / (g/ml) = ml and ml * (g/ml) = g
	if src.category == Weight {
		base = base.Div(*density)
	} else {
		base = base.Mul(*density)
	}
	return base.Div(dst.factor), nil
}

// Known returns the supported units grouped by category, sorted by size.
func Known() map[Category][]string {
	grouped := make(map[Category][]string, 3)
	for name, def := range table {
		grouped[def.category] = append(grouped[def.category], name)
	}
	for category, names := range grouped {
		sort.Slice(names, func(i, j int) bool {
			fi, fj := table[names[i]].factor, table[names[j]].factor
			if !fi.Equal(fj) {
				return fi.LessThan(fj)
			}
			return names[i] < names[j]
		})
		grouped[category] = names
	}
	return grouped
}
