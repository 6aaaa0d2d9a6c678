package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/shopspring/decimal"

	applog "platecost/internal/log"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	maxBodyBytes     = 1 << 20
)

var (
	validate   *validator.Validate
	translator ut.Translator
)

func init() {
	validate, translator = newValidator()
}

func newValidator() (*validator.Validate, ut.Translator) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Decimals reach validators as their exact string form; the dgt, dgte
	// and dlte tags compare them without going through float64.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		switch value := field.Interface().(type) {
		case decimal.Decimal:
			return value.String()
		case decimal.NullDecimal:
			if !value.Valid {
				return nil
			}
			return value.Decimal.String()
		}
		return nil
	}, decimal.Decimal{}, decimal.NullDecimal{})

	eng := en.New()
	uni := ut.New(eng, eng)
	trans, _ := uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(v, trans); err != nil {
		applog.Error(context.Background(), "failed to register validation translations", "error", err)
	}
	for _, rule := range decimalRules {
		if err := registerDecimalRule(v, trans, rule); err != nil {
			applog.Error(context.Background(), "failed to register decimal validation", "tag", rule.tag, "error", err)
		}
	}
	return v, trans
}

type decimalRule struct {
	tag     string
	message string
	accept  func(cmp int) bool
}

var decimalRules = []decimalRule{
	{tag: "dgt", message: "{0} must be greater than {1}", accept: func(cmp int) bool { return cmp > 0 }},
	{tag: "dgte", message: "{0} must be {1} or greater", accept: func(cmp int) bool { return cmp >= 0 }},
	{tag: "dlte", message: "{0} must be {1} or less", accept: func(cmp int) bool { return cmp <= 0 }},
}

func registerDecimalRule(v *validator.Validate, trans ut.Translator, rule decimalRule) error {
	err := v.RegisterValidation(rule.tag, func(fl validator.FieldLevel) bool {
		if fl.Field().Kind() != reflect.String {
			return false
		}
		value, err := decimal.NewFromString(fl.Field().String())
		if err != nil {
			return false
		}
		bound, err := decimal.NewFromString(fl.Param())
		if err != nil {
			return false
		}
		return rule.accept(value.Cmp(bound))
	})
	if err != nil {
		return err
	}
	return v.RegisterTranslation(rule.tag, trans, func(ut ut.Translator) error {
		return ut.Add(rule.tag, rule.message, true)
	}, func(ut ut.Translator, fe validator.FieldError) string {
		msg, err := ut.T(rule.tag, fe.Field(), fe.Param())
		if err != nil {
			return fe.Error()
		}
		return msg
	})
}

// validationMessage joins the translated validation failures of err.
func validationMessage(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err.Error()
	}
	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		messages = append(messages, e.Translate(translator))
	}
	return strings.Join(messages, ", ")
}

// decodeAndValidate reads a JSON body into dst and validates it. On failure
// it writes the error response and returns false.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		applog.Debug(r.Context(), "invalid request body", "error", err)
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		applog.Debug(r.Context(), "request validation failed", "error", err)
		writeJSONError(w, http.StatusUnprocessableEntity, validationMessage(err))
		return false
	}
	return true
}

// resourcePath splits the path below prefix into its segments.
func resourcePath(r *http.Request, prefix string) []string {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func parseID(value string) (uint, error) {
	id, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, fmt.Errorf("identifier must be positive")
	}
	return uint(id), nil
}

type page struct {
	Offset int
	Limit  int
}

func parsePage(r *http.Request) (page, error) {
	p := page{Limit: defaultPageLimit}
	query := r.URL.Query()
	if raw := strings.TrimSpace(query.Get("offset")); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return p, fmt.Errorf("offset must be a non-negative integer")
		}
		p.Offset = offset
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxPageLimit {
			return p, fmt.Errorf("limit must be between 1 and %d", maxPageLimit)
		}
		p.Limit = limit
	}
	return p, nil
}

type listResponse[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Offset int   `json:"offset"`
	Limit  int   `json:"limit"`
}

func likePattern(search string) string {
	replacer := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return "%" + replacer.Replace(strings.ToLower(strings.TrimSpace(search))) + "%"
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		applog.Error(context.Background(), "failed to encode json response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
