package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/assocnet/pipeline/internal/envelope"
	"github.com/assocnet/pipeline/internal/validate"
)

// ValidatedDataKey is the gin context key for the typed data produced
// by schema validation.
const ValidatedDataKey = "validatedData"

// GetValidatedData returns the typed data produced by the validation
// stage, or nil when the route has no schema.
func GetValidatedData(c *gin.Context) validate.Data {
	if v, ok := c.Get(ValidatedDataKey); ok {
		if data, ok := v.(validate.Data); ok {
			return data
		}
	}
	return nil
}

// Validate returns the schema validation stage. The raw input is the
// JSON body for mutating verbs and the query string otherwise; the
// typed result is attached for the handler so it never re-reads raw
// input. Constraint violations reject with a 400 envelope carrying one
// detail entry per violation.
func Validate(schema *validate.Schema) gin.HandlerFunc {
	return func(c *gin.Context) {
		input, ok := readInput(c)
		if !ok {
			return
		}

		data, fieldErrs := schema.Validate(input)
		if len(fieldErrs) > 0 {
			validationFailures.Inc()
			envelope.Fail(c, envelope.Validation(fieldErrs))
			return
		}

		c.Set(ValidatedDataKey, data)
		c.Next()
	}
}

// readInput extracts the raw input object from the request. Returns
// ok=false after writing a rejection.
func readInput(c *gin.Context) (map[string]any, bool) {
	switch c.Request.Method {
	case http.MethodGet, http.MethodHead, http.MethodDelete:
		query := c.Request.URL.Query()
		input := make(map[string]any, len(query))
		for name, values := range query {
			if len(values) > 0 {
				input[name] = values[0]
			}
		}
		return input, true
	default:
		input := make(map[string]any)
		if c.Request.Body != nil && c.Request.ContentLength != 0 {
			decoder := json.NewDecoder(c.Request.Body)
			decoder.UseNumber()
			if err := decoder.Decode(&input); err != nil {
				envelope.Fail(c, envelope.Validation([]validate.FieldError{
					{Path: "body", Message: "must be a valid JSON object"},
				}))
				return nil, false
			}
		}
		return input, true
	}
}
