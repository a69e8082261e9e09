package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/glucoflow/internal/domain/reading"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type ValidationErrorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

func respondValidation(c *gin.Context, fields ...string) {
	c.JSON(http.StatusBadRequest, ValidationErrorResponse{
		Error:  "validation failed",
		Fields: fields,
	})
}

func respondServiceError(c *gin.Context, err error) {
	_ = c.Error(err)

	var validErr *reading.ValidationError
	if errors.As(err, &validErr) {
		respondValidation(c, validErr.Fields...)
		return
	}

	switch {
	case errors.Is(err, reading.ErrNoSuchReading):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})

	case errors.Is(err, reading.ErrDuplicateReading),
		errors.Is(err, reading.ErrIDType),
		errors.Is(err, reading.ErrIDValue):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})

	case reading.IsInvalidInput(err):
		respondValidation(c, err.Error())

	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

var registerOnce sync.Once

// registerJSONFieldNames makes validator report fields by their JSON name.
func registerJSONFieldNames() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		_ = c.Error(err)
		respondValidation(c, bindErrorFields(err)...)
		return false
	}
	return true
}

func bindErrorFields(err error) []string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, describeFieldError(fe))
		}
		return fields
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return []string{fmt.Sprintf("%s: must be a %s", typeErr.Field, typeErr.Type)}
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return []string{fmt.Sprintf("body: malformed JSON at offset %d", syntaxErr.Offset)}
	}

	return []string{"body: " + err.Error()}
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}

// parseRef reads a reading identifier from the path. Canonical UUID text is
// tried first; a run of decimal digits is taken as the 128-bit integer form.
func parseRef(c *gin.Context, param string) (reading.Ref, bool) {
	raw := c.Param(param)
	if _, err := uuid.Parse(raw); err == nil {
		return reading.ByString(raw), true
	}

	if n, ok := new(big.Int).SetString(raw, 10); ok && isDigits(raw) {
		ref := reading.ByInt(n)
		if _, err := ref.UUID(); err == nil {
			return ref, true
		}
	}

	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + param + ": must be a UUID or its integer value"})
	return reading.Ref{}, false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
