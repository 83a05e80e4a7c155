package feedback

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/dshills/marginalia/internal/validate"
)

// ErrInvalidResult matches every *InvalidResultError via errors.Is.
var ErrInvalidResult = errors.New("invalid reviewer result")

// InvalidResultError reports model output that does not satisfy the result
// contract.
type InvalidResultError struct {
	Field   string // dotted JSON path, empty for whole-document problems
	Message string
	Err     error
}

func (e *InvalidResultError) Error() string {
	return ErrInvalidResult.Error() + ": " + e.Message
}

func (e *InvalidResultError) Unwrap() error { return e.Err }

// Is reports whether target is ErrInvalidResult.
func (e *InvalidResultError) Is(target error) bool { return target == ErrInvalidResult }

// Parse decodes and validates model output. Markdown code fences and prose
// around the JSON object are tolerated.
func Parse(content string) (Result, error) {
	content = stripFences(strings.TrimSpace(content))
	if content == "" {
		return Result{}, &InvalidResultError{Message: "response is empty"}
	}

	var r Result
	err := json.Unmarshal([]byte(content), &r)
	var syn *json.SyntaxError
	if errors.As(err, &syn) {
		if obj, ok := outerObject(content); ok {
			r = Result{}
			err = json.Unmarshal([]byte(obj), &r)
		}
	}
	if err != nil {
		return Result{}, decodeError(err)
	}

	if err := validate.Struct(r); err != nil {
		field, msg := validate.FieldAndMessage(err)
		return Result{}, &InvalidResultError{Field: field, Message: msg, Err: err}
	}
	return r, nil
}

// stripFences removes a surrounding ```json ... ``` block.
func stripFences(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	lines := strings.Split(content, "\n")
	if len(lines) < 2 {
		return ""
	}
	end := len(lines)
	if strings.TrimSpace(lines[end-1]) == "```" {
		end--
	}
	return strings.TrimSpace(strings.Join(lines[1:end], "\n"))
}

// outerObject returns the text between the first '{' and the last '}'.
func outerObject(content string) (string, bool) {
	i := strings.IndexByte(content, '{')
	j := strings.LastIndexByte(content, '}')
	if i < 0 || j <= i {
		return "", false
	}
	return content[i : j+1], true
}

func decodeError(err error) *InvalidResultError {
	var typ *json.UnmarshalTypeError
	if errors.As(err, &typ) {
		field := typ.Field
		if field == "" {
			field = "response"
		}
		return &InvalidResultError{
			Field:   field,
			Message: fmt.Sprintf("%s must be %s, got %s", field, kindName(typ.Type), typ.Value),
			Err:     err,
		}
	}
	return &InvalidResultError{Message: "response is not a valid JSON object: " + err.Error(), Err: err}
}

func kindName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Float32, reflect.Float64, reflect.Int, reflect.Int64:
		return "a number"
	case reflect.String:
		return "a string"
	case reflect.Slice:
		return "an array"
	case reflect.Struct, reflect.Map:
		return "an object"
	default:
		return "a " + t.Kind().String()
	}
}
