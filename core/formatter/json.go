package formatter

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONFormatter formats output as JSON.
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// Name returns the formatter name.
func (f *JSONFormatter) Name() string {
	return "json"
}

// Description returns the formatter description.
func (f *JSONFormatter) Description() string {
	return "JSON output format"
}

// FormatList formats a list of records as JSON.
func (f *JSONFormatter) FormatList(w io.Writer, columns []string, records []map[string]any, opts FormatOptions) error {
	output := map[string]any{
		"count": len(records),
		"data":  project(columns, records),
	}
	return f.encode(w, output, opts.Compact)
}

// FormatDocument formats a document as JSON.
func (f *JSONFormatter) FormatDocument(w io.Writer, doc any, opts FormatOptions) error {
	data, err := plain(doc)
	if err != nil {
		return fmt.Errorf("format json: %w", err)
	}
	return f.encode(w, jsonSafe(data), opts.Compact)
}

// FormatError formats an error as JSON.
func (f *JSONFormatter) FormatError(w io.Writer, err error) error {
	output := map[string]any{
		"error":  err.Error(),
		"errors": ErrorRecords(err),
	}
	return f.encode(w, output, false)
}

// encode writes JSON to the writer.
func (f *JSONFormatter) encode(w io.Writer, data any, compact bool) error {
	encoder := json.NewEncoder(w)
	if !compact {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

// jsonSafe rewrites map[any]any, which encoding/json rejects, into
// map[string]any.
func jsonSafe(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, val := range x {
			x[k] = jsonSafe(val)
		}
		return x
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[fmt.Sprint(k)] = jsonSafe(val)
		}
		return out
	case []any:
		for i, val := range x {
			x[i] = jsonSafe(val)
		}
		return x
	default:
		return v
	}
}

func init() {
	Register(NewJSONFormatter())
}
