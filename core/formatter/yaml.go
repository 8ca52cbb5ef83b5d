package formatter

import (
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLFormatter formats output as YAML.
type YAMLFormatter struct{}

// NewYAMLFormatter creates a new YAML formatter.
func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

// Name returns the formatter name.
func (f *YAMLFormatter) Name() string {
	return "yaml"
}

// Description returns the formatter description.
func (f *YAMLFormatter) Description() string {
	return "YAML output format"
}

// FormatList formats a list of records as YAML.
func (f *YAMLFormatter) FormatList(w io.Writer, columns []string, records []map[string]any, opts FormatOptions) error {
	return f.encode(w, project(columns, records))
}

// FormatDocument formats a document as YAML. Options and secrets use their
// own marshalers.
func (f *YAMLFormatter) FormatDocument(w io.Writer, doc any, opts FormatOptions) error {
	return f.encode(w, doc)
}

// FormatError formats an error as YAML.
func (f *YAMLFormatter) FormatError(w io.Writer, err error) error {
	return f.encode(w, map[string]any{"errors": ErrorRecords(err)})
}

func (f *YAMLFormatter) encode(w io.Writer, data any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return err
	}
	return enc.Close()
}

func init() {
	Register(NewYAMLFormatter())
}
