// Package value implements typed option values and the ${type:content}
// mini-language used inside YAML scalars.
//
// An Option is either a primitive (an already-resolved scalar with its data
// type) or a reference to another entity's field that is resolved later
// through a Resolver:
//
//	opt, _ := value.FromRaw("${integer:42}")     // primitive int64(42)
//	opt, _ = value.FromRaw("${ref:users.id}")    // reference "users.id"
//	opt, _ = value.FromRaw("plain")              // primitive string
//
// Serialize is the inverse of FromRaw up to canonical spelling:
// FromRaw("${boolean:yes}") serializes as "${boolean:true}". A string that
// contains "}" or "${" cannot sit inside a bracket and is written as its plain
// text, which FromRaw reads back as the same string.
package value

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Kind tags the Option variant.
type Kind int

const (
	KindPrimitive Kind = iota
	KindReference
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindReference:
		return "reference"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Resolver dereferences ${ref:...} values.
type Resolver interface {
	ResolveReference(ref string) (any, error)
}

// Option is an immutable typed value attached to a column.
type Option struct {
	kind     Kind
	value    any
	dataType DataType
	ref      string
}

// Primitive builds a primitive option. The runtime type of v must match t
// after normalisation (see InferType).
func Primitive(v any, t DataType) (Option, error) {
	if !t.Valid() {
		return Option{}, fmt.Errorf("unknown data type %q", t)
	}

	inferred, normalised, err := InferType(v)
	if err != nil {
		return Option{}, err
	}
	if inferred != t && !(t == TypeTimestamp && inferred == TypeInteger) {
		return Option{}, fmt.Errorf("value of type %T is not consistent with data type %s", v, t)
	}

	return Option{kind: KindPrimitive, value: normalised, dataType: t}, nil
}

// Reference builds a reference option. ref is kept verbatim.
func Reference(ref string) Option {
	return Option{kind: KindReference, ref: ref}
}

// FromRaw turns a raw YAML scalar into an Option.
//
// Non-string values are wrapped with an inferred data type. Strings that are
// exactly one ${prefix:content} bracket are cast by prefix; any other string
// is a string primitive. A string holding more than one bracket fails with
// ErrMultiplePrefixes.
func FromRaw(raw any) (Option, error) {
	s, ok := raw.(string)
	if !ok {
		t, v, err := InferType(raw)
		if err != nil {
			return Option{}, err
		}
		return Option{kind: KindPrimitive, value: v, dataType: t}, nil
	}

	b, found, err := SingleBracket(s)
	if err != nil {
		return Option{}, err
	}
	if !found || !b.Whole(s) {
		return Option{kind: KindPrimitive, value: s, dataType: TypeString}, nil
	}

	if b.Prefix == "ref" {
		if strings.TrimSpace(b.Content) == "" {
			return Option{}, ErrEmptyReference
		}
		return Reference(b.Content), nil
	}

	t := DataType(b.Prefix)
	if !t.Valid() {
		return Option{}, &UnsupportedPrefixError{Prefix: b.Prefix}
	}

	v, err := Cast(t, b.Content)
	if err != nil {
		return Option{}, err
	}
	return Option{kind: KindPrimitive, value: v, dataType: t}, nil
}

// Kind returns the variant tag.
func (o Option) Kind() Kind { return o.kind }

// IsReference reports whether o is a reference.
func (o Option) IsReference() bool { return o.kind == KindReference }

// Value returns the primitive value, nil for references.
func (o Option) Value() any { return o.value }

// DataType returns the primitive data type, empty for references.
func (o Option) DataType() DataType { return o.dataType }

// Ref returns the dotted reference path, empty for primitives.
func (o Option) Ref() string { return o.ref }

// Resolve returns the primitive value, or asks r to dereference a reference.
// Resolving a primitive never consults r.
func (o Option) Resolve(r Resolver) (any, error) {
	switch o.kind {
	case KindPrimitive:
		return o.value, nil
	case KindReference:
		if r == nil {
			return nil, fmt.Errorf("resolve %q: %w", o.ref, ErrNoResolver)
		}
		return r.ResolveReference(o.ref)
	default:
		return nil, fmt.Errorf("unknown option kind %v", o.kind)
	}
}

// Serialize renders o back into the ${type:value} mini-language.
func (o Option) Serialize() string {
	switch o.kind {
	case KindReference:
		return "${ref:" + o.ref + "}"
	case KindPrimitive:
		text := formatPrimitive(o.value)
		if o.dataType == TypeString && !bracketable(text) {
			return text
		}
		return "${" + string(o.dataType) + ":" + text + "}"
	default:
		return ""
	}
}

func (o Option) String() string {
	return o.Serialize()
}

// Equal compares variant, data type and logical value.
func (o Option) Equal(other Option) bool {
	if o.kind != other.kind {
		return false
	}
	if o.kind == KindReference {
		return o.ref == other.ref
	}
	if o.dataType != other.dataType {
		return false
	}
	if a, ok := o.value.(time.Time); ok {
		b, ok := other.value.(time.Time)
		return ok && a.Equal(b)
	}
	return o.value == other.value
}

// bracketable reports whether s survives as the content of a bracket.
func bracketable(s string) bool {
	return !strings.Contains(s, "}") && !strings.Contains(s, "${")
}

func formatPrimitive(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case Date:
		return x.String()
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}

// MarshalYAML writes the serialized form.
func (o Option) MarshalYAML() (any, error) {
	return o.Serialize(), nil
}

// UnmarshalYAML parses a scalar node through FromNode.
func (o *Option) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := FromNode(node)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// FromNode turns a YAML scalar node into an Option. An unquoted date such as
// 2024-01-02 is a date rather than a datetime at midnight.
func FromNode(node *yaml.Node) (Option, error) {
	if node.Kind != yaml.ScalarNode {
		return Option{}, fmt.Errorf("line %d: option must be a scalar", node.Line)
	}

	var raw any
	if err := node.Decode(&raw); err != nil {
		return Option{}, err
	}
	if t, ok := raw.(time.Time); ok && node.ShortTag() == "!!timestamp" && !strings.ContainsAny(node.Value, "Tt :") {
		raw = DateOf(t)
	}

	parsed, err := FromRaw(raw)
	if err != nil {
		return Option{}, fmt.Errorf("line %d: %w", node.Line, err)
	}
	return parsed, nil
}
