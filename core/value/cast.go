package value

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	boolTrue  = map[string]bool{"true": true, "1": true, "yes": true, "y": true, "on": true}
	boolFalse = map[string]bool{"false": true, "0": true, "no": true, "n": true, "off": true}
)

// Layouts accepted for datetime content. Layouts without a zone parse as UTC.
var datetimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z0700",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	dateLayout,
}

// Cast converts raw option content to a Go value of the given type:
//
//	string    string
//	integer   int64
//	float     float64
//	boolean   bool
//	date      Date
//	datetime  time.Time
//	timestamp int64 (epoch seconds)
func Cast(t DataType, raw string) (any, error) {
	var (
		v   any
		err error
	)

	switch t {
	case TypeString:
		return raw, nil
	case TypeInteger:
		v, err = strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	case TypeFloat:
		v, err = strconv.ParseFloat(strings.TrimSpace(raw), 64)
	case TypeBoolean:
		v, err = parseBool(raw)
	case TypeDate:
		v, err = ParseDate(strings.TrimSpace(raw))
	case TypeDatetime:
		v, err = parseDatetime(strings.TrimSpace(raw))
	case TypeTimestamp:
		v, err = parseTimestamp(raw)
	default:
		return nil, fmt.Errorf("unsupported data type %q", t)
	}

	if err != nil {
		return nil, &InvalidLiteralError{Type: t, Text: raw, Err: unwrapNum(err)}
	}
	return v, nil
}

func parseBool(s string) (bool, error) {
	lowered := strings.ToLower(strings.TrimSpace(s))
	if boolTrue[lowered] {
		return true, nil
	}
	if boolFalse[lowered] {
		return false, nil
	}
	return false, errors.New("not a boolean")
}

func parseDatetime(s string) (time.Time, error) {
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("not an ISO-8601 datetime")
}

// parseTimestamp accepts signed epoch seconds or a datetime.
func parseTimestamp(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if isDigits(strings.TrimPrefix(s, "-")) {
		return strconv.ParseInt(s, 10, 64)
	}
	t, err := parseDatetime(s)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// unwrapNum drops strconv's repetition of the input text.
func unwrapNum(err error) error {
	var numErr *strconv.NumError
	if errors.As(err, &numErr) {
		return numErr.Err
	}
	return err
}

// InferType returns the data type for an already-typed raw value along with
// the value normalised to its canonical Go representation. Booleans are
// checked before integers.
func InferType(raw any) (DataType, any, error) {
	switch v := raw.(type) {
	case string:
		return TypeString, v, nil
	case bool:
		return TypeBoolean, v, nil
	case int:
		return TypeInteger, int64(v), nil
	case int8:
		return TypeInteger, int64(v), nil
	case int16:
		return TypeInteger, int64(v), nil
	case int32:
		return TypeInteger, int64(v), nil
	case int64:
		return TypeInteger, v, nil
	case uint:
		return unsignedInteger(uint64(v))
	case uint8:
		return TypeInteger, int64(v), nil
	case uint16:
		return TypeInteger, int64(v), nil
	case uint32:
		return TypeInteger, int64(v), nil
	case uintptr:
		return unsignedInteger(uint64(v))
	case uint64:
		return unsignedInteger(uint64(v))
	case float32:
		return TypeFloat, float64(v), nil
	case float64:
		return TypeFloat, v, nil
	case Date:
		return TypeDate, v, nil
	case time.Time:
		return TypeDatetime, v, nil
	default:
		return "", nil, &InferError{Value: raw}
	}
}

// unsignedInteger rejects values that do not fit an int64.
func unsignedInteger(v uint64) (DataType, any, error) {
	if v > math.MaxInt64 {
		return "", nil, &InvalidLiteralError{Type: TypeInteger, Text: strconv.FormatUint(v, 10), Err: strconv.ErrRange}
	}
	return TypeInteger, int64(v), nil
}
