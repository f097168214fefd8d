// Package measure is the single place where field measurements are turned
// into decimal feet and back into the feet-inches strings engineers read.
package measure

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ErrMalformed is returned for any height or move value that cannot be read.
var ErrMalformed = errors.New("malformed measurement")

var (
	// 28' 6", 28'6, 28 ft 6 in, 28' 6 1/2", 28-6
	reFeetInches = regexp.MustCompile(`^(-?\d+(?:\.\d+)?)\s*(?:'|ft\.?|feet|foot|-)\s*(?:(\d+(?:\.\d+)?)(?:\s+(\d+)/(\d+))?\s*(?:"|''|in\.?|inch(?:es)?)?)?$`)
	// 6", 6 in, 6 1/2"
	reInches = regexp.MustCompile(`^(-?\d+(?:\.\d+)?)(?:\s+(\d+)/(\d+))?\s*(?:"|''|in\.?|inch(?:es)?)$`)
)

var quoteReplacer = strings.NewReplacer("′", "'", "’", "'", "‘", "'", "″", `"`, "“", `"`, "”", `"`)

// ParseFeet reads a height written either as a feet-inches string or as a
// plain decimal number of feet and returns decimal feet.
func ParseFeet(s string) (float64, error) {
	t := strings.ToLower(strings.TrimSpace(quoteReplacer.Replace(s)))
	t = strings.TrimPrefix(t, "+")
	if t == "" {
		return 0, fmt.Errorf("%w: empty value", ErrMalformed)
	}

	if f, err := strconv.ParseFloat(t, 64); err == nil {
		return finite(f, s)
	}

	if m := reInches.FindStringSubmatch(t); m != nil {
		in, err := inches(m[1], m[2], m[3])
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrMalformed, s)
		}
		return finite(in/12, s)
	}

	m := reFeetInches.FindStringSubmatch(t)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	ft, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	in := 0.0
	if m[2] != "" {
		if in, err = inches(m[2], m[3], m[4]); err != nil {
			return 0, fmt.Errorf("%w: %q", ErrMalformed, s)
		}
	}
	if in >= 12 {
		return 0, fmt.Errorf("%w: %q has %g inches", ErrMalformed, s, in)
	}
	if ft < 0 || strings.HasPrefix(m[1], "-") {
		return finite(ft-in/12, s)
	}
	return finite(ft+in/12, s)
}

// ParseMoveFeet reads a move value. Bare numbers are inches, as the field
// tools record them; strings with a feet marker are read as feet-inches.
func ParseMoveFeet(s string) (float64, error) {
	t := strings.TrimSpace(quoteReplacer.Replace(s))
	if t == "" {
		return 0, fmt.Errorf("%w: empty move", ErrMalformed)
	}
	if strings.ContainsAny(t, "'") || strings.Contains(strings.ToLower(t), "ft") {
		return ParseFeet(t)
	}
	t = strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(strings.ToLower(t), "in"), `"`))
	t = strings.TrimPrefix(t, "+")
	in, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: move %q", ErrMalformed, s)
	}
	return finite(in/12, s)
}

// Feet reads a height from a decoded JSON value (number or string).
func Feet(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return finite(x, fmt.Sprint(x))
	case int:
		return float64(x), nil
	case json.Number:
		return ParseFeet(x.String())
	case string:
		return ParseFeet(x)
	case nil:
		return 0, fmt.Errorf("%w: missing value", ErrMalformed)
	}
	return 0, fmt.Errorf("%w: unsupported type %T", ErrMalformed, v)
}

// MoveFeet reads a move from a decoded JSON value; numbers are inches.
func MoveFeet(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return finite(x/12, fmt.Sprint(x))
	case int:
		return float64(x) / 12, nil
	case json.Number:
		return ParseMoveFeet(x.String())
	case string:
		return ParseMoveFeet(x)
	case nil:
		return 0, fmt.Errorf("%w: missing move", ErrMalformed)
	}
	return 0, fmt.Errorf("%w: unsupported type %T", ErrMalformed, v)
}

// FormatFeetInches renders decimal feet as `28' 6"`, rounded to the
// nearest inch.
func FormatFeetInches(feet float64) string {
	if math.IsNaN(feet) || math.IsInf(feet, 0) {
		return ""
	}
	total := int64(math.Round(feet * 12))
	sign := ""
	if total < 0 {
		sign = "-"
		total = -total
	}
	return fmt.Sprintf(`%s%d' %d"`, sign, total/12, total%12)
}

func inches(whole, num, den string) (float64, error) {
	in, err := strconv.ParseFloat(whole, 64)
	if err != nil {
		return 0, err
	}
	if num == "" {
		return in, nil
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, err
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0, ErrMalformed
	}
	if in < 0 {
		return in - n/d, nil
	}
	return in + n/d, nil
}

func finite(f float64, src string) (float64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q is not finite", ErrMalformed, src)
	}
	return f, nil
}
