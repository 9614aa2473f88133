package dump

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// LitKind discriminates the raw literal forms a dump can carry in a VALUES
// tuple.
type LitKind int

const (
	LitNull LitKind = iota
	LitNumber
	LitString
	LitHex
)

func (k LitKind) String() string {
	switch k {
	case LitNull:
		return "null"
	case LitNumber:
		return "number"
	case LitString:
		return "string"
	case LitHex:
		return "hex"
	default:
		return "unknown"
	}
}

// Literal is one raw field value as written in the dump, before coercion.
// String payloads are raw bytes: a dump may carry any encoding, and deciding
// what those bytes mean is the coercer's job, not the parser's.
type Literal struct {
	Kind   LitKind
	Number Number
	Bytes  []byte
}

// Null is the shared NULL literal.
var Null = Literal{Kind: LitNull}

// Number is a numeric literal in canonical form: sign, integer digits,
// fractional digits, decimal exponent. It is independent of the source's
// display formatting ("1e2", "+100", "100.00" all carry the same value) and
// loses no precision until a destination type forces a conversion.
type Number struct {
	Neg    bool
	Digits string // integer part, leading zeros stripped, "" == 0
	Frac   string // fractional part, trailing zeros stripped
	Exp    int
}

// ParseNumber parses a SQL numeric literal into canonical form.
func ParseNumber(s string) (Number, error) {
	var n Number
	rest := s

	if rest == "" {
		return n, fmt.Errorf("empty numeric literal")
	}
	switch rest[0] {
	case '-':
		n.Neg = true
		rest = rest[1:]
	case '+':
		rest = rest[1:]
	}

	mantissa := rest
	if i := strings.IndexAny(rest, "eE"); i >= 0 {
		mantissa = rest[:i]
		exp, err := strconv.Atoi(rest[i+1:])
		if err != nil {
			return n, fmt.Errorf("bad exponent in %q", s)
		}
		n.Exp = exp
	}

	intPart := mantissa
	if i := strings.IndexByte(mantissa, '.'); i >= 0 {
		intPart = mantissa[:i]
		n.Frac = strings.TrimRight(mantissa[i+1:], "0")
	}
	if intPart == "" && n.Frac == "" {
		return n, fmt.Errorf("bad numeric literal %q", s)
	}
	for _, c := range intPart + n.Frac {
		if c < '0' || c > '9' {
			return n, fmt.Errorf("bad numeric literal %q", s)
		}
	}
	n.Digits = strings.TrimLeft(intPart, "0")

	if n.Digits == "" && n.Frac == "" {
		n.Neg = false // canonical zero
		n.Exp = 0
	}
	return n, nil
}

// intDigits resolves the exponent and returns the plain digit string of an
// integral value ("" means zero). ok is false when the value has a non-zero
// fractional component.
func (n Number) intDigits() (string, bool) {
	digits := n.Digits + n.Frac
	shift := n.Exp - len(n.Frac) // decimal point sits shift digits right of the end
	if shift >= 0 {
		if shift > 0 && digits != "" {
			digits += strings.Repeat("0", shift)
		}
		return digits, true
	}
	// Negative shift: the last -shift digits fall behind the point and must
	// all be zero for the value to be integral.
	cut := len(digits) + shift
	if cut < 0 {
		cut = 0
	}
	if strings.TrimRight(digits[cut:], "0") != "" {
		return "", false
	}
	return strings.TrimLeft(digits[:cut], "0"), true
}

// IsInteger reports whether the canonical value is integral once the exponent
// is applied.
func (n Number) IsInteger() bool {
	_, ok := n.intDigits()
	return ok
}

// Int64 converts the canonical value to int64, failing on fractional values
// and on anything outside the 64-bit range. It never round-trips through
// float, so 9223372036854775807 survives intact.
func (n Number) Int64() (int64, error) {
	digits, ok := n.intDigits()
	if !ok {
		return 0, fmt.Errorf("not an integer: %s", n.String())
	}
	if digits == "" {
		return 0, nil
	}
	if n.Neg {
		digits = "-" + digits
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("integer out of range: %s", n.String())
	}
	return v, nil
}

// Uint64 converts a non-negative canonical value to uint64. MySQL BIGINT
// UNSIGNED can exceed int64; SQLite cannot store the high half losslessly, so
// the coercer treats it as out of range.
func (n Number) Uint64() (uint64, error) {
	if n.Neg {
		return 0, fmt.Errorf("negative value: %s", n.String())
	}
	digits, ok := n.intDigits()
	if !ok {
		return 0, fmt.Errorf("not an integer: %s", n.String())
	}
	if digits == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("integer out of range: %s", n.String())
	}
	return v, nil
}

// Float64 converts the canonical value to float64. Overflow to infinity is
// reported as an error rather than stored.
func (n Number) Float64() (float64, error) {
	v, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return 0, fmt.Errorf("bad numeric value: %s", n.String())
	}
	if math.IsInf(v, 0) {
		return 0, fmt.Errorf("numeric value out of range: %s", n.String())
	}
	return v, nil
}

// String renders the canonical form, e.g. "-12.5e3". Zero renders as "0".
func (n Number) String() string {
	var sb strings.Builder
	if n.Neg {
		sb.WriteByte('-')
	}
	if n.Digits == "" {
		sb.WriteByte('0')
	} else {
		sb.WriteString(n.Digits)
	}
	if n.Frac != "" {
		sb.WriteByte('.')
		sb.WriteString(n.Frac)
	}
	if n.Exp != 0 {
		sb.WriteByte('e')
		sb.WriteString(strconv.Itoa(n.Exp))
	}
	return sb.String()
}

// NumberLit wraps a parsed Number as a Literal.
func NumberLit(n Number) Literal { return Literal{Kind: LitNumber, Number: n} }

// StringLit wraps raw string bytes as a Literal.
func StringLit(b []byte) Literal { return Literal{Kind: LitString, Bytes: b} }

// HexLit wraps decoded hex payload bytes as a Literal.
func HexLit(b []byte) Literal { return Literal{Kind: LitHex, Bytes: b} }
