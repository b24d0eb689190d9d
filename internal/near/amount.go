package near

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// NominationExp is the number of decimals between yoctoNEAR and NEAR.
const NominationExp = 24

var ten = uint256.NewInt(10)

func pow10(n uint64) *uint256.Int {
	return new(uint256.Int).Exp(ten, uint256.NewInt(n))
}

// Amount is a yoctoNEAR quantity as it travels in RPC JSON (a decimal string).
type Amount struct {
	v uint256.Int
}

func NewAmount(v *uint256.Int) Amount {
	var a Amount
	a.v.Set(v)
	return a
}

// Int returns a copy of the underlying integer.
func (a Amount) Int() *uint256.Int { return new(uint256.Int).Set(&a.v) }

func (a Amount) String() string { return a.v.Dec() }

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.v.Dec() + `"`), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		a.v.Clear()
		return nil
	}
	v, err := parseDecimal(s)
	if err != nil {
		return fmt.Errorf("invalid yocto amount %q: %w", s, err)
	}
	a.v.Set(v)
	return nil
}

func parseDecimal(s string) (*uint256.Int, error) {
	s = strings.TrimLeft(s, "0")
	if s == "" {
		return new(uint256.Int), nil
	}
	return uint256.FromDecimal(s)
}

// FormatAmount renders yoctoNEAR as NEAR with thousands separators and
// trailing zeros trimmed. Below full precision it rounds half up to fracDigits.
func FormatAmount(yocto *uint256.Int, fracDigits int) string {
	v := new(uint256.Int).Set(yocto)
	if fracDigits < 0 || fracDigits > NominationExp {
		fracDigits = NominationExp
	}
	if exp := NominationExp - fracDigits - 1; fracDigits < NominationExp && exp > 0 {
		offset := new(uint256.Int).Mul(uint256.NewInt(5), pow10(uint64(exp)))
		v.Add(v, offset)
	}

	s := v.Dec()
	whole := "0"
	frac := s
	if len(s) > NominationExp {
		whole = s[:len(s)-NominationExp]
		frac = s[len(s)-NominationExp:]
	}
	frac = strings.Repeat("0", NominationExp-len(frac)) + frac
	frac = strings.TrimRight(frac[:fracDigits], "0")
	if frac == "" {
		return withCommas(whole)
	}
	return withCommas(whole) + "." + frac
}

// ParseAmount is the inverse of FormatAmount at full precision.
func ParseAmount(s string) (*uint256.Int, error) {
	clean := strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	whole, frac, _ := strings.Cut(clean, ".")
	if clean == "" || strings.Contains(frac, ".") || len(frac) > NominationExp {
		return nil, fmt.Errorf("cannot parse %q as NEAR amount", s)
	}
	digits := whole + frac + strings.Repeat("0", NominationExp-len(frac))
	for _, r := range digits {
		if r < '0' || r > '9' {
			return nil, fmt.Errorf("cannot parse %q as NEAR amount", s)
		}
	}
	v, err := parseDecimal(digits)
	if err != nil {
		return nil, fmt.Errorf("cannot parse %q as NEAR amount: %w", s, err)
	}
	return v, nil
}

func withCommas(whole string) string {
	if len(whole) <= 3 {
		return whole
	}
	var b strings.Builder
	lead := len(whole) % 3
	if lead > 0 {
		b.WriteString(whole[:lead])
	}
	for i := lead; i < len(whole); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(whole[i : i+3])
	}
	return b.String()
}
