package rtd

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Kind selects which closed form of the divergence is evaluated. KindZero
// comes first so that a zero Alpha is the alpha = 0 limit.
type Kind int

const (
	KindZero Kind = iota
	KindFinite
	KindInfinite
)

func (k Kind) String() string {
	switch k {
	case KindZero:
		return "zero"
	case KindInfinite:
		return "infinite"
	default:
		return "finite"
	}
}

// Alpha is the divergence-sensitivity parameter. The branch is decided once
// when the value is parsed; the kernel never compares floats against the
// sentinels again. The zero value is Zero.
type Alpha struct {
	kind  Kind
	value float64
}

var (
	Infinite = Alpha{kind: KindInfinite, value: math.Inf(1)}
	Zero     = Alpha{kind: KindZero}
)

// DefaultAlpha balances sensitivity to the head and to the tail of the
// rank distributions.
const DefaultAlpha = 0.58

var presets = map[string]Alpha{
	"standard":  {kind: KindFinite, value: DefaultAlpha},
	"sensitive": {kind: KindFinite, value: 0.1},
	"robust":    Infinite,
}

// Preset looks up a named alpha: "standard", "sensitive" (tail-weighted) or
// "robust" (head only).
func Preset(name string) (Alpha, error) {
	if a, ok := presets[strings.ToLower(strings.TrimSpace(name))]; ok {
		return a, nil
	}
	return Alpha{}, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "unknown alpha preset %q", name)
}

// Finite returns a general-branch alpha. A value of 0 or +Inf is still
// classified as its sentinel.
func Finite(v float64) Alpha {
	return ParseAlpha(v)
}

// ParseAlpha classifies v without validating it. Negative or NaN values
// land in the finite branch and yield NaN elements.
func ParseAlpha(v float64) Alpha {
	switch {
	case math.IsInf(v, 1):
		return Infinite
	case v == 0:
		return Zero
	default:
		return Alpha{kind: KindFinite, value: v}
	}
}

// NewAlpha is ParseAlpha with the numeric domain enforced: NaN, -Inf and
// negative values are rejected.
func NewAlpha(v float64) (Alpha, error) {
	if math.IsNaN(v) || v < 0 {
		return Alpha{}, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "alpha must be non-negative, got %v", v)
	}
	return ParseAlpha(v), nil
}

// ParseAlphaString accepts "inf", "infinity", "+inf" or any float literal.
func ParseAlphaString(s string) (Alpha, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inf", "+inf", "infinity", "+infinity":
		return Infinite, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return Alpha{}, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "parsing alpha %q: %v", s, err)
	}
	return NewAlpha(v)
}

func (a Alpha) Kind() Kind { return a.kind }

func (a Alpha) Float64() float64 {
	switch a.kind {
	case KindInfinite:
		return math.Inf(1)
	case KindZero:
		return 0
	default:
		return a.value
	}
}

func (a Alpha) String() string {
	switch a.kind {
	case KindInfinite:
		return "inf"
	case KindZero:
		return "0"
	default:
		return strconv.FormatFloat(a.value, 'g', -1, 64)
	}
}

// MarshalJSON encodes the infinite sentinel as the string "inf" since JSON
// has no infinity literal.
func (a Alpha) MarshalJSON() ([]byte, error) {
	if a.kind == KindInfinite {
		return []byte(`"inf"`), nil
	}
	return json.Marshal(a.Float64())
}

func (a *Alpha) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := ParseAlphaString(s)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decoding alpha: %w", err)
	}
	parsed, err := NewAlpha(v)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (a Alpha) MarshalYAML() (any, error) {
	return a.String(), nil
}

func (a *Alpha) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseAlphaString(node.Value)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
