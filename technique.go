package jerasure

import (
	"strings"

	"github.com/pkg/errors"
)

// Technique names a coding construction.
type Technique int

const (
	// ReedSolVan is Reed-Solomon with a Vandermonde-derived coding matrix.
	ReedSolVan Technique = iota
	// ReedSolR6Op is the RAID-6 Reed-Solomon code with the P+Q encoder.
	ReedSolR6Op
	// CauchyOrig is Cauchy Reed-Solomon with the original Cauchy matrix.
	CauchyOrig
	// CauchyGood is Cauchy Reed-Solomon with a low-density matrix.
	CauchyGood
	// Liberation is the minimum-density RAID-6 code for prime w.
	Liberation
	// BlaumRoth is the RAID-6 code for prime w+1.
	BlaumRoth
	// Liber8tion is the minimum-density RAID-6 code for w = 8.
	Liber8tion
	// NoCoding splits data without coding devices.
	NoCoding
)

var techniqueNames = map[Technique]string{
	ReedSolVan:  "reed_sol_van",
	ReedSolR6Op: "reed_sol_r6_op",
	CauchyOrig:  "cauchy_orig",
	CauchyGood:  "cauchy_good",
	Liberation:  "liberation",
	BlaumRoth:   "blaum_roth",
	Liber8tion:  "liber8tion",
	NoCoding:    "no_coding",
}

// Techniques lists every technique in declaration order.
func Techniques() []Technique {
	return []Technique{ReedSolVan, ReedSolR6Op, CauchyOrig, CauchyGood, Liberation, BlaumRoth, Liber8tion, NoCoding}
}

func (t Technique) String() string {
	if name, ok := techniqueNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseTechnique returns the technique with the given name. The match is
// case insensitive.
func ParseTechnique(s string) (Technique, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range techniqueNames {
		if name == s {
			return t, nil
		}
	}
	return 0, errors.Wrapf(ErrInvalidParams, "unknown technique %q", s)
}

// MarshalText implements encoding.TextMarshaler
func (t Technique) MarshalText() ([]byte, error) {
	if _, ok := techniqueNames[t]; !ok {
		return nil, errors.Wrapf(ErrInvalidParams, "unknown technique %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *Technique) UnmarshalText(text []byte) error {
	v, err := ParseTechnique(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// UsesBitmatrix reports whether the technique codes with an XOR schedule.
func (t Technique) UsesBitmatrix() bool {
	switch t {
	case CauchyOrig, CauchyGood, Liberation, BlaumRoth, Liber8tion:
		return true
	}
	return false
}
