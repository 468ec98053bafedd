package vir

import "fmt"

// Frac is an exact rational permission amount in (0, 1]. 1 denotes exclusive
// permission, anything below is shared read-only. Values are normalized and
// immutable.
type Frac struct {
	num uint64
	den uint64
}

// Full is the exclusive permission amount.
var Full = Frac{num: 1, den: 1}

// NewFrac builds a normalized fraction. The amount must lie in (0, 1].
func NewFrac(num, den uint64) (Frac, error) {
	if den == 0 {
		return Frac{}, fmt.Errorf("vir: fraction %d/0 has zero denominator", num)
	}
	if num == 0 || num > den {
		return Frac{}, fmt.Errorf("vir: fraction %d/%d outside (0, 1]", num, den)
	}
	g := gcd(num, den)
	return Frac{num: num / g, den: den / g}, nil
}

// MustFrac is NewFrac for literals known valid at compile time.
func MustFrac(num, den uint64) Frac {
	f, err := NewFrac(num, den)
	if err != nil {
		panic(err)
	}
	return f
}

// IsValid reports whether the fraction was properly constructed.
func (f Frac) IsValid() bool {
	return f.den != 0
}

// IsFull reports exclusive permission.
func (f Frac) IsFull() bool {
	return f.num == f.den && f.den != 0
}

func (f Frac) Equal(other Frac) bool {
	return f.num == other.num && f.den == other.den
}

// Mul returns the product, normalized.
func (f Frac) Mul(other Frac) Frac {
	// Cross-reduce before multiplying to keep the factors small.
	g1 := gcd(f.num, other.den)
	g2 := gcd(other.num, f.den)
	return Frac{
		num: (f.num / g1) * (other.num / g2),
		den: (f.den / g2) * (other.den / g1),
	}
}

// Less reports f < other.
func (f Frac) Less(other Frac) bool {
	return f.num*other.den < other.num*f.den
}

// Sub returns f - other. The result must stay positive; subtracting the whole
// amount is signalled by ok=false with a zero Frac.
func (f Frac) Sub(other Frac) (Frac, bool) {
	if f.Equal(other) {
		return Frac{}, false
	}
	num := f.num*other.den - other.num*f.den
	den := f.den * other.den
	g := gcd(num, den)
	return Frac{num: num / g, den: den / g}, true
}

// Add returns the sum, normalized. Sums above 1 are representable but violate
// the caller's discipline; they are not rejected here.
func (f Frac) Add(other Frac) Frac {
	if !f.IsValid() {
		return other
	}
	num := f.num*other.den + other.num*f.den
	den := f.den * other.den
	g := gcd(num, den)
	return Frac{num: num / g, den: den / g}
}

// Num returns the normalized numerator.
func (f Frac) Num() uint64 { return f.num }

// Den returns the normalized denominator.
func (f Frac) Den() uint64 { return f.den }

func (f Frac) String() string {
	if !f.IsValid() {
		return "0/0"
	}
	if f.IsFull() {
		return "1"
	}
	return fmt.Sprintf("%d/%d", f.num, f.den)
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}
