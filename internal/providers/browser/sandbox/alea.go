package sandbox

import "unicode/utf16"

const twoPow32 = 4294967296.0
const twoPowNeg32 = 2.3283064365386963e-10

// Alea is Johannes Baagøe's Alea generator, producing the same sequence
// as seedrandom.alea for the same seed string. Widgets rely on that to
// get identical random() values wherever they run.
//
// Products are wrapped in float64() to stop the compiler fusing them
// into FMA instructions, which would change the sequence.
type Alea struct {
	s0, s1, s2 float64
	c          float64
}

// NewAlea seeds a generator from a string
func NewAlea(seed string) *Alea {
	m := newMash()
	a := &Alea{c: 1}
	a.s0 = m.mash(" ")
	a.s1 = m.mash(" ")
	a.s2 = m.mash(" ")

	a.s0 -= m.mash(seed)
	if a.s0 < 0 {
		a.s0++
	}
	a.s1 -= m.mash(seed)
	if a.s1 < 0 {
		a.s1++
	}
	a.s2 -= m.mash(seed)
	if a.s2 < 0 {
		a.s2++
	}
	return a
}

// Float64 returns the next value in [0, 1)
func (a *Alea) Float64() float64 {
	t := float64(2091639*a.s0) + float64(a.c*twoPowNeg32)
	a.s0 = a.s1
	a.s1 = a.s2
	a.c = float64(int64(t))
	a.s2 = t - a.c
	return a.s2
}

type mash struct {
	n float64
}

func newMash() *mash {
	return &mash{n: 0xefc8249d}
}

// mash folds the UTF-16 code units of data into the running state
func (m *mash) mash(data string) float64 {
	for _, unit := range utf16.Encode([]rune(data)) {
		m.n += float64(unit)
		h := float64(0.02519603282416938 * m.n)
		m.n = toUint32(h)
		h -= m.n
		h = float64(h * m.n)
		m.n = toUint32(h)
		h -= m.n
		m.n += float64(h * twoPow32)
	}
	return float64(toUint32(m.n) * twoPowNeg32)
}

// toUint32 mirrors the JavaScript `x >>> 0` for non-negative x
func toUint32(x float64) float64 {
	return float64(uint32(uint64(x)))
}
