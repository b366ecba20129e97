package hash

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

const hexAlphabet = "0123456789abcdef"

// genHexString generates valid 64-character lowercase-hex strings.
func genHexString() gopter.Gen {
	return gen.SliceOfN(Size, gen.RuneRange('a', 'f')).Map(func(runes []rune) string {
		// Mix digits in so the generator covers the full alphabet, not
		// just letters.
		var b strings.Builder
		for i, r := range runes {
			if i%2 == 0 {
				b.WriteByte(hexAlphabet[int(r)%len(hexAlphabet)])
			} else {
				b.WriteRune(r)
			}
		}
		return b.String()
	})
}

func TestProperty_ParseRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("every valid 64-char lowercase-hex string round-trips", prop.ForAll(
		func(s string) bool {
			h, err := Parse(s)
			if err != nil {
				return false
			}
			return h.String() == s
		},
		genHexString(),
	))

	properties.Property("strings of the wrong length never parse", prop.ForAll(
		func(s string) bool {
			if len(s) == Size {
				return true // only wrong-length inputs are under test
			}
			_, err := Parse(s)
			return err != nil
		},
		gen.AlphaString(),
	))

	properties.Property("ordering agrees with lexicographic string order", prop.ForAll(
		func(a, b string) bool {
			ha, err1 := Parse(a)
			hb, err2 := Parse(b)
			if err1 != nil || err2 != nil {
				return false
			}
			return ha.Compare(hb) == strings.Compare(a, b)
		},
		genHexString(),
		genHexString(),
	))

	properties.TestingRun(t)
}

func TestProperty_SumIsPureFunction(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("identical inputs always hash identically", prop.ForAll(
		func(data string) bool {
			return Sum(EventDomain, []byte(data)) == Sum(EventDomain, []byte(data))
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
