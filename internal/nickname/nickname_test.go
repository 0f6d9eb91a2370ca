package nickname

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCaseFolds(t *testing.T) {
	assert.Equal(t, Normalize("Skyline"), Normalize("SKYLINE"))
	assert.Equal(t, "skyline", Normalize("  Skyline  "))
}

func TestNormalizeAppliesNFKC(t *testing.T) {
	// Fullwidth forms compose to ASCII
	assert.Equal(t, "abc", Normalize("Ａｂｃ"))
	// Ligatures decompose
	assert.Equal(t, "fish", Normalize("ﬁsh"))
}

func TestIsValid(t *testing.T) {
	valid := []string{"abc", "a.b-c_1", "Überfan", "日本の城主", "  padded  ", "0123456789"}
	for _, s := range valid {
		assert.True(t, IsValid(s), "expected %q valid", s)
	}

	invalid := []string{"", "ab", "01234567890", "has space", "semi;colon", "at@sign", "a b"}
	for _, s := range invalid {
		assert.False(t, IsValid(s), "expected %q invalid", s)
	}
}

func TestSanitizeAutoCandidate(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"Jane Doe", "Jane_Doe", true},
		{"jane.doe", "jane.doe", true},
		{"a!!!b cd", "a_b_cd", true},
		{"Christopher Robin", "Christophe", true},
		{"  Explorer  ", "Explorer", true},
		{"___x___", "", false},
		{"!!", "", false},
		{"", "", false},
		{"ab", "", false},
	}

	for _, tc := range cases {
		out, ok := SanitizeAutoCandidate(tc.in)
		assert.Equal(t, tc.ok, ok, "ok mismatch for %q", tc.in)
		assert.Equal(t, tc.out, out, "output mismatch for %q", tc.in)
	}
}

func TestSanitizeAutoCandidateCollapsesSeparatorRuns(t *testing.T) {
	out, ok := SanitizeAutoCandidate("a  __  b")
	assert.True(t, ok)
	assert.Equal(t, "a_b", out)
}

func TestSanitizeAutoCandidateResultIsValid(t *testing.T) {
	inputs := []string{"Jane Doe", "x y z w", "big--name--here", "dots.every.where"}
	for _, in := range inputs {
		if out, ok := SanitizeAutoCandidate(in); ok {
			assert.True(t, IsValid(out), "sanitized %q -> %q should be valid", in, out)
		}
	}
}
