package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_acceptsStrongPasswords(t *testing.T) {
	for _, pw := range []string{
		"Aa1!bcde",
		"C0rrect-Horse7",
		"xY9#longerphrase",
	} {
		res := Validate(pw)
		assert.True(t, res.Valid, "expected %q to pass, errors: %v", pw, res.Errors)
		assert.Empty(t, res.Errors)
	}
}

func TestValidate_compositionRules(t *testing.T) {
	tests := []struct {
		name string
		pw   string
		want string
	}{
		{"too short", "Aa1!bcd", "must be at least 8 characters long"},
		{"no uppercase", "aa1!bcde", "must contain an uppercase letter"},
		{"no lowercase", "AA1!BCDE", "must contain a lowercase letter"},
		{"no digit", "Aaa!bcde", "must contain a digit"},
		{"no special", "Aa1bcdef", "must contain a special character"},
		{"repeat run", "Aa1!bccc", "must not repeat the same character 3 or more times in a row"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := Validate(tc.pw)
			assert.False(t, res.Valid)
			assert.Contains(t, res.Errors, tc.want)
		})
	}
}

func TestValidate_password1(t *testing.T) {
	// The canonical weak password must trip both the denylist and the
	// substring rule.
	res := Validate("password1")
	require.False(t, res.Valid)
	assert.Contains(t, res.Errors, "is too common")
	assert.Contains(t, res.Errors, "must not contain the word password")
}

func TestValidate_passwordSubstringIsCaseInsensitive(t *testing.T) {
	res := Validate("MyPaSsWoRd9!")
	require.False(t, res.Valid)
	assert.Contains(t, res.Errors, "must not contain the word password")
}

func TestValidate_lowEntropyRejected(t *testing.T) {
	// Three distinct characters over twelve: entropy log2(3) < 2 bits.
	res := Validate("A1!A1!A1!A1!")
	assert.Contains(t, res.Errors, "is too predictable")
}

func TestValidate_scoreRange(t *testing.T) {
	for _, pw := range []string{"", "a", "Aa1!bcde", "xY9#much-longer-passphrase"} {
		res := Validate(pw)
		assert.GreaterOrEqual(t, res.Score, 0)
		assert.LessOrEqual(t, res.Score, 10)
	}
	weak := Validate("aaaa")
	strong := Validate("xY9#much-longer-passphrase")
	assert.Greater(t, strong.Score, weak.Score)
}

func TestShannonEntropy(t *testing.T) {
	assert.Equal(t, 0.0, shannonEntropy(""))
	assert.Equal(t, 0.0, shannonEntropy("aaaa"))
	assert.InDelta(t, 1.0, shannonEntropy("abab"), 0.001)
	assert.Greater(t, shannonEntropy("abcdefgh"), shannonEntropy("aabbccdd"))
}

func TestHasRepeatRun(t *testing.T) {
	assert.False(t, hasRepeatRun("aabb"))
	assert.True(t, hasRepeatRun("aaab"))
	assert.True(t, hasRepeatRun("baaa"))
	assert.False(t, hasRepeatRun(""))
}
