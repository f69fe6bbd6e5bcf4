// Package password implements the signup password policy: composition rules,
// a common-password denylist, and a Shannon-entropy strength score. Validation
// is pure; hashing lives with the callers.
package password

import (
	"math"
	"strings"
	"unicode"
)

const (
	minLength      = 8
	specialChars   = "!@#$%^&*()_+-=[]{}|;:'\",.<>/?`~"
	minEntropyBits = 2.0
	maxRepeatRun   = 2
)

// commonPasswords are rejected outright regardless of composition.
var commonPasswords = map[string]struct{}{
	"password":    {},
	"password1":   {},
	"password123": {},
	"12345678":    {},
	"123456789":   {},
	"qwerty123":   {},
	"qwertyuiop":  {},
	"iloveyou":    {},
	"admin123":    {},
	"welcome1":    {},
	"letmein1":    {},
	"sunshine":    {},
	"princess":    {},
	"football":    {},
	"baseball":    {},
	"superman":    {},
	"trustno1":    {},
	"dragon123":   {},
	"monkey123":   {},
	"abc12345":    {},
}

// Result is the outcome of validating a candidate password.
type Result struct {
	Valid  bool
	Errors []string
	// Score is a 0-10 strength estimate for UI feedback only; it does not
	// gate acceptance beyond the entropy floor.
	Score int
}

// Validate checks the candidate against all policy rules. Every failed rule
// contributes its own error message.
func Validate(pw string) Result {
	var errs []string

	if len(pw) < minLength {
		errs = append(errs, "must be at least 8 characters long")
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(specialChars, r):
			hasSpecial = true
		}
	}
	if !hasUpper {
		errs = append(errs, "must contain an uppercase letter")
	}
	if !hasLower {
		errs = append(errs, "must contain a lowercase letter")
	}
	if !hasDigit {
		errs = append(errs, "must contain a digit")
	}
	if !hasSpecial {
		errs = append(errs, "must contain a special character")
	}

	if hasRepeatRun(pw) {
		errs = append(errs, "must not repeat the same character 3 or more times in a row")
	}

	lower := strings.ToLower(pw)
	if _, ok := commonPasswords[lower]; ok {
		errs = append(errs, "is too common")
	}
	if strings.Contains(lower, "password") {
		errs = append(errs, "must not contain the word password")
	}

	entropy := shannonEntropy(pw)
	if len(pw) > 0 && entropy < minEntropyBits {
		errs = append(errs, "is too predictable")
	}

	return Result{
		Valid:  len(errs) == 0,
		Errors: errs,
		Score:  score(pw, entropy, hasUpper, hasLower, hasDigit, hasSpecial),
	}
}

// hasRepeatRun reports whether pw contains more than maxRepeatRun identical
// consecutive characters.
func hasRepeatRun(pw string) bool {
	run := 0
	var prev rune
	for i, r := range pw {
		if i > 0 && r == prev {
			run++
			if run >= maxRepeatRun {
				return true
			}
		} else {
			run = 0
		}
		prev = r
	}
	return false
}

// shannonEntropy computes per-character entropy in bits over the character
// frequency distribution of pw.
func shannonEntropy(pw string) float64 {
	if pw == "" {
		return 0
	}
	freq := make(map[rune]int)
	total := 0
	for _, r := range pw {
		freq[r]++
		total++
	}
	var entropy float64
	for _, n := range freq {
		p := float64(n) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// score folds length, character classes, and entropy into a 0-10 value.
func score(pw string, entropy float64, upper, lower, digit, special bool) int {
	if pw == "" {
		return 0
	}
	s := 0
	if len(pw) >= minLength {
		s += 2
	}
	if len(pw) >= 12 {
		s++
	}
	for _, has := range []bool{upper, lower, digit, special} {
		if has {
			s++
		}
	}
	s += int(math.Min(entropy, 3.0))
	if s > 10 {
		s = 10
	}
	return s
}
