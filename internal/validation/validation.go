package validation

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode"
)

// Rule is one declarative field check: a predicate plus the violation
// message reported when it fails.
type Rule struct {
	Check   func(value string) bool
	Message string
}

// FieldRules binds an ordered rule list to a named request field.
type FieldRules struct {
	Field string
	Rules []Rule
}

// Validate runs every rule against the matching field value and collects
// all violations. An empty result means the request passes.
func Validate(ruleSets []FieldRules, values map[string]string) []string {
	var violations []string
	for _, fr := range ruleSets {
		value := values[fr.Field]
		for _, rule := range fr.Rules {
			if !rule.Check(value) {
				violations = append(violations, rule.Message)
			}
		}
	}
	return violations
}

var fullNameRe = regexp.MustCompile(`^[\p{L} \t]+$`)

// EmailRules validates the email field shape. Values must be normalized
// with NormalizeEmail before lookups or storage.
func EmailRules() FieldRules {
	return FieldRules{
		Field: "email",
		Rules: []Rule{
			{Check: isEmail, Message: "email must be a valid email address"},
		},
	}
}

// FullNameRules rejects anything other than letters and whitespace.
func FullNameRules() FieldRules {
	return FieldRules{
		Field: "fullName",
		Rules: []Rule{
			{
				Check:   func(v string) bool { return fullNameRe.MatchString(v) },
				Message: "fullName must contain only letters and spaces",
			},
		},
	}
}

// PasswordRules enforces the strength policy: at least 8 characters with
// one uppercase letter, one lowercase letter, one digit and one symbol.
func PasswordRules() FieldRules {
	return FieldRules{
		Field: "password",
		Rules: []Rule{
			{
				Check:   func(v string) bool { return len(v) >= 8 },
				Message: "password must be at least 8 characters long",
			},
			{
				Check:   hasClass(unicode.IsUpper),
				Message: "password must contain an uppercase letter",
			},
			{
				Check:   hasClass(unicode.IsLower),
				Message: "password must contain a lowercase letter",
			},
			{
				Check:   hasClass(unicode.IsDigit),
				Message: "password must contain a digit",
			},
			{
				Check:   hasClass(isSymbol),
				Message: "password must contain a symbol",
			},
		},
	}
}

// NormalizeEmail lowercases and trims an address before comparison or
// storage, so uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isEmail(v string) bool {
	if v == "" {
		return false
	}
	addr, err := mail.ParseAddress(v)
	// Reject the "Name <addr>" form; only a bare address is a valid value.
	return err == nil && addr.Address == v
}

func hasClass(class func(rune) bool) func(string) bool {
	return func(v string) bool {
		for _, r := range v {
			if class(r) {
				return true
			}
		}
		return false
	}
}

func isSymbol(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r)
}
