// Package sqlutil quotes the table names of the MySQL plan store.
package sqlutil

import (
	"regexp"
	"strings"
)

var identRe = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// TableName prefixes base with the configured table prefix and returns the
// quoted result. Prefixes come from configuration, so the joined name is
// validated before it reaches a statement.
func TableName(prefix, base string) (string, error) {
	return QuoteIdentifierSafe(prefix + base)
}

// QuoteIdentifier wraps name in backticks, doubling any embedded backtick.
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// IsValidIdentifier reports whether name is non-empty and made only of
// ASCII letters, digits and underscores.
func IsValidIdentifier(name string) bool {
	return identRe.MatchString(name)
}

// QuoteIdentifierSafe is QuoteIdentifier for names that passed
// IsValidIdentifier. Any other name yields an *InvalidIdentifierError.
func QuoteIdentifierSafe(name string) (string, error) {
	if !IsValidIdentifier(name) {
		return "", &InvalidIdentifierError{Name: name}
	}
	return QuoteIdentifier(name), nil
}

// InvalidIdentifierError reports a table name that cannot be used unquoted.
type InvalidIdentifierError struct {
	Name string
}

func (e *InvalidIdentifierError) Error() string {
	return "invalid identifier: " + e.Name + " (must contain only alphanumeric characters and underscores)"
}
