// Package security validates user-supplied SQL identifiers and filter
// operators before they reach the query builder
package security

import (
	"fmt"
	"regexp"
	"strings"

	"gorm.io/gorm/clause"
)

// ValidIdentifierRegex matches valid column identifiers
// Only allows lowercase letters, digits, and underscores, starting with a letter or underscore
var ValidIdentifierRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// LikeEscape is the escape character used in LIKE patterns. '!' behaves the
// same on PostgreSQL, MySQL and SQLite, unlike the backslash.
const LikeEscape = "!"

// ValidateIdentifier checks if a string is a valid SQL identifier
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(name) > 63 {
		return fmt.Errorf("identifier too long (max 63 characters)")
	}
	if !ValidIdentifierRegex.MatchString(name) {
		return fmt.Errorf("invalid identifier: must contain only lowercase letters, numbers, and underscores, starting with a letter or underscore")
	}
	if isReservedWord(name) {
		return fmt.Errorf("'%s' is a reserved SQL keyword", name)
	}
	return nil
}

// EscapeLikePattern escapes special characters in LIKE patterns
func EscapeLikePattern(pattern string) string {
	pattern = strings.ReplaceAll(pattern, LikeEscape, LikeEscape+LikeEscape)
	pattern = strings.ReplaceAll(pattern, `%`, LikeEscape+`%`)
	pattern = strings.ReplaceAll(pattern, `_`, LikeEscape+`_`)
	return pattern
}

// isReservedWord checks if a word is a reserved SQL keyword
func isReservedWord(word string) bool {
	reserved := map[string]bool{
		"all": true, "analyse": true, "analyze": true, "and": true, "any": true,
		"array": true, "as": true, "asc": true, "asymmetric": true, "both": true,
		"case": true, "cast": true, "check": true, "collate": true, "column": true,
		"constraint": true, "create": true, "current_catalog": true, "current_date": true,
		"current_role": true, "current_time": true, "current_timestamp": true,
		"current_user": true, "default": true, "deferrable": true, "desc": true,
		"distinct": true, "do": true, "else": true, "end": true, "except": true,
		"false": true, "fetch": true, "for": true, "foreign": true, "from": true,
		"grant": true, "group": true, "having": true, "in": true, "initially": true,
		"intersect": true, "into": true, "lateral": true, "leading": true, "limit": true,
		"localtime": true, "localtimestamp": true, "not": true, "null": true, "offset": true,
		"on": true, "only": true, "or": true, "order": true, "placing": true,
		"primary": true, "references": true, "returning": true, "select": true,
		"session_user": true, "some": true, "symmetric": true, "table": true,
		"then": true, "to": true, "trailing": true, "true": true, "union": true,
		"unique": true, "user": true, "using": true, "variadic": true, "when": true,
		"where": true, "window": true, "with": true,
	}
	return reserved[strings.ToLower(word)]
}

// AllowedFilterOperators lists the comparison operators accepted in filters
var AllowedFilterOperators = map[string]string{
	"eq":      "=",
	"ne":      "<>",
	"gt":      ">",
	"gte":     ">=",
	"lt":      "<",
	"lte":     "<=",
	"in":      "IN",
	"like":    "LIKE",
	"null":    "IS NULL",
	"notnull": "IS NOT NULL",
}

// BuildFilterCondition builds a dialect-neutral filter expression. The
// column is validated, then quoted by the active gorm dialector.
func BuildFilterCondition(column string, operator string, value interface{}) (clause.Expression, error) {
	if err := ValidateIdentifier(column); err != nil {
		return nil, err
	}
	if _, ok := AllowedFilterOperators[operator]; !ok {
		return nil, fmt.Errorf("unsupported filter operator %q", operator)
	}

	col := clause.Column{Name: column}

	switch operator {
	case "null":
		return clause.Eq{Column: col, Value: nil}, nil
	case "notnull":
		return clause.Neq{Column: col, Value: nil}, nil
	case "like":
		pattern := "%" + strings.ToLower(EscapeLikePattern(fmt.Sprintf("%v", value))) + "%"
		return clause.Expr{
			SQL:  "LOWER(?) LIKE ? ESCAPE '" + LikeEscape + "'",
			Vars: []interface{}{col, pattern},
		}, nil
	case "in":
		values, ok := value.([]interface{})
		if !ok {
			values = []interface{}{value}
		}
		return clause.IN{Column: col, Values: values}, nil
	case "ne":
		return clause.Neq{Column: col, Value: value}, nil
	case "gt":
		return clause.Gt{Column: col, Value: value}, nil
	case "gte":
		return clause.Gte{Column: col, Value: value}, nil
	case "lt":
		return clause.Lt{Column: col, Value: value}, nil
	case "lte":
		return clause.Lte{Column: col, Value: value}, nil
	default:
		return clause.Eq{Column: col, Value: value}, nil
	}
}
