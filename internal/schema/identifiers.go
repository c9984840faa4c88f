package schema

import "fmt"

// ValidateIdentifier checks that a schema, table or column name is safe to
// splice into generated SQL.
//
// Valid identifiers:
// - Start with letter or underscore
// - Contain only letters, digits and underscores
// - Maximum length of 63 characters (PostgreSQL limit)
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("identifier cannot be empty")
	}

	if len(name) > 63 {
		return fmt.Errorf("identifier too long: %d characters (max 63)", len(name))
	}

	if !isValidIdentifierStart(rune(name[0])) {
		return fmt.Errorf("identifier must start with letter or underscore: %q", name)
	}

	for i, r := range name {
		if i == 0 {
			continue
		}
		if !isValidIdentifierChar(r) {
			return fmt.Errorf("identifier contains invalid character %q at position %d: %q", r, i, name)
		}
	}

	return nil
}

func isValidIdentifierStart(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
}

func isValidIdentifierChar(r rune) bool {
	return isValidIdentifierStart(r) || (r >= '0' && r <= '9')
}
