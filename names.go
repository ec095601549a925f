package dbus

const (
	nameMinLength = 2
	nameMaxLength = 255
)

func isNameLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '_'
}

func isNameDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// validateName implements the structural rules shared by interface,
// bus and error names: length bounds, a kind-specific scan of the
// name's characters, and trailing/consecutive '.' checks.
func validateName(kind, s string, validateInner func(s string) (int, string, bool)) error {
	if len(s) <= nameMinLength {
		return &ValidationError{kind, s, "too_short", 0}
	}
	if len(s) > nameMaxLength {
		return &ValidationError{kind, s, "too_long", len(s)}
	}
	if idx, code, ok := validateInner(s); !ok {
		return &ValidationError{kind, s, code, idx}
	}
	if s[len(s)-1] == '.' {
		return &ValidationError{kind, s, "trailing_dot", len(s) - 1}
	}
	for i := 1; i < len(s); i++ {
		if s[i] == '.' && s[i-1] == '.' {
			return &ValidationError{kind, s, "multiple_dots", i}
		}
	}
	return nil
}

// NewInterfaceName validates s as a DBus interface name:
// '.'-separated elements, each made up of "[A-Za-z0-9_]" and not
// starting with a digit. The number of elements is not checked, so a
// name without any '.' is accepted.
func NewInterfaceName(s string) (string, error) {
	if err := validateName("interface name", s, validateInterfaceLikeInner); err != nil {
		return "", err
	}
	return s, nil
}

// NewErrorName validates s as a DBus error name. Error names follow
// the same rules as interface names.
func NewErrorName(s string) (string, error) {
	if err := validateName("error name", s, validateInterfaceLikeInner); err != nil {
		return "", err
	}
	return s, nil
}

func validateInterfaceLikeInner(s string) (int, string, bool) {
	if !isNameLetter(s[0]) {
		return 0, "invalid_character", false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if !(isNameLetter(c) || isNameDigit(c) || c == '.') {
			return i, "invalid_character", false
		}
		if isNameDigit(c) && s[i-1] == '.' {
			return i, "invalid_character", false
		}
	}
	return 0, "", true
}

// NewBusName validates s as a DBus bus name, either a well-known name
// or a unique connection name (one that starts with ':').
func NewBusName(s string) (string, error) {
	if err := validateName("bus name", s, validateBusNameInner); err != nil {
		return "", err
	}
	return s, nil
}

func validateBusNameInner(s string) (int, string, bool) {
	unique := s[0] == ':'
	if !(isNameLetter(s[0]) || unique) {
		return 0, "invalid_character", false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if isNameLetter(c) || c == '.' || c == '-' {
			continue
		}
		if isNameDigit(c) && unique {
			continue
		}
		return i, "invalid_character", false
	}
	return 0, "", true
}

// NewMemberName validates s as a DBus member (method or signal) name:
// "[A-Za-z0-9_]", not starting with a digit, and containing no '.'
// characters.
func NewMemberName(s string) (string, error) {
	if len(s) <= nameMinLength {
		return "", &ValidationError{"member name", s, "too_short", 0}
	}
	if len(s) > nameMaxLength {
		return "", &ValidationError{"member name", s, "too_long", len(s)}
	}
	if !isNameLetter(s[0]) {
		return "", &ValidationError{"member name", s, "invalid_character", 0}
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if !(isNameLetter(c) || isNameDigit(c)) {
			return "", &ValidationError{"member name", s, "invalid_character", i}
		}
	}
	return s, nil
}
