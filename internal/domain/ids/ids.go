package ids

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Length is the number of characters in a generated record identifier.
// With the 64-symbol URL-safe alphabet this gives 2^48 possible values.
const Length = 8

var (
	idRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

	ErrInvalidID         = errors.New("invalid id")
	ErrInvalidBaseURL    = errors.New("invalid base url")
	ErrInvalidEntityPath = errors.New("invalid entity path")
)

// Generator produces new record identifiers.
type Generator func() (string, error)

// New generates a random URL-safe identifier of Length characters.
func New() (string, error) {
	id, err := gonanoid.New(Length)
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return id, nil
}

// IsID reports whether value only uses the URL-safe identifier alphabet.
// Identifiers of any length are accepted so hand-edited documents keep working.
func IsID(value string) bool {
	return idRegex.MatchString(strings.TrimSpace(value))
}

// ValidateID validates an identifier string.
func ValidateID(value string) error {
	if !IsID(value) {
		return ErrInvalidID
	}
	return nil
}

// BuildCanonicalURI creates an absolute URI for a record, e.g.
// http://localhost:8080/events/0kFaJHB2.
func BuildCanonicalURI(baseURL, entityPath, id string) (string, error) {
	if err := ValidateID(id); err != nil {
		return "", err
	}

	base := strings.TrimSpace(baseURL)
	if base == "" {
		return "", ErrInvalidBaseURL
	}
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Host == "" {
		return "", ErrInvalidBaseURL
	}

	cleanEntityPath := strings.Trim(strings.TrimSpace(entityPath), "/")
	if cleanEntityPath == "" {
		return "", ErrInvalidEntityPath
	}

	prefix := strings.TrimSuffix(parsed.Path, "/")
	return fmt.Sprintf("%s://%s%s/%s/%s", parsed.Scheme, parsed.Host, prefix, cleanEntityPath, strings.TrimSpace(id)), nil
}
