// Package ifid genera e valida gli Interactive Fiction ID (Treaty of Babel)
// nel formato UUID maiuscolo usato da Twine.
package ifid

import (
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrInvalidArgument = errors.New("ERROR: IFID cannot be empty.")
	ErrInvalid         = errors.New("ERROR: IFID is not in the proper format.")
)

var ifidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// Generate crea un nuovo IFID (UUID v4 maiuscolo)
func Generate() string {
	return strings.ToUpper(uuid.New().String())
}

// IsValid verifica il formato 8-4-4-4-12 esadecimale, senza distinzione
// tra maiuscole e minuscole
func IsValid(s string) bool {
	return ifidRegex.MatchString(s)
}

// Validate distingue l'argomento mancante dal formato errato
func Validate(s string) error {
	if s == "" {
		return ErrInvalidArgument
	}
	if !IsValid(s) {
		return ErrInvalid
	}
	return nil
}
