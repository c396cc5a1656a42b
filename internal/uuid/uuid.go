// Package uuid generates UUIDv7 identifiers for primary keys. UUIDv7 is
// time-ordered, so keys cluster by insertion time in the database index.
package uuid

import googleuuid "github.com/google/uuid"

// New returns a new UUIDv7 string. If the system entropy source fails it
// falls back to a random UUIDv4.
func New() string {
	id, err := googleuuid.NewV7()
	if err != nil {
		return googleuuid.NewString()
	}
	return id.String()
}

// Parse validates a UUID string and returns its canonical form.
func Parse(s string) (string, error) {
	parsed, err := googleuuid.Parse(s)
	if err != nil {
		return "", err
	}
	return parsed.String(), nil
}

// IsValid reports whether s is a well-formed UUID.
func IsValid(s string) bool {
	_, err := googleuuid.Parse(s)
	return err == nil
}
