package operator

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const DefaultName = "operator"

var ErrInvalidCredentials = errors.New("invalid credentials")

// Credentials describe the single operator allowed to change stock over HTTP.
type Credentials struct {
	Name string
	Hash []byte
}

func NewCredentials(name, hash string) (*Credentials, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, err
	}
	return &Credentials{Name: name, Hash: []byte(hash)}, nil
}

func (c *Credentials) Verify(name, password string) error {
	if strings.TrimSpace(name) != c.Name {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(c.Hash, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// HashPassword hashes password exactly as given; Verify compares the same bytes.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}
