package local

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goliatone/hashid/pkg/hashid"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// DefaultPasswordCost is the bcrypt cost used by HashPassword.
const DefaultPasswordCost = 12

// Account is a local identity.
type Account struct {
	// UID is derived from Email when empty.
	UID          string `yaml:"uid,omitempty" json:"uid,omitempty"`
	Email        string `yaml:"email" json:"email"`
	PasswordHash string `yaml:"password_hash" json:"password_hash"`
	DisplayName  string `yaml:"display_name,omitempty" json:"display_name,omitempty"`
	AvatarURL    string `yaml:"avatar_url,omitempty" json:"avatar_url,omitempty"`
	// Role is copied into the ID token role claim when set.
	Role string `yaml:"role,omitempty" json:"role,omitempty"`
}

type accountsFile struct {
	Accounts []Account `yaml:"accounts"`
}

// LoadAccounts decodes a YAML document with an `accounts` list.
func LoadAccounts(r io.Reader) ([]Account, error) {
	var doc accountsFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("local: decode accounts: %w", err)
	}
	return doc.Accounts, nil
}

// LoadAccountsFile reads accounts from a YAML file.
func LoadAccountsFile(path string) ([]Account, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("local: open accounts: %w", err)
	}
	defer f.Close()
	return LoadAccounts(f)
}

// HashPassword hashes password with DefaultPasswordCost.
func HashPassword(password string) (string, error) {
	return HashPasswordCost(password, DefaultPasswordCost)
}

// HashPasswordCost hashes password with the given bcrypt cost.
func HashPasswordCost(password string, cost int) (string, error) {
	if password == "" {
		return "", errors.New("local: password must not be empty")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(h), err
}

// DeriveUID returns the stable uid for an email address.
func DeriveUID(email string) (string, error) {
	id, err := hashid.NewUUID(normalizeEmail(email))
	if err != nil {
		return "", fmt.Errorf("local: derive uid: %w", err)
	}
	return id.String(), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (a Account) normalize() (Account, error) {
	a.Email = strings.TrimSpace(a.Email)
	if a.Email == "" {
		return a, errors.New("local: account email is required")
	}
	if a.PasswordHash == "" {
		return a, fmt.Errorf("local: account %s has no password hash", a.Email)
	}
	if a.UID == "" {
		uid, err := DeriveUID(a.Email)
		if err != nil {
			return a, err
		}
		a.UID = uid
	}
	return a, nil
}
