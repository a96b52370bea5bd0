// Package keyring provides access to the system keychain for storing the
// storage and database secrets.
package keyring

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const serviceName = "practice"

// Secret represents a named secret stored in the keychain.
type Secret string

const (
	// StorageAccessKey is the object storage access key id.
	StorageAccessKey Secret = "storage-access-key"
	// StorageSecretKey is the object storage secret key.
	StorageSecretKey Secret = "storage-secret-key"
	// DBPassword is the password of the audios database user.
	DBPassword Secret = "db-password"
	// RedisPassword is the password of the queue and notifier redis.
	RedisPassword Secret = "redis-password"
)

// AllSecrets returns all known secrets for iteration.
func AllSecrets() []Secret {
	return []Secret{StorageAccessKey, StorageSecretKey, DBPassword, RedisPassword}
}

// DisplayName returns the short name used on the command line.
func (s Secret) DisplayName() string {
	switch s {
	case StorageAccessKey:
		return "storage-access"
	case StorageSecretKey:
		return "storage-secret"
	case DBPassword:
		return "db"
	case RedisPassword:
		return "redis"
	default:
		return string(s)
	}
}

// Get retrieves a secret value from the system keychain.
func Get(secret Secret) (string, error) {
	value, err := keyring.Get(serviceName, string(secret))
	if err != nil {
		return "", fmt.Errorf("failed to get %s from keychain: %w", secret.DisplayName(), err)
	}

	return value, nil
}

// Lookup returns the secret, or empty when the keychain has no entry or is
// unavailable.
func Lookup(secret Secret) string {
	value, err := keyring.Get(serviceName, string(secret))
	if err != nil {
		return ""
	}

	return value
}

// Set stores a secret value in the system keychain.
func Set(secret Secret, value string) error {
	if err := keyring.Set(serviceName, string(secret), value); err != nil {
		return fmt.Errorf("failed to set %s in keychain: %w", secret.DisplayName(), err)
	}

	return nil
}

// Delete removes a secret. Removing a missing secret is not an error.
func Delete(secret Secret) error {
	err := keyring.Delete(serviceName, string(secret))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete %s from keychain: %w", secret.DisplayName(), err)
	}

	return nil
}

// IsSet checks if a secret exists in the keychain.
func IsSet(secret Secret) bool {
	_, err := keyring.Get(serviceName, string(secret))

	return err == nil
}

// SecretFromName maps a display name (e.g., "db") to a Secret.
func SecretFromName(name string) (Secret, error) {
	for _, s := range AllSecrets() {
		if s.DisplayName() == name {
			return s, nil
		}
	}

	return "", fmt.Errorf("unknown secret: %s", name)
}
