package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alkime/practice/internal/keyring"
)

// ConfigCmd groups configuration-related subcommands.
type ConfigCmd struct {
	SetKey    SetKeyCmd    `cmd:"" help:"Store a secret in system keychain"`
	DeleteKey DeleteKeyCmd `cmd:"" name:"delete-key" help:"Remove a secret from system keychain"`
	ListKeys  ListKeysCmd  `cmd:"" name:"list-keys" help:"Show which secrets are configured"`
}

// SetKeyCmd stores a secret in the system keychain.
type SetKeyCmd struct {
	Name   string `arg:"" enum:"storage-access,storage-secret,db,redis" help:"Secret name (storage-access, storage-secret, db or redis)"`
	Secret string `arg:"" help:"Secret value"`
}

// Run executes the set-key command.
func (c *SetKeyCmd) Run() error {
	if strings.TrimSpace(c.Secret) == "" {
		return errors.New("secret cannot be empty")
	}

	secret, err := keyring.SecretFromName(c.Name)
	if err != nil {
		return fmt.Errorf("invalid secret: %w", err)
	}

	if err := keyring.Set(secret, c.Secret); err != nil {
		return fmt.Errorf("failed to store secret: %w", err)
	}

	fmt.Printf("%s stored in keychain\n", c.Name)

	return nil
}

// DeleteKeyCmd removes a secret from the system keychain.
type DeleteKeyCmd struct {
	Name string `arg:"" enum:"storage-access,storage-secret,db,redis" help:"Secret name"`
}

// Run executes the delete-key command.
func (c *DeleteKeyCmd) Run() error {
	secret, err := keyring.SecretFromName(c.Name)
	if err != nil {
		return fmt.Errorf("invalid secret: %w", err)
	}

	if err := keyring.Delete(secret); err != nil {
		return err
	}

	fmt.Printf("%s removed from keychain\n", c.Name)

	return nil
}

// ListKeysCmd shows which secrets are configured.
type ListKeysCmd struct{}

// Run executes the list-keys command.
//
//nolint:unparam // error return required by Kong interface
func (c *ListKeysCmd) Run() error {
	allSet := true

	for _, secret := range keyring.AllSecrets() {
		if keyring.IsSet(secret) {
			fmt.Printf("%s: configured\n", secret.DisplayName())
		} else {
			fmt.Printf("%s: not set\n", secret.DisplayName())
			allSet = false
		}
	}

	if !allSet {
		fmt.Println("\nRun 'practice config set-key <name> <value>' to configure.")
		fmt.Println("Environment variables (PRACTICE_STORAGE_ACCESS_KEY, ...) take priority.")
	}

	return nil
}
