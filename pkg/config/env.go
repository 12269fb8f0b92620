package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Credentials holds the experiment database login
type Credentials struct {
	Username string
	Password string
}

// LoadEnv loads .env files into the process environment. Missing files are
// skipped; variables already set are not overridden.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load env file %s: %w", p, err)
		}
	}
	return nil
}

// Credentials reads the configured username and password variables
func (n *Nomad) Credentials() (Credentials, error) {
	creds := Credentials{
		Username: os.Getenv(n.UsernameEnv),
		Password: os.Getenv(n.PasswordEnv),
	}
	if creds.Username == "" || creds.Password == "" {
		return Credentials{}, fmt.Errorf("credentials not set: %s and %s are required", n.UsernameEnv, n.PasswordEnv)
	}
	return creds, nil
}
