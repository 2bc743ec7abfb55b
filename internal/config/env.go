package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const maxNumberedCredentials = 32

// LoadEnv loads variables from a dotenv file without overriding the process
// environment. A missing file is not an error.
func LoadEnv(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: load env file %s: %w", ErrConfig, path, err)
	}
	return nil
}

// CredentialsFromEnv reads NAVER_CLIENT_ID/NAVER_CLIENT_SECRET followed by the
// numbered pairs NAVER_CLIENT_ID_1.._N, preserving that order.
func CredentialsFromEnv() []Credential {
	var creds []Credential
	add := func(suffix string) {
		id := strings.TrimSpace(os.Getenv("NAVER_CLIENT_ID" + suffix))
		secret := strings.TrimSpace(os.Getenv("NAVER_CLIENT_SECRET" + suffix))
		if id != "" && secret != "" {
			creds = append(creds, Credential{ClientID: id, ClientSecret: secret})
		}
	}
	add("")
	for i := 1; i <= maxNumberedCredentials; i++ {
		add("_" + strconv.Itoa(i))
	}
	return creds
}
