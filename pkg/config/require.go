package config

import (
	"errors"
	"fmt"
	"strings"
)

func requireNonEmpty(value, envName string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env %s", envName)
	}
	return nil
}

// Validate reports every missing required key at once.
func (c Config) Validate() error {
	return errors.Join(
		requireNonEmpty(c.DatabaseURL, "DATABASE_URL"),
		requireNonEmpty(string(c.JWTSecret), "JWT_SECRET"),
		s3Pair(c.S3),
	)
}

func s3Pair(s S3Config) error {
	if s.Bucket == "" {
		return nil
	}
	if (s.AccessKeyID == "") != (s.SecretAccessKey == "") {
		return errors.New("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY must be set together")
	}
	return nil
}
