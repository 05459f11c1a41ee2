package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"

	"fleetroute/internal/auth"
)

// token prints a signed API token. The secret comes from JWT_SECRET.
func token(args []string, stdout io.Writer) error {
	_ = godotenv.Load()
	fs := newFlagSet("token", os.Stderr)
	role := fs.String("role", auth.RoleViewer, "viewer or operator")
	sub := fs.String("sub", "", "token subject")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *sub == "" {
		return errors.New("token: -sub is required")
	}
	if *role != auth.RoleViewer && *role != auth.RoleOperator {
		return fmt.Errorf("token: unknown role %q", *role)
	}
	v, err := auth.NewVerifier(auth.ModeHMAC, os.Getenv("JWT_SECRET"))
	if err != nil {
		return err
	}
	tok, err := v.Issue(*sub, *role, *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, tok)
	return err
}
