//go:build tools

package tools

// Pins the goose CLI for operators who manage the SQL schema by hand.
// Run `go mod tidy` after adding or removing tools here.

import (
	_ "github.com/pressly/goose/v3/cmd/goose"
)
