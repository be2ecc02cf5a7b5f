/*
Package main provides the CLI entry point for Mailrise.
*/
package main

import (
	"os"

	"github.com/oarkflow/mailrise/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
