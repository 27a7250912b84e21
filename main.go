/*
Copyright © 2025 cmdf
*/
package main

import (
	"fmt"
	"os"

	"github.com/cmdf/pdfnote-be/cmd"
	"github.com/joho/godotenv"
)

func main() {
	cmd.Execute()
}

func init() {
	// Deployments usually set the environment directly.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "Error loading .env file:", err)
	}
}
