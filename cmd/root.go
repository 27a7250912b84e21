/*
Copyright © 2025 cmdf
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/cmdf/pdfnote-be/config"
	"github.com/cmdf/pdfnote-be/logger"
	"github.com/spf13/cobra"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pdfnote-be",
	Short: "Backend for PDF annotation and document chat",
	Long: `pdfnote-be serves the PDF annotation API: document upload, OCR result
import, highlights and document-grounded chat.

Run "pdfnote-be start" to serve the API and "pdfnote-be migrate" to create
the relational schema.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config/config.yaml", "config file, empty to read the environment only")
}

// loadConfig reads the config file and sets up the global logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}
	return cfg, nil
}
