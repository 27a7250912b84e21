/*
Copyright © 2025 cmdf
*/
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/cmdf/pdfnote-be/service"
	"github.com/cmdf/pdfnote-be/types"
	"github.com/spf13/cobra"
)

var importOCRCmd = &cobra.Command{
	Use:   "import-ocr",
	Short: "Run the OCR import for a stored document",
	Long: `Calls the OCR service for a document and stores its pages, figures and
matched texts. With --payload a saved OCR response is imported instead and
the OCR service is not called.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pdfID, _ := cmd.Flags().GetInt64("pdf-id")
		userID, _ := cmd.Flags().GetInt64("user-id")
		payloadPath, _ := cmd.Flags().GetString("payload")
		replace, _ := cmd.Flags().GetBool("replace")
		if pdfID <= 0 || userID <= 0 {
			return errors.New("--pdf-id and --user-id are required")
		}

		var payload []byte
		if payloadPath != "" {
			var err error
			if payload, err = os.ReadFile(payloadPath); err != nil {
				return fmt.Errorf("failed to read payload: %w", err)
			}
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		c, err := newCore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		opts := service.ImportOptions{Replace: replace}
		var resp *types.OCRImportResponse
		if payload != nil {
			resp, err = c.importer.ImportPayload(cmd.Context(), userID, pdfID, payload, opts)
		} else {
			resp, err = c.importer.Import(cmd.Context(), userID, pdfID, opts)
		}
		if err != nil {
			var gw *service.OCRGatewayError
			if errors.As(err, &gw) && gw.Raw != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "OCR service answered %d: %s\n", gw.Status, gw.Raw)
			}
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

func init() {
	rootCmd.AddCommand(importOCRCmd)

	importOCRCmd.Flags().Int64("pdf-id", 0, "Document to import OCR output for")
	importOCRCmd.Flags().Int64("user-id", 0, "Owner of the document")
	importOCRCmd.Flags().String("payload", "", "Import a saved OCR response from this file")
	importOCRCmd.Flags().Bool("replace", false, "Delete the document's existing OCR rows first")
}
