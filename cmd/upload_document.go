/*
Copyright © 2025 cmdf
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cmdf/pdfnote-be/logger"
	"github.com/cmdf/pdfnote-be/service"
	"github.com/cmdf/pdfnote-be/utils"
	"github.com/spf13/cobra"
)

// uploadDocumentCmd represents the uploadDocument command
var uploadDocumentCmd = &cobra.Command{
	Use:   "upload-document",
	Short: "Upload PDF files on behalf of a user",
	Long: `Stores one PDF (--file) or every PDF in a directory (--directory) in S3
and registers it for the given user, exactly as the upload endpoint does.

Example:
  pdfnote-be upload-document --user-id 1 --directory ./lectures`,
	RunE: func(cmd *cobra.Command, args []string) error {
		filePath, _ := cmd.Flags().GetString("file")
		directory, _ := cmd.Flags().GetString("directory")
		userID, _ := cmd.Flags().GetInt64("user-id")
		title, _ := cmd.Flags().GetString("title")

		if (filePath == "") == (directory == "") {
			return errors.New("exactly one of --file or --directory is required")
		}
		if userID <= 0 {
			return errors.New("--user-id is required")
		}

		files := []string{filePath}
		if directory != "" {
			var err error
			files, err = listPDFs(directory)
			if err != nil {
				return err
			}
			// A single title makes no sense for many files.
			title = ""
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

		log := logger.WithComponent("upload")
		var failed int
		for _, path := range files {
			id, err := uploadFile(cmd.Context(), c.documents, userID, path, title)
			if err != nil {
				failed++
				log.Error().Err(err).Str("file", path).Msg("upload failed")
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s as document %d\n", path, id)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d uploads failed", failed, len(files))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uploadDocumentCmd)

	uploadDocumentCmd.Flags().StringP("file", "f", "", "Path to the PDF to upload")
	uploadDocumentCmd.Flags().StringP("directory", "d", "", "Directory whose PDFs are uploaded")
	uploadDocumentCmd.Flags().Int64P("user-id", "u", 0, "Owner of the uploaded documents")
	uploadDocumentCmd.Flags().StringP("title", "t", "", "Document title, defaults to the file name")
}

func uploadFile(ctx context.Context, documents service.DocumentService, userID int64, path, title string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat file: %w", err)
	}
	if title == "" {
		title = utils.TitleFromFilename(path)
	}

	doc, err := documents.Upload(ctx, userID, &service.DocumentUpload{
		Title:       title,
		Filename:    filepath.Base(path),
		ContentType: utils.DefaultPDFContentType,
		File:        f,
		Size:        info.Size(),
	})
	if err != nil {
		return 0, err
	}
	return doc.ID, nil
}

func listPDFs(directory string) ([]string, error) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}
		files = append(files, filepath.Join(directory, entry.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no PDF files in %s", directory)
	}
	return files, nil
}
