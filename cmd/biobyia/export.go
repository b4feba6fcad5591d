package main

import (
	"fmt"
	"strings"

	"biobyia-go/internal/dataset"
	"biobyia-go/internal/service"

	"github.com/spf13/cobra"
)

var (
	exportFormat    string
	exportOut       string
	exportAnonymize bool
)

var exportCmd = &cobra.Command{
	Use:   "export [dataset.json]",
	Short: "Export the corpus as a fine-tuning dataset",
	Long: `Converts a PubMedQA-style JSON corpus into a fine-tuning file: either an
Alpaca-format JSON array or a ChatML-format JSONL file, one conversation
per line.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "alpaca", "output format: alpaca or chatml")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output path (default derived from the format)")
	exportCmd.Flags().BoolVar(&exportAnonymize, "anonymize", true, "scrub identifiers before exporting")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	ds, err := dataset.Load(args[0])
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}

	exportService := service.NewExportService(exportAnonymize)

	var report *service.ExportReport
	out := exportOut
	switch strings.ToLower(exportFormat) {
	case "alpaca":
		if out == "" {
			out = "dataset_alpaca.json"
		}
		report, err = exportService.ExportAlpaca(ds, out)
	case "chatml":
		if out == "" {
			out = "dataset_chatml.jsonl"
		}
		report, err = exportService.ExportChatML(ds, out)
	default:
		return fmt.Errorf("unknown format %q, expected alpaca or chatml", exportFormat)
	}
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Printf("Exported %d/%d examples to %s (%d skipped)\n", report.Written, report.Total, out, report.Skipped)
	return nil
}
