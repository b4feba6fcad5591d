package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"biobyia-go/internal/model"

	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Print the persisted ingestion run history, newest first",
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "maximum number of runs to show")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	runRepo := openRunRepository()
	if runRepo == nil {
		return errors.New("run history requires database.mysql.dsn")
	}

	runs, err := runRepo.FindRecent(runsLimit)
	if err != nil {
		return fmt.Errorf("failed to load run history: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tSOURCE\tINDEX\tCHUNKS\tVECTORS\tERRORS\tINTERRUPTED")
	for _, run := range runs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\t%d\t%v\n",
			run.ID,
			formatRunTime(run.StartedAt),
			run.Source,
			run.IndexName,
			run.TotalChunks,
			run.VectorsWritten,
			run.ErrorCount,
			run.Interrupted,
		)
	}
	return w.Flush()
}

func formatRunTime(t model.LocalTime) string {
	return time.Time(t).Format("2006-01-02 15:04:05")
}
