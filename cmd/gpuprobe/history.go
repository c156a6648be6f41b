package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/benaskins/gpuprobe/internal/audit"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent probes",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, _ := cmd.Flags().GetInt("lines")
		jsonOut, _ := cmd.Flags().GetBool("json")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.AuditLog == "" {
			return fmt.Errorf("probe history is disabled; set audit_log (e.g. ~/.gpuprobe/probes.log) in %s", configFile())
		}

		entries, err := audit.Tail(cfg.AuditLog, n)
		if err != nil {
			return err
		}
		if jsonOut {
			if entries == nil {
				entries = []audit.Entry{}
			}
			return printJSON(entries)
		}
		if len(entries) == 0 {
			fmt.Println("No probes recorded")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tSOURCE\tMPS\tGPUS\tDURATION\tSTATUS\tERROR")
		for _, e := range entries {
			status := "-"
			if e.Status != 0 {
				status = fmt.Sprintf("%d", e.Status)
			}
			errMsg := "-"
			if e.Error != "" {
				errMsg = e.Error
			}
			fmt.Fprintf(w, "%s\t%s\t%t\t%d\t%s\t%s\t%s\n",
				e.Timestamp.Local().Format(time.DateTime), e.Source, e.HasMPS, e.GPUs,
				time.Duration(e.DurationMS)*time.Millisecond, status, errMsg)
		}
		return w.Flush()
	},
}

func init() {
	historyCmd.Flags().IntP("lines", "n", 20, "number of probes to show")
	historyCmd.Flags().Bool("json", false, "print entries as JSON")
	rootCmd.AddCommand(historyCmd)
}
