package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/avstack-io/helmsman/internal/recorder"
)

var sessionsRoot string

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect recording sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recording sessions",
	Long:  `List the recording sessions under the sessions root, newest first.`,
	RunE:  runSessionsList,
}

func init() {
	sessionsListCmd.Flags().StringVar(&sessionsRoot, "root", "",
		"Sessions root directory (default from config)")
	sessionsCmd.AddCommand(sessionsListCmd)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	root := sessionsRoot
	if root == "" {
		root = appConfig.Core.SessionsDir
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			cmd.Printf("No sessions found under %s\n", root)
			return nil
		}
		return fmt.Errorf("failed to read sessions root %s: %w", root, err)
	}

	type row struct {
		dir  string
		meta *recorder.Meta
	}
	var rows []row
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		meta, err := recorder.ReadMeta(dir)
		if err != nil {
			continue // not a session directory
		}
		rows = append(rows, row{dir: entry.Name(), meta: meta})
	}
	if len(rows) == 0 {
		cmd.Printf("No sessions found under %s\n", root)
		return nil
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].meta.StartedAt.After(rows[j].meta.StartedAt)
	})

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tMISSION\tSTARTED\tEXIT REASON")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			r.dir, r.meta.Mission,
			r.meta.StartedAt.Format("2006-01-02 15:04:05"),
			r.meta.ExitReason)
	}
	return w.Flush()
}
