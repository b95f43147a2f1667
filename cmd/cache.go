/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var cacheLang string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the persisted translation memory",
	Long:  `List, inspect, invalidate and clear the SQLite translation memory.`,
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List translation memory entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		entries, err := db.ListMemory(context.Background(), cacheLang)
		if err != nil {
			return fmt.Errorf("failed to list entries: %w", err)
		}

		if len(entries) == 0 {
			fmt.Println("No entries in translation memory.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tLANG\tSERVICE\tUSED\tLAST USED\tINVALID\tSOURCE\tTRANSLATION")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%v\t%s\t%s\n",
				e.ID, e.Lang, e.ServiceUsed,
				e.UsageCount, e.LastUsed.Format("2006-01-02 15:04"),
				e.Invalidated, snippet(e.SourceText), snippet(e.FinalText))
		}
		return w.Flush()
	},
}

func snippet(s string) string {
	r := []rune(s)
	if len(r) > 40 {
		return string(r[:37]) + "..."
	}
	return s
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show translation memory statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.Stats(context.Background())
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}

		fmt.Printf("Total entries:   %d\n", stats.TotalEntries)
		fmt.Printf("Active entries:  %d\n", stats.ActiveEntries)
		fmt.Printf("Invalid entries: %d\n", stats.InvalidEntries)
		fmt.Printf("Total usage:     %d\n", stats.TotalUsage)
		fmt.Printf("Languages:       %d\n", stats.Languages)
		return nil
	},
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate <id>",
	Short: "Stop serving an entry without deleting it",
	Long: `Mark a translation memory entry invalid. It is no longer served and
the next accepted translation of the same string replaces it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.InvalidateMemory(context.Background(), args[0]); err != nil {
			return fmt.Errorf("failed to invalidate entry: %w", err)
		}
		fmt.Printf("Invalidated entry: %s\n", args[0])
		return nil
	},
}

var cacheDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a translation memory entry by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.DeleteMemory(context.Background(), args[0]); err != nil {
			return fmt.Errorf("failed to delete entry: %w", err)
		}
		fmt.Printf("Deleted entry: %s\n", args[0])
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove entries from translation memory",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.ClearMemory(context.Background(), cacheLang)
		if err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		fmt.Printf("Cleared %d entries from translation memory.\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)

	cacheCmd.PersistentFlags().StringVarP(&cacheLang, "lang", "l", "", "Restrict list and clear to one language")

	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheInvalidateCmd)
	cacheCmd.AddCommand(cacheDeleteCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
