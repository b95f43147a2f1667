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
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/autotrad/internal/pending"
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Inspect and export strings waiting for review",
	Long: `Every translation the pipeline produces, and every string it could not
translate, is recorded once per language in autotrad.pending.<lang>.json.
Reviewers edit those files and fold them back with "autotrad merge".`,
}

var pendingLang string

var pendingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending files, or the entries of one language",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := pending.New(cfg.PendingDir, logger)

		if pendingLang != "" {
			entries := store.Entries(pendingLang)
			if len(entries) == 0 {
				fmt.Printf("No pending entries for %s.\n", pendingLang)
				return nil
			}
			keys := make([]string, 0, len(entries))
			for k := range entries {
				keys = append(keys, k)
			}
			slices.Sort(keys)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SOURCE\tPENDING\tUNTRANSLATED")
			for _, k := range keys {
				fmt.Fprintf(w, "%s\t%s\t%v\n", k, entries[k], entries[k] == k)
			}
			return w.Flush()
		}

		langs, err := store.Languages()
		if err != nil {
			return fmt.Errorf("failed to list pending files: %w", err)
		}
		if len(langs) == 0 {
			fmt.Println("No pending files.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "LANG\tENTRIES\tFILE")
		for _, lang := range langs {
			fmt.Fprintf(w, "%s\t%d\t%s\n", lang, len(store.Entries(lang)), store.Path(lang))
		}
		return w.Flush()
	},
}

var pendingExportOut string

var pendingExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Bundle every pending file into a zip for reviewers",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := pending.New(cfg.PendingDir, logger)

		out := pendingExportOut
		if out == "" {
			out = pending.ExportName(time.Now())
		}
		if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("failed to create bundle: %w", err)
		}
		manifest, err := store.Export(f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(out)
			return fmt.Errorf("failed to export pending files: %w", err)
		}

		total := 0
		for _, n := range manifest.Files {
			total += n
		}
		fmt.Printf("Exported %d files (%d entries) to %s [%s]\n", len(manifest.Files), total, out, manifest.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pendingCmd)

	pendingListCmd.Flags().StringVarP(&pendingLang, "lang", "l", "", "Show the entries of one language")
	pendingExportCmd.Flags().StringVarP(&pendingExportOut, "out", "o", "", "Bundle path (default: autotrad-pending-<timestamp>.zip)")

	pendingCmd.AddCommand(pendingListCmd)
	pendingCmd.AddCommand(pendingExportCmd)
}
