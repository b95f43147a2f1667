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

	"github.com/spf13/cobra"

	"github.com/valpere/autotrad/internal/catalog"
	"github.com/valpere/autotrad/internal/pending"
)

var mergeLang string

var mergeCmd = &cobra.Command{
	Use:   "merge [catalog pending]",
	Short: "Fold a reviewed pending file into a catalog",
	Long: `Union a reviewed pending file into a catalog file. When both contain a
key the pending value wins. A missing catalog is created.

Either name both files, or pass --lang to use the configured directories:
  autotrad merge i18n/autotrad.fr.json i18n/pending/autotrad.pending.fr.json
  autotrad merge --lang fr`,
	Args: func(cmd *cobra.Command, args []string) error {
		if mergeLang != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(2)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		var catalogPath, pendingPath string
		if mergeLang != "" {
			catalogPath = catalog.NewFSSource(cfg.CatalogDir, catalog.DefaultPrefix).Path(mergeLang, ".json")
			pendingPath = pending.New(cfg.PendingDir, logger).Path(mergeLang)
		} else {
			catalogPath, pendingPath = args[0], args[1]
		}

		res, err := catalog.Merge(catalogPath, pendingPath)
		if err != nil {
			return fmt.Errorf("failed to merge: %w", err)
		}
		fmt.Printf("Merged %s into %s: %d added, %d overridden, %d total\n",
			pendingPath, catalogPath, res.Added, res.Overridden, res.Total)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mergeCmd)

	mergeCmd.Flags().StringVarP(&mergeLang, "lang", "l", "", "Merge the pending file of this language into its catalog")
}
