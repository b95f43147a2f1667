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
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var glossaryCmd = &cobra.Command{
	Use:   "glossary",
	Short: "Pin fixed translations for product terms",
	Long: `Pin the translation of brand names, feature names and other product
terms that machine translation tends to get wrong.

A pinned term is served before any provider whenever a UI string equals it
exactly. Terms pinned without --from apply to strings in any source language; a term pinned for a
specific source language takes precedence. Terms listed under "glossary"
in the config file are applied as well.`,
}

var (
	glossaryFrom string
	glossaryTo   string
)

var glossaryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pinned terms",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		terms, err := db.ListGlossaryTerms(cmd.Context(), glossaryFrom, glossaryTo)
		if err != nil {
			return fmt.Errorf("failed to list pinned terms: %w", err)
		}
		if len(terms) == 0 {
			fmt.Println("No pinned terms.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tFROM\tTO\tTERM\tPINNED AS")
		for _, t := range terms {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.ID, anyLang(t.SourceLang), t.TargetLang, t.SourceTerm, t.TargetTerm)
		}
		return w.Flush()
	},
}

var glossaryAddCmd = &cobra.Command{
	Use:   "add <term> <translation>",
	Short: "Pin the translation of a term for one locale",
	Long: `Pin the translation of a UI term for one target locale. Pinning the same
term again replaces the previous translation.

Examples:
  autotrad glossary add "Dashboard" "Tableau de bord" --to fr
  autotrad glossary add "AutoTrad Pro" "AutoTrad Pro" --to de
  autotrad glossary add "Sign in" "Увійти" --from en --to uk`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if glossaryTo == "" {
			return fmt.Errorf("--to is required")
		}

		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.AddGlossaryTerm(cmd.Context(), glossaryFrom, glossaryTo, args[0], args[1]); err != nil {
			return fmt.Errorf("failed to pin term: %w", err)
		}
		fmt.Printf("Pinned [%s→%s] %q → %q\n", anyLang(glossaryFrom), glossaryTo, args[0], args[1])
		return nil
	},
}

var glossaryDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Unpin a term by its ID from \"glossary list\"",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.DeleteGlossaryTerm(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to unpin term: %w", err)
		}
		fmt.Printf("Unpinned %s\n", args[0])
		return nil
	},
}

// anyLang renders the empty source language of a catch-all term.
func anyLang(lang string) string {
	if lang == "" {
		return "*"
	}
	return lang
}

func init() {
	rootCmd.AddCommand(glossaryCmd)

	glossaryCmd.PersistentFlags().StringVar(&glossaryFrom, "from", "", "Source language of the term (default: any)")
	glossaryCmd.PersistentFlags().StringVarP(&glossaryTo, "to", "t", "", "Target locale, e.g. fr or uk")

	glossaryCmd.AddCommand(glossaryListCmd)
	glossaryCmd.AddCommand(glossaryAddCmd)
	glossaryCmd.AddCommand(glossaryDeleteCmd)
}
