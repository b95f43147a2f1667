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
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valpere/autotrad/internal/engine"
	"github.com/valpere/autotrad/internal/validator"
)

var (
	editTo   string
	editRole string
)

var editCmd = &cobra.Command{
	Use:   "edit <source> <translation>",
	Short: "Record a manual translation",
	Long: `Record a human translation for a source string. The edit is checked
like machine output and additionally against the length limit of --role.
Accepted edits are stored in the memory, the database and the pending file.

Example:
  autotrad edit "Save changes" "Enregistrer" --to fr --role button`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := validator.ParseRole(editRole)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		target := a.target(editTo)
		if err := a.engine.UpsertTranslation(ctx, args[0], args[1], target, role); err != nil {
			if errors.Is(err, engine.ErrQualityRejected) {
				return fmt.Errorf("edit not saved: %w", err)
			}
			return err
		}
		fmt.Printf("Saved [%s] %q → %q\n", target, args[0], args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(editCmd)

	editCmd.Flags().StringVarP(&editTo, "to", "t", "", "Target locale (default: resolved locale)")
	editCmd.Flags().StringVarP(&editRole, "role", "r", "", "UI role limiting length: label, button, chip, title, caption, error")
}
