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
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/autotrad/internal/translator"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Check which providers of the chain are usable",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		services, closers, err := buildServices(cfg, db)
		if err != nil {
			return err
		}
		defer func() {
			for _, c := range closers {
				c.Close()
			}
		}()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "#\tPROVIDER\tSTATUS")
		for i, svc := range services {
			status := "ok"
			if checker, ok := svc.(translator.Checker); ok {
				checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				if err := checker.IsAvailable(checkCtx); err != nil {
					status = err.Error()
				}
				cancel()
			}
			fmt.Fprintf(w, "%d\t%s\t%s\n", i+1, svc.Name(), status)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(providersCmd)
}
