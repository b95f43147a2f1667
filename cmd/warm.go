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
	"time"

	"github.com/spf13/cobra"
)

var (
	warmTargets  []string
	warmFile     string
	warmDownload bool
)

var warmCmd = &cobra.Command{
	Use:   "warm [text...]",
	Short: "Pre-translate strings so later lookups hit the memory",
	Long: `Translate a set of UI strings in parallel for one or more locales.

Strings come from the arguments, from --file (text lines or catalog keys),
or from stdin. Every string is attempted; those that stay untranslated are
listed at the end and recorded in the pending files.

With --download the on-device models for every target are fetched first,
following the configured download_policy, so warming itself never waits for
a download.

Example:
  autotrad warm --file i18n/autotrad.en.json --to fr,de,uk --download`,
	RunE: func(cmd *cobra.Command, args []string) error {
		literals, err := gatherLiterals(args, warmFile, cmd.InOrStdin())
		if err != nil {
			return err
		}
		if len(literals) == 0 {
			return fmt.Errorf("nothing to warm")
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

		targets := warmTargets
		if len(targets) == 0 {
			targets = []string{a.resolver.Current()}
		}

		if warmDownload {
			if err := preDownload(ctx, a, targets); err != nil {
				return err
			}
		}

		var failed int
		for _, tag := range targets {
			start := time.Now()
			err := a.engine.Warm(ctx, literals, tag)
			missed := countErrors(err)
			if missed > 0 {
				fmt.Fprintf(os.Stderr, "%s: untranslated:\n%v\n", tag, err)
			}
			failed += missed
			fmt.Printf("Warmed %s: %d strings, %d untranslated (%s)\n",
				tag, len(literals), missed, time.Since(start).Round(time.Millisecond))
		}

		snap := a.engine.Telemetry().Snapshot()
		fmt.Printf("Memory hits: %d, translated: %d (avg %s), rejected: %d\n",
			snap.TMHits, snap.MTCalls, snap.AverageMT().Round(time.Millisecond), snap.QualityRejects)
		if failed > 0 {
			fmt.Printf("Pending review files: %s\n", a.pending.Dir())
		}
		return ctx.Err()
	},
}

// preDownload fetches the on-device models from the default source into
// every target. Pairs that fail are reported and skipped.
func preDownload(ctx context.Context, a *app, targets []string) error {
	od := a.onDevice()
	if od == nil {
		return fmt.Errorf("--download needs the ondevice provider in the chain")
	}
	start := time.Now()
	err := od.PreDownload(ctx, cfg.DefaultSource, targets...)
	if n := countErrors(err); n > 0 {
		fmt.Fprintf(os.Stderr, "Model download failed for %d pairs:\n%v\n", n, err)
	}
	fmt.Printf("Model download finished (%s)\n", time.Since(start).Round(time.Millisecond))
	return ctx.Err()
}

// countErrors counts the failures joined into err.
func countErrors(err error) int {
	if err == nil {
		return 0
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return len(joined.Unwrap())
	}
	return 1
}

func init() {
	rootCmd.AddCommand(warmCmd)

	warmCmd.Flags().StringSliceVarP(&warmTargets, "to", "t", nil, "Target locales, comma separated (default: resolved locale)")
	warmCmd.Flags().StringVarP(&warmFile, "file", "f", "", "Read strings from a text file or catalog")
	warmCmd.Flags().BoolVar(&warmDownload, "download", false, "Download on-device models for every target first")
}
