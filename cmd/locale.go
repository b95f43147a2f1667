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
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/autotrad/internal/locale"
)

var localeCmd = &cobra.Command{
	Use:   "locale",
	Short: "Show or change the effective locale",
	Long: `Inspect how the effective locale is resolved and change the persisted
user language choice.

The policy mode (hybrid, follow-system, user-selected, auto-by-location),
the supported locales and the fallback chain come from the config file.`,
}

// withResolver opens the store and runs fn against a freshly computed
// resolver.
func withResolver(cmd *cobra.Command, fn func(ctx context.Context, r *locale.Resolver) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	r := newResolver(db)
	r.Recompute(ctx)
	return fn(ctx, r)
}

func printEffective(tag string) {
	dir := "ltr"
	if locale.IsRTL(tag) {
		dir = "rtl"
	}
	fmt.Printf("Effective locale: %s (%s)\n", tag, dir)
}

var localeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the policy, the signals and the effective locale",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withResolver(cmd, func(ctx context.Context, r *locale.Resolver) error {
			p := r.Policy()
			fmt.Printf("Mode:           %s\n", p.Mode)
			if p.Mode == locale.UserSelected {
				fmt.Printf("Policy tag:     %s\n", p.Tag)
			}
			fmt.Printf("Supported:      %s\n", strings.Join(p.Supported, ", "))
			fmt.Printf("Fallback chain: %s\n", strings.Join(p.FallbackChain, ", "))
			fmt.Printf("System locale:  %s\n", locale.EnvSystemLocale())
			choice := r.UserChoice(ctx)
			if choice.Kind == locale.ChoiceNone {
				fmt.Println("User choice:    (none)")
			} else {
				fmt.Printf("User choice:    %s\n", choice)
			}
			printEffective(r.Current())
			return nil
		})
	},
}

var localeSetCmd = &cobra.Command{
	Use:   "set <tag>",
	Short: "Persist a user language choice",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withResolver(cmd, func(ctx context.Context, r *locale.Resolver) error {
			printEffective(r.SetUserLanguage(ctx, args[0]))
			return nil
		})
	},
}

var localeSystemCmd = &cobra.Command{
	Use:   "system",
	Short: "Persist an explicit choice to follow the system language",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withResolver(cmd, func(ctx context.Context, r *locale.Resolver) error {
			printEffective(r.UseSystemLanguage(ctx))
			return nil
		})
	},
}

var localeClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the persisted user language choice",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withResolver(cmd, func(ctx context.Context, r *locale.Resolver) error {
			printEffective(r.ClearUserLanguage(ctx))
			return nil
		})
	},
}

var localeWatchInterval time.Duration

var localeWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the effective locale every time it changes",
	Long: `Re-resolve the locale every --interval and print each change until
interrupted. Changes made with "autotrad locale set" from another shell show
up on the next tick.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if localeWatchInterval <= 0 {
			return fmt.Errorf("--interval must be positive")
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()

		return withResolver(cmd, func(_ context.Context, r *locale.Resolver) error {
			return watchLocale(ctx, r, localeWatchInterval, os.Stdout)
		})
	},
}

// watchLocale recomputes r every interval and writes each new effective
// locale to w. It returns once ctx is done.
func watchLocale(ctx context.Context, r *locale.Resolver, interval time.Duration, w io.Writer) error {
	updates := r.Watch(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case tag, ok := <-updates:
			if !ok {
				return nil
			}
			dir := "ltr"
			if locale.IsRTL(tag) {
				dir = "rtl"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", time.Now().Format(time.TimeOnly), tag, dir)
		case <-ticker.C:
			if ctx.Err() == nil {
				r.Recompute(ctx)
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(localeCmd)

	localeCmd.AddCommand(localeShowCmd)
	localeCmd.AddCommand(localeSetCmd)
	localeCmd.AddCommand(localeSystemCmd)
	localeCmd.AddCommand(localeClearCmd)
	localeCmd.AddCommand(localeWatchCmd)

	localeWatchCmd.Flags().DurationVar(&localeWatchInterval, "interval", 2*time.Second, "How often to re-resolve the locale")
}
