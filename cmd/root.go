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
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/autotrad/internal/config"
	"github.com/valpere/autotrad/internal/logging"
)

var version = "0.1.0"

var (
	cfgFile string
	v       = config.New()
	cfg     *config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "autotrad",
	Short: "Runtime translation of UI strings",
	Long: `autotrad translates user interface strings on demand.

Each string is looked up in the translation memory first; misses go through
an ordered chain of providers and the first result that passes the quality
checks is kept. Unresolved and machine-made translations are queued in
pending files for human review.

Use "autotrad translate --help" for translation options.`,
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		l, err := logging.New(c.LogLevel, os.Stderr)
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		cfg, logger = c, l
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default: ./autotrad.yaml or ~/.config/autotrad/autotrad.yaml)")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("db", "./data/autotrad.db", "SQLite database path")
	flags.String("catalog-dir", "./i18n", "Directory holding autotrad.<lang>.{json,yaml,toml} catalogs")
	flags.String("pending-dir", "./i18n/pending", "Directory for pending review files")
	flags.String("source", "", "Declared source language of the UI strings (default: detect per string)")
	flags.String("default-source", "en", "Source language assumed when detection is not confident")
	flags.Duration("timeout", 10*time.Second, "Per-provider timeout")

	_ = v.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = v.BindPFlag("db", flags.Lookup("db"))
	_ = v.BindPFlag("catalog_dir", flags.Lookup("catalog-dir"))
	_ = v.BindPFlag("pending_dir", flags.Lookup("pending-dir"))
	_ = v.BindPFlag("source_language", flags.Lookup("source"))
	_ = v.BindPFlag("default_source", flags.Lookup("default-source"))
	_ = v.BindPFlag("timeout", flags.Lookup("timeout"))
}
