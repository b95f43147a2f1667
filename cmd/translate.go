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
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/autotrad/internal/arbiter"
	"github.com/valpere/autotrad/internal/catalog"
	"github.com/valpere/autotrad/internal/orchestrator"
	"github.com/valpere/autotrad/internal/translator"
	"github.com/valpere/autotrad/internal/validator"
)

var (
	translateTo    string
	translateRole  string
	translateFile  string
	translateAll   bool
	translateJudge bool
	translateSave  bool
	translateArgs  map[string]string
)

var translateCmd = &cobra.Command{
	Use:   "translate [text...]",
	Short: "Translate UI strings through the provider chain",
	Long: `Translate UI strings into the target locale.

Text comes from the arguments, from --file, or from stdin (one string per
line). A --file with a .json, .yaml or .toml extension is read as a catalog
and its keys are translated.

The chain is configured in autotrad.yaml ("chain"). Available providers:
  - memory       SQLite translation memory (exact, then fuzzy match)
  - ondevice     Local Ollama model, downloaded on demand
  - google       Google Cloud Translate (requires credentials)
  - mymemory     MyMemory (free, 5000 chars/day)
  - openrouter   OpenRouter LLM (requires API key)
  - systran      Systran Translate (requires API key)
  - echo         Returns the source unchanged

Without --to the locale is resolved from the configured policy.
Use --all to run every provider side by side without touching the memory;
add --judge to let a local Ollama model pick the best acceptable answer and
--save to record that pick as a manual translation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := validator.ParseRole(translateRole)
		if err != nil {
			return err
		}

		literals, err := gatherLiterals(args, translateFile, cmd.InOrStdin())
		if err != nil {
			return err
		}
		if len(literals) == 0 {
			return fmt.Errorf("nothing to translate")
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

		target := a.target(translateTo)
		if translateAll {
			return compareProviders(ctx, a, literals[0], target, role)
		}
		a.engine.SetLocale(ctx, target)

		renderArgs := make(map[string]any, len(translateArgs))
		for k, val := range translateArgs {
			renderArgs[k] = val
		}

		out := cmd.OutOrStdout()
		for _, lit := range literals {
			text := a.engine.Render(ctx, lit, role, renderArgs)
			if len(literals) == 1 {
				fmt.Fprintln(out, text)
				continue
			}
			fmt.Fprintf(out, "%s\t%s\n", lit, text)
		}

		snap := a.engine.Telemetry().Snapshot()
		fmt.Fprintf(os.Stderr, "Locale %s: %d memory hits, %d translated, %d rejected\n",
			target, snap.TMHits, snap.MTCalls, snap.QualityRejects)
		return nil
	},
}

// compareProviders runs every link of the chain on text concurrently and
// prints each answer with its quality verdict. Nothing is cached.
func compareProviders(ctx context.Context, a *app, text, target string, role validator.Role) error {
	services, closers, err := buildServices(cfg, a.db)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	orch := orchestrator.New(services, orchestrator.OrchestratorConfig{Timeout: cfg.Timeout})
	result := orch.ExecuteAll(ctx, translator.TranslateRequest{
		Text:       text,
		SourceLang: cfg.SourceLanguage,
		TargetLang: target,
	})

	graded, acceptable := gradeAttempts(text, role, result.Attempts)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tLATENCY\tVERDICT\tTEXT")
	for _, g := range graded {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", g.Service, g.Latency.Round(time.Millisecond), g.Verdict, g.Text)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if !translateJudge {
		return nil
	}

	ollama := cfg.Provider("ollama")
	judge := arbiter.NewOllamaJudge(ollama.BaseURL, ollama.Model)
	verdict, err := judge.Pick(ctx, text, target, role, acceptable)
	if err != nil {
		return fmt.Errorf("judge failed: %w", err)
	}
	if strings.TrimSpace(verdict.Text) == "" {
		return fmt.Errorf("judge picked an empty answer from %s", verdict.Service)
	}
	fmt.Printf("\nJudge picked [%s]: %s\n", verdict.Service, verdict.Text)
	if verdict.Reasoning != "" {
		fmt.Printf("Reasoning: %s\n", verdict.Reasoning)
	}

	if translateSave {
		if err := a.engine.UpsertTranslation(ctx, text, verdict.Text, target, role); err != nil {
			return fmt.Errorf("failed to save pick: %w", err)
		}
		fmt.Printf("Saved [%s] %q → %q\n", target, text, verdict.Text)
	}
	return nil
}

// gradedAttempt is one row of the provider comparison table.
type gradedAttempt struct {
	Service string
	Latency time.Duration
	Verdict string
	Text    string
}

// gradeAttempts runs the quality gate over every provider answer. Answers
// that pass are returned as candidates for the judge; failed and blank
// attempts never are.
func gradeAttempts(text string, role validator.Role, attempts []orchestrator.Attempt) ([]gradedAttempt, []translator.ServiceResult) {
	var (
		graded     []gradedAttempt
		acceptable []translator.ServiceResult
	)
	for _, at := range attempts {
		g := gradedAttempt{Service: at.Service, Latency: at.Latency}
		switch {
		case at.Err != nil:
			g.Verdict, g.Text = "no answer", at.Err.Error()
		case !translator.Answered(at.Result):
			g.Verdict = "no answer"
		default:
			g.Text = at.Result.TranslatedText
			if err := validator.Check(text, g.Text, role); err != nil {
				g.Verdict = err.Error()
				break
			}
			g.Verdict = "ok"
			candidate := *at.Result
			candidate.ServiceName = at.Service
			acceptable = append(acceptable, candidate)
		}
		graded = append(graded, g)
	}
	return graded, acceptable
}

// gatherLiterals collects the strings to work on from args, a file, or r.
func gatherLiterals(args []string, path string, r io.Reader) ([]string, error) {
	if len(args) > 0 {
		return []string{strings.Join(args, " ")}, nil
	}
	if path != "" {
		return readLiterals(path)
	}
	return scanLines(r)
}

// readLiterals reads a catalog's keys or a plain text file's lines.
func readLiterals(path string) ([]string, error) {
	if slices.Contains(catalog.Extensions, strings.ToLower(filepath.Ext(path))) {
		entries, err := catalog.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog: %w", err)
		}
		keys := make([]string, 0, len(entries))
		for k := range entries {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		return keys, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	defer f.Close()
	return scanLines(f)
}

func scanLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return lines, nil
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringVarP(&translateTo, "to", "t", "", "Target locale (default: resolved locale)")
	translateCmd.Flags().StringVarP(&translateRole, "role", "r", "", "UI role limiting length: label, button, chip, title, caption, error")
	translateCmd.Flags().StringVarP(&translateFile, "file", "f", "", "Read strings from a text file or catalog")
	translateCmd.Flags().BoolVar(&translateAll, "all", false, "Compare every provider on the first string")
	translateCmd.Flags().BoolVar(&translateJudge, "judge", false, "With --all, let a local model pick the best acceptable answer")
	translateCmd.Flags().BoolVar(&translateSave, "save", false, "With --judge, record the pick as a manual translation")
	translateCmd.Flags().StringToStringVar(&translateArgs, "arg", nil, "Placeholder values, e.g. --arg name=Ada")
}
