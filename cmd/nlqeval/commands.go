package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/guillermoBallester/nlqeval/internal/adapter/mcp"
	"github.com/guillermoBallester/nlqeval/internal/adapter/replay"
	"github.com/guillermoBallester/nlqeval/internal/audit"
	"github.com/guillermoBallester/nlqeval/internal/core/domain"
	"github.com/guillermoBallester/nlqeval/internal/core/port"
	"github.com/guillermoBallester/nlqeval/internal/dataset"
	"github.com/guillermoBallester/nlqeval/internal/prompts"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

// promptLine is one rendered prompt, keyed for the replay files that come back.
type promptLine struct {
	SampleID     string `json:"sample_id"`
	System       string `json:"system,omitempty"`
	Prompt       string `json:"prompt"`
	PromptDigest string `json:"prompt_digest"`
}

func newImportCommand(g *globalFlags) *cobra.Command {
	var in, out string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Build the sample CSV from a query-log export",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(cmd, flagOverrides(cmd, g))
			if err != nil {
				return err
			}
			defer rt.close()

			src, err := os.Open(in)
			if err != nil {
				return fmt.Errorf("opening export: %w", err)
			}
			defer src.Close()

			w, closeOut, err := openOutput(cmd, out)
			if err != nil {
				return err
			}
			n, err := dataset.Import(src, w)
			if cerr := closeOut(); err == nil {
				err = cerr
			}
			if err != nil {
				return fmt.Errorf("importing %s: %w", in, err)
			}

			rt.logger.Info("import complete", slog.Int("samples", n), slog.String("out", out))
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "query-log export CSV")
	cmd.Flags().StringVar(&out, "out", "", "sample CSV to write (default stdout)")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

func newPromptsCommand(g *globalFlags) *cobra.Command {
	var datasetPath, promptTemplate, out string
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "Render the generation prompt for every sample",
		RunE: func(cmd *cobra.Command, _ []string) error {
			o := flagOverrides(cmd, g)
			o.PromptTemplate = changedString(cmd, "prompt-template", &promptTemplate)
			rt, err := newRuntime(cmd, o)
			if err != nil {
				return err
			}
			defer rt.close()

			samples, err := dataset.Load(datasetPath)
			if err != nil {
				return err
			}
			svc, err := rt.scoreService(nil, audit.NoopAuditor{})
			if err != nil {
				return err
			}

			w, closeOut, err := openOutput(cmd, out)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(w)
			for _, s := range samples {
				prompt := svc.RenderPrompt(s)
				line := promptLine{
					SampleID:     s.ID,
					System:       prompts.SystemMessage,
					Prompt:       prompt,
					PromptDigest: replay.Digest(prompt),
				}
				if err := enc.Encode(line); err != nil {
					_ = closeOut()
					return fmt.Errorf("writing prompt %s: %w", s.ID, err)
				}
			}
			if err := closeOut(); err != nil {
				return err
			}

			rt.logger.Info("prompts rendered", slog.Int("samples", len(samples)))
			return nil
		},
	}
	cmd.Flags().StringVar(&datasetPath, "dataset", "", "sample CSV")
	cmd.Flags().StringVar(&promptTemplate, "prompt-template", "", "generation template overriding the built-in one")
	cmd.Flags().StringVar(&out, "out", "", "NDJSON file to write (default stdout)")
	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}

func newCriticPromptsCommand(g *globalFlags) *cobra.Command {
	var datasetPath, completionsPath, promptTemplate, critiqueTemplate, out string
	cmd := &cobra.Command{
		Use:   "critic-prompts",
		Short: "Render the critic prompt for every answered sample",
		RunE: func(cmd *cobra.Command, _ []string) error {
			o := flagOverrides(cmd, g)
			o.PromptTemplate = changedString(cmd, "prompt-template", &promptTemplate)
			o.CritiqueTemplate = changedString(cmd, "critique-template", &critiqueTemplate)
			rt, err := newRuntime(cmd, o)
			if err != nil {
				return err
			}
			defer rt.close()

			samples, err := dataset.Load(datasetPath)
			if err != nil {
				return err
			}
			completions, err := replay.LoadCompletions(completionsPath)
			if err != nil {
				return err
			}
			svc, err := rt.scoreService(nil, audit.NoopAuditor{})
			if err != nil {
				return err
			}

			w, closeOut, err := openOutput(cmd, out)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(w)
			written := 0
			for _, s := range samples {
				completion, ok := completions[s.ID]
				if !ok {
					rt.logger.Warn("sample has no completion", slog.String("sample.id", s.ID))
					continue
				}
				prompt := svc.RenderCritique(s, completion)
				line := promptLine{SampleID: s.ID, Prompt: prompt, PromptDigest: replay.Digest(prompt)}
				if err := enc.Encode(line); err != nil {
					_ = closeOut()
					return fmt.Errorf("writing critic prompt %s: %w", s.ID, err)
				}
				written++
			}
			if err := closeOut(); err != nil {
				return err
			}

			rt.logger.Info("critic prompts rendered", slog.Int("samples", written))
			return nil
		},
	}
	cmd.Flags().StringVar(&datasetPath, "dataset", "", "sample CSV")
	cmd.Flags().StringVar(&completionsPath, "completions", "", "NDJSON completions keyed by sample_id")
	cmd.Flags().StringVar(&promptTemplate, "prompt-template", "", "generation template overriding the built-in one")
	cmd.Flags().StringVar(&critiqueTemplate, "critique-template", "", "critic template overriding the built-in one")
	cmd.Flags().StringVar(&out, "out", "", "NDJSON file to write (default stdout)")
	_ = cmd.MarkFlagRequired("dataset")
	_ = cmd.MarkFlagRequired("completions")
	return cmd
}

func newScoreCommand(g *globalFlags) *cobra.Command {
	var (
		datasetPath, completionsPath, scorer, criticReplies string
		rulesFile, auditLog, databaseURL                    string
		promptTemplate, critiqueTemplate                    string
		poolMaxConns, poolMinConns                          int32
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score completions and write one score record per sample",
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch scorer {
			case domain.ScorerValidate:
			case domain.ScorerCritique:
				if criticReplies == "" {
					return usageErrorf("--critic-replies is required with --scorer critique")
				}
			default:
				return usageErrorf("unknown scorer %q: must be %s or %s", scorer, domain.ScorerValidate, domain.ScorerCritique)
			}

			o := flagOverrides(cmd, g)
			o.RulesFile = changedString(cmd, "rules", &rulesFile)
			o.AuditLog = changedString(cmd, "audit-log", &auditLog)
			o.DatabaseURL = changedString(cmd, "database-url", &databaseURL)
			o.PoolMaxConns = changedInt32(cmd, "pool-max-conns", &poolMaxConns)
			o.PoolMinConns = changedInt32(cmd, "pool-min-conns", &poolMinConns)
			o.PromptTemplate = changedString(cmd, "prompt-template", &promptTemplate)
			o.CritiqueTemplate = changedString(cmd, "critique-template", &critiqueTemplate)
			rt, err := newRuntime(cmd, o)
			if err != nil {
				return err
			}
			defer rt.close()

			samples, err := dataset.Load(datasetPath)
			if err != nil {
				return err
			}
			completions, err := replay.LoadCompletions(completionsPath)
			if err != nil {
				return err
			}

			var critic port.Model
			if scorer == domain.ScorerCritique {
				m, err := replay.LoadModel(criticReplies)
				if err != nil {
					return err
				}
				critic = m
			}

			ctx := cmd.Context()
			recorder, err := rt.recorders(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if err := recorder.Close(); err != nil {
					rt.logger.Error("closing score recorders", slog.String("error", err.Error()))
				}
			}()

			svc, err := rt.scoreService(critic, recorder)
			if err != nil {
				return err
			}

			rt.logger.Info("scoring",
				slog.String("version", version),
				slog.String("scorer", scorer),
				slog.Int("samples", len(samples)),
				slog.Int("completions", len(completions)),
			)

			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, s := range samples {
				if err := ctx.Err(); err != nil {
					return fmt.Errorf("scoring interrupted: %w", err)
				}

				var score domain.Score
				completion, ok := completions[s.ID]
				switch {
				case !ok:
					score = svc.Unanswered(ctx, s, scorer)
				case scorer == domain.ScorerCritique:
					score, err = svc.Critique(ctx, s, completion)
					if err != nil {
						return err
					}
				default:
					score = svc.Validate(ctx, s, completion)
				}

				if err := enc.Encode(score); err != nil {
					return fmt.Errorf("writing score %s: %w", s.ID, err)
				}
			}

			rt.logger.Info("scoring complete", slog.Int("samples", len(samples)))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&datasetPath, "dataset", "", "sample CSV")
	f.StringVar(&completionsPath, "completions", "", "NDJSON completions keyed by sample_id")
	f.StringVar(&scorer, "scorer", domain.ScorerValidate, "validate or critique")
	f.StringVar(&criticReplies, "critic-replies", "", "NDJSON critic replies keyed by prompt_digest")
	f.StringVar(&rulesFile, "rules", "", "operator rules YAML")
	f.StringVar(&auditLog, "audit-log", "", "append score records to this NDJSON file")
	f.StringVar(&databaseURL, "database-url", "", "PostgreSQL URL for the score store")
	f.Int32Var(&poolMaxConns, "pool-max-conns", 0, "maximum score store connections")
	f.Int32Var(&poolMinConns, "pool-min-conns", 0, "minimum score store connections")
	f.StringVar(&promptTemplate, "prompt-template", "", "generation template overriding the built-in one")
	f.StringVar(&critiqueTemplate, "critique-template", "", "critic template overriding the built-in one")
	_ = cmd.MarkFlagRequired("dataset")
	_ = cmd.MarkFlagRequired("completions")
	return cmd
}

func newServeCommand(g *globalFlags) *cobra.Command {
	var rulesFile, auditLog string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scoring tools over MCP stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			o := flagOverrides(cmd, g)
			o.RulesFile = changedString(cmd, "rules", &rulesFile)
			o.AuditLog = changedString(cmd, "audit-log", &auditLog)
			rt, err := newRuntime(cmd, o)
			if err != nil {
				return err
			}
			defer rt.close()

			ctx := cmd.Context()
			recorder, err := rt.recorders(ctx)
			if err != nil {
				return err
			}
			defer recorder.Close()

			svc, err := rt.scoreService(nil, recorder)
			if err != nil {
				return err
			}

			s := mcp.NewServer(version, svc, rt.logger, rt.telemetry.Tracer(), rt.telemetry.Instruments())
			stdio := mcpserver.NewStdioServer(s)

			rt.logger.Info("serving MCP over stdio", slog.String("version", version))
			if err := stdio.Listen(ctx, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
				return fmt.Errorf("stdio server: %w", err)
			}
			rt.logger.Info("shutdown complete")
			return nil
		},
	}
	cmd.Flags().StringVar(&rulesFile, "rules", "", "operator rules YAML")
	cmd.Flags().StringVar(&auditLog, "audit-log", "", "append score records to this NDJSON file")
	return cmd
}
