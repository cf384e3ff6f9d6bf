package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AI-Template-SDK/senso-sov/internal/models"
	"github.com/AI-Template-SDK/senso-sov/internal/providers"
	"github.com/AI-Template-SDK/senso-sov/services"
)

// NewAnalyzeCommand runs the whole pipeline in-process for one domain.
func NewAnalyzeCommand(opts *RootOptions) *cobra.Command {
	var req services.AnalysisRequest

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run a share of voice analysis for a domain",
		Example: `  sov analyze --domain acme-widgets.com --owner org-1
  sov analyze --domain joes-plumbing.com --owner org-2 --local --location "Austin, TX"
  sov analyze --domain rival.io --isolated --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.App(cmd.Context())
			if err != nil {
				return err
			}
			run, record, err := a.Analysis.RunAnalysis(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("analysis failed: %w", err)
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"run":    run,
					"record": record,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session:     %s\n", run.SessionID)
			fmt.Fprintf(cmd.OutOrStdout(), "Categories:  %s\n", strings.Join(run.Categories, ", "))
			fmt.Fprintf(cmd.OutOrStdout(), "Prompts:     %d (%d failed responses)\n", len(run.PromptIDs), run.FailedResponses)
			if len(run.Failures) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Fallbacks:   %d\n", len(run.Failures))
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return writeRecord(cmd.OutOrStdout(), record)
		},
	}

	cmd.Flags().StringVar(&req.Domain, "domain", "", "brand domain to analyse (required)")
	cmd.Flags().StringVar(&req.OwnerID, "owner", "", "owning organization id")
	cmd.Flags().StringVar(&req.BrandName, "brand", "", "brand name; derived from the domain when empty")
	cmd.Flags().BoolVar(&req.Isolated, "isolated", false, "create a throwaway brand that does not touch the owner's data")
	cmd.Flags().BoolVar(&req.IsLocalBrand, "local", false, "generate location-scoped questions")
	cmd.Flags().StringVar(&req.Location, "location", "", "city or region for local brands")
	cmd.Flags().StringVar(&req.Purpose, "purpose", "", "session id prefix")
	_ = cmd.MarkFlagRequired("domain")

	return cmd
}

// NewSyncCommand replaces a brand's competitor list and repairs its snapshots.
func NewSyncCommand(opts *RootOptions) *cobra.Command {
	var (
		brandID     string
		competitors []string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync share of voice snapshots with a brand's competitor list",
		Example: `  sov sync --brand-id 6f1c... --competitors "Alpha Corp,Gamma Labs"
  sov sync --brand-id 6f1c...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(brandID)
			if err != nil {
				return fmt.Errorf("invalid brand id %q: %w", brandID, err)
			}
			a, err := opts.App(cmd.Context())
			if err != nil {
				return err
			}

			var outcomes []services.SyncOutcome
			if cmd.Flags().Changed("competitors") {
				outcomes, err = a.Pipeline.Brands.UpdateCompetitors(cmd.Context(), id, competitors)
			} else {
				var brand *models.Brand
				brand, err = a.Pipeline.Brands.GetBrand(cmd.Context(), id)
				if err == nil {
					outcomes, err = a.Pipeline.Sync.SyncCompetitors(cmd.Context(), brand)
				}
			}
			if err != nil {
				return err
			}

			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), outcomes)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RECORD\tSESSION\tRESULT\tADDED\tREMOVED")
			failed := 0
			for _, o := range outcomes {
				result := "patched"
				switch {
				case !o.OK:
					result = "failed: " + o.Error
					failed++
				case o.Recomputed:
					result = "recomputed"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", o.RecordID, dash(o.SessionID), result, dash(strings.Join(o.Added, ",")), dash(strings.Join(o.Removed, ",")))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d records failed to sync", failed, len(outcomes))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&brandID, "brand-id", "", "brand id (required)")
	cmd.Flags().StringSliceVar(&competitors, "competitors", nil, "new competitor list; the stored list is re-synced when omitted")
	_ = cmd.MarkFlagRequired("brand-id")

	return cmd
}

// NewReportCommand prints the latest share of voice record for a session or brand.
func NewReportCommand(opts *RootOptions) *cobra.Command {
	var (
		sessionID string
		brandID   string
		history   bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show stored share of voice results",
		Example: `  sov report --session analysis_1767000000000_1a2b3c4d
  sov report --brand-id 6f1c... --history`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (sessionID == "") == (brandID == "") {
				return errors.New("exactly one of --session or --brand-id is required")
			}
			a, err := opts.App(cmd.Context())
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var records []*models.ShareOfVoiceRecord
			switch {
			case sessionID != "":
				rec, err := a.Repos.SOVRepo.LatestBySession(ctx, sessionID)
				if err != nil {
					return fmt.Errorf("no record for session %s: %w", sessionID, err)
				}
				records = append(records, rec)
			default:
				id, err := uuid.Parse(brandID)
				if err != nil {
					return fmt.Errorf("invalid brand id %q: %w", brandID, err)
				}
				if history {
					records, err = a.Repos.SOVRepo.ListByBrand(ctx, id)
				} else {
					var rec *models.ShareOfVoiceRecord
					rec, err = a.Repos.SOVRepo.LatestByBrand(ctx, id)
					records = append(records, rec)
				}
				if err != nil {
					return fmt.Errorf("no records for brand %s: %w", brandID, err)
				}
			}

			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), records)
			}
			for i, rec := range records {
				if i > 0 {
					fmt.Fprintln(cmd.OutOrStdout())
				}
				if err := writeRecord(cmd.OutOrStdout(), rec); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "analysis session id")
	cmd.Flags().StringVar(&brandID, "brand-id", "", "brand id")
	cmd.Flags().BoolVar(&history, "history", false, "list every record for the brand, newest first")

	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeRecord prints a record as a share table, highest share first.
func writeRecord(w io.Writer, rec *models.ShareOfVoiceRecord) error {
	fmt.Fprintf(w, "Brand:       %s\n", rec.BrandName)
	if rec.SessionID != "" {
		fmt.Fprintf(w, "Session:     %s\n", rec.SessionID)
	}
	fmt.Fprintf(w, "Visibility:  %.2f (coverage %.2f%%, %d responses)\n", rec.AIVisibilityScore, rec.Coverage, rec.TotalResponses)

	names := make([]string, 0, len(rec.MentionCounts))
	for name := range rec.MentionCounts {
		names = append(names, name)
	}
	sort.SliceStable(names, func(i, j int) bool {
		si, sj := rec.ShareOfVoice[names[i]], rec.ShareOfVoice[names[j]]
		if si != sj {
			return si > sj
		}
		return names[i] < names[j]
	})

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nCOMPANY\tMENTIONS\tSHARE")
	for _, name := range names {
		marker := ""
		if name == rec.BrandName {
			marker = " *"
		}
		fmt.Fprintf(tw, "%s%s\t%d\t%.2f%%\n", name, marker, rec.MentionCounts[name], rec.ShareOfVoice[name])
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// NewProvidersCommand sends one short completion to the model behind every
// pipeline role and reports latency and usage.
func NewProvidersCommand(opts *RootOptions) *cobra.Command {
	var (
		prompt  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Smoke test the configured model providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.App(cmd.Context())
			if err != nil {
				return err
			}
			roles := []struct {
				name  string
				model string
				svc   providers.ModelService
			}{
				{"profile", a.Config.Models.Profile, a.Models.Profile},
				{"extraction", a.Config.Models.Extraction, a.Models.Extraction},
				{"generation", a.Config.Models.Generation, a.Models.Generation},
				{"response", a.Config.Models.Response, a.Models.Response},
			}

			results := make([]providerCheck, 0, len(roles))
			failed := 0
			for _, r := range roles {
				check := providerCheck{Role: r.name, Model: r.model, Provider: r.svc.GetProviderName()}
				ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
				start := time.Now()
				resp, err := r.svc.Complete(ctx, &providers.ChatRequest{
					Model:     r.model,
					Messages:  []providers.Message{{Role: providers.RoleUser, Content: prompt}},
					MaxTokens: 32,
				})
				cancel()
				check.LatencyMS = time.Since(start).Milliseconds()
				if err != nil {
					check.Error = err.Error()
					failed++
				} else {
					check.OK = true
					check.InputTokens = resp.InputTokens
					check.OutputTokens = resp.OutputTokens
					check.Cost = resp.Cost
				}
				results = append(results, check)
			}

			if opts.Format == "json" {
				if err := writeJSON(cmd.OutOrStdout(), results); err != nil {
					return err
				}
			} else {
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ROLE\tPROVIDER\tMODEL\tLATENCY\tTOKENS\tRESULT")
				for _, c := range results {
					result := "ok"
					if !c.OK {
						result = "failed: " + c.Error
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%dms\t%d/%d\t%s\n", c.Role, c.Provider, c.Model, c.LatencyMS, c.InputTokens, c.OutputTokens, result)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d providers failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&prompt, "prompt", "Reply with the single word: ready", "prompt sent to every provider")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "per-provider timeout")

	return cmd
}

type providerCheck struct {
	Role         string  `json:"role"`
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	OK           bool    `json:"ok"`
	LatencyMS    int64   `json:"latency_ms"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Cost         float64 `json:"cost"`
	Error        string  `json:"error,omitempty"`
}

// NewAliasesCommand prints the spellings mention extraction searches for and,
// given --text, the mentions found in it.
func NewAliasesCommand(opts *RootOptions) *cobra.Command {
	var (
		domain      string
		name        string
		competitors []string
		text        string
	)

	cmd := &cobra.Command{
		Use:   "aliases",
		Short: "Show brand and competitor name variations used for mention matching",
		Example: `  sov aliases --domain acme-widgets.com --competitors "Acme Rival,Bolt"
  sov aliases --domain acme-widgets.com --text "Try AcmeWidgets or Bolt."`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.App(cmd.Context())
			if err != nil {
				return err
			}
			brand := &models.Brand{Domain: services.NormalizeDomain(domain), Name: name}
			if brand.Name == "" {
				brand.Name = services.BrandNameFromDomain(brand.Domain)
			}
			candidates := a.Pipeline.Brands.Candidates(brand, services.DedupeCompetitors(competitors))

			var matches []services.Match
			if text != "" {
				matches = a.Pipeline.Mentions.FindMentions(text, candidates)
			}

			if opts.Format == "json" {
				out := map[string]interface{}{"candidates": candidates}
				if text != "" {
					out["matches"] = matches
				}
				return writeJSON(cmd.OutOrStdout(), out)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "COMPANY\tALIAS\tCONFIDENCE")
			for _, c := range candidates {
				for _, al := range c.Aliases {
					fmt.Fprintf(tw, "%s\t%s\t%.2f\n", c.Company, al.Text, al.Confidence)
				}
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if text == "" {
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d mention(s) found\n", len(matches))
			for _, m := range matches {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: %q at %d\n", m.Company, m.MatchedText, m.Offset)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&domain, "domain", "", "brand domain (required)")
	cmd.Flags().StringVar(&name, "brand", "", "brand name; derived from the domain when empty")
	cmd.Flags().StringSliceVar(&competitors, "competitors", nil, "competitor names")
	cmd.Flags().StringVar(&text, "text", "", "text to search for mentions")
	_ = cmd.MarkFlagRequired("domain")

	return cmd
}
