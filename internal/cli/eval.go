package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/AI-Template-SDK/senso-sov/internal/models"
	"github.com/AI-Template-SDK/senso-sov/services"
)

// goldenColumns is the required header of a golden mention file. List
// cells are separated by semicolons.
var goldenColumns = []string{"domain", "brand_name", "competitors", "response_text", "expected_mentions", "expected_brand_share"}

// GoldenCase is one labelled response.
type GoldenCase struct {
	Row              int      `json:"row"`
	Domain           string   `json:"domain"`
	BrandName        string   `json:"brand_name"`
	Competitors      []string `json:"competitors"`
	ResponseText     string   `json:"response_text"`
	ExpectedMentions []string `json:"expected_mentions"`
	// ExpectedShare is nil when the cell is blank.
	ExpectedShare *float64 `json:"expected_brand_share,omitempty"`
}

// GoldenResult is the outcome of scoring one case.
type GoldenResult struct {
	Case        GoldenCase `json:"case"`
	Found       []string   `json:"found"`
	Missing     []string   `json:"missing"`
	Unexpected  []string   `json:"unexpected"`
	BrandShare  float64    `json:"brand_share"`
	SharePassed bool       `json:"share_passed"`
	Passed      bool       `json:"passed"`
}

// GoldenSummary aggregates scores over a golden file.
type GoldenSummary struct {
	Cases     int            `json:"cases"`
	Passed    int            `json:"passed"`
	Accuracy  float64        `json:"accuracy"`
	Precision float64        `json:"precision"`
	Recall    float64        `json:"recall"`
	Results   []GoldenResult `json:"results"`
}

// LoadGolden parses a golden mention file. Rows with the wrong column
// count or an unparsable share are skipped with a warning.
func LoadGolden(r io.Reader) ([]GoldenCase, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}
	for i, want := range goldenColumns {
		if i >= len(header) || strings.TrimSpace(strings.ToLower(header[i])) != want {
			return nil, fmt.Errorf("invalid header: expected columns %s", strings.Join(goldenColumns, ","))
		}
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read data rows: %w", err)
	}
	var cases []GoldenCase
	for i, row := range rows {
		line := i + 2
		if len(row) != len(goldenColumns) {
			log.Warn().Int("row", line).Int("columns", len(row)).Msg("[LoadGolden] Skipping row with wrong column count")
			continue
		}
		c := GoldenCase{
			Row:              line,
			Domain:           services.NormalizeDomain(row[0]),
			BrandName:        strings.TrimSpace(row[1]),
			Competitors:      splitList(row[2]),
			ResponseText:     strings.TrimSpace(row[3]),
			ExpectedMentions: splitList(row[4]),
		}
		if c.Domain == "" {
			log.Warn().Int("row", line).Msg("[LoadGolden] Skipping row without a domain")
			continue
		}
		if c.BrandName == "" {
			c.BrandName = services.BrandNameFromDomain(c.Domain)
		}
		if cell := strings.TrimSpace(row[5]); cell != "" {
			share, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				log.Warn().Int("row", line).Str("value", cell).Msg("[LoadGolden] Skipping row with invalid expected_brand_share")
				continue
			}
			c.ExpectedShare = &share
		}
		cases = append(cases, c)
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("no valid cases found after parsing %d rows", len(rows))
	}
	return cases, nil
}

// ScoreGolden runs mention matching over every case. A case passes when
// the found companies equal the expected ones and the brand's share of the
// response is within tolerance percentage points of the expected share.
func ScoreGolden(brands services.BrandService, mentions services.MentionExtractor, cases []GoldenCase, tolerance float64) GoldenSummary {
	summary := GoldenSummary{Cases: len(cases)}
	var tp, fp, fn int
	for _, c := range cases {
		brand := &models.Brand{Domain: c.Domain, Name: c.BrandName}
		candidates := brands.Candidates(brand, services.DedupeCompetitors(c.Competitors))
		matches := mentions.FindMentions(c.ResponseText, candidates)

		res := GoldenResult{Case: c, Found: []string{}}
		found := make(map[string]bool, len(matches))
		for _, m := range matches {
			found[strings.ToLower(m.Company)] = true
			res.Found = append(res.Found, m.Company)
		}
		expected := make(map[string]bool, len(c.ExpectedMentions))
		for _, name := range c.ExpectedMentions {
			expected[strings.ToLower(name)] = true
			if found[strings.ToLower(name)] {
				tp++
			} else {
				fn++
				res.Missing = append(res.Missing, name)
			}
		}
		for _, name := range res.Found {
			if !expected[strings.ToLower(name)] {
				fp++
				res.Unexpected = append(res.Unexpected, name)
			}
		}

		if len(matches) > 0 && found[strings.ToLower(c.BrandName)] {
			res.BrandShare = 100 / float64(len(matches))
		}
		res.SharePassed = c.ExpectedShare == nil || math.Abs(res.BrandShare-*c.ExpectedShare) <= tolerance
		res.Passed = len(res.Missing) == 0 && len(res.Unexpected) == 0 && res.SharePassed
		if res.Passed {
			summary.Passed++
		}
		summary.Results = append(summary.Results, res)
	}

	summary.Accuracy = percent(summary.Passed, summary.Cases)
	summary.Precision = percent(tp, tp+fp)
	summary.Recall = percent(tp, tp+fn)
	return summary
}

// percent is 100 when total is zero: nothing expected, nothing missed.
func percent(n, total int) float64 {
	if total == 0 {
		return 100
	}
	return float64(n) / float64(total) * 100
}

func splitList(cell string) []string {
	var out []string
	for _, part := range strings.Split(cell, ";") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// NewEvalCommand scores mention matching against a labelled CSV file.
func NewEvalCommand(opts *RootOptions) *cobra.Command {
	var (
		golden      string
		tolerance   float64
		minAccuracy float64
	)

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Score mention matching against a golden CSV file",
		Long: "Reads rows of " + strings.Join(goldenColumns, ",") + " and checks that mention matching finds exactly the expected companies.\n" +
			"List cells use ';' as separator. Leave expected_brand_share blank to skip the share check.",
		Example: `  sov eval --golden golden_mentions.csv
  sov eval --golden golden_mentions.csv --sov-tolerance 5 --min-accuracy 90`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(golden)
			if err != nil {
				return fmt.Errorf("failed to open golden file: %w", err)
			}
			defer f.Close()
			cases, err := LoadGolden(f)
			if err != nil {
				return err
			}

			a, err := opts.App(cmd.Context())
			if err != nil {
				return err
			}
			summary := ScoreGolden(a.Pipeline.Brands, a.Pipeline.Mentions, cases, tolerance)

			if opts.Format == "json" {
				if err := writeJSON(cmd.OutOrStdout(), summary); err != nil {
					return err
				}
			} else if err := writeGoldenSummary(cmd.OutOrStdout(), summary); err != nil {
				return err
			}
			if summary.Accuracy < minAccuracy {
				return fmt.Errorf("accuracy %.2f%% is below %.2f%% (%d of %d cases passed)", summary.Accuracy, minAccuracy, summary.Passed, summary.Cases)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&golden, "golden", "", "golden CSV file (required)")
	cmd.Flags().Float64Var(&tolerance, "sov-tolerance", 10, "allowed brand share difference in percentage points")
	cmd.Flags().Float64Var(&minAccuracy, "min-accuracy", 100, "fail when fewer cases pass, in percent")
	_ = cmd.MarkFlagRequired("golden")

	return cmd
}

func writeGoldenSummary(w io.Writer, s GoldenSummary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tBRAND\tRESULT\tMISSING\tUNEXPECTED\tSHARE")
	for _, r := range s.Results {
		result := "pass"
		if !r.Passed {
			result = "FAIL"
		}
		missing := append([]string(nil), r.Missing...)
		unexpected := append([]string(nil), r.Unexpected...)
		sort.Strings(missing)
		sort.Strings(unexpected)
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%.2f\n", r.Case.Row, r.Case.BrandName, result,
			dash(strings.Join(missing, ", ")), dash(strings.Join(unexpected, ", ")), r.BrandShare)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nAccuracy:  %.2f%% (%d/%d)\n", s.Accuracy, s.Passed, s.Cases)
	fmt.Fprintf(w, "Precision: %.2f%%\n", s.Precision)
	fmt.Fprintf(w, "Recall:    %.2f%%\n", s.Recall)
	return nil
}
