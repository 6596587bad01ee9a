package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"cmportal/adapters/excel"
	"cmportal/adapters/postgres"
	"cmportal/app"
	"cmportal/domain/protocol"
	"cmportal/internal"
	"cmportal/internal/config"
	"cmportal/internal/container"
	"cmportal/internal/scoring"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var verbose bool

func main() {
	rootCmd := &cobra.Command{
		Use:   "cmportal-cli",
		Short: "cmportal CLI for searching and benchmarking the protocol catalog",
		Long: `Query the cardiomyocyte protocol catalog from the command line.

Reference tables are read from the paths configured in the environment (or .env),
exactly as the dashboard reads them.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log loader and service activity")

	rootCmd.AddCommand(
		newSearchCmd(),
		newBenchmarkCmd(),
		newClassifyCmd(),
		newSummaryCmd(),
		newImportCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadContainer builds the same container the server uses
func loadContainer() (*container.Container, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	level := internal.LogLevelWarn
	if verbose {
		level = internal.LogLevelDebug
	}
	return container.New(cfg, internal.NewLogger(level))
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newSearchCmd() *cobra.Command {
	var (
		features   []string
		topic      string
		mode       string
		categories []string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Rank catalog protocols by features and/or a target topic",
		Long: `Rank catalog protocols by similarity.

The mode is inferred when not given: features only runs normal mode, a topic
only runs enrichment mode, and both run combined mode.

Example: cmportal-cli search --topic "Increase Force - High" --category "Protocol Variable"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadContainer()
			if err != nil {
				return err
			}

			toggles, err := categoryToggles(categories)
			if err != nil {
				return err
			}
			result, err := c.Search.Search(cmd.Context(), app.SearchRequest{
				Features: features,
				Topic:    topic,
				Mode:     app.SearchMode(mode),
				Toggles:  toggles,
			})
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(result)
			}
			if result.Empty() {
				fmt.Println(result.Message)
				return nil
			}

			fmt.Printf("🔎 %s search: %d protocols\n\n", result.Mode, len(result.Rows))
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, strings.Join(result.Columns, "\t"))
			_, rows := result.Table()
			for _, row := range rows {
				cells := make([]string, len(row))
				for i, v := range row {
					if v != nil {
						cells[i] = fmt.Sprint(v)
					}
				}
				fmt.Fprintln(w, strings.Join(cells, "\t"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringSliceVar(&features, "features", nil, "Protocol features to match (comma separated)")
	cmd.Flags().StringVar(&topic, "topic", "", "Target topic label, e.g. \"Increase Force - High\"")
	cmd.Flags().StringVar(&mode, "mode", "", "Search mode: normal|enrichment|combined")
	cmd.Flags().StringSliceVar(&categories, "category", nil, "Feature categories that must contain a topic feature")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

// categoryToggles turns category names into toggle states in display order
func categoryToggles(names []string) ([]bool, error) {
	if len(names) == 0 {
		return nil, nil
	}
	toggles := make([]bool, len(protocol.Categories))
	for _, name := range names {
		found := false
		for i, cat := range protocol.Categories {
			if strings.EqualFold(string(cat), strings.TrimSpace(name)) {
				toggles[i] = true
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown category %q", name)
		}
	}
	return toggles, nil
}

func newBenchmarkCmd() *cobra.Command {
	var (
		protocolID  int
		purpose     string
		compare     []int
		featureFile string
		dataFile    string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Benchmark a protocol's maturity indicators against the catalog",
		Long: `Benchmark a catalog protocol, or an uploaded one given as a feature list and
experimental data file (CSV or XLSX), against a purpose topic.

Example: cmportal-cli benchmark --protocol-id 12 --purpose "Increase Force - High" --compare 3,40`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if protocolID == 0 && featureFile == "" {
				return fmt.Errorf("--protocol-id or --feature-file is required")
			}
			if protocolID == 0 && dataFile == "" {
				return fmt.Errorf("--data-file is required with --feature-file")
			}

			c, err := loadContainer()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			req := app.BenchmarkRequest{ProtocolID: protocol.ID(protocolID), Purpose: purpose}
			for _, id := range compare {
				req.CompareIDs = append(req.CompareIDs, protocol.ID(id))
			}
			if protocolID == 0 {
				uploaded, err := readProtocolFiles(ctx, c, featureFile, dataFile)
				if err != nil {
					return err
				}
				req.Uploaded = uploaded
			}

			report, err := c.Benchmark.Run(ctx, req)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(report)
			}
			printReport(report)
			return nil
		},
	}

	cmd.Flags().IntVar(&protocolID, "protocol-id", 0, "Catalog protocol to benchmark")
	cmd.Flags().StringVar(&purpose, "purpose", "", "Topic whose key characteristics form the reference profile")
	cmd.Flags().IntSliceVar(&compare, "compare", nil, "Catalog protocols to benchmark alongside")
	cmd.Flags().StringVar(&featureFile, "feature-file", "", "Feature list of an uploaded protocol")
	cmd.Flags().StringVar(&dataFile, "data-file", "", "Experimental data of an uploaded protocol")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	cmd.MarkFlagRequired("purpose")
	return cmd
}

func readProtocolFiles(ctx context.Context, c *container.Container, featureFile, dataFile string) (*app.UploadedProtocol, error) {
	candidates, err := c.Catalog.ProtocolFeatures(ctx)
	if err != nil {
		return nil, err
	}
	featureRows, err := excel.NewDataReader(featureFile).ReadRows()
	if err != nil {
		return nil, err
	}
	dataRows, err := excel.NewDataReader(dataFile).ReadRows()
	if err != nil {
		return nil, err
	}

	features, unknown := excel.ParseFeatureList(featureRows, candidates)
	if len(unknown) > 0 {
		fmt.Fprintf(os.Stderr, "⚠️  ignoring unknown features: %s\n", strings.Join(unknown, ", "))
	}
	record, unknownFields := excel.ParseExperimentalData(dataRows)
	if len(unknownFields) > 0 {
		fmt.Fprintf(os.Stderr, "⚠️  ignoring unknown fields: %s\n", strings.Join(unknownFields, ", "))
	}
	return &app.UploadedProtocol{Record: record, Features: features}, nil
}

func printReport(report *app.BenchmarkReport) {
	profiles := []protocol.BenchmarkResult{{Name: report.ProtocolName, Results: report.Results}}
	profiles = append(profiles, report.References...)
	for _, cmp := range report.Catalog {
		profiles = append(profiles, cmp.BenchmarkResult)
	}

	fmt.Printf("📊 %s vs. %s\n\n", report.ProtocolName, report.SelectedPurpose)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	header := []string{"Indicator"}
	for _, p := range profiles {
		header = append(header, p.Name)
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for _, ind := range report.Indicators {
		row := []string{ind}
		for _, p := range profiles {
			row = append(row, formatResult(p.Results[ind]))
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	w.Flush()
	fmt.Println("\n* predicted from features")
}

func formatResult(r protocol.IndicatorResult) string {
	if r.Quantile == "" {
		return "-"
	}
	if r.Flag == protocol.FlagPredicted {
		return r.Quantile + "*"
	}
	return r.Quantile
}

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify INDICATOR VALUE",
		Short: "Place one measurement in its indicator's quantile",
		Long: `Classify a measured value against the indicator's fixed quantile ranges.

Example: cmportal-cli classify "Beat Rate (bpm)" 30`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			indicator := args[0]
			if canonical, ok := excel.CanonicalField(indicator); ok && canonical != protocol.NameKey {
				indicator = canonical
			}
			value, err := strconv.ParseFloat(strings.TrimSpace(args[1]), 64)
			if err != nil {
				return fmt.Errorf("invalid value %q: %w", args[1], err)
			}
			if !scoring.HasRanges(indicator) {
				fmt.Fprintf(os.Stderr, "⚠️  %q has no reference ranges\n", indicator)
			}

			res := scoring.ClassifyMeasurement(indicator, value)
			fmt.Printf("%s = %g → %s (%s)\n", indicator, value, res.Quantile, res.Flag)
			return nil
		},
	}
}

func newSummaryCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize the catalog's measured maturity indicators",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadContainer()
			if err != nil {
				return err
			}
			summaries, err := c.Catalog.IndicatorSummary(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(summaries)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(w, "Indicator\tN\tMissing\tMean\tMedian\tSD\tOutliers\tBuckets\t")
			for _, s := range summaries {
				ranges, _ := scoring.QuantileRanges(s.Indicator)
				buckets := make([]string, 0, len(ranges))
				for i := 1; i <= len(ranges); i++ {
					label := scoring.QuantileLabel(i)
					buckets = append(buckets, fmt.Sprintf("%s:%d", label, s.Buckets[label]))
				}
				fmt.Fprintf(w, "%s\t%d\t%d\t%.3g\t%.3g\t%.3g\t%d\t%s\t\n",
					s.Indicator, s.Count, s.Missing, s.Mean, s.Median, s.StdDev, s.Outliers, strings.Join(buckets, " "))
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summaries as JSON")
	return cmd
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-db",
		Short: "Import the CSV reference tables into the Postgres mirror",
		Long: `Load the configured CSV reference tables and replace the contents of the
Postgres mirror with them. Requires DATABASE_URL.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadContainer()
			if err != nil {
				return err
			}
			if !c.Config.Database.Enabled() {
				return fmt.Errorf("import-db requires DATABASE_URL")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			db, err := postgres.Open(ctx, c.Config.Database.URL)
			if err != nil {
				return err
			}
			if err := c.InitWithDatabase(ctx, db); err != nil {
				db.Close()
				return err
			}
			defer c.Shutdown(ctx)

			start := time.Now()
			n, err := c.ImportReference(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("✅ Imported %d protocols in %v\n", n, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}
