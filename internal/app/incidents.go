package app

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"horse.fit/tariqi/internal/cli"
	"horse.fit/tariqi/internal/db"
)

const (
	defaultLatestLimit = 5
	defaultCheckLimit  = 3

	// outputFormatText renders incidents as the cards shown to bot users.
	outputFormatText = "text"
)

func parseIncidentFormat(raw string) (string, error) {
	if strings.EqualFold(strings.TrimSpace(raw), outputFormatText) {
		return outputFormatText, nil
	}
	format, err := parseOutputFormat(raw, outputFormatTable)
	if err != nil {
		return "", fmt.Errorf("--format must be table, json or text")
	}
	return format, nil
}

func runLatest(args []string) int {
	fs := flag.NewFlagSet("latest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	limit := fs.Int("limit", defaultLatestLimit, "Maximum incidents to return")
	format := fs.String("format", outputFormatTable, "Output format: table, json or text")
	verbose := fs.Bool("verbose", false, "Print the underlying error on failure")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "latest does not accept positional arguments")
		return 2
	}
	if *limit <= 0 {
		fmt.Fprintln(os.Stderr, "--limit must be > 0")
		return 2
	}
	outputFormat, err := parseIncidentFormat(*format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	ctx, cancel, pool, logger, err := connectReadPool(*timeout, envLoader)
	if err != nil {
		logger.Error().Err(err).Msg("latest failed to connect")
		reportQueryFailure(err, *verbose)
		return 1
	}
	defer cancel()

	incidents, err := pool.LatestIncidents(ctx, *limit)
	if err != nil {
		logger.Error().Err(err).Int("limit", *limit).Msg("query latest incidents failed")
		reportQueryFailure(err, *verbose)
		return 1
	}

	if outputFormat == outputFormatText {
		if len(incidents) == 0 {
			fmt.Println("لم يتم العثور على تحديثات مؤكدة مؤخراً.")
			return 0
		}
		fmt.Printf("آخر %d تحديثات مؤكدة:\n", len(incidents))
		writeIncidentCards(os.Stdout, incidents)
		return 0
	}
	return renderIncidents(outputFormat, incidents)
}

func runCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	location := fs.String("location", "", "Location text to search for (substring, case-insensitive)")
	limit := fs.Int("limit", defaultCheckLimit, "Maximum incidents to return")
	format := fs.String("format", outputFormatTable, "Output format: table, json or text")
	verbose := fs.Bool("verbose", false, "Print the underlying error on failure")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	query := strings.TrimSpace(*location)
	if query == "" && fs.NArg() > 0 {
		query = strings.TrimSpace(strings.Join(fs.Args(), " "))
	}
	if query == "" {
		fmt.Fprintln(os.Stderr, "--location is required, e.g. tariqi check --location \"رام الله\"")
		return 2
	}
	if *limit <= 0 {
		fmt.Fprintln(os.Stderr, "--limit must be > 0")
		return 2
	}
	outputFormat, err := parseIncidentFormat(*format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	ctx, cancel, pool, logger, err := connectReadPool(*timeout, envLoader)
	if err != nil {
		logger.Error().Err(err).Msg("check failed to connect")
		reportQueryFailure(err, *verbose)
		return 1
	}
	defer cancel()

	incidents, err := pool.SearchIncidentsByLocation(ctx, query, *limit)
	if err != nil {
		logger.Error().Err(err).Str("location", query).Msg("search incidents failed")
		reportQueryFailure(err, *verbose)
		return 1
	}

	if outputFormat == outputFormatText {
		if len(incidents) == 0 {
			fmt.Printf("لم يتم العثور على تحديثات مؤكدة للموقع: %s\n", query)
			return 0
		}
		fmt.Printf("%d تحديثات تم العثور عليها للموقع %s:\n", len(incidents), query)
		writeIncidentCards(os.Stdout, incidents)
		return 0
	}
	return renderIncidents(outputFormat, incidents)
}

func runIncidentSources(args []string) int {
	fs := flag.NewFlagSet("incident-sources", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: tariqi incident-sources [flags] <incident-id>")
		return 2
	}
	incidentID, err := uuid.Parse(strings.TrimSpace(fs.Arg(0)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid incident id: %v\n", err)
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	ctx, cancel, pool, _, err := connectReadPool(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()

	sources, err := pool.IncidentSources(ctx, incidentID.String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query incident sources: %v\n", err)
		return 1
	}
	if len(sources) == 0 {
		fmt.Fprintf(os.Stderr, "No sources recorded for incident %s\n", incidentID)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(sources); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	rows := make([][]string, 0, len(sources))
	for _, source := range sources {
		rows = append(rows, []string{source.RawReportID, string(source.Origin)})
	}
	if err := writeTable([]string{"raw_report_id", "origin"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	return 0
}

// reportQueryFailure prints the localized generic message; the cause only with --verbose.
func reportQueryFailure(err error, verbose bool) {
	fmt.Fprintln(os.Stderr, queryFailureMessage)
	if verbose && err != nil {
		fmt.Fprintf(os.Stderr, "cause: %v\n", err)
	}
}

func renderIncidents(outputFormat string, incidents []db.IncidentRow) int {
	if outputFormat == outputFormatJSON {
		if err := printJSON(incidents); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	if err := writeIncidentTable(os.Stdout, incidents); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	return 0
}

func writeIncidentTable(w io.Writer, incidents []db.IncidentRow) error {
	rows := make([][]string, 0, len(incidents))
	for _, item := range incidents {
		rows = append(rows, []string{
			item.ID,
			truncateForTable(item.RepresentativeText, 60),
			truncateForTable(pointerStringOrEmpty(item.LocationText), 30),
			pointerStringOrEmpty(item.EventType),
			strconv.Itoa(item.ContributingReportCount),
			formatUTCTimestamp(item.LastReportAt),
		})
	}

	return writeTableTo(w,
		[]string{"incident_id", "representative_text", "location", "event_type", "reports", "last_report_at"},
		rows,
	)
}

func writeIncidentCards(w io.Writer, incidents []db.IncidentRow) {
	for i, item := range incidents {
		fmt.Fprintf(w, "\n--- %d ---\n", i+1)
		location := pointerStringOrEmpty(item.LocationText)
		if location == "" {
			location = "غير محدد"
		}
		fmt.Fprintf(w, "الموقع: %s\n", location)
		if eventType := pointerStringOrEmpty(item.EventType); eventType != "" {
			fmt.Fprintf(w, "نوع الحدث: %s\n", eventType)
		}
		if timeText := pointerStringOrEmpty(item.TimeText); timeText != "" {
			fmt.Fprintf(w, "الوقت: %s\n", timeText)
		}
		fmt.Fprintf(w, "الوصف: %s\n", strings.TrimSpace(item.RepresentativeText))
		if !item.LastReportAt.IsZero() {
			fmt.Fprintf(w, "آخر تحديث: %s\n", item.LastReportAt.UTC().Format("2006-01-02 15:04"))
		}
		fmt.Fprintf(w, "عدد البلاغات: %d\n", item.ContributingReportCount)
	}
}
