package app

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"horse.fit/tariqi/internal/auth"
	"horse.fit/tariqi/internal/cli"
	"horse.fit/tariqi/internal/config"
	"horse.fit/tariqi/internal/logging"
	"horse.fit/tariqi/internal/textnorm"
)

// readTextArg returns the joined positional args, or stdin when there are none.
func readTextArg(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	raw, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

func runNormalize(args []string) int {
	fs := flag.NewFlagSet("normalize", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	text, err := readTextArg(fs.Args(), os.Stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger, err := logging.New("local", "warn")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	normalized, tokens := textnorm.New(logger).NormalizeAndTokenize(text)

	if outputFormat == outputFormatJSON {
		if err := printJSON(map[string]any{"normalized": normalized, "tokens": tokens}); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}
	fmt.Printf("normalized=%s\n", normalized)
	fmt.Printf("tokens=%s\n", strings.Join(tokens, " | "))
	return 0
}

func runClassify(args []string) int {
	fs := flag.NewFlagSet("classify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	nerEndpoint := fs.String("ner-endpoint", "", "NER service endpoint (defaults to NER_ENDPOINT)")
	nerTimeout := fs.Duration("ner-timeout", 10*time.Second, "NER request timeout")
	keywordsFile := fs.String("keywords-file", "", "Keyword vocabulary YAML (defaults to KEYWORDS_FILE, then the embedded list)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *nerTimeout <= 0 {
		fmt.Fprintln(os.Stderr, "--ner-timeout must be > 0")
		return 2
	}

	text, err := readTextArg(fs.Args(), os.Stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if envLoader != nil {
		// A missing .env is normal for this command.
		_, _ = envLoader.Load()
	}
	endpoint := firstNonEmpty(*nerEndpoint, os.Getenv("NER_ENDPOINT"))
	vocabPath := firstNonEmpty(*keywordsFile, os.Getenv("KEYWORDS_FILE"))

	logger, err := logging.NewWithWriter(os.Stderr, "local", "warn")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	classifier, err := buildClassifier(endpoint, vocabPath, &config.Config{NERTimeout: *nerTimeout}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build classifier: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *nerTimeout+5*time.Second)
	defer cancel()

	if err := printJSON(classifier.ExtractAndClassify(ctx, text)); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
		return 1
	}
	return 0
}

func runHashSecret(args []string) int {
	fs := flag.NewFlagSet("hash-secret", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	secret := fs.String("secret", "", "Webhook secret token (read from stdin when empty)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	value := strings.TrimSpace(*secret)
	if value == "" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			fmt.Fprintf(os.Stderr, "Failed to read secret: %v\n", err)
			return 1
		}
		value = strings.TrimSpace(line)
	}
	if value == "" {
		fmt.Fprintln(os.Stderr, "secret must not be empty")
		return 2
	}

	hash, err := auth.HashSecret(value)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash secret: %v\n", err)
		return 1
	}
	fmt.Println(hash)
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
