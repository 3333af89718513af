// Package probe implements a command-line harness for investigating
// first-operation latency against a remote document database. It executes
// an ordered list of read and write operations strictly one at a time,
// logging a timestamped line for each operation's start and terminal
// state so runs can be compared by eye or by grep.
package probe

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"docprobe/internal/docdb"
)

// Exit codes. Operation failures are part of the harness's normal output
// and do not affect the exit code; only setup faults and bad usage do.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

const (
	targetDocument = "ProbeHarness/TestDoc"

	defaultKey   = "TestKey"
	defaultValue = "TestValue"

	defaultURL  = "ws://localhost:8000/rpc"
	emulatorURL = "ws://localhost:8080/rpc"

	defaultNamespace = "diagnostics"
	defaultDatabase  = "probe"
	defaultUsername  = "root"
	defaultPassword  = "root"
)

// Main runs the harness and returns its exit code. args is the command
// line after the program name. The outcome log goes to stdout; diagnostic
// logging goes to stderr.
func Main(args []string, stdout, stderr io.Writer) int {
	rep := NewReporter(stdout)

	opts, err := ParseArgs(args)
	if err != nil {
		rep.Logf("ERROR: Invalid command-line arguments: %v", err)
		return ExitUsage
	}

	if opts.ShowHelp {
		fmt.Fprint(stdout, helpText)
		return ExitOK
	}

	level := zerolog.InfoLevel
	if opts.Debug {
		rep.Logf("Enabling debug logging")
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(stderr).Level(level).With().Timestamp().Logger()

	conf, err := buildConfig(opts, &logger)
	if err != nil {
		rep.Logf("ERROR: %v", err)
		return ExitFailure
	}

	rep.Logf("Creating document database client")
	client, err := docdb.Open(conf)
	if err != nil {
		rep.Logf("ERROR: Creating document database client FAILED: %v", err)
		return ExitFailure
	}
	defer client.Close()

	if opts.UseEmulator {
		rep.Logf("Using the local emulator")
	}

	key, value := defaultKey, defaultValue
	if opts.KeySet {
		key = opts.Key
	}
	if opts.ValueSet {
		value = opts.Value
	}

	runner := NewRunner(client.Document(targetDocument), rep, key, value)
	if err := runner.Run(opts.Ops); err != nil {
		return ExitFailure
	}
	return ExitOK
}

// buildConfig assembles the client configuration from the environment and
// the parsed flags. The emulator flag overrides any configured endpoint.
func buildConfig(opts *Options, logger *zerolog.Logger) (docdb.Config, error) {
	conf := docdb.NewConfig(envOrDefault("DOCPROBE_URL", defaultURL))
	conf.Namespace = envOrDefault("DOCPROBE_NS", defaultNamespace)
	conf.Database = envOrDefault("DOCPROBE_DB", defaultDatabase)
	conf.Username = envOrDefault("DOCPROBE_USER", defaultUsername)
	conf.Password = envOrDefault("DOCPROBE_PASS", defaultPassword)
	conf.Logger = logger

	if raw, ok := os.LookupEnv("DOCPROBE_GET_TIMEOUT"); ok {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return conf, fmt.Errorf("parsing DOCPROBE_GET_TIMEOUT: %w", err)
		}
		conf.GetTimeout = d
	}
	if raw, ok := os.LookupEnv("DOCPROBE_SET_TIMEOUT"); ok {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return conf, fmt.Errorf("parsing DOCPROBE_SET_TIMEOUT: %w", err)
		}
		conf.SetTimeout = d
	}

	if opts.UseEmulator {
		conf.URL = emulatorURL
	}
	return conf, nil
}

func envOrDefault(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}
