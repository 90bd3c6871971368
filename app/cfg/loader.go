package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Input and output locations
	DescriptorsDir string `long:"descriptors-dir" env:"DESCRIPTORS_DIR" default:"./configs" description:"Directory containing site descriptor files"`
	OutputDir      string `long:"output-dir" env:"OUTPUT_DIR" default:"./docs" description:"Directory generated feeds are written to"`
	StatusFile     string `long:"status-file" env:"STATUS_FILE" default:"./docs/feedstatus.json" description:"Path of the per-descriptor status JSON file"`
	DBPath         string `long:"db-path" env:"DB_PATH" default:"./html-comb.db" description:"SQLite database holding run history (empty disables history)"`

	// Fetching
	UserAgent    string `long:"user-agent" env:"USER_AGENT" default:"HTML Comb/1.0 (+https://github.com/lysyi3m/html-comb)" description:"User agent string for HTTP requests"`
	Timeout      int    `long:"timeout" env:"TIMEOUT" default:"20" description:"Per-request timeout in seconds"`
	RequestDelay int    `long:"request-delay" env:"REQUEST_DELAY" default:"1000" description:"Pause between network requests in milliseconds"`

	// Feed limits and defaults
	MaxItems int    `long:"max-items" env:"MAX_ITEMS" default:"100" description:"Upper limit on items per feed; descriptor max_items above it is capped"`
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Default timezone for dates without an explicit zone (e.g., UTC, Europe/Amsterdam)"`

	// Serve mode
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port for the serve command"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for the /api endpoints (optional)"`

	Debug bool `long:"debug" env:"DEBUG" description:"Enable debug logging"`

	Args struct {
		Command string `positional-arg-name:"command" description:"run (default), serve or status"`
	} `positional-args:"yes"`
}

// Load reads .env (if present), command-line flags and environment variables.
// It returns nil, nil when help was requested.
func Load() (*Cfg, error) {
	_ = godotenv.Load()

	return Parse(os.Args[1:])
}

func Parse(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	command, err := parseCommand(raw.Args.Command)
	if err != nil {
		return nil, err
	}

	if raw.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive")
	}
	if raw.RequestDelay < 0 {
		return nil, fmt.Errorf("request delay must be non-negative")
	}
	if raw.MaxItems <= 0 {
		return nil, fmt.Errorf("max items must be positive")
	}

	loc, err := time.LoadLocation(cmp.Or(raw.Timezone, "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid timezone '%s': %w", raw.Timezone, err)
	}

	return &Cfg{
		Command:        command,
		DescriptorsDir: raw.DescriptorsDir,
		OutputDir:      raw.OutputDir,
		StatusFile:     raw.StatusFile,
		DBPath:         raw.DBPath,
		UserAgent:      raw.UserAgent,
		Timeout:        time.Duration(raw.Timeout) * time.Second,
		RequestDelay:   time.Duration(raw.RequestDelay) * time.Millisecond,
		MaxItems:       raw.MaxItems,
		Location:       loc,
		Port:           raw.Port,
		APIAccessKey:   raw.APIAccessKey,
		Timezone:       raw.Timezone,
		Debug:          raw.Debug,
		Version:        GetVersion(),
	}, nil
}

func parseCommand(s string) (Command, error) {
	switch Command(s) {
	case "", CommandRun:
		return CommandRun, nil
	case CommandServe, CommandStatus:
		return Command(s), nil
	default:
		return "", fmt.Errorf("unknown command '%s' (expected run, serve or status)", s)
	}
}
