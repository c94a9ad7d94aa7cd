package runner

import (
	"os"
	"path/filepath"

	"github.com/logrusorgru/aurora/v4"
	"github.com/projectdiscovery/goflags"
	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/gologger/formatter"
	"github.com/projectdiscovery/gologger/levels"
	fileutil "github.com/projectdiscovery/utils/file"

	"github.com/edgediscovery/cleanip/pkg/pool"
	"github.com/edgediscovery/cleanip/pkg/suggest"
	"github.com/edgediscovery/cleanip/pkg/version"
)

var au = aurora.New(aurora.WithColors(true))

var (
	// retrieve home directory or fail
	homeDir = func() string {
		home, err := os.UserHomeDir()
		if err != nil {
			gologger.Fatal().Msgf("Failed to get user home directory: %s", err)
		}
		return home
	}()

	defaultConfigLocation = filepath.Join(homeDir, ".config/cleanip/config.yaml")
)

// Options contains the configuration options for tuning a generation session.
type Options struct {
	ConfigFile string

	Count    int
	MaxCount int
	Passes   int
	Interval int // seconds between passes, 0 = one-shot

	AIURL   string
	AIKey   string
	AIModel string
	NoAI    bool
	Timeout int // seconds for the suggestion call

	Output string
	JSON   bool

	Verbose bool
	Silent  bool
	NoColor bool
	Version bool
}

// ParseOptions parses the command line flags provided by a user
func ParseOptions() *Options {
	options := &Options{}
	flagSet := goflags.NewFlagSet()

	flagSet.SetDescription(`cleanip suggests clean CDN edge addresses using a generative model with deterministic prefix-based fallback`)

	flagSet.CreateGroup("input", "Input",
		flagSet.IntVarP(&options.Count, "count", "n", 10, "number of addresses to generate per pass"),
		flagSet.IntVarP(&options.MaxCount, "max-count", "mc", pool.DefaultMaxCount, "upper bound for the per-pass count"),
		flagSet.IntVar(&options.Passes, "passes", 1, "number of generation passes to run"),
		flagSet.IntVarP(&options.Interval, "interval", "iv", 0, "seconds between passes, repeats until interrupted (0 = run passes once)"),
	)

	flagSet.CreateGroup("ai", "AI",
		flagSet.StringVarP(&options.AIURL, "ai-url", "au", suggest.DefaultAPIURL, "chat completions endpoint for address suggestions"),
		flagSet.StringVarP(&options.AIKey, "ai-key", "ak", suggest.APIKeyEnv, "api key for the suggestion endpoint"),
		flagSet.StringVarP(&options.AIModel, "ai-model", "am", suggest.DefaultModel, "model to request suggestions from"),
		flagSet.BoolVarP(&options.NoAI, "no-ai", "na", false, "skip the model call and synthesize all addresses"),
		flagSet.IntVar(&options.Timeout, "timeout", 30, "timeout in seconds for the suggestion call"),
	)

	flagSet.CreateGroup("output", "Output",
		flagSet.StringVarP(&options.Output, "output", "o", "", "file to append generated records to (jsonl)"),
		flagSet.BoolVarP(&options.JSON, "json", "j", false, "write records to stdout as jsonl instead of a table"),
		flagSet.BoolVarP(&options.NoColor, "no-color", "nc", false, "disable output content coloring (ANSI escape codes)"),
		flagSet.BoolVar(&options.Silent, "silent", false, "show only the generated records"),
	)

	flagSet.CreateGroup("debug", "Debug",
		flagSet.StringVar(&options.ConfigFile, "config", defaultConfigLocation, "cli flag configuration file"),
		flagSet.BoolVar(&options.Version, "version", false, "show version of the project"),
		flagSet.BoolVarP(&options.Verbose, "verbose", "v", false, "show verbose output"),
	)

	if err := flagSet.Parse(); err != nil {
		gologger.Fatal().Msgf("%s\n", err)
	}

	// configure aurora for logging
	au = aurora.New(aurora.WithColors(!options.NoColor))

	options.configureOutput()

	showBanner()

	if options.Version {
		gologger.Info().Msgf("Current Version: %s\n", version.Version)
		os.Exit(0)
	}

	if options.ConfigFile != defaultConfigLocation {
		if err := options.loadConfigFrom(options.ConfigFile); err != nil {
			gologger.Fatal().Msgf("Could not load config file %s: %s\n", options.ConfigFile, err)
		}
	}

	return options
}

// configureOutput configures the output on the screen
func (options *Options) configureOutput() {
	// If the user desires verbose output, show verbose output
	if options.Verbose {
		gologger.DefaultLogger.SetMaxLevel(levels.LevelVerbose)
	}
	if options.NoColor {
		gologger.DefaultLogger.SetFormatter(formatter.NewCLI(true))
	}
	if options.Silent {
		gologger.DefaultLogger.SetMaxLevel(levels.LevelSilent)
	}
}

func (options *Options) loadConfigFrom(location string) error {
	data, err := os.ReadFile(location)
	if err != nil {
		return err
	}
	return fileutil.Unmarshal(fileutil.YAML, data, options)
}
