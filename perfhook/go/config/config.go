// Package config is the configuration of a perfhook instance.
package config

import (
	"context"
	_ "embed" // For embed functionality.
	"encoding/json"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v2"
	"go.perfhook.dev/infra/go/exec"
	"go.perfhook.dev/infra/go/jsonschema"
	"go.perfhook.dev/infra/go/skerr"
	"go.perfhook.dev/infra/go/sklog"
	"go.perfhook.dev/infra/go/util"
	"go.perfhook.dev/infra/perfhook/go/measurement"
)

//go:embed schema.json
var schema []byte

const (
	// DefaultResultsDir is the results root used when none is configured.
	DefaultResultsDir = "./results"

	// DefaultRunner is the runner used when none is configured.
	DefaultRunner = "./bench.sh"

	// DefaultPrimaryBranch is the only branch benchmarked by default.
	DefaultPrimaryBranch = "master"
)

// InstanceConfig is the configuration of a single perfhook instance.
type InstanceConfig struct {
	// ResultsDir is the root of the results tree.
	ResultsDir string `json:"results_dir"`

	// Runner is the command line of the benchmark runner. The commit and the
	// output directory are appended as the last two arguments. Parsed with
	// shell quoting rules, but not run through a shell.
	Runner string `json:"runner"`

	// PrimaryBranch is the only branch that triggers benchmark runs.
	PrimaryBranch string `json:"primary_branch,omitempty"`

	// MeasurementFormat is the format of every file in the results tree.
	MeasurementFormat measurement.Format `json:"measurement_format,omitempty" jsonschema:"enum=estimates,enum=mean"`

	// AllowedRepos, if not empty, lists the only repo slugs, e.g.
	// "owner/name", whose notifications are accepted.
	AllowedRepos []string `json:"allowed_repos,omitempty"`

	// PublicKeyFile is a PEM file that replaces the compiled-in Travis key.
	PublicKeyFile string `json:"public_key_file,omitempty"`

	// ResourcesDir holds the static files of the web UI. The UI isn't served
	// if empty.
	ResourcesDir string `json:"resources_dir,omitempty"`
}

// Default returns the configuration used when no config file is given.
func Default() *InstanceConfig {
	return &InstanceConfig{
		ResultsDir:        DefaultResultsDir,
		Runner:            DefaultRunner,
		PrimaryBranch:     DefaultPrimaryBranch,
		MeasurementFormat: measurement.FormatEstimates,
	}
}

// applyDefaults fills in the optional fields left empty.
func (c *InstanceConfig) applyDefaults() {
	if c.PrimaryBranch == "" {
		c.PrimaryBranch = DefaultPrimaryBranch
	}
	if c.MeasurementFormat == "" {
		c.MeasurementFormat = measurement.FormatEstimates
	}
}

// RunnerCommand returns Runner split into the program and its arguments.
func (c *InstanceConfig) RunnerCommand() ([]string, error) {
	cmd, err := exec.ParseCommand(c.Runner)
	if err != nil {
		return nil, skerr.Wrapf(err, "parsing runner %q", c.Runner)
	}
	return append([]string{cmd.Name}, cmd.Args...), nil
}

// Validate returns all the problems found in c.
func (c *InstanceConfig) Validate() error {
	var errs *multierror.Error
	if c.ResultsDir == "" {
		errs = multierror.Append(errs, skerr.Fmt("results_dir must not be empty"))
	}
	if _, err := c.RunnerCommand(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if _, err := measurement.ToFormat(string(c.MeasurementFormat)); err != nil {
		errs = multierror.Append(errs, err)
	}
	if c.PublicKeyFile != "" {
		if _, err := os.Stat(c.PublicKeyFile); err != nil {
			errs = multierror.Append(errs, skerr.Wrapf(err, "public_key_file"))
		}
	}
	return errs.ErrorOrNil()
}

// validate checks document against the schema and returns the parsed config.
// On a schema violation the list of violations is also returned.
func validate(ctx context.Context, document []byte) (*InstanceConfig, []string, error) {
	violations, err := jsonschema.Validate(ctx, document, schema)
	if err != nil {
		return nil, violations, skerr.Wrap(err)
	}
	cfg := &InstanceConfig{}
	if err := json.Unmarshal(document, cfg); err != nil {
		return nil, nil, skerr.Wrapf(err, "decoding config")
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, nil, skerr.Wrap(err)
	}
	return cfg, nil, nil
}

// InstanceConfigFromFile returns the validated InstanceConfig found in
// filename.
//
// If the file doesn't conform to the schema the list of schema violations is
// also returned.
func InstanceConfigFromFile(ctx context.Context, filename string) (*InstanceConfig, []string, error) {
	var cfg *InstanceConfig
	var violations []string
	err := util.WithReadFile(filename, func(r io.Reader) error {
		b, err := io.ReadAll(r)
		if err != nil {
			return skerr.Wrapf(err, "failed to read bytes")
		}
		cfg, violations, err = validate(ctx, b)
		return err
	})
	if err != nil {
		return nil, violations, skerr.Wrapf(err, "loading %q", filename)
	}
	return cfg, nil, nil
}

// Flags are the command line flags shared by all perfhook commands.
type Flags struct {
	ConfigFilename string
	ResultsDir     string
}

// AsCliFlags returns a slice of cli.Flag.
func (flags *Flags) AsCliFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Destination: &flags.ConfigFilename,
			Name:        "config_filename",
			Value:       "",
			Usage:       "The name of the JSON instance config file. Defaults are used if empty.",
		},
		&cli.StringFlag{
			Destination: &flags.ResultsDir,
			Name:        "results_dir",
			Value:       "",
			Usage:       "Overrides results_dir of the instance config.",
		},
	}
}

// Load returns the instance config selected by flags.
func (flags *Flags) Load(ctx context.Context) (*InstanceConfig, error) {
	cfg := Default()
	if flags.ConfigFilename != "" {
		var violations []string
		var err error
		cfg, violations, err = InstanceConfigFromFile(ctx, flags.ConfigFilename)
		for _, v := range violations {
			sklog.Errorf("%s: %s", flags.ConfigFilename, v)
		}
		if err != nil {
			return nil, err
		}
	}
	if flags.ResultsDir != "" {
		cfg.ResultsDir = flags.ResultsDir
	}
	return cfg, nil
}

// ServerFlags are the flags of the "run" command.
type ServerFlags struct {
	Flags
	Port     string
	PromPort string
	Local    bool
}

// AsCliFlags returns a slice of cli.Flag.
func (flags *ServerFlags) AsCliFlags() []cli.Flag {
	return append(flags.Flags.AsCliFlags(),
		&cli.StringFlag{
			Destination: &flags.Port,
			Name:        "port",
			Value:       ":8000",
			Usage:       "HTTP service address (e.g., ':8000')",
		},
		&cli.StringFlag{
			Destination: &flags.PromPort,
			Name:        "prom_port",
			Value:       ":20000",
			Usage:       "Metrics service address (e.g., ':20000')",
		},
		&cli.BoolFlag{
			Destination: &flags.Local,
			Name:        "local",
			Value:       false,
			Usage:       "Running locally if true. As opposed to in production.",
		},
	)
}
