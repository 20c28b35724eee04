// perfhook runs benchmarks for Travis CI notifications and serves the
// benchmark history.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"
	"go.perfhook.dev/infra/go/metrics2"
	"go.perfhook.dev/infra/go/skerr"
	"go.perfhook.dev/infra/go/sklog"
	"go.perfhook.dev/infra/go/sklog/sklogimpl"
	"go.perfhook.dev/infra/go/sklog/stdlogging"
	"go.perfhook.dev/infra/go/urfavecli"
	"go.perfhook.dev/infra/perfhook/go/aggregator"
	"go.perfhook.dev/infra/perfhook/go/config"
	"go.perfhook.dev/infra/perfhook/go/frontend"
	"go.perfhook.dev/infra/perfhook/go/measurement"
	"go.perfhook.dev/infra/perfhook/go/resultstore"
	"go.perfhook.dev/infra/perfhook/go/types"
)

// recordFlags are the flags of the "record" command.
type recordFlags struct {
	config.Flags
	Dir  string
	Name string
	File string
}

// AsCliFlags returns a slice of cli.Flag.
func (flags *recordFlags) AsCliFlags() []cli.Flag {
	return append(flags.Flags.AsCliFlags(),
		&cli.StringFlag{
			Destination: &flags.Dir,
			Name:        "dir",
			Required:    true,
			Usage:       "The output directory the runner was given, i.e. <results_dir>/<label>/<timestamp>-<commit>.",
		},
		&cli.StringFlag{
			Destination: &flags.Name,
			Name:        "name",
			Required:    true,
			Usage:       "The name of the benchmark.",
		},
		&cli.StringFlag{
			Destination: &flags.File,
			Name:        "file",
			Value:       "-",
			Usage:       "The measurement file to record, '-' for stdin.",
		},
	)
}

func main() {
	var serverFlags config.ServerFlags
	var dataFlags config.Flags
	var recFlags recordFlags

	cliApp := &cli.App{
		Name:  "perfhook",
		Usage: "Runs benchmarks for Travis CI notifications and serves their history.",
		Before: func(c *cli.Context) error {
			// Log to stdout.
			sklogimpl.SetLogger(stdlogging.New(os.Stdout))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:        "run",
				Usage:       "perfhook run --config_filename=perfhook/configs/travis.json",
				Description: "Runs the web server that accepts notifications and serves /data.",
				Flags:       (&serverFlags).AsCliFlags(),
				Action: func(c *cli.Context) error {
					urfavecli.LogFlags(c)
					cfg, err := serverFlags.Load(c.Context)
					if err != nil {
						return err
					}
					metrics2.InitPrometheus(serverFlags.PromPort)
					f, err := frontend.New(context.Background(), cfg)
					if err != nil {
						return err
					}
					sklog.Fatal(f.Serve(serverFlags.Port))
					return nil
				},
			},
			{
				Name:        "data",
				Usage:       "perfhook data --results_dir=./results",
				Description: "Prints the benchmark history as JSON, exactly as served from /data.",
				Flags:       (&dataFlags).AsCliFlags(),
				Action: func(c *cli.Context) error {
					cfg, err := dataFlags.Load(c.Context)
					if err != nil {
						return err
					}
					return printData(c.Context, os.Stdout, cfg)
				},
			},
			{
				Name:        "record",
				Usage:       "perfhook record --dir=$2 --name=parse_json --file=estimates.json",
				Description: "Validates a measurement file and stores it in the results tree. Meant to be called by the runner.",
				Flags:       (&recFlags).AsCliFlags(),
				Action: func(c *cli.Context) error {
					cfg, err := recFlags.Load(c.Context)
					if err != nil {
						return err
					}
					var content []byte
					if recFlags.File == "-" {
						content, err = io.ReadAll(os.Stdin)
					} else {
						content, err = os.ReadFile(recFlags.File)
					}
					if err != nil {
						return skerr.Wrapf(err, "reading measurement")
					}
					return record(c.Context, cfg.MeasurementFormat, recFlags.Dir, recFlags.Name, content)
				},
			},
		},
	}

	err := cliApp.Run(os.Args)
	if err != nil {
		fmt.Printf("\nError: %s\n", err.Error())
		os.Exit(2)
	}
}

// printData writes the aggregated history in cfg.ResultsDir to w.
func printData(ctx context.Context, w io.Writer, cfg *config.InstanceConfig) error {
	benches, err := aggregator.New(resultstore.NewLocal(cfg.ResultsDir), cfg.MeasurementFormat).Load(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return skerr.Wrap(enc.Encode(benches))
}

// record stores content as the measurement of bench name in dir, which must
// be an output directory handed to the runner.
func record(ctx context.Context, format measurement.Format, dir, name string, content []byte) error {
	if _, err := measurement.Parse(format, content); err != nil {
		return skerr.Wrapf(err, "not a valid %s measurement", format)
	}
	dir = filepath.Clean(dir)
	runDir := filepath.Base(dir)
	labelDir := filepath.Dir(dir)
	root := filepath.Dir(labelDir)
	p, err := types.ParseResultPath(filepath.Base(labelDir) + "/" + runDir + "/" + name)
	if err != nil {
		return err
	}
	if err := resultstore.NewLocal(root).Write(ctx, p, content); err != nil {
		return err
	}
	sklog.Infof("Recorded %q", p.Rel())
	return nil
}
