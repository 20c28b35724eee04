// Package urfavecli contains utility functions for working with
// https://github.com/urfave/cli.
package urfavecli

import (
	"github.com/urfave/cli/v2"
	"go.perfhook.dev/infra/go/sklog"
)

// LogFlags logs all the flag values for the running command and all of its
// parents.
func LogFlags(cliContext *cli.Context) {
	for _, c := range cliContext.Lineage() {
		if c.Command == nil {
			continue
		}
		for _, flag := range c.Command.Flags {
			name := flag.Names()[0]
			sklog.Infof("Flags: --%s=%v", name, c.Value(name))
		}
	}
}
