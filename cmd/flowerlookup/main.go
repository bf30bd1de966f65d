// Command flowerlookup resolves a flower label against Wikipedia from the shell.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "endpoint", Usage: "MediaWiki action API endpoint", EnvVars: []string{"WIKI_ENDPOINT"}},
		&cli.IntFlag{Name: "thumb-size", Usage: "thumbnail width in pixels", Value: 500},
		&cli.DurationFlag{Name: "timeout", Usage: "overall lookup timeout", Value: 0},
		&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error", Value: "warn"},
	}

	return &cli.App{
		Name:  "flowerlookup",
		Usage: "look up the encyclopedia summary for a flower label",
		Commands: []*cli.Command{
			{
				Name:      "lookup",
				Usage:     "fetch and print the summary record for a label",
				ArgsUsage: "<label>",
				Flags:     flags,
				Action:    LookupAction,
			},
			{
				Name:      "url",
				Usage:     "print the request URL for a label without sending it",
				ArgsUsage: "<label>",
				Flags:     flags,
				Action:    URLAction,
			},
		},
	}
}
