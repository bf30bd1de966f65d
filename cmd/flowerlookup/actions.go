package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/example/flower-lookup/internal/logging"
	"github.com/example/flower-lookup/internal/wiki"
)

// lookupOutput is printed by the lookup command.
type lookupOutput struct {
	Label  string       `json:"label"`
	Found  bool         `json:"found"`
	Record *wiki.Record `json:"record,omitempty"`
	Kind   string       `json:"error_kind,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// LookupAction runs one lookup and prints the outcome as JSON. A failed lookup still
// prints its outcome and exits non-zero.
func LookupAction(c *cli.Context) error {
	label, err := labelArg(c)
	if err != nil {
		return err
	}
	client, logger, err := newClient(c)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout := c.Duration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		record wiki.Record
		err    error
	}
	done := make(chan outcome, 1)
	client.Lookup(ctx, label, wiki.Callbacks{
		Success: func(r wiki.Record) { done <- outcome{record: r} },
		Failure: func(err error) { done <- outcome{err: err} },
	})
	o := <-done

	out := lookupOutput{Label: label, Found: o.err == nil}
	if o.err != nil {
		out.Kind = wiki.Kind(o.err)
		out.Error = o.err.Error()
	} else {
		out.Record = &o.record
	}
	if err := printJSON(c, out); err != nil {
		return err
	}
	if o.err != nil {
		return cli.Exit(fmt.Sprintf("lookup failed: %s", out.Kind), 2)
	}
	return nil
}

// URLAction prints the request URL that lookup would send.
func URLAction(c *cli.Context) error {
	label, err := labelArg(c)
	if err != nil {
		return err
	}
	client, _, err := newClient(c)
	if err != nil {
		return err
	}
	u, err := client.BuildURL(label)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, u)
	return err
}

func labelArg(c *cli.Context) (string, error) {
	if c.NArg() == 0 {
		return "", errors.New("a label argument is required")
	}
	return strings.Join(c.Args().Slice(), " "), nil
}

func newClient(c *cli.Context) (*wiki.Client, *zap.Logger, error) {
	logger, err := logging.NewLogger(c.String("log-level"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	client := wiki.NewClient(wiki.Config{
		Endpoint:      c.String("endpoint"),
		ThumbnailSize: c.Int("thumb-size"),
	}, logger)
	return client, logger, nil
}

func printJSON(c *cli.Context, v interface{}) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
