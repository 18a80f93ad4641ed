// Command docdbctl inspects and edits a docdb database described by a YAML
// config file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/andreyvit/docdb"
)

const usage = `usage: docdbctl [-config docdb.yaml] [-v] [-metrics] <command> [args]

commands:
  get <collection> <id>
  set <collection> <id> <json>
  insert <collection> <json>
  del <collection> <id>
  select <collection> [query]
  ids <collection> [query]
  count <collection> [query]
  reindex <collection>
  stats [collection]
  dump [-headers]
`

var errUsage = errors.New("invalid usage")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("docdbctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := fs.String("config", "docdb.yaml", "config file")
	verbose := fs.Bool("v", false, "log scans and index maintenance")
	printMetrics := fs.Bool("metrics", false, "print collected metrics to stderr on exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		logger.Error("cannot load config", "err", err)
		return 1
	}

	metrics := docdb.NewMetrics("docdb")
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		logger.Error("cannot register metrics", "err", err)
		return 1
	}

	db, err := cfg.Open(docdb.Options{Logger: logger, Verbose: *verbose, Metrics: metrics})
	if err != nil {
		logger.Error("cannot open database", "path", cfg.Path, "err", err)
		return 1
	}
	defer db.Close()

	err = execute(ctx, db, fs.Arg(0), fs.Args()[1:], stdout)
	if *printMetrics {
		if merr := writeMetrics(stderr, reg); merr != nil {
			logger.Error("cannot write metrics", "err", merr)
		}
	}
	if errors.Is(err, errUsage) {
		fmt.Fprintf(stderr, "docdbctl: %v\n\n%s", err, usage)
		return 2
	} else if err != nil {
		logger.Error(fs.Arg(0)+" failed", "err", err)
		return 1
	}
	return 0
}

func execute(ctx context.Context, db *docdb.DB, cmd string, args []string, stdout io.Writer) error {
	enc := json.NewEncoder(stdout)
	coll := func(n int) (*docdb.Collection, error) {
		if len(args) < n {
			return nil, fmt.Errorf("%w: %s needs %d arguments", errUsage, cmd, n)
		}
		c := db.CollectionNamed(args[0])
		if c == nil {
			return nil, fmt.Errorf("collection %q is not declared in the config", args[0])
		}
		return c, nil
	}
	queryArg := func() (docdb.Query, error) {
		return parseQuery(strings.Join(args[1:], " "))
	}

	switch cmd {
	case "get":
		c, err := coll(2)
		if err != nil {
			return err
		}
		rec, err := c.Get(args[1])
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("%s/%s not found", c.Name(), args[1])
		}
		return enc.Encode(rec)

	case "set":
		c, err := coll(3)
		if err != nil {
			return err
		}
		rec, err := parseRecord(args[2])
		if err != nil {
			return err
		}
		changed, err := c.Set(args[1], rec)
		if err != nil {
			return err
		}
		return enc.Encode(map[string]any{"id": args[1], "changed": nonNil(changed)})

	case "insert":
		c, err := coll(2)
		if err != nil {
			return err
		}
		rec, err := parseRecord(args[1])
		if err != nil {
			return err
		}
		id, err := c.Insert(rec)
		if err != nil {
			return err
		}
		return enc.Encode(map[string]any{"id": id})

	case "del":
		c, err := coll(2)
		if err != nil {
			return err
		}
		existed, err := c.Del(args[1])
		if err != nil {
			return err
		}
		return enc.Encode(map[string]any{"id": args[1], "deleted": existed})

	case "select":
		c, err := coll(1)
		if err != nil {
			return err
		}
		q, err := queryArg()
		if err != nil {
			return err
		}
		for row, err := range c.Select(ctx, q) {
			if err != nil {
				return err
			}
			if err := enc.Encode(map[string]any{"id": row.ID, "record": row.Record}); err != nil {
				return err
			}
		}
		return nil

	case "ids":
		c, err := coll(1)
		if err != nil {
			return err
		}
		q, err := queryArg()
		if err != nil {
			return err
		}
		for id, err := range c.SelectIDs(ctx, q) {
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, id)
		}
		return nil

	case "count":
		c, err := coll(1)
		if err != nil {
			return err
		}
		q, err := queryArg()
		if err != nil {
			return err
		}
		n, err := c.Count(ctx, q)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, n)
		return nil

	case "reindex":
		c, err := coll(1)
		if err != nil {
			return err
		}
		return c.Reindex()

	case "stats":
		var colls []*docdb.Collection
		if len(args) > 0 {
			c, err := coll(1)
			if err != nil {
				return err
			}
			colls = append(colls, c)
		} else {
			colls = db.Collections()
		}
		for _, c := range colls {
			st, err := c.Stats()
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "%s: %s\n", c.Name(), st.String())
		}
		return nil

	case "dump":
		flags := docdb.DumpAll
		if len(args) > 0 && args[0] == "-headers" {
			flags = docdb.DumpCollectionHeaders | docdb.DumpStats
		}
		s, err := db.Dump(flags)
		fmt.Fprint(stdout, s)
		return err

	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func parseRecord(s string) (docdb.Record, error) {
	var rec docdb.Record
	if err := json.Unmarshal([]byte(s), &rec); err != nil {
		return nil, fmt.Errorf("invalid record: %w", err)
	}
	if rec == nil {
		return nil, fmt.Errorf("invalid record: must be a JSON object")
	}
	return rec, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	mfs, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
