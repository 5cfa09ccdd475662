// tsq is a command-line client for a Typesense-compatible search service.
//
// Usage:
//
//	tsq [-config path] <command> [flags]
//
// Commands:
//
//	health                 check node health
//	collections            list collections
//	search -c <coll> -q <q> -by <fields> [-filter <expr>] [-vq <clause>] [-n <per page>]
//	vq <clause>            validate a vector query and print its canonical form
//	serve                  run the in-memory development server
//	version                print build information
//
// The configuration is read from config/$ENV.yaml (default: local) unless -config is given.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tsclient"
	"github.com/kailas-cloud/tsclient/internal/config"
	logpkg "github.com/kailas-cloud/tsclient/internal/logger"
	"github.com/kailas-cloud/tsclient/internal/version"
)

const usage = `usage: tsq [-config path] <command> [flags]

commands:
  health       check node health
  collections  list collections
  search       run a search (-c, -q, -by, -filter, -sort, -vq, -n)
  vq           validate a vector query clause
  serve        run the in-memory development server
  version      print build information
`

var errUsage = errors.New("invalid usage")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		cancel()
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		fmt.Fprintln(os.Stderr, "tsq:", err)
		os.Exit(1)
	}
}

// app carries what every command needs.
type app struct {
	env    string
	cfg    config.Config
	logger *zap.Logger
	out    io.Writer
}

func run(ctx context.Context, args []string, out io.Writer) error {
	global := flag.NewFlagSet("tsq", flag.ContinueOnError)
	global.SetOutput(io.Discard)
	configPath := global.String("config", "", "config file (default: config/$ENV.yaml)")
	if err := global.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if global.NArg() == 0 {
		return errUsage
	}
	cmd, rest := global.Arg(0), global.Args()[1:]

	// Commands that need no configuration.
	switch cmd {
	case "vq":
		return runVQ(rest, out)
	case "version":
		return writeJSON(out, map[string]string{
			"version": version.Version,
			"commit":  version.Commit,
			"date":    version.Date,
		})
	}

	a, err := newApp(*configPath, out)
	if err != nil {
		return err
	}
	defer func() { _ = a.logger.Sync() }()

	switch cmd {
	case "serve":
		return a.serve(ctx)
	case "health":
		return a.withClient(ctx, a.health)
	case "collections":
		return a.withClient(ctx, a.collections)
	case "search":
		return a.withClient(ctx, func(ctx context.Context, c *tsclient.Client) error {
			return a.search(ctx, c, rest)
		})
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func newApp(configPath string, out io.Writer) (*app, error) {
	env := config.GetEnv()
	var (
		cfg config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return &app{env: env, cfg: cfg, logger: logger, out: out}, nil
}

// clientOptions maps the configuration to client options.
func (a *app) clientOptions() []tsclient.Option {
	cc := a.cfg.Client
	opts := []tsclient.Option{
		tsclient.WithNodes(cc.Nodes...),
		tsclient.WithAPIKey(cc.APIKey),
		tsclient.WithConnectionTimeout(cc.ConnectionTimeout()),
		tsclient.WithRetries(cc.NumRetries, cc.RetryInterval()),
		tsclient.WithHealthcheckInterval(cc.HealthcheckInterval()),
		tsclient.WithLogger(a.logger),
	}
	if cc.NearestNode != "" {
		opts = append(opts, tsclient.WithNearestNode(cc.NearestNode))
	}
	if cc.RateLimit > 0 {
		opts = append(opts, tsclient.WithRateLimit(cc.RateLimit, cc.Burst))
	}
	if cc.Tracing {
		opts = append(opts, tsclient.WithTracing())
	}
	if a.cfg.Cache.Addr != "" {
		opts = append(opts, tsclient.WithValkeyCache(a.cfg.Cache.Addr, a.cfg.Cache.Password, a.cfg.Cache.TTL()))
	}
	if e := a.cfg.Embedding; e.Model != "" {
		opts = append(opts, tsclient.WithOpenAIEmbedder(tsclient.OpenAIConfig{
			APIKey:     e.APIKey,
			BaseURL:    e.BaseURL,
			Model:      e.Model,
			Dimensions: e.Dimensions,
			Provider:   e.Provider,
		}))
		if e.QueryInstruction != "" {
			opts = append(opts, tsclient.WithEmbeddingInstruction(e.QueryInstruction))
		}
		if e.Budget.Enabled() {
			opts = append(opts, tsclient.WithEmbeddingBudget(tsclient.EmbeddingBudget{
				DailyTokens:   e.Budget.DailyTokens,
				MonthlyTokens: e.Budget.MonthlyTokens,
				Action:        tsclient.BudgetAction(e.Budget.Action),
			}))
		}
	}
	return opts
}

func (a *app) withClient(ctx context.Context, fn func(context.Context, *tsclient.Client) error) error {
	c, err := tsclient.New(a.clientOptions()...)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer c.Close()
	return fn(ctx, c)
}

func (a *app) health(ctx context.Context, c *tsclient.Client) error {
	report := c.Ready(ctx)
	if err := writeJSON(a.out, report); err != nil {
		return err
	}
	if report.Status == tsclient.HealthError {
		return errors.New("cluster is not healthy")
	}
	return nil
}

func (a *app) collections(ctx context.Context, c *tsclient.Client) error {
	list, err := c.Collections().List(ctx)
	if err != nil {
		return err //nolint:wrapcheck // already carries the operation
	}
	return writeJSON(a.out, list)
}

func (a *app) search(ctx context.Context, c *tsclient.Client, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	coll := fs.String("c", "", "collection")
	q := fs.String("q", "", "query text (default: * with -vq)")
	by := fs.String("by", "", "comma-separated fields to query")
	filter := fs.String("filter", "", "filter_by expression")
	sortBy := fs.String("sort", "", "sort_by expression")
	vq := fs.String("vq", "", "vector query clause")
	perPage := fs.Int("n", 0, "hits per page")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if *coll == "" {
		return fmt.Errorf("%w: search requires -c", errUsage)
	}

	params := &tsclient.SearchParameters{
		Q:        *q,
		QueryBy:  *by,
		FilterBy: *filter,
		SortBy:   *sortBy,
		PerPage:  *perPage,
	}
	if *vq != "" {
		parsed, err := tsclient.ParseVectorQuery(*vq)
		if err != nil {
			return fmt.Errorf("-vq: %w", err)
		}
		params.VectorQuery = &parsed
		if params.Q == "" {
			params.Q = "*"
		}
	}

	res, err := c.Search(*coll).Query(ctx, params)
	if err != nil {
		return err //nolint:wrapcheck // already carries the operation
	}
	return writeJSON(a.out, res)
}

// vqView is the JSON form of a parsed vector query.
type vqView struct {
	Canonical        string            `json:"canonical"`
	Field            string            `json:"field"`
	Vector           []float32         `json:"vector"`
	ID               *string           `json:"id,omitempty"`
	K                *int              `json:"k,omitempty"`
	FlatSearchCutoff *int              `json:"flat_search_cutoff,omitempty"`
	Params           map[string]string `json:"params,omitempty"`
}

func runVQ(args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: vq requires a clause", errUsage)
	}
	q, err := tsclient.ParseVectorQuery(strings.Join(args, " "))
	if err != nil {
		return err //nolint:wrapcheck // the sentinel names the problem
	}

	v := vqView{
		Canonical: q.String(),
		Field:     q.FieldName(),
		Vector:    q.Vector(),
		Params:    q.Params(),
	}
	if v.Vector == nil {
		v.Vector = []float32{}
	}
	if id, ok := q.ID(); ok {
		v.ID = &id
	}
	if k, ok := q.K(); ok {
		v.K = &k
	}
	if n, ok := q.FlatSearchCutoff(); ok {
		v.FlatSearchCutoff = &n
	}
	return writeJSON(out, v)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
