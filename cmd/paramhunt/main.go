// Command paramhunt discovers hidden HTTP parameters against a single
// target: it learns a baseline, scans a wordlist in bounded-concurrency
// batches, bisects anomalous batches down to individual names, and
// reports every confirmed finding to disk, to a live WebSocket feed, or
// both.
package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"go.uber.org/zap"

	"github.com/bcfsec/paramhunt/internal/config"
	"github.com/bcfsec/paramhunt/internal/discovery"
	"github.com/bcfsec/paramhunt/internal/headerlist"
	"github.com/bcfsec/paramhunt/internal/logging"
	"github.com/bcfsec/paramhunt/internal/reporting"
	"github.com/bcfsec/paramhunt/internal/reqtemplate"
	"github.com/bcfsec/paramhunt/internal/transport"
)

// Args is the command-line surface, following the example set elsewhere
// in the pack of one flat struct decoded by go-arg.
type Args struct {
	URL      string `arg:"positional,required" help:"target URL"`
	Wordlist string `arg:"-w,--wordlist,required" help:"path to a newline-separated parameter name wordlist"`

	Method         string   `arg:"-X,--method" default:"GET" help:"HTTP method"`
	At             string   `arg:"--at" default:"path" help:"injection place: path, body, header-value, or headers"`
	DataType       string   `arg:"--data-type" help:"json or urlencoded; inferred from --at and --body when omitted"`
	Body           string   `arg:"--body" help:"request body skeleton for --at body (empty means the candidates form the whole body)"`
	Header         []string `arg:"--header,separate" help:"extra header as Name:Value, repeatable"`
	ParamTemplate  string   `arg:"--param-template" help:"override the per-candidate rendering template, e.g. \"{k}={v}\""`
	Joiner         string   `arg:"--joiner" help:"override the string joining rendered candidates"`
	Encode         bool     `arg:"--encode" help:"percent-encode the rendered candidates"`
	Delay          time.Duration `arg:"--delay" help:"delay before every request, e.g. 100ms"`

	Concurrency        int `arg:"--concurrency" default:"10" help:"max in-flight batches"`
	ChunkSize          int `arg:"--chunk-size" default:"200" help:"candidate names per batch"`
	LearnRequestsCount int `arg:"--learn-requests" default:"5" help:"repeated baseline requests used for the stability probe"`

	Verify        bool `arg:"--verify" help:"re-send every finding alone and drop it if it stops reproducing"`
	Strict        bool `arg:"--strict" help:"skip diff lines already reported for another candidate instead of comparing each response against the baseline alone"`
	ReflectedOnly bool `arg:"--reflected-only" help:"skip the code/diff bisection path, report only reflection findings"`
	MineBaseline  bool `arg:"--mine-baseline" help:"seed extra candidates from names found in the baseline response"`

	Proxy              string `arg:"--proxy" help:"HTTP proxy URL for the scan traffic"`
	InsecureSkipVerify bool   `arg:"-k,--insecure" help:"skip TLS certificate verification"`
	FollowRedirects    bool   `arg:"--follow-redirects"`
	HTTPVersion        string `arg:"--http-version" default:"1.1" help:"1.1 or 2"`

	OutputDir   string `arg:"--output-dir" help:"directory findings are written to (default: $PARAMHUNT_OUTPUT_DIR or ./findings)"`
	LiveAddr    string `arg:"--live-addr" help:"bind address for the live WebSocket feed, e.g. :8090 (default: $PARAMHUNT_LIVE_ADDR, disabled if both unset)"`
	ReplayProxy string `arg:"--replay-proxy" help:"replay every finding through this proxy URL after the run (default: $PARAMHUNT_REPLAY_PROXY)"`
	ReplayOnce  bool   `arg:"--replay-once" help:"replay only the first finding instead of every one"`

	Verbose bool `arg:"-v,--verbose"`
}

func (Args) Version() string {
	return "paramhunt, hidden parameter discovery engine"
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "paramhunt:", err)
		os.Exit(1)
	}
}

func run() error {
	env, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading environment: %w", err)
	}

	var args Args
	arg.MustParse(&args)
	applyEnvDefaults(&args, env)

	log, err := logging.New(args.Verbose)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer log.Sync()

	wordlist, err := loadWordlist(args.Wordlist)
	if err != nil {
		return fmt.Errorf("loading wordlist: %w", err)
	}

	tmplOpts, err := buildTemplateOptions(args)
	if err != nil {
		return err
	}

	tmpl, err := reqtemplate.New(args.Method, args.URL, tmplOpts)
	if err != nil {
		return fmt.Errorf("building request template: %w", err)
	}

	client, err := buildClient(args)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reporter, closeReporter, err := buildReporter(ctx, args, log)
	if err != nil {
		return err
	}
	defer closeReporter()

	var replayClient transport.Client
	if args.ReplayProxy != "" {
		proxyURL, err := url.Parse(args.ReplayProxy)
		if err != nil {
			return fmt.Errorf("parsing replay proxy URL: %w", err)
		}
		replayClient = transport.NewHTTPClient(transport.Options{ProxyURL: proxyURL})
	}

	cfg := discovery.Config{
		Limits: discovery.Limits{
			ChunkSize:          args.ChunkSize,
			Concurrency:        args.Concurrency,
			LearnRequestsCount: args.LearnRequestsCount,
		},
		Verify:        args.Verify,
		Strict:        args.Strict,
		ReflectedOnly: args.ReflectedOnly,
		MineBaseline:  args.MineBaseline,
		ReplayClient:  replayClient,
		ReplayOnce:    args.ReplayOnce,
	}

	loop := discovery.NewLoop(tmpl, client, cfg, reporter, wordlist, log)

	findings, err := loop.Run(ctx)
	if err != nil {
		return fmt.Errorf("running discovery: %w", err)
	}

	log.Sugar().Infof("scan finished, %d finding(s)", len(findings))
	for _, f := range findings {
		fmt.Printf("%-12s %-30s %s\n", f.Reason, f.Name, f.ID)
	}
	return nil
}

func applyEnvDefaults(args *Args, env *config.Env) {
	if args.OutputDir == "" {
		args.OutputDir = env.OutputDir
	}
	if args.LiveAddr == "" {
		args.LiveAddr = env.LiveReportAddr
	}
	if args.ReplayProxy == "" {
		args.ReplayProxy = env.ReplayProxy
	}
}

func loadWordlist(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	return names, scanner.Err()
}

func buildTemplateOptions(args Args) (reqtemplate.Options, error) {
	place, err := parseInjectionPlace(args.At)
	if err != nil {
		return reqtemplate.Options{}, err
	}

	dataType, err := parseDataType(args.DataType)
	if err != nil {
		return reqtemplate.Options{}, err
	}

	var headers []headerlist.Pair
	for _, h := range args.Header {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			return reqtemplate.Options{}, fmt.Errorf("malformed --header %q, want Name:Value", h)
		}
		headers = append(headers, headerlist.Pair{Name: strings.TrimSpace(name), Value: strings.TrimSpace(value)})
	}

	return reqtemplate.Options{
		Headers:        headers,
		Delay:          args.Delay,
		ParamTemplate:  args.ParamTemplate,
		Joiner:         args.Joiner,
		DataType:       dataType,
		InjectionPlace: place,
		Body:           args.Body,
		Encode:         args.Encode,
	}, nil
}

func parseInjectionPlace(s string) (reqtemplate.InjectionPlace, error) {
	switch strings.ToLower(s) {
	case "", "path":
		return reqtemplate.Path, nil
	case "body":
		return reqtemplate.Body, nil
	case "header-value", "headervalue":
		return reqtemplate.HeaderValue, nil
	case "headers":
		return reqtemplate.Headers, nil
	default:
		return 0, fmt.Errorf("unknown --at %q, want path, body, header-value, or headers", s)
	}
}

func parseDataType(s string) (reqtemplate.DataType, error) {
	switch strings.ToLower(s) {
	case "":
		return reqtemplate.DataTypeUnset, nil
	case "json":
		return reqtemplate.Json, nil
	case "urlencoded":
		return reqtemplate.Urlencoded, nil
	default:
		return 0, fmt.Errorf("unknown --data-type %q, want json or urlencoded", s)
	}
}

func buildClient(args Args) (transport.Client, error) {
	opts := transport.Options{
		HTTPVersion:        args.HTTPVersion,
		FollowRedirects:    args.FollowRedirects,
		InsecureSkipVerify: args.InsecureSkipVerify,
	}
	if args.Proxy != "" {
		proxyURL, err := url.Parse(args.Proxy)
		if err != nil {
			return nil, fmt.Errorf("parsing proxy URL: %w", err)
		}
		opts.ProxyURL = proxyURL
	}
	return transport.NewHTTPClient(opts), nil
}

func buildReporter(ctx context.Context, args Args, log *zap.Logger) (reporting.Reporter, func(), error) {
	outputDir := args.OutputDir
	if outputDir == "" {
		outputDir = "./findings"
	}
	fileReporter, err := reporting.NewFileReporter(outputDir)
	if err != nil {
		return nil, func() {}, fmt.Errorf("creating file reporter: %w", err)
	}

	if args.LiveAddr == "" {
		return fileReporter, func() {}, nil
	}

	live := reporting.NewLiveReporter(ctx, log)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", live.ServeWS)
	server := &http.Server{Addr: args.LiveAddr, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Sugar().Errorf("live reporting server stopped: %v", err)
		}
	}()

	closeFn := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}

	return reporting.NewMultiReporter(fileReporter, live), closeFn, nil
}
