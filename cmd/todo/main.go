// Command todo is a terminal client for the todo API. It keeps the bearer
// token and the signed-in profile in a credential store between runs.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"todo-client/apiclient"
	"todo-client/config"
	"todo-client/credential"
	"todo-client/session"
	"todo-client/tasks"
)

type app struct {
	cfg     *config.Client
	logger  *log.Logger
	creds   *credential.Store
	api     *apiclient.Client
	session *session.Manager
	tasks   *tasks.Store

	stdin  io.Reader
	lines  *bufio.Reader
	stdout io.Writer
	stderr io.Writer
}

type command struct {
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"login":  {summary: "sign in and store the session", run: runLogin},
	"signup": {summary: "create an account", run: runSignup},
	"logout": {summary: "clear the stored session", run: runLogout},
	"whoami": {summary: "show the signed-in user", run: runWhoami},
	"list":   {summary: "list tasks", run: runList},
	"add":    {summary: "create a task", run: runAdd},
	"toggle": {summary: "flip a task between active and completed", run: runToggle},
	"rm":     {summary: "delete a task", run: runRemove},
	"stats":  {summary: "show task counts", run: runStats},
	"chat":   {summary: "talk to the assistant", run: runChat},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 2
	}

	fs := pflag.NewFlagSet("todo", pflag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.APIBaseURL, "api-url", cfg.APIBaseURL, "API base URL")
	fs.StringVar(&cfg.CredentialBackend, "backend", cfg.CredentialBackend, "credential backend: file, redis or memory")
	fs.StringVar(&cfg.CredentialFile, "credential-file", cfg.CredentialFile, "credential file for the file backend")
	debug := fs.Bool("debug", false, "log at debug level")
	fs.Usage = func() { usage(stderr, fs) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		usage(stderr, fs)
		return 2
	}
	name := fs.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", name)
		usage(stderr, fs)
		return 2
	}

	logger := config.NewLogger()
	logger.SetOutput(stderr)
	switch {
	case *debug:
		logger.SetLevel(log.DebugLevel)
	case logger.GetLevel() == log.InfoLevel:
		logger.SetLevel(log.WarnLevel)
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	a.stdin, a.stdout, a.stderr = stdin, stdout, stderr

	if err := cmd.run(ctx, a, fs.Args()[1:]); err != nil {
		fmt.Fprintln(stderr, renderError(err))
		return 1
	}
	return 0
}

func newApp(cfg *config.Client, logger *log.Logger) (*app, error) {
	backend, err := newBackend(cfg)
	if err != nil {
		return nil, err
	}
	creds := credential.NewStore(backend, logger)
	api := apiclient.New(cfg.APIBaseURL, creds, apiclient.WithLogger(logger), apiclient.WithTimeout(cfg.HTTPTimeout))
	mgr := session.NewManager(creds, api, logger)
	store := tasks.NewStore(api, tasks.WithLogger(logger), tasks.OnUnauthorized(mgr.HandleUnauthorized))
	return &app{cfg: cfg, logger: logger, creds: creds, api: api, session: mgr, tasks: store}, nil
}

func newBackend(cfg *config.Client) (credential.Backend, error) {
	switch cfg.CredentialBackend {
	case config.BackendFile:
		return credential.NewFile(cfg.CredentialFile), nil
	case config.BackendRedis:
		opts, err := config.RedisOptions(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		return credential.NewRedis(redis.NewClient(opts), cfg.RedisPrefix, 0), nil
	case config.BackendMemory:
		return credential.NewMemory(), nil
	}
	return nil, fmt.Errorf("invalid credential backend %q", cfg.CredentialBackend)
}

func usage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintln(w, "usage: todo [flags] <command> [args]")
	fmt.Fprintln(w, "\ncommands:")
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "  %-8s %s\n", n, commands[n].summary)
	}
	fmt.Fprintln(w, "\nflags:")
	fmt.Fprint(w, strings.TrimRight(fs.FlagUsages(), "\n")+"\n")
}
