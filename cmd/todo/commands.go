package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"todo-client/apiclient"
	"todo-client/dashboard"
	"todo-client/domain"
	"todo-client/session"
)

var errNotSignedIn = errors.New("not signed in: run todo login")

func newFlags(name string, a *app) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func runLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlags("login", a)
	passwordStdin := fs.Bool("password-stdin", false, "read the password from stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: todo login <email> [--password-stdin]")
	}
	password, err := a.readSecret("Password: ", *passwordStdin)
	if err != nil {
		return err
	}
	id, err := a.session.Login(ctx, fs.Arg(0), password)
	if err != nil {
		return userError(err)
	}
	fmt.Fprintf(a.stdout, "Signed in as %s\n", displayName(id))
	return nil
}

func runSignup(ctx context.Context, a *app, args []string) error {
	fs := newFlags("signup", a)
	name := fs.String("name", "", "display name")
	passwordStdin := fs.Bool("password-stdin", false, "read the password and its confirmation from stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: todo signup <email> [--name NAME] [--password-stdin]")
	}
	password, err := a.readSecret("Password: ", *passwordStdin)
	if err != nil {
		return err
	}
	confirm, err := a.readSecret("Confirm password: ", *passwordStdin)
	if err != nil {
		return err
	}
	if err := a.session.Signup(ctx, fs.Arg(0), password, confirm, *name); err != nil {
		return userError(err)
	}
	fmt.Fprintln(a.stdout, "Account created. Run todo login to sign in.")
	return nil
}

func runLogout(ctx context.Context, a *app, _ []string) error {
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "Signed out")
	return nil
}

func runWhoami(ctx context.Context, a *app, _ []string) error {
	if !a.session.IsAuthenticated(ctx) {
		return errNotSignedIn
	}
	id, ok := a.session.CurrentUserWithProfile(ctx)
	if !ok {
		return errors.New("signed in, but the profile is unavailable")
	}
	fmt.Fprintln(a.stdout, renderIdentity(id))
	return nil
}

func runList(ctx context.Context, a *app, args []string) error {
	fs := newFlags("list", a)
	filter := fs.String("filter", "all", "all, active or completed")
	search := fs.String("search", "", "case-insensitive match on title or description")
	if err := fs.Parse(args); err != nil {
		return err
	}
	state, ok := domain.ParseFilterState(*filter)
	if !ok {
		return fmt.Errorf("invalid filter %q: want all, active or completed", *filter)
	}
	view, err := dashboard.Load(ctx, a.session, a.tasks)
	if err != nil {
		return signinError(err)
	}
	if view.Banner != "" {
		return a.bannerError(view.Banner)
	}
	if view.HasUser {
		fmt.Fprintln(a.stdout, renderHeader(view.User))
	}
	fmt.Fprintln(a.stdout, renderTasks(a.tasks.Visible(state, *search)))
	fmt.Fprintln(a.stdout, renderStats(view.Stats))
	return nil
}

func runAdd(ctx context.Context, a *app, args []string) error {
	fs := newFlags("add", a)
	description := fs.StringP("description", "d", "", "task description")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !a.session.IsAuthenticated(ctx) {
		return errNotSignedIn
	}
	created, err := a.tasks.Create(ctx, strings.Join(fs.Args(), " "), *description)
	if err != nil {
		return a.taskError(err)
	}
	fmt.Fprintln(a.stdout, renderTasks([]domain.Task{created}))
	return nil
}

func runToggle(ctx context.Context, a *app, args []string) error {
	id, err := taskID("toggle", args)
	if err != nil {
		return err
	}
	if !a.session.IsAuthenticated(ctx) {
		return errNotSignedIn
	}
	if err := a.tasks.Load(ctx); err != nil {
		return a.taskError(err)
	}
	if err := a.tasks.Toggle(ctx, id); err != nil {
		return a.taskError(err)
	}
	for _, t := range a.tasks.Tasks() {
		if t.ID == id {
			fmt.Fprintln(a.stdout, renderTasks([]domain.Task{t}))
		}
	}
	return nil
}

func runRemove(ctx context.Context, a *app, args []string) error {
	id, err := taskID("rm", args)
	if err != nil {
		return err
	}
	if !a.session.IsAuthenticated(ctx) {
		return errNotSignedIn
	}
	if err := a.tasks.Delete(ctx, id); err != nil {
		return a.taskError(err)
	}
	fmt.Fprintf(a.stdout, "Deleted task %d\n", id)
	return nil
}

func runStats(ctx context.Context, a *app, _ []string) error {
	view, err := dashboard.Load(ctx, a.session, a.tasks)
	if err != nil {
		return signinError(err)
	}
	if view.Banner != "" {
		return a.bannerError(view.Banner)
	}
	fmt.Fprintln(a.stdout, renderStats(view.Stats))
	return nil
}

// runChat sends the arguments as one message, or every stdin line in turn
// when there are none.
func runChat(ctx context.Context, a *app, args []string) error {
	if !a.session.IsAuthenticated(ctx) {
		return errNotSignedIn
	}
	var history []domain.ChatMessage
	send := func(msg string) error {
		resp, err := a.api.Chat(ctx, domain.ChatRequest{Message: msg, ConversationHistory: history})
		if err != nil {
			if errors.Is(err, apiclient.ErrUnauthorized) {
				a.session.HandleUnauthorized(ctx)
				return errNotSignedIn
			}
			return err
		}
		history = resp.ConversationHistory
		fmt.Fprintln(a.stdout, renderReply(resp.Response))
		return nil
	}
	if len(args) > 0 {
		return send(strings.Join(args, " "))
	}
	scanner := bufio.NewScanner(a.stdin)
	for scanner.Scan() {
		msg := strings.TrimSpace(scanner.Text())
		if msg == "" {
			continue
		}
		if err := send(msg); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func taskID(name string, args []string) (int64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("usage: todo %s <id>", name)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", args[0])
	}
	return id, nil
}

// readSecret prompts on the terminal with echo disabled, or reads one line
// from stdin when fromStdin is set or no terminal is attached.
func (a *app) readSecret(prompt string, fromStdin bool) (string, error) {
	if f, ok := a.stdin.(*os.File); ok && !fromStdin && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(a.stderr, prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	if a.lines == nil {
		a.lines = bufio.NewReader(a.stdin)
	}
	line, err := a.lines.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (a *app) taskError(err error) error {
	if errors.Is(err, apiclient.ErrUnauthorized) {
		return errNotSignedIn
	}
	if banner := a.tasks.Banner(); banner != "" {
		return a.bannerError(banner)
	}
	return err
}

func (a *app) bannerError(banner string) error {
	a.tasks.DismissBanner()
	return errors.New(banner)
}

func userError(err error) error {
	return errors.New(session.UserMessage(err))
}

func signinError(err error) error {
	if errors.Is(err, dashboard.ErrSigninRequired) {
		return errNotSignedIn
	}
	return err
}

func displayName(id domain.Identity) string {
	switch {
	case id.Name != "":
		return id.Name
	case id.Email != "":
		return id.Email
	}
	return id.ID
}
