// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopfront Contributors

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/shopfront/shopfront/internal/access"
	"github.com/shopfront/shopfront/internal/auth"
	"github.com/shopfront/shopfront/internal/authctx"
	"github.com/shopfront/shopfront/internal/client"
	"github.com/shopfront/shopfront/internal/nav"
)

type consoleFlags struct {
	token  string
	server string
	path   string
}

// NewConsoleCmd creates the console command, an interactive client that runs
// the same auth state machine a back office UI would.
func NewConsoleCmd() *cobra.Command {
	flags := &consoleFlags{}
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Interactive back office client",
		Long: `Start an interactive client against a running shopfront server.

The client resolves the session token's role through the server's profile
endpoint, follows the same redirects the web UI does, and prints every
auth state change. Commands:

  goto PATH     navigate to PATH
  token TOKEN   install a new session token
  nav           print the visible navigation
  whoami        print the current state
  refresh       re-resolve the current session
  signout       end the session
  quit          exit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if flags.server == "" {
				return oops.Code("CONSOLE_INVALID_FLAGS").Errorf("--server is required")
			}

			var idClient *auth.IdentityClient
			if cfg.Identity.URL != "" {
				idClient, err = auth.NewIdentityClient(cfg.Identity.URL, nil)
				if err != nil {
					return err
				}
			}
			sessions := auth.NewRemoteProvider(idClient)
			if flags.token != "" {
				if err := sessions.SetToken(flags.token); err != nil {
					return err
				}
			}

			profiles, err := client.NewProfileClient(flags.server, nil)
			if err != nil {
				return err
			}
			resolver, err := access.NewResolver(profiles, logger)
			if err != nil {
				return err
			}
			manifest, err := nav.LoadManifest(cfg.Nav.Manifest)
			if err != nil {
				return err
			}

			out := &syncWriter{w: cmd.OutOrStdout()}
			navigator := newConsoleNavigator(flags.path, out)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			provider, err := authctx.Mount(ctx, authctx.Config{
				Sessions:    sessions,
				Resolver:    resolver,
				Navigator:   navigator,
				Routes:      access.DefaultRouteTable(),
				LoginPath:   cfg.Routes.Login,
				NeutralPath: cfg.Routes.Neutral,
				Logger:      logger,
			})
			if err != nil {
				return err
			}
			defer provider.Unmount()

			unsubscribe := provider.Subscribe(func(s authctx.State) {
				fmt.Fprintf(out, "state: %s\n", describeState(s))
			})
			defer unsubscribe()

			c := &console{
				provider:  provider,
				sessions:  sessions,
				navigator: navigator,
				manifest:  manifest,
				out:       out,
			}
			return c.run(ctx, cmd.InOrStdin())
		},
	}
	cmd.Flags().StringVar(&flags.token, "token", "", "session token issued by the identity service")
	cmd.Flags().StringVar(&flags.server, "server", "", "shopfront API base URL (e.g. http://127.0.0.1:8080)")
	cmd.Flags().StringVar(&flags.path, "path", "/admin", "path to start on")
	return cmd
}

// console executes commands against a mounted provider.
type console struct {
	provider  *authctx.Provider
	sessions  *auth.RemoteProvider
	navigator *consoleNavigator
	manifest  nav.Manifest
	out       io.Writer
}

// run reads commands from in until quit, end of input or ctx is done.
func (c *console) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := c.exec(ctx, line); quit {
				return nil
			}
		}
	}
}

// exec runs one command line and reports whether the console should exit.
func (c *console) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "quit", "exit":
		return true
	case "goto":
		if len(fields) != 2 {
			fmt.Fprintln(c.out, "usage: goto PATH")
			return false
		}
		c.navigator.Redirect(fields[1])
		c.provider.Navigated()
	case "token":
		if len(fields) != 2 {
			fmt.Fprintln(c.out, "usage: token TOKEN")
			return false
		}
		if err := c.sessions.SetToken(fields[1]); err != nil {
			fmt.Fprintf(c.out, "error: %v\n", err)
		}
	case "refresh":
		c.provider.Refresh()
	case "whoami":
		fmt.Fprintf(c.out, "%s at %s\n", describeState(c.provider.State()), c.navigator.CurrentPath())
	case "nav":
		state, err := c.provider.WaitSettled(ctx)
		if err != nil {
			fmt.Fprintf(c.out, "error: %v\n", err)
			return false
		}
		for _, it := range nav.Filter(c.manifest, state) {
			fmt.Fprintf(c.out, "  %-12s %s\n", it.Label, it.Target)
		}
	case "signout":
		if err := c.provider.SignOut(ctx); err != nil {
			fmt.Fprintf(c.out, "sign-out: %v\n", err)
		}
	default:
		fmt.Fprintf(c.out, "unknown command %q\n", fields[0])
	}
	return false
}

func describeState(s authctx.State) string {
	if s.Status != authctx.StatusAuthenticated {
		return s.Status.String()
	}
	return fmt.Sprintf("authenticated as %s (%s)", s.Identity.SubjectID, s.Role)
}

// consoleNavigator tracks the current path and announces redirects.
type consoleNavigator struct {
	mu   sync.Mutex
	path string
	out  io.Writer
}

func newConsoleNavigator(path string, out io.Writer) *consoleNavigator {
	return &consoleNavigator{path: path, out: out}
}

func (n *consoleNavigator) CurrentPath() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.path
}

func (n *consoleNavigator) Redirect(target string) {
	n.mu.Lock()
	n.path = target
	n.mu.Unlock()
	fmt.Fprintf(n.out, "-> %s\n", target)
}

// syncWriter serializes writes from the command loop and state listeners.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p) //nolint:wrapcheck // passthrough writer
}
