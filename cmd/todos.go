package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/caltodo/internal/client"
	"github.com/teemow/caltodo/internal/todo"
)

const (
	defaultGatewayURL = "http://localhost:8080"

	// displayLayout is how task date-times are printed.
	displayLayout = "2006-01-02 15:04"
)

// todosFlags are shared by all todos subcommands.
type todosFlags struct {
	gateway  string
	cookie   string
	timeZone string
}

func newTodosCmd() *cobra.Command {
	flags := &todosFlags{}

	cmd := &cobra.Command{
		Use:   "todos",
		Short: "Manage tasks through a running gateway",
		Long: `List, add and remove tasks through a running caltodo gateway.

Sign in once in a browser (see "caltodo todos login"), then pass the value
of the caltodo_session cookie with --session-cookie or CALTODO_SESSION.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&flags.gateway, "gateway", envOr("CALTODO_GATEWAY", defaultGatewayURL), "Gateway base URL (env CALTODO_GATEWAY)")
	cmd.PersistentFlags().StringVar(&flags.cookie, "session-cookie", os.Getenv("CALTODO_SESSION"), "Session cookie value (env CALTODO_SESSION)")
	cmd.PersistentFlags().StringVar(&flags.timeZone, "time-zone", "Local", "Time zone for entering and printing date-times")

	cmd.AddCommand(
		newTodosLoginCmd(flags),
		newTodosStatusCmd(flags),
		newTodosListCmd(flags),
		newTodosAddCmd(flags),
		newTodosRmCmd(flags),
		newTodosLogoutCmd(flags),
	)
	return cmd
}

func (f *todosFlags) client() (*client.Client, error) {
	var opts []client.Option
	if f.cookie != "" {
		opts = append(opts, client.WithSessionCookie(f.cookie))
	}
	return client.New(f.gateway, opts...)
}

func (f *todosFlags) location() (*time.Location, error) {
	loc, err := time.LoadLocation(f.timeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", f.timeZone, err)
	}
	return loc, nil
}

// load fetches the current list into a new board.
func (f *todosFlags) load(ctx context.Context) (*client.Board, error) {
	c, err := f.client()
	if err != nil {
		return nil, err
	}
	board := client.NewBoard(c)
	if err := board.Load(ctx); err != nil {
		return nil, err
	}
	return board, nil
}

func newTodosLoginCmd(flags *todosFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Print the URL that starts Google sign-in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.client()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.LoginURL())
			return nil
		},
	}
}

func newTodosStatusCmd(flags *todosFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the session is signed in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.client()
			if err != nil {
				return err
			}
			ok, err := c.AuthStatus(cmd.Context())
			if err != nil {
				return err
			}
			if ok {
				fmt.Fprintln(cmd.OutOrStdout(), "authorized")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "not authorized")
			}
			return nil
		},
	}
}

func newTodosListCmd(flags *todosFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List upcoming tasks",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := flags.location()
			if err != nil {
				return err
			}
			board, err := flags.load(cmd.Context())
			if err != nil {
				return err
			}
			writeTasks(cmd.OutOrStdout(), board.Tasks(), loc)
			return nil
		},
	}
}

func newTodosAddCmd(flags *todosFlags) *cobra.Command {
	var date, clock string

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task",
		Long: `Add a task at the given date and time. The title is every argument
joined by spaces.

  caltodo todos add --date 2025-01-01 --time 09:00 우유 사기`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := flags.location()
			if err != nil {
				return err
			}
			c, err := flags.client()
			if err != nil {
				return err
			}
			board := client.NewBoard(c)
			task, err := board.AddAt(cmd.Context(), strings.Join(args, " "), date, clock, loc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s  %s\n", task.DateTime.In(loc).Format(displayLayout), normalizeTitle(task.Title))
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Date as YYYY-MM-DD")
	cmd.Flags().StringVar(&clock, "time", "", "Time as HH:MM")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("time")
	return cmd
}

func newTodosRmCmd(flags *todosFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <number>",
		Short: "Delete a task by its number in the list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			num, err := strconv.Atoi(args[0])
			if err != nil || num < 1 {
				return fmt.Errorf("invalid task number: %s", args[0])
			}
			board, err := flags.load(cmd.Context())
			if err != nil {
				return err
			}
			tasks := board.Tasks()
			if num > len(tasks) {
				return fmt.Errorf("task number out of range: %d", num)
			}
			if err := board.Delete(cmd.Context(), tasks[num-1].ID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

func newTodosLogoutCmd(flags *todosFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the gateway session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.client()
			if err != nil {
				return err
			}
			if err := c.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

// writeTasks prints one numbered line per task:
// "{N:>4}  {YYYY-MM-DD HH:MM}  {TITLE}".
func writeTasks(w io.Writer, tasks []todo.Task, loc *time.Location) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "no upcoming tasks")
		return
	}
	for i, task := range tasks {
		fmt.Fprintf(w, "%4d  %s  %s\n", i+1, task.DateTime.In(loc).Format(displayLayout), normalizeTitle(task.Title))
	}
}

// normalizeTitle keeps a title on one line.
func normalizeTitle(title string) string {
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.ReplaceAll(title, "\n", " ")
	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
