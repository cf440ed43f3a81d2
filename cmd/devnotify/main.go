// Command devnotify drives the reminder client core from a shell: it keeps
// device reminders in the local store and talks to the reminder service when
// a user token is given.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"devnotify/internal/client"
	"devnotify/internal/config"
	"devnotify/internal/models"

	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	err := newRootCmd(os.Stdout).ExecuteContext(ctx)
	cancel()
	if err != nil {
		log.Fatal(err)
	}
}

// app carries the persistent flags shared by every subcommand.
type app struct {
	stdout     io.Writer
	configPath string
	userID     int
	token      string
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	a := &app{stdout: stdout}

	cmd := &cobra.Command{
		Use:           "devnotify",
		Short:         "Event reminders for this device and your account",
		Long:          "devnotify keeps event reminders on this device and syncs them into your account once you log in.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "./data/devnotify.yaml", "client config file")
	cmd.PersistentFlags().IntVar(&a.userID, "user", 0, "authenticated user id")
	cmd.PersistentFlags().StringVar(&a.token, "token", os.Getenv("DEVNOTIFY_TOKEN"), "access token for --user")

	cmd.AddCommand(a.newListCmd())
	cmd.AddCommand(a.newStatusCmd())
	cmd.AddCommand(a.newToggleCmd())
	cmd.AddCommand(a.newSaveCmd())
	cmd.AddCommand(a.newSavedCmd())
	cmd.AddCommand(a.newLoginCmd())
	cmd.AddCommand(a.newDeletedCmd())

	return cmd
}

func (a *app) owner() models.Owner {
	return models.Authenticated(a.userID, a.token)
}

// connect opens the client core. Unless migrate is false, an authenticated
// run first moves pending device reminders into the account.
func (a *app) connect(ctx context.Context, migrate bool) (*client.Client, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	c, err := client.Open(cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("open client: %w", err)
	}

	if owner := a.owner(); migrate && owner.IsAuthenticated() {
		if _, err := c.Engine.Login(ctx, owner); err != nil {
			log.Printf("[sync] migration did not complete: %v", err)
		}
	}
	return c, nil
}

func (a *app) print(v any) error {
	out := json.NewEncoder(a.stdout)
	out.SetIndent("", "  ")
	return out.Encode(v)
}

func eventID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid event id %q", s)
	}
	return id, nil
}

func (a *app) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List reminders of the current owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.connect(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer c.Close()

			reminders, err := c.Engine.List(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(reminders)
		},
	}
}

func (a *app) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <eventId>",
		Short: "Show the reminder and saved state of one event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := eventID(args[0])
			if err != nil {
				return err
			}
			c, err := a.connect(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer c.Close()

			st, err := c.State(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.print(st)
		},
	}
}

func (a *app) newToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <eventId> <name> <date>",
		Short: "Set or remove a reminder (date is RFC 3339)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := eventID(args[0])
			if err != nil {
				return err
			}
			date, err := time.Parse(time.RFC3339, args[2])
			if err != nil {
				return fmt.Errorf("invalid event date: %w", err)
			}
			ev := models.Event{ID: id, Name: args[1], Date: date}

			c, err := a.connect(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Local.SaveEvents(cmd.Context(), []models.Event{ev}); err != nil {
				return err
			}
			v, err := c.Engine.Toggle(cmd.Context(), ev)
			if encErr := a.print(v); encErr != nil {
				return encErr
			}
			return err
		},
	}
}

func (a *app) newSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save <eventId>",
		Short: "Bookmark an event on this device, or drop the bookmark",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := eventID(args[0])
			if err != nil {
				return err
			}
			c, err := a.connect(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer c.Close()

			st, err := c.ToggleSaved(cmd.Context(), id)
			if encErr := a.print(st); encErr != nil {
				return encErr
			}
			return err
		},
	}
}

func (a *app) newSavedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "saved",
		Short: "List events bookmarked on this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.connect(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer c.Close()

			events, err := c.Saved(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(events)
		},
	}
}

func (a *app) newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Migrate device reminders into the account (--user, --token)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			owner := a.owner()
			if !owner.IsAuthenticated() {
				return fmt.Errorf("login needs --user and --token")
			}
			c, err := a.connect(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer c.Close()

			report, err := c.Engine.Login(cmd.Context(), owner)
			if encErr := a.print(report); encErr != nil {
				return encErr
			}
			return err
		},
	}
}

func (a *app) newDeletedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deleted <eventId>",
		Short: "Cascade an event deletion into reminders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := eventID(args[0])
			if err != nil {
				return err
			}
			c, err := a.connect(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer c.Close()

			return c.Watcher.OnEventDeleted(cmd.Context(), id)
		},
	}
}
