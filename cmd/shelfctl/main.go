package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"media-shelf/internal/database"
	"media-shelf/internal/indexer"
	"media-shelf/internal/logging"
	"media-shelf/internal/startup"
)

const (
	// Default timeout for single database operations
	defaultTimeout = 30 * time.Second

	defaultDatabaseDir = "/database"
	defaultMediaDir    = "/media"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdin, os.Stdout, os.Stderr).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *cli.App {
	passwordFlag := &cli.StringFlag{
		Name:    "password",
		Aliases: []string{"p"},
		Usage:   "Password to set (prompted for when omitted)",
	}

	return &cli.App{
		Name:      "shelfctl",
		Usage:     "Manage the media shelf database",
		Version:   startup.Version,
		Reader:    stdin,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to the database directory",
				EnvVars: []string{"DATABASE_DIR"},
				Value:   defaultDatabaseDir,
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
		},
		Before: setupLogger,
		CommandNotFound: func(c *cli.Context, command string) {
			fmt.Fprintf(c.App.ErrWriter, "Unknown command: %s\n", sanitizeCommand(command))
			cli.ShowAppHelpAndExit(c, 1)
		},
		Commands: []*cli.Command{
			{
				Name:   "users",
				Usage:  "List user accounts",
				Action: withDatabase(listUsers),
			},
			{
				Name:      "adduser",
				Usage:     "Create a user account",
				ArgsUsage: "<username>",
				Flags: []cli.Flag{
					passwordFlag,
					&cli.BoolFlag{Name: "admin", Usage: "Grant administrator rights"},
				},
				Action: withDatabase(addUser),
			},
			{
				Name:      "passwd",
				Usage:     "Change a user's password and revoke their session",
				ArgsUsage: "<username>",
				Flags:     []cli.Flag{passwordFlag},
				Action:    withDatabase(changePassword),
			},
			{
				Name:      "deluser",
				Usage:     "Delete a user account",
				ArgsUsage: "<username>",
				Action:    withDatabase(deleteUser),
			},
			{
				Name:  "index",
				Usage: "Register every title and item under the media directory",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "media",
						Aliases: []string{"m"},
						Usage:   "Path to the media directory",
						EnvVars: []string{"MEDIA_DIR"},
						Value:   defaultMediaDir,
					},
				},
				Action: withDatabase(runIndex),
			},
			{
				Name:  "optimize",
				Usage: "Remove ids of vanished paths and orphaned thumbnails",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "vacuum", Usage: "Compact the database file afterwards", Value: true},
				},
				Action: withDatabase(runOptimize),
			},
			{
				Name:   "status",
				Usage:  "Show row counts",
				Action: withDatabase(showStatus),
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	level, ok := logging.ParseLevel(c.String("log-level"))
	if !ok {
		return fmt.Errorf("unknown log level %q", c.String("log-level"))
	}
	logging.SetLevel(level)
	logging.SetOutput(c.App.ErrWriter)
	return nil
}

// withDatabase opens the database named by --db around a command.
func withDatabase(fn func(c *cli.Context, db *database.Database) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		dbPath := filepath.Join(c.String("db"), startup.DatabaseFile)

		db, err := database.New(c.Context, dbPath, &database.Options{Persistent: true})
		if err != nil {
			return fmt.Errorf("failed to open database %s: %w", dbPath, err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				fmt.Fprintf(c.App.ErrWriter, "Warning: failed to close database: %v\n", err)
			}
		}()

		return fn(c, db)
	}
}

func usernameArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("expected exactly one username, got %d arguments", c.NArg())
	}
	return c.Args().First(), nil
}

// sanitizeCommand returns a safe representation of a command string for
// display, replacing anything outside [a-zA-Z0-9_-] with '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// readPassword returns --password, prompts twice on a terminal, or reads
// one line from piped input.
func readPassword(c *cli.Context) (string, error) {
	if c.IsSet("password") {
		return c.String("password"), nil
	}

	if f, ok := c.App.Reader.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(c.App.Writer, "New Password: ")
		password, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(c.App.Writer)
		if err != nil {
			return "", fmt.Errorf("error reading password: %w", err)
		}

		fmt.Fprint(c.App.Writer, "Confirm Password: ")
		confirm, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(c.App.Writer)
		if err != nil {
			return "", fmt.Errorf("error reading password: %w", err)
		}

		if !bytes.Equal(password, confirm) {
			return "", errors.New("passwords do not match")
		}
		return string(password), nil
	}

	line, err := bufio.NewReader(c.App.Reader).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("error reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("no password given")
	}
	return password, nil
}

func listUsers(c *cli.Context, db *database.Database) error {
	ctx, cancel := context.WithTimeout(c.Context, defaultTimeout)
	defer cancel()

	users, err := db.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		fmt.Fprintln(c.App.Writer, "No users configured.")
		return nil
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USERNAME\tADMIN")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%v\n", u.Username, u.IsAdmin)
	}
	return tw.Flush()
}

func addUser(c *cli.Context, db *database.Database) error {
	username, err := usernameArg(c)
	if err != nil {
		return err
	}
	password, err := readPassword(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, defaultTimeout)
	defer cancel()

	if err := db.CreateUser(ctx, username, password, c.Bool("admin")); err != nil {
		if errors.Is(err, database.ErrUniqueViolation) {
			return fmt.Errorf("user %q already exists", username)
		}
		return err
	}

	fmt.Fprintf(c.App.Writer, "User %s created.\n", username)
	return nil
}

func changePassword(c *cli.Context, db *database.Database) error {
	username, err := usernameArg(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, defaultTimeout)
	defer cancel()

	users, err := db.ListUsers(ctx)
	if err != nil {
		return err
	}
	var current *database.UserSummary
	for i := range users {
		if users[i].Username == username {
			current = &users[i]
			break
		}
	}
	if current == nil {
		return fmt.Errorf("%w: %q", database.ErrUserNotFound, username)
	}

	password, err := readPassword(c)
	if err != nil {
		return err
	}

	if err := db.UpdateUser(ctx, username, username, password, current.IsAdmin); err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, "Password updated successfully.")
	fmt.Fprintln(c.App.Writer, "The user's existing session has been invalidated.")
	return nil
}

func deleteUser(c *cli.Context, db *database.Database) error {
	username, err := usernameArg(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, defaultTimeout)
	defer cancel()

	if err := db.DeleteUser(ctx, username); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "User %s deleted.\n", username)
	return nil
}

func runIndex(c *cli.Context, db *database.Database) error {
	mediaDir, err := filepath.Abs(c.String("media"))
	if err != nil {
		return fmt.Errorf("failed to resolve media directory: %w", err)
	}

	result, err := indexer.New(db, mediaDir, 0).Index(c.Context)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Indexed %s in %v\n", mediaDir, result.Duration.Round(time.Millisecond))
	fmt.Fprintf(c.App.Writer, "  New titles: %d\n  New items:  %d\n  Known:      %d\n  Failed:     %d\n",
		result.Titles, result.Items, result.Existing, result.Failed)
	return nil
}

func runOptimize(c *cli.Context, db *database.Database) error {
	report, err := db.Optimize(c.Context)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Removed %d dangling ids and %d orphaned thumbnails.\n",
		report.DanglingIDs, report.OrphanedThumbnails)

	if c.Bool("vacuum") {
		if err := db.Vacuum(c.Context); err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, "Database compacted.")
	}
	return nil
}

func showStatus(c *cli.Context, db *database.Database) error {
	ctx, cancel := context.WithTimeout(c.Context, defaultTimeout)
	defer cancel()

	counts, err := db.Counts(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Database:   %s\n", db.Path())
	if counts.Users == 0 {
		fmt.Fprintln(c.App.Writer, "Users:      none (run adduser --admin to create one)")
	} else {
		fmt.Fprintf(c.App.Writer, "Users:      %d\n", counts.Users)
	}
	fmt.Fprintf(c.App.Writer, "Titles:     %d\n", counts.Titles)
	fmt.Fprintf(c.App.Writer, "Items:      %d\n", counts.Items)
	fmt.Fprintf(c.App.Writer, "Thumbnails: %d\n", counts.Thumbnails)
	return nil
}
