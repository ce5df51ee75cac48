package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"chessaroo/internal/server/storage"

	"github.com/google/uuid"
	"github.com/lixenwraith/auth"
	"golang.org/x/term"
)

const minPasswordLength = 6

// Run is the entry point for the db maintenance commands
func Run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("subcommand required: init, migrate, delete, games, imports, game, user")
	}

	switch args[0] {
	case "init", "migrate":
		return runMigrate(args[0], args[1:])
	case "delete":
		return runDelete(args[1:])
	case "games":
		return runGames(args[1:])
	case "imports":
		return runImports(args[1:])
	case "game":
		if len(args) < 2 || args[1] != "delete" {
			return fmt.Errorf("game subcommand required: delete")
		}
		return runGameDelete(args[2:])
	case "user":
		if len(args) < 2 {
			return fmt.Errorf("user subcommand required: add, delete, set-password, list")
		}
		return runUser(args[1], args[2:])
	default:
		return fmt.Errorf("unknown subcommand: %s", args[0])
	}
}

// dbFlags registers the connection flags shared by every subcommand
func dbFlags(fs *flag.FlagSet) (driver, dsn *string) {
	driver = fs.String("driver", string(storage.DialectSQLite), "Database driver: sqlite3 or postgres")
	dsn = fs.String("path", "", "SQLite file path or Postgres DSN (required)")
	return driver, dsn
}

func openStore(driver, dsn string) (*storage.Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database path required")
	}
	store, err := storage.Open(driver, dsn, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return store, nil
}

func runMigrate(name string, args []string) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	driver, dsn := dbFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(*driver, *dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	applied, err := store.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	version, err := store.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	fmt.Printf("Database ready at: %s (schema v%d, %d migration(s) applied)\n", *dsn, version, applied)
	return nil
}

func runDelete(args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	driver, dsn := dbFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(*driver, *dsn)
	if err != nil {
		return err
	}
	if err := store.DeleteDB(); err != nil {
		store.Close()
		return fmt.Errorf("failed to delete database: %w", err)
	}

	fmt.Printf("Database deleted: %s\n", *dsn)
	return nil
}

func runGames(args []string) error {
	fs := flag.NewFlagSet("games", flag.ContinueOnError)
	driver, dsn := dbFlags(fs)
	userID := fs.String("userId", "", "Owner ID to filter (optional, * for all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(*driver, *dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	games, err := store.QueryGames(context.Background(), *userID)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	if len(games) == 0 {
		fmt.Println("No games found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tOwner\tTitle\tOpponent\tStatus\tResult\tMoves\tCreated")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, g := range games {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			g.ID,
			shortID(g.UserID),
			g.Title,
			orNone(g.OpponentName),
			g.Status,
			g.Result,
			g.MoveCount,
			g.CreatedAt.Format("2006-01-02 15:04:05"),
		)
	}
	w.Flush()

	fmt.Printf("\nFound %d game(s)\n", len(games))
	return nil
}

func runImports(args []string) error {
	fs := flag.NewFlagSet("imports", flag.ContinueOnError)
	driver, dsn := dbFlags(fs)
	userID := fs.String("userId", "", "Owner ID to filter (optional, * for all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(*driver, *dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	imports, err := store.ListImportedGames(context.Background(), *userID)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	if len(imports) == 0 {
		fmt.Println("No imported games found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tOwner\tChess.com ID\tWhite\tBlack\tFinished\tImported")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, g := range imports {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%t\t%s\n",
			g.ID,
			shortID(g.UserID),
			g.ChessComGameID,
			orNone(g.WhiteUsername),
			orNone(g.BlackUsername),
			g.IsFinished,
			g.ImportedAt.Format("2006-01-02 15:04:05"),
		)
	}
	w.Flush()

	fmt.Printf("\nFound %d imported game(s)\n", len(imports))
	return nil
}

func runGameDelete(args []string) error {
	fs := flag.NewFlagSet("game delete", flag.ContinueOnError)
	driver, dsn := dbFlags(fs)
	gameID := fs.Int64("id", 0, "Game ID (required)")
	userID := fs.String("userId", "", "Owner ID (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *gameID < 1 || *userID == "" {
		return fmt.Errorf("-id and -userId required")
	}

	store, err := openStore(*driver, *dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteGame(context.Background(), *gameID, *userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("game %d not found for owner %s", *gameID, *userID)
		}
		return fmt.Errorf("failed to delete game: %w", err)
	}

	fmt.Printf("Game deleted: %d\n", *gameID)
	return nil
}

func runUser(subcommand string, args []string) error {
	switch subcommand {
	case "add":
		return runUserAdd(args)
	case "delete":
		return runUserDelete(args)
	case "set-password":
		return runUserSetPassword(args)
	case "list":
		return runUserList(args)
	default:
		return fmt.Errorf("unknown user subcommand: %s", subcommand)
	}
}

// readPassword takes the flag value, or prompts without echo when interactive
func readPassword(flagValue string, interactive bool, prompt string) (string, error) {
	var password string
	switch {
	case interactive && flagValue != "":
		return "", fmt.Errorf("cannot use -interactive with -password")
	case interactive:
		fmt.Print(prompt)
		pwBytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		password = string(pwBytes)
	case flagValue != "":
		password = flagValue
	default:
		return "", fmt.Errorf("password required: use -password or -interactive")
	}

	if len(password) < minPasswordLength {
		return "", fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	return password, nil
}

func runUserAdd(args []string) error {
	fs := flag.NewFlagSet("user add", flag.ContinueOnError)
	driver, dsn := dbFlags(fs)
	username := fs.String("username", "", "Username (required)")
	email := fs.String("email", "", "Email address (required)")
	password := fs.String("password", "", "Password (optional, will prompt with -interactive)")
	interactive := fs.Bool("interactive", false, "Interactive password prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}

	name := strings.TrimSpace(*username)
	mail := strings.ToLower(strings.TrimSpace(*email))
	if name == "" || mail == "" {
		return fmt.Errorf("username and email required")
	}

	plain, err := readPassword(*password, *interactive, "Enter password: ")
	if err != nil {
		return err
	}
	passwordHash, err := auth.HashPassword(plain)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	store, err := openStore(*driver, *dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	if taken, err := store.UsernameTaken(ctx, name, ""); err != nil {
		return err
	} else if taken {
		return fmt.Errorf("username already exists: %s", name)
	}
	if taken, err := store.EmailTaken(ctx, mail, ""); err != nil {
		return err
	} else if taken {
		return fmt.Errorf("email already registered: %s", mail)
	}

	// Generate user ID with conflict check
	var userID string
	for attempts := 0; ; attempts++ {
		if attempts == 10 {
			return fmt.Errorf("failed to generate unique user ID after 10 attempts")
		}
		userID = uuid.New().String()
		exists, err := store.UserIDExists(ctx, userID)
		if err != nil {
			return err
		}
		if !exists {
			break
		}
	}

	now := time.Now().UTC()
	record := storage.UserRecord{
		UserID:       userID,
		Username:     name,
		Email:        mail,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := store.CreateUser(ctx, record); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Printf("User created successfully:\n")
	fmt.Printf("  ID: %s\n", userID)
	fmt.Printf("  Username: %s\n", name)
	fmt.Printf("  Email: %s\n", mail)
	return nil
}

func runUserDelete(args []string) error {
	fs := flag.NewFlagSet("user delete", flag.ContinueOnError)
	driver, dsn := dbFlags(fs)
	username := fs.String("username", "", "Username to delete")
	userID := fs.String("id", "", "User ID to delete")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if (*username == "") == (*userID == "") {
		return fmt.Errorf("specify exactly one of -username or -id")
	}

	store, err := openStore(*driver, *dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	targetID := *userID
	if targetID == "" {
		user, err := store.GetUserByLogin(ctx, *username, "")
		if err != nil {
			return fmt.Errorf("user not found: %s", *username)
		}
		targetID = user.UserID
	}

	if err := store.DeleteUser(ctx, targetID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	fmt.Printf("User deleted: %s\n", targetID)
	return nil
}

func runUserSetPassword(args []string) error {
	fs := flag.NewFlagSet("user set-password", flag.ContinueOnError)
	driver, dsn := dbFlags(fs)
	username := fs.String("username", "", "Username (required)")
	password := fs.String("password", "", "New password")
	interactive := fs.Bool("interactive", false, "Interactive password prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" {
		return fmt.Errorf("username required")
	}

	plain, err := readPassword(*password, *interactive, "Enter new password: ")
	if err != nil {
		return err
	}

	store, err := openStore(*driver, *dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	user, err := store.GetUserByLogin(ctx, *username, "")
	if err != nil {
		return fmt.Errorf("user not found: %s", *username)
	}

	passwordHash, err := auth.HashPassword(plain)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := store.UpdateUserPassword(ctx, user.UserID, passwordHash, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	// Existing sessions must not outlive the old password
	if err := store.DeleteSessionsByUserID(ctx, user.UserID); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}

	fmt.Printf("Password updated for user: %s\n", *username)
	return nil
}

func runUserList(args []string) error {
	fs := flag.NewFlagSet("user list", flag.ContinueOnError)
	driver, dsn := dbFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(*driver, *dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	users, err := store.GetAllUsers(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	if len(users) == 0 {
		fmt.Println("No users found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "User ID\tUsername\tEmail\tCreated\tLast Login")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, u := range users {
		lastLogin := "never"
		if u.LastLogin != nil {
			lastLogin = u.LastLogin.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			shortID(u.UserID),
			u.Username,
			u.Email,
			u.CreatedAt.Format("2006-01-02 15:04"),
			lastLogin,
		)
	}
	w.Flush()

	fmt.Printf("\nTotal users: %d\n", len(users))
	return nil
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}

func orNone(s *string) string {
	if s == nil || *s == "" {
		return "(none)"
	}
	return *s
}
