package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/wolfman30/clinicbook/internal/app/bootstrap"
	appconfig "github.com/wolfman30/clinicbook/internal/config"
	"github.com/wolfman30/clinicbook/internal/session"
	"github.com/wolfman30/clinicbook/pkg/logging"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "ignoring .env:", err)
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// credentials are the sign-in flags shared by every command that talks to the
// clinic API on behalf of a user.
type credentials struct {
	sessionID string
	role      string
	email     string
	password  string
}

func newRootCmd() *cobra.Command {
	creds := &credentials{}
	root := &cobra.Command{
		Use:          "clinicbook",
		Short:        "Book and manage clinic appointments",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&creds.sessionID, "session", os.Getenv("CLINICBOOK_SESSION"), "stored session id to restore")
	flags.StringVar(&creds.role, "role", envOr("CLINICBOOK_ROLE", string(session.RolePatient)), "patient or doctor")
	flags.StringVar(&creds.email, "email", os.Getenv("CLINICBOOK_EMAIL"), "account email")
	flags.StringVar(&creds.password, "password", os.Getenv("CLINICBOOK_PASSWORD"), "account password")

	root.AddCommand(
		serveCmd(),
		loginCmd(creds),
		logoutCmd(creds),
		registerCmd(creds),
		specializationsCmd(),
		doctorsCmd(creds),
		slotsCmd(creds),
		bookCmd(creds),
		appointmentsCmd(creds),
		changeCmd(creds, "cancel", "Cancel one of your scheduled appointments"),
		changeCmd(creds, "complete", "Mark a scheduled appointment as completed"),
		consoleTokenCmd(),
	)
	return root
}

// runtime is one process's view of the client.
type runtime struct {
	cfg    *appconfig.Config
	logger *logging.Logger
	app    *bootstrap.App
}

func newRuntime(ctx context.Context) (*runtime, error) {
	cfg := appconfig.Load()
	logger := logging.NewWithWriter(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	app, err := bootstrap.Build(ctx, cfg, logger, bootstrap.Options{})
	if err != nil {
		return nil, err
	}
	return &runtime{cfg: cfg, logger: logger, app: app}, nil
}

func (rt *runtime) close() {
	if err := rt.app.Close(); err != nil {
		rt.logger.Warn("close runtime", "error", err)
	}
}

// signIn restores --session when given and logs in with the credential flags
// otherwise.
func (rt *runtime) signIn(ctx context.Context, creds *credentials) (*session.Session, error) {
	if creds.sessionID != "" {
		sess, err := rt.app.Sessions.Restore(ctx, creds.sessionID)
		if errors.Is(err, session.ErrSessionExpired) {
			return nil, errors.New(session.NoticeSessionExpired)
		}
		return sess, err
	}
	role, err := session.ParseRole(creds.role)
	if err != nil {
		return nil, errors.New(session.NoticeSelectRole)
	}
	if creds.email == "" || creds.password == "" {
		return nil, errors.New("--email and --password are required without --session")
	}
	return rt.app.Sessions.Login(ctx, role, creds.email, creds.password)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
