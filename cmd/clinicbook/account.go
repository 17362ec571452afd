package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	appconfig "github.com/wolfman30/clinicbook/internal/config"
	httpmiddleware "github.com/wolfman30/clinicbook/internal/http/middleware"
	"github.com/wolfman30/clinicbook/internal/session"
	"github.com/wolfman30/clinicbook/internal/slots"
)

func loginCmd(creds *credentials) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in and print the stored session id",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.close()

			sess, err := rt.signIn(ctx, creds)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Signed in as %s (%s)\n", sess.User.FullName(), sess.Role)
			fmt.Fprintf(out, "session: %s\nexpires: %s\n", sess.ID, sess.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}
}

func logoutCmd(creds *credentials) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget a stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if creds.sessionID == "" {
				return fmt.Errorf("--session is required")
			}
			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.close()

			if _, err := rt.signIn(ctx, creds); err != nil {
				return err
			}
			if err := rt.app.Sessions.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func registerCmd(creds *credentials) *cobra.Command {
	var (
		reg   session.Registration
		birth string
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a patient or doctor account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, err := session.ParseRole(creds.role)
			if err != nil {
				return errors.New(session.NoticeSelectRole)
			}
			reg.Role = r
			reg.Email = creds.email
			reg.Password = creds.password
			if reg.Email == "" || reg.Password == "" {
				return errors.New("--email and --password are required")
			}
			if birth != "" {
				if reg.DateOfBirth, err = slots.ParseDate(birth); err != nil {
					return err
				}
			}

			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.close()

			person, err := rt.app.Sessions.Register(ctx, reg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s %s (id %d)\n", r, person.FullName(), person.ID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&reg.FirstName, "first-name", "", "first name")
	f.StringVar(&reg.LastName, "last-name", "", "last name")
	f.StringVar(&birth, "birth-date", "", "date of birth, YYYY-MM-DD")
	f.StringVar(&reg.Gender, "gender", "", "gender")
	f.StringVar(&reg.Phone, "phone", "", "phone number")
	f.StringVar(&reg.Address, "address", "", "postal address")
	f.IntVar(&reg.SpecializationID, "specialization", 0, "specialization id (doctors)")
	return cmd
}

func specializationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "specializations",
		Short: "List the clinic's specializations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.close()

			specs, err := rt.app.Sessions.Specializations(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME")
			for _, s := range specs {
				fmt.Fprintf(tw, "%d\t%s\n", s.ID, s.Name)
			}
			return tw.Flush()
		},
	}
}

func doctorsCmd(creds *credentials) *cobra.Command {
	var specialization int
	cmd := &cobra.Command{
		Use:   "doctors",
		Short: "List doctors, optionally for one specialization",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.close()

			if _, err := rt.signIn(ctx, creds); err != nil {
				return err
			}
			if err := rt.app.Sessions.RefreshDirectory(ctx); err != nil {
				return err
			}
			dir := rt.app.Sessions.Directory()
			doctors := dir.All()
			if specialization > 0 {
				doctors = dir.FilterBySpecialization(specialization)
			}
			if len(doctors) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No doctors found.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSPECIALIZATION")
			for _, d := range doctors {
				fmt.Fprintf(tw, "%d\tDr. %s\t%s\n", d.ID, d.FullName(), d.Specialization.Name)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&specialization, "specialization", 0, "specialization id")
	return cmd
}

func consoleTokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "console-token",
		Short: "Issue a bearer token for the console",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := appconfig.Load()
			token, err := httpmiddleware.IssueConsoleToken(cfg.ConsoleJWTSecret, subject, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", hostname(), "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	return cmd
}

func hostname() string {
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "console"
}

func parseID(raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid appointment id %q", raw)
	}
	return id, nil
}
