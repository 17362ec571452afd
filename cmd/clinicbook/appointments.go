package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wolfman30/clinicbook/internal/appointments"
	"github.com/wolfman30/clinicbook/internal/session"
)

func appointmentsCmd(creds *credentials) *cobra.Command {
	return &cobra.Command{
		Use:   "appointments",
		Short: "List your appointments grouped by status",
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
			groups, err := rt.app.Appointments.Refresh(ctx)
			if err != nil {
				return err
			}
			return printGroups(cmd.OutOrStdout(), sess.Role, groups)
		},
	}
}

func changeCmd(creds *credentials, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <appointment-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.close()

			sess, err := rt.signIn(ctx, creds)
			if err != nil {
				return err
			}
			change := rt.app.Appointments.Cancel
			if action == "complete" {
				change = rt.app.Appointments.Complete
			}
			appt, err := change(ctx, sess, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Appointment %d is now %s.\n", appt.ID, appt.Status)
			return nil
		},
	}
}

func printGroups(w io.Writer, role session.Role, groups appointments.Groups) error {
	notices := groups.Notices()
	sections := []struct {
		key, title string
		entries    []appointments.Entry
	}{
		{"upcoming", "Upcoming", groups.Upcoming},
		{"completed", "Completed", groups.Completed},
		{"cancelled", "Cancelled", groups.Cancelled},
	}
	for _, sec := range sections {
		fmt.Fprintf(w, "%s\n", sec.title)
		if len(sec.entries) == 0 {
			fmt.Fprintf(w, "  %s\n\n", notices[sec.key])
			continue
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, e := range sec.entries {
			fmt.Fprintf(tw, "  #%d\t%s\t%s\n", e.ID, e.ScheduledAt.Format("Mon 2006-01-02 15:04"), counterpart(role, e))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}
	return nil
}

func counterpart(role session.Role, e appointments.Entry) string {
	if role == session.RolePatient {
		if e.Doctor == nil {
			return fmt.Sprintf("doctor #%d", e.DoctorID)
		}
		return fmt.Sprintf("Dr. %s (%s)", e.Doctor.FullName(), e.Doctor.Specialization.Name)
	}
	if e.Patient == nil {
		return fmt.Sprintf("patient #%d", e.PatientID)
	}
	return fmt.Sprintf("%s, age %d", e.Patient.FullName(), e.PatientAge)
}
