package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wolfman30/clinicbook/internal/booking"
	"github.com/wolfman30/clinicbook/internal/slots"
)

type slotFlags struct {
	doctor int
	date   string
}

func (f *slotFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.doctor, "doctor", 0, "doctor id")
	cmd.Flags().StringVar(&f.date, "date", "", "appointment date, YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("doctor")
	_ = cmd.MarkFlagRequired("date")
}

func slotsCmd(creds *credentials) *cobra.Command {
	var sf slotFlags
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Show a doctor's slots for one day",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.close()

			view, err := rt.openDay(ctx, creds, sf)
			if err != nil {
				return err
			}
			return printSlots(cmd.OutOrStdout(), view)
		},
	}
	sf.register(cmd)
	return cmd
}

func bookCmd(creds *credentials) *cobra.Command {
	var (
		sf     slotFlags
		atTime string
	)
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book a slot with a doctor",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			t, err := slots.ParseTimeOfDay(atTime)
			if err != nil {
				return err
			}
			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.close()

			if _, err := rt.openDay(ctx, creds, sf); err != nil {
				return err
			}
			view := rt.app.Booking.Dispatch(ctx, booking.SelectSlot{Time: t})
			if view.SelectedTime == nil || *view.SelectedTime != t {
				return fmt.Errorf("%s is not available", t.Label())
			}
			view = rt.app.Booking.Dispatch(ctx, booking.Submit{})
			if view.State != booking.StateBooked {
				return errors.New(firstNonEmpty(view.Error, view.Notice, "booking failed"))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (appointment %d)\n", view.Notice, int(view.AppointmentID))
			return nil
		},
	}
	sf.register(cmd)
	cmd.Flags().StringVar(&atTime, "time", "", "slot time, HH:MM")
	_ = cmd.MarkFlagRequired("time")
	return cmd
}

// openDay signs in and walks the booking flow up to the chosen date.
func (rt *runtime) openDay(ctx context.Context, creds *credentials, sf slotFlags) (booking.View, error) {
	date, err := slots.ParseDate(sf.date)
	if err != nil {
		return booking.View{}, err
	}
	if _, err := rt.signIn(ctx, creds); err != nil {
		return booking.View{}, err
	}
	if err := rt.app.Sessions.RefreshDirectory(ctx); err != nil {
		return booking.View{}, err
	}
	doc, ok := rt.app.Sessions.Directory().Find(sf.doctor)
	if !ok {
		return booking.View{}, fmt.Errorf("no doctor with id %d", sf.doctor)
	}

	flow := rt.app.Booking
	flow.Dispatch(ctx, booking.ChooseSpecialization{ID: doc.Specialization.ID})
	if v := flow.Dispatch(ctx, booking.ChooseDoctor{ID: doc.ID}); v.DoctorID != doc.ID {
		return v, errors.New(firstNonEmpty(v.Error, v.Notice, "doctor not selectable"))
	}
	view := flow.Dispatch(ctx, booking.ChooseDate{Date: date})
	if view.Error != "" {
		return view, errors.New(view.Error)
	}
	return view, nil
}

func printSlots(w io.Writer, view booking.View) error {
	if view.Notice != "" {
		fmt.Fprintln(w, view.Notice)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "TIME\t%s\n", view.Date)
	for _, s := range view.Slots {
		fmt.Fprintf(tw, "%s\t%s\n", s.Label, s.State)
	}
	return tw.Flush()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
