package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/lockerhq/lockerctl/internal/api"
	"github.com/lockerhq/lockerctl/internal/session"
)

// ReservationsCmd lists the caller's reservations.
type ReservationsCmd struct {
	ClientFlags

	All bool `help:"Include inactive reservations" default:"false"`
}

func (r *ReservationsCmd) Run(ctx context.Context, globals *Globals) error {
	stack, err := r.Connect()
	if err != nil {
		return err
	}

	if stack.Session.Bootstrap(ctx) != session.StateAuthenticated {
		return fmt.Errorf("not logged in\n\nRun 'lockerctl login <username>' to start a session")
	}

	list, err := stack.Reservations.ListReservations(ctx)
	if err != nil {
		return fmt.Errorf("failed to list reservations: %w", err)
	}

	if !r.All {
		active := make([]api.Reservation, 0, len(list))
		for _, reservation := range list {
			if reservation.IsActive {
				active = append(active, reservation)
			}
		}
		list = active
	}

	printReservations(list)
	return nil
}

// ReserveCmd requests a hold on a locker.
type ReserveCmd struct {
	ClientFlags

	LockerID int64         `arg:"" help:"Locker ID to reserve"`
	Until    string        `help:"Expiry timestamp (RFC 3339); defaults to 24h from now"`
	For      time.Duration `help:"Reservation length from now (alternative to --until)"`
}

func (r *ReserveCmd) Run(ctx context.Context, globals *Globals) error {
	until, err := r.expiry()
	if err != nil {
		return err
	}

	stack, err := r.Connect()
	if err != nil {
		return err
	}

	if stack.Session.Bootstrap(ctx) != session.StateAuthenticated {
		return fmt.Errorf("not logged in\n\nRun 'lockerctl login <username>' to start a session")
	}

	reservation, err := stack.Reservations.Reserve(ctx, r.LockerID, until)
	if err != nil {
		if errors.Is(err, api.ErrConflict) {
			return fmt.Errorf("locker %d is no longer available\n\nRun 'lockerctl lockers' for the current snapshot", r.LockerID)
		}
		return fmt.Errorf("failed to reserve locker: %w", err)
	}

	fmt.Printf("Reserved locker %d until %s (reservation %d)\n",
		r.LockerID, reservation.ReservedUntil.Local().Format("2006-01-02 15:04"), reservation.ID)
	return nil
}

func (r *ReserveCmd) expiry() (time.Time, error) {
	if r.Until != "" && r.For != 0 {
		return time.Time{}, fmt.Errorf("--until and --for are mutually exclusive")
	}

	if r.Until != "" {
		until, err := time.Parse(time.RFC3339, r.Until)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid --until value: %w", err)
		}
		return until, nil
	}

	if r.For != 0 {
		return time.Now().Add(r.For), nil
	}

	// Zero value lets the orchestrator apply its default window.
	return time.Time{}, nil
}

// CancelCmd cancels a reservation.
type CancelCmd struct {
	ClientFlags

	ReservationID int64 `arg:"" help:"Reservation ID to cancel"`
}

func (c *CancelCmd) Run(ctx context.Context, globals *Globals) error {
	stack, err := c.Connect()
	if err != nil {
		return err
	}

	if stack.Session.Bootstrap(ctx) != session.StateAuthenticated {
		return fmt.Errorf("not logged in\n\nRun 'lockerctl login <username>' to start a session")
	}

	if err := stack.Reservations.Cancel(ctx, c.ReservationID); err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return fmt.Errorf("reservation %d not found\n\nRun 'lockerctl reservations' to see your reservations", c.ReservationID)
		}
		return fmt.Errorf("failed to cancel reservation: %w", err)
	}

	fmt.Printf("Cancelled reservation %d\n", c.ReservationID)
	return nil
}

func printReservations(list []api.Reservation) {
	if len(list) == 0 {
		fmt.Println("No reservations found.")
		fmt.Println()
		fmt.Println("Browse lockers with 'lockerctl lockers'.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLOCKER\tLOCATION\tUNTIL\tACTIVE")

	for _, reservation := range list {
		number := fmt.Sprintf("#%d", reservation.LockerID)
		location := ""
		if reservation.Locker != nil {
			number = reservation.Locker.Number
			location = reservation.Locker.Location
		}

		active := ""
		if reservation.IsActive {
			active = "*"
		}

		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			reservation.ID, number, location,
			reservation.ReservedUntil.Local().Format("2006-01-02 15:04"), active)
	}

	w.Flush()
}
