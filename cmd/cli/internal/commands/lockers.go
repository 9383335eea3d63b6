package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/lockerhq/lockerctl/internal/api"
	"github.com/lockerhq/lockerctl/internal/session"
)

// LockersCmd lists the current locker snapshot.
type LockersCmd struct {
	ClientFlags

	Watch bool `help:"Watch for changes (refresh every 5 seconds)" default:"false"`
}

func (l *LockersCmd) Run(ctx context.Context, globals *Globals) error {
	stack, err := l.Connect()
	if err != nil {
		return err
	}

	if stack.Session.Bootstrap(ctx) != session.StateAuthenticated {
		return fmt.Errorf("not logged in\n\nRun 'lockerctl login <username>' to start a session")
	}

	if l.Watch {
		return l.watchLockers(ctx, stack)
	}

	return l.listLockers(ctx, stack)
}

func (l *LockersCmd) listLockers(ctx context.Context, stack *Stack) error {
	lockers, err := stack.Reservations.ListLockers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list lockers: %w", err)
	}

	printLockers(lockers)
	return nil
}

func (l *LockersCmd) watchLockers(ctx context.Context, stack *Stack) error {
	fmt.Println("Watching lockers (press Ctrl+C to stop)...")
	fmt.Println()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	if err := l.listLockers(ctx, stack); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// Clear screen and move cursor to top
			fmt.Print("\033[2J\033[H")
			fmt.Printf("Lockers (updated at %s)\n", time.Now().Format("15:04:05"))
			fmt.Println()

			if err := l.listLockers(ctx, stack); err != nil {
				fmt.Printf("Error updating locker list: %v\n", err)
			}
		}
	}
}

func printLockers(lockers []api.Locker) {
	if len(lockers) == 0 {
		fmt.Println("No lockers found.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNUMBER\tLOCATION\tSTATUS")

	for _, locker := range lockers {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", locker.ID, locker.Number, locker.Location, locker.Status)
	}

	w.Flush()

	available := 0
	for _, locker := range lockers {
		if locker.Status == api.StatusAvailable {
			available++
		}
	}

	fmt.Println()
	fmt.Printf("%d of %d available. Reserve one with 'lockerctl reserve <id>'.\n", available, len(lockers))
}
