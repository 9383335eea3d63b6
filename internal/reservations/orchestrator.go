package reservations

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lockerhq/lockerctl/internal/api"
)

// DefaultWindow is the reservation length used when no expiry is given.
const DefaultWindow = 24 * time.Hour

// Orchestrator issues locker and reservation calls and reconciles the
// local view after each mutation. It never patches locker state
// optimistically: the service is the sole source of truth, so every
// mutation is followed by a refetch of the authoritative snapshot.
type Orchestrator struct {
	client *api.Client

	mu           sync.RWMutex
	lockers      []api.Locker
	reservations []api.Reservation
}

// NewOrchestrator creates an orchestrator over the given client.
func NewOrchestrator(client *api.Client) *Orchestrator {
	return &Orchestrator{client: client}
}

// ListLockers fetches the current locker snapshot and makes it the
// current view. The latest resolved response wins; no ordering is
// guaranteed between overlapping calls.
func (o *Orchestrator) ListLockers(ctx context.Context) ([]api.Locker, error) {
	lockers, err := o.client.ListLockers(ctx)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.lockers = lockers
	o.mu.Unlock()

	// The caller gets its own copy so the guarded snapshot never shares
	// a backing array with caller-visible slices.
	return append([]api.Locker(nil), lockers...), nil
}

// ListReservations fetches the caller's reservations and makes them the
// current view.
func (o *Orchestrator) ListReservations(ctx context.Context) ([]api.Reservation, error) {
	reservations, err := o.client.ListReservations(ctx)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.reservations = reservations
	o.mu.Unlock()

	return append([]api.Reservation(nil), reservations...), nil
}

// Lockers returns the locker view from the most recent successful list
// call. Advisory only until the next list call.
func (o *Orchestrator) Lockers() []api.Locker {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]api.Locker(nil), o.lockers...)
}

// Reservations returns the reservation view from the most recent
// successful list call.
func (o *Orchestrator) Reservations() []api.Reservation {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]api.Reservation(nil), o.reservations...)
}

// Reserve requests a hold on lockerID until the given time, or for
// DefaultWindow from now when until is zero. The locker snapshot is
// refetched whether or not the mutation succeeded: on success to pick up
// the authoritative status, on failure (for example a Conflict when the
// locker was taken between listing and reserving) to repair the stale
// view that invited the attempt. The refetch failure itself is logged,
// not surfaced; the mutation result is what the caller needs.
func (o *Orchestrator) Reserve(ctx context.Context, lockerID int64, until time.Time) (*api.Reservation, error) {
	if until.IsZero() {
		until = time.Now().Add(DefaultWindow)
	}

	reservation, err := o.client.CreateReservation(ctx, lockerID, until)

	if _, refreshErr := o.ListLockers(ctx); refreshErr != nil {
		log.Warn().Err(refreshErr).Msg("failed to refresh lockers after reservation attempt")
	}

	if err != nil {
		return nil, err
	}

	log.Debug().
		Int64("lockerID", lockerID).
		Time("reservedUntil", until).
		Msg("reservation created")

	return reservation, nil
}

// Cancel cancels a reservation. On success the reservation view is
// refetched; on failure the error is surfaced with no local mutation.
func (o *Orchestrator) Cancel(ctx context.Context, id int64) error {
	if err := o.client.CancelReservation(ctx, id); err != nil {
		return err
	}

	if _, refreshErr := o.ListReservations(ctx); refreshErr != nil {
		log.Warn().Err(refreshErr).Msg("failed to refresh reservations after cancellation")
	}

	log.Debug().Int64("reservationID", id).Msg("reservation cancelled")

	return nil
}
