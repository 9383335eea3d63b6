package reservations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockerhq/lockerctl/internal/api"
)

// lockerService is a stateful stand-in for the remote service. It owns
// the locker/reservation invariant the way the real service does: a
// reservation flips its locker to reserved, a cancellation flips it back.
type lockerService struct {
	mu           sync.Mutex
	lockers      map[int64]*api.Locker
	reservations map[int64]*api.Reservation
	nextID       int64

	lockerGets      atomic.Int64
	reservationGets atomic.Int64
	failLockerGets  atomic.Bool
}

func newLockerService(lockers ...api.Locker) *lockerService {
	s := &lockerService{
		lockers:      make(map[int64]*api.Locker),
		reservations: make(map[int64]*api.Reservation),
		nextID:       100,
	}
	for i := range lockers {
		locker := lockers[i]
		s.lockers[locker.ID] = &locker
	}
	return s
}

func (s *lockerService) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /lockers/", func(w http.ResponseWriter, r *http.Request) {
		s.lockerGets.Add(1)

		if s.failLockerGets.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		list := make([]api.Locker, 0, len(s.lockers))
		for _, locker := range s.lockers {
			list = append(list, *locker)
		}
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

		json.NewEncoder(w).Encode(list)
	})

	mux.HandleFunc("GET /reservations/", func(w http.ResponseWriter, r *http.Request) {
		s.reservationGets.Add(1)

		s.mu.Lock()
		defer s.mu.Unlock()

		list := make([]api.Reservation, 0, len(s.reservations))
		for _, reservation := range s.reservations {
			list = append(list, *reservation)
		}
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

		json.NewEncoder(w).Encode(list)
	})

	mux.HandleFunc("POST /reservations/", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Locker        int64  `json:"locker"`
			ReservedUntil string `json:"reserved_until"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		until, err := time.Parse(time.RFC3339, body.ReservedUntil)
		require.NoError(t, err)

		s.mu.Lock()
		defer s.mu.Unlock()

		locker, ok := s.lockers[body.Locker]
		if !ok || locker.Status != api.StatusAvailable {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{"error": "Locker is not available"})
			return
		}

		locker.Status = api.StatusReserved

		s.nextID++
		reservation := &api.Reservation{
			ID:            s.nextID,
			LockerID:      locker.ID,
			Locker:        locker,
			ReservedAt:    time.Now(),
			ReservedUntil: until,
			IsActive:      true,
		}
		s.reservations[reservation.ID] = reservation

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(reservation)
	})

	mux.HandleFunc("DELETE /reservations/{id}/", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		require.NoError(t, err)

		s.mu.Lock()
		defer s.mu.Unlock()

		reservation, ok := s.reservations[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		if locker, ok := s.lockers[reservation.LockerID]; ok {
			locker.Status = api.StatusAvailable
		}
		delete(s.reservations, id)

		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}

func newOrchestrator(t *testing.T, service *lockerService) (*Orchestrator, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(service.handler(t))
	t.Cleanup(server.Close)

	return NewOrchestrator(api.New(server.URL, server.Client())), server
}

func availableLocker(id int64) api.Locker {
	return api.Locker{
		ID:       id,
		Number:   "L-" + strconv.FormatInt(id, 10),
		Location: "Floor 1",
		Status:   api.StatusAvailable,
	}
}

func findLocker(lockers []api.Locker, id int64) *api.Locker {
	for i := range lockers {
		if lockers[i].ID == id {
			return &lockers[i]
		}
	}
	return nil
}

func TestOrchestrator_ListLockers(t *testing.T) {
	service := newLockerService(availableLocker(1), availableLocker(2))
	orchestrator, _ := newOrchestrator(t, service)

	lockers, err := orchestrator.ListLockers(context.Background())
	require.NoError(t, err)
	require.Len(t, lockers, 2)

	// The result becomes the current view.
	assert.Equal(t, lockers, orchestrator.Lockers())
}

func TestOrchestrator_ReserveRefreshesLockers(t *testing.T) {
	service := newLockerService(availableLocker(7))
	orchestrator, _ := newOrchestrator(t, service)

	reservation, err := orchestrator.Reserve(context.Background(), 7, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, reservation.IsActive)
	assert.EqualValues(t, 7, reservation.LockerID)

	// The mutation was followed by a refetch, and the refreshed view
	// never shows the reserved locker as available.
	assert.EqualValues(t, 1, service.lockerGets.Load())

	locker := findLocker(orchestrator.Lockers(), 7)
	require.NotNil(t, locker)
	assert.Equal(t, api.StatusReserved, locker.Status)
}

func TestOrchestrator_ReserveDefaultWindow(t *testing.T) {
	service := newLockerService(availableLocker(7))
	orchestrator, _ := newOrchestrator(t, service)

	reservation, err := orchestrator.Reserve(context.Background(), 7, time.Time{})
	require.NoError(t, err)

	assert.WithinDuration(t, time.Now().Add(DefaultWindow), reservation.ReservedUntil, time.Minute)
}

func TestOrchestrator_ReserveConflict(t *testing.T) {
	taken := availableLocker(7)
	taken.Status = api.StatusReserved

	service := newLockerService(taken)
	orchestrator, _ := newOrchestrator(t, service)

	_, err := orchestrator.Reserve(context.Background(), 7, time.Now().Add(time.Hour))
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrConflict)

	// The view is refreshed even though the mutation failed, repairing
	// the stale snapshot that invited the attempt.
	assert.EqualValues(t, 1, service.lockerGets.Load())

	locker := findLocker(orchestrator.Lockers(), 7)
	require.NotNil(t, locker)
	assert.Equal(t, api.StatusReserved, locker.Status)
}

func TestOrchestrator_ReserveSecondaryRefreshFailure(t *testing.T) {
	service := newLockerService(availableLocker(7))
	orchestrator, _ := newOrchestrator(t, service)

	service.failLockerGets.Store(true)

	// The refetch fails but the mutation result is what the caller needs.
	reservation, err := orchestrator.Reserve(context.Background(), 7, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, reservation.IsActive)
}

func TestOrchestrator_CancelRefreshesReservations(t *testing.T) {
	service := newLockerService(availableLocker(7))
	orchestrator, _ := newOrchestrator(t, service)

	reservation, err := orchestrator.Reserve(context.Background(), 7, time.Now().Add(time.Hour))
	require.NoError(t, err)

	err = orchestrator.Cancel(context.Background(), reservation.ID)
	require.NoError(t, err)

	// Cancellation refetched the reservation view; the cancelled
	// reservation is gone from the active set.
	assert.EqualValues(t, 1, service.reservationGets.Load())
	for _, r := range orchestrator.Reservations() {
		assert.NotEqual(t, reservation.ID, r.ID)
	}

	lockers, err := orchestrator.ListLockers(context.Background())
	require.NoError(t, err)
	locker := findLocker(lockers, 7)
	require.NotNil(t, locker)
	assert.Equal(t, api.StatusAvailable, locker.Status)
}

func TestOrchestrator_CancelNotFound(t *testing.T) {
	service := newLockerService(availableLocker(7))
	orchestrator, _ := newOrchestrator(t, service)

	err := orchestrator.Cancel(context.Background(), 999)
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrNotFound)

	// No refetch on failure; local state is untouched.
	assert.EqualValues(t, 0, service.reservationGets.Load())
}

func TestOrchestrator_SnapshotIsCopied(t *testing.T) {
	service := newLockerService(availableLocker(1))
	orchestrator, _ := newOrchestrator(t, service)

	_, err := orchestrator.ListLockers(context.Background())
	require.NoError(t, err)

	view := orchestrator.Lockers()
	view[0].Status = "tampered"

	fresh := orchestrator.Lockers()
	assert.Equal(t, api.StatusAvailable, fresh[0].Status)
}

func TestOrchestrator_ListResultDoesNotAliasSnapshot(t *testing.T) {
	service := newLockerService(availableLocker(1))
	orchestrator, _ := newOrchestrator(t, service)

	lockers, err := orchestrator.ListLockers(context.Background())
	require.NoError(t, err)
	require.Len(t, lockers, 1)

	// Mutating the returned slice must not reach the internal view.
	lockers[0].Status = "tampered"
	assert.Equal(t, api.StatusAvailable, orchestrator.Lockers()[0].Status)

	_, err = orchestrator.Reserve(context.Background(), 1, time.Now().Add(time.Hour))
	require.NoError(t, err)

	list, err := orchestrator.ListReservations(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)

	list[0].IsActive = false
	assert.True(t, orchestrator.Reservations()[0].IsActive)
}
