package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/slotwise/booking-api/internal/models"
	appErrors "github.com/slotwise/booking-api/pkg/errors"
)

// 2026-09-14 is a Monday, 2026-09-13 a Sunday.
const (
	monday = "2026-09-14"
	sunday = "2026-09-13"
)

type fakeBookingLedger struct {
	mu     sync.Mutex
	booked map[string][]string
}

func (f *fakeBookingLedger) ListBookedSlots(ctx context.Context, instructorID, date string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.booked[date]...), nil
}

func newSlotFixture(t *testing.T) (*fakeAvailabilityRepo, *fakeBookingLedger, *SlotService) {
	t.Helper()
	repo := newFakeAvailabilityRepo()
	ledger := &fakeBookingLedger{booked: make(map[string][]string)}
	svc := NewSlotService(repo, ledger, nil, time.Minute, zap.NewNop())
	return repo, ledger, svc
}

func TestResolveOrdersOneTimeThenRecurring(t *testing.T) {
	repo, _, svc := newSlotFixture(t)
	ctx := context.Background()

	repo.dates[monday] = []string{"13:00-14:00", "09:00-10:00"}
	_, err := repo.AddRecurring(ctx, recurringEntry(1, "10:00", "11:00"))
	require.NoError(t, err)
	_, err = repo.AddRecurring(ctx, recurringEntry(3, "15:00", "16:00"))
	require.NoError(t, err)
	_, err = repo.AddRecurring(ctx, recurringEntry(1, "08:00", "09:00"))
	require.NoError(t, err)

	slots, err := svc.Resolve(ctx, "i1", monday)
	require.NoError(t, err)
	// One-time slots keep their stored order, then matching recurring labels
	// in insertion order. Nothing is sorted.
	assert.Equal(t, []string{"13:00-14:00", "09:00-10:00", "10:00-11:00", "08:00-09:00"}, slots)
}

func TestResolveKeepsDuplicateLabels(t *testing.T) {
	repo, _, svc := newSlotFixture(t)
	ctx := context.Background()

	repo.dates[monday] = []string{"10:00-11:00"}
	_, err := repo.AddRecurring(ctx, recurringEntry(1, "10:00", "11:00"))
	require.NoError(t, err)

	slots, err := svc.Resolve(ctx, "i1", monday)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00-11:00", "10:00-11:00"}, slots)
}

func TestResolveFiltersBookedLabels(t *testing.T) {
	repo, ledger, svc := newSlotFixture(t)
	ctx := context.Background()

	repo.dates[monday] = []string{"10:00-11:00", "13:00-14:00"}
	_, err := repo.AddRecurring(ctx, recurringEntry(1, "10:00", "11:00"))
	require.NoError(t, err)
	ledger.booked[monday] = []string{"10:00-11:00"}

	slots, err := svc.Resolve(ctx, "i1", monday)
	require.NoError(t, err)
	// A booked label drops every occurrence, including the recurring copy.
	assert.Equal(t, []string{"13:00-14:00"}, slots)
}

func TestResolveMatchesWeekday(t *testing.T) {
	repo, _, svc := newSlotFixture(t)
	ctx := context.Background()

	_, err := repo.AddRecurring(ctx, recurringEntry(0, "09:00", "10:00"))
	require.NoError(t, err)

	slots, err := svc.Resolve(ctx, "i1", sunday)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00-10:00"}, slots)

	slots, err = svc.Resolve(ctx, "i1", monday)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestResolveRejectsBadDate(t *testing.T) {
	_, _, svc := newSlotFixture(t)

	for _, date := range []string{"09/14/2026", "2026-02-30", ""} {
		_, err := svc.Resolve(context.Background(), "i1", date)
		require.Error(t, err, date)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestResolveDeclaredIgnoresBookings(t *testing.T) {
	repo, ledger, svc := newSlotFixture(t)
	ctx := context.Background()

	repo.dates[monday] = []string{"10:00-11:00"}
	ledger.booked[monday] = []string{"10:00-11:00"}

	declared, err := svc.ResolveDeclared(ctx, "i1", monday)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00-11:00"}, declared)
}

func TestResolveServesCachedResult(t *testing.T) {
	repo := newFakeAvailabilityRepo()
	ledger := &fakeBookingLedger{booked: make(map[string][]string)}
	cacheSvc := NewCacheService(newMemCacheRepo(), nil, time.Minute, zap.NewNop(), true)
	svc := NewSlotService(repo, ledger, cacheSvc, time.Minute, zap.NewNop())
	ctx := context.Background()

	repo.dates[monday] = []string{"10:00-11:00"}
	slots, err := svc.Resolve(ctx, "i1", monday)
	require.NoError(t, err)
	require.Equal(t, []string{"10:00-11:00"}, slots)

	// A stale cache entry keeps serving until invalidated.
	repo.mu.Lock()
	repo.dates[monday] = []string{"08:00-09:00"}
	repo.mu.Unlock()

	slots, err = svc.Resolve(ctx, "i1", monday)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00-11:00"}, slots)

	// ResolveDeclared never reads the cache.
	declared, err := svc.ResolveDeclared(ctx, "i1", monday)
	require.NoError(t, err)
	assert.Equal(t, []string{"08:00-09:00"}, declared)
}

func recurringEntry(day int, start, end string) *models.RecurringEntry {
	return &models.RecurringEntry{InstructorID: "i1", DayOfWeek: day, StartTime: start, EndTime: end}
}
