package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/slotwise/booking-api/internal/models"
	appErrors "github.com/slotwise/booking-api/pkg/errors"
)

// fakeAvailabilityRepo keeps declarations in memory, mirroring the row layout
// of the real repository closely enough for service behaviour.
type fakeAvailabilityRepo struct {
	mu        sync.Mutex
	dates     map[string][]string
	recurring []models.RecurringEntry
	nextID    int
}

func newFakeAvailabilityRepo() *fakeAvailabilityRepo {
	return &fakeAvailabilityRepo{dates: make(map[string][]string)}
}

func (f *fakeAvailabilityRepo) ReplaceDateSlots(ctx context.Context, instructorID, date string, slots []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dates[date] = append([]string(nil), slots...)
	return nil
}

func (f *fakeAvailabilityRepo) ListDateSlots(ctx context.Context, instructorID, date string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.dates[date]...), nil
}

func (f *fakeAvailabilityRepo) DeleteDateSlot(ctx context.Context, instructorID, date, slot string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.dates[date][:0]
	for _, s := range f.dates[date] {
		if s != slot {
			kept = append(kept, s)
		}
	}
	f.dates[date] = kept
	return nil
}

func (f *fakeAvailabilityRepo) DeleteDate(ctx context.Context, instructorID, date string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.dates, date)
	return nil
}

func (f *fakeAvailabilityRepo) AddRecurring(ctx context.Context, entry *models.RecurringEntry) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	entry.ID = fmt.Sprintf("r%d", f.nextID)
	entry.CreatedAt = time.Now().UTC()
	f.recurring = append(f.recurring, *entry)
	return entry.ID, nil
}

func (f *fakeAvailabilityRepo) RemoveRecurring(ctx context.Context, instructorID, entryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.recurring[:0]
	for _, e := range f.recurring {
		if e.ID != entryID {
			kept = append(kept, e)
		}
	}
	f.recurring = kept
	return nil
}

func (f *fakeAvailabilityRepo) RemoveRecurringMatching(ctx context.Context, instructorID string, dayOfWeek int, startTime, endTime string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed int64
	kept := f.recurring[:0]
	for _, e := range f.recurring {
		if e.DayOfWeek == dayOfWeek && e.StartTime == startTime && e.EndTime == endTime {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	f.recurring = kept
	return removed, nil
}

func (f *fakeAvailabilityRepo) ListRecurring(ctx context.Context, instructorID string) ([]models.RecurringEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.RecurringEntry(nil), f.recurring...), nil
}

func (f *fakeAvailabilityRepo) GetRecord(ctx context.Context, instructorID string) (models.AvailabilityRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record := models.EmptyAvailabilityRecord()
	for date, slots := range f.dates {
		if len(slots) > 0 {
			record.Dates[date] = append([]string(nil), slots...)
		}
	}
	for _, e := range f.recurring {
		record.Recurring[e.ID] = e
	}
	return record, nil
}

type fakeUserDir struct {
	users map[string]*models.User
}

func (f *fakeUserDir) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

// memCacheRepo is an in-memory CacheRepository for cache interaction tests.
type memCacheRepo struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemCacheRepo() *memCacheRepo {
	return &memCacheRepo{entries: make(map[string][]byte)}
}

func (m *memCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = raw
	return nil
}

func (m *memCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.entries {
		if pattern == key || (prefix != pattern && strings.HasPrefix(key, prefix)) {
			delete(m.entries, key)
		}
	}
	return nil
}

func intPtr(v int) *int { return &v }

func TestSetOneTimeRoundTrip(t *testing.T) {
	repo := newFakeAvailabilityRepo()
	svc := NewAvailabilityService(repo, &fakeUserDir{}, nil, validator.New(), zap.NewNop())

	slots := []string{"14:00-15:00", "09:00-10:00", "11:00-12:00"}
	require.NoError(t, svc.SetOneTime(context.Background(), "i1", "2026-09-14", slots))

	record, err := svc.Record(context.Background(), "i1")
	require.NoError(t, err)
	assert.Equal(t, slots, record.Dates["2026-09-14"])
}

func TestSetOneTimeRejectsMalformedSlot(t *testing.T) {
	repo := newFakeAvailabilityRepo()
	svc := NewAvailabilityService(repo, &fakeUserDir{}, nil, validator.New(), zap.NewNop())

	err := svc.SetOneTime(context.Background(), "i1", "2026-09-14", []string{"ten to eleven"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.dates)
}

func TestSetOneTimeRejectsBadDate(t *testing.T) {
	svc := NewAvailabilityService(newFakeAvailabilityRepo(), &fakeUserDir{}, nil, validator.New(), zap.NewNop())

	for _, date := range []string{"14-09-2026", "2026-13-40", "tomorrow", ""} {
		err := svc.SetOneTime(context.Background(), "i1", date, []string{"10:00-11:00"})
		require.Error(t, err, date)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestAddRecurringValidatesDayOfWeek(t *testing.T) {
	repo := newFakeAvailabilityRepo()
	svc := NewAvailabilityService(repo, &fakeUserDir{}, nil, validator.New(), zap.NewNop())

	_, err := svc.AddRecurring(context.Background(), "i1", RecurringRequest{DayOfWeek: intPtr(7), StartTime: "09:00", EndTime: "10:00"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	// Sunday is day 0 and must pass the min bound.
	id, err := svc.AddRecurring(context.Background(), "i1", RecurringRequest{DayOfWeek: intPtr(0), StartTime: "09:00", EndTime: "10:00"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestRemoveRecurringIdempotent(t *testing.T) {
	repo := newFakeAvailabilityRepo()
	svc := NewAvailabilityService(repo, &fakeUserDir{}, nil, validator.New(), zap.NewNop())

	id, err := svc.AddRecurring(context.Background(), "i1", RecurringRequest{DayOfWeek: intPtr(1), StartTime: "09:00", EndTime: "10:00"})
	require.NoError(t, err)

	require.NoError(t, svc.RemoveRecurring(context.Background(), "i1", id))
	require.NoError(t, svc.RemoveRecurring(context.Background(), "i1", id))

	record, err := svc.Record(context.Background(), "i1")
	require.NoError(t, err)
	assert.Empty(t, record.Recurring)
}

func TestRemoveOneTimeSlotVersusWholeDate(t *testing.T) {
	repo := newFakeAvailabilityRepo()
	svc := NewAvailabilityService(repo, &fakeUserDir{}, nil, validator.New(), zap.NewNop())

	require.NoError(t, svc.SetOneTime(context.Background(), "i1", "2026-09-14", []string{"09:00-10:00", "10:00-11:00"}))
	require.NoError(t, svc.RemoveOneTime(context.Background(), "i1", "2026-09-14", "09:00-10:00"))

	record, _ := svc.Record(context.Background(), "i1")
	assert.Equal(t, []string{"10:00-11:00"}, record.Dates["2026-09-14"])

	require.NoError(t, svc.RemoveOneTime(context.Background(), "i1", "2026-09-14", ""))
	record, _ = svc.Record(context.Background(), "i1")
	assert.NotContains(t, record.Dates, "2026-09-14")
}

func TestBulkEditRemoveMatchingTriple(t *testing.T) {
	repo := newFakeAvailabilityRepo()
	svc := NewAvailabilityService(repo, &fakeUserDir{}, nil, validator.New(), zap.NewNop())

	add := BulkEditRequest{Action: "add", DayOfWeek: intPtr(2), StartTime: "09:00", EndTime: "10:00"}
	require.NoError(t, svc.BulkEdit(context.Background(), "i1", add))
	require.NoError(t, svc.BulkEdit(context.Background(), "i1", add))
	other := BulkEditRequest{Action: "add", DayOfWeek: intPtr(2), StartTime: "11:00", EndTime: "12:00"}
	require.NoError(t, svc.BulkEdit(context.Background(), "i1", other))

	remove := BulkEditRequest{Action: "remove", DayOfWeek: intPtr(2), StartTime: "09:00", EndTime: "10:00"}
	require.NoError(t, svc.BulkEdit(context.Background(), "i1", remove))

	record, err := svc.Record(context.Background(), "i1")
	require.NoError(t, err)
	require.Len(t, record.Recurring, 1)
	for _, entry := range record.Recurring {
		assert.Equal(t, "11:00-12:00", entry.Label())
	}
}

func TestRecordOfInstructorRejectsNonInstructors(t *testing.T) {
	users := &fakeUserDir{users: map[string]*models.User{
		"s1": {ID: "s1", Role: models.RoleStudent},
	}}
	svc := NewAvailabilityService(newFakeAvailabilityRepo(), users, nil, validator.New(), zap.NewNop())

	_, err := svc.RecordOfInstructor(context.Background(), "s1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.RecordOfInstructor(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAvailabilityEditsInvalidateSlotCache(t *testing.T) {
	repo := newFakeAvailabilityRepo()
	cacheRepo := newMemCacheRepo()
	cacheSvc := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	svc := NewAvailabilityService(repo, &fakeUserDir{}, cacheSvc, validator.New(), zap.NewNop())

	ctx := context.Background()
	require.NoError(t, cacheSvc.Set(ctx, slotCacheKey("i1", "2026-09-14"), []string{"stale"}, time.Minute))

	require.NoError(t, svc.SetOneTime(ctx, "i1", "2026-09-14", []string{"10:00-11:00"}))

	var cached []string
	hit, err := cacheSvc.Get(ctx, slotCacheKey("i1", "2026-09-14"), &cached)
	require.NoError(t, err)
	assert.False(t, hit)
}
