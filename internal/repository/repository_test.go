package repository

import (
	"context"
	"io"
	"log"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/ivzakh/termkeeper/internal/clock"
	"github.com/ivzakh/termkeeper/internal/database"
	"github.com/ivzakh/termkeeper/internal/models"
)

var (
	testDB    *database.DB
	testClock = clock.NewFixed(time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC))
	nextUser  atomic.Int64
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("termkeeper"),
		postgres.WithUsername("termkeeper"),
		postgres.WithPassword("password"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		// No container runtime available; the suite skips itself.
		log.Printf("failed to start postgres container: %v", err)
		os.Exit(m.Run())
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			log.Printf("failed to terminate container: %v", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("failed to get connection string: %v", err)
	}

	testDB, err = database.New(ctx, connStr)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer testDB.Close()

	if err := testDB.Migrate(ctx, quietLogger()); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}
	if err := NewTransactionTypeRepository(testDB).EnsureDefaults(ctx); err != nil {
		log.Fatalf("failed to seed types: %v", err)
	}

	nextUser.Store(1000)
	os.Exit(m.Run())
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func requireDB(t *testing.T) {
	t.Helper()
	if testDB == nil {
		t.Skip("no container runtime available")
	}
}

func newUser(t *testing.T) int64 {
	t.Helper()
	userID := nextUser.Add(1)
	_, err := NewUserRepository(testDB).Upsert(context.Background(), userID, "tester", "Test User")
	require.NoError(t, err)
	return userID
}

func otherTypeID(t *testing.T) int {
	t.Helper()
	tt, err := NewTransactionTypeRepository(testDB).GetByName(context.Background(), "Other")
	require.NoError(t, err)
	return tt.TypeID
}

func endOn(d clock.Date) *time.Time {
	tm := d.Time()
	return &tm
}

func TestUserUpsertIdempotent(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	repo := NewUserRepository(testDB)
	userID := nextUser.Add(1)

	first, err := repo.Upsert(ctx, userID, "alice", "Alice")
	require.NoError(t, err)
	assert.True(t, first.IsActive)

	second, err := repo.Upsert(ctx, userID, "alice_new", "Alice")
	require.NoError(t, err)
	assert.Equal(t, first.UserID, second.UserID)
	assert.Equal(t, "alice_new", second.Username)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
}

func TestEnsureDefaultsSeedsFixedSet(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	repo := NewTransactionTypeRepository(testDB)

	// Running the seed again must not duplicate anything.
	require.NoError(t, repo.EnsureDefaults(ctx))

	types, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, types, 6)

	licence, err := repo.GetByName(ctx, "Licence")
	require.NoError(t, err)
	assert.Equal(t, []string{"authority", "licence_number"}, licence.Fields)
}

func TestCreateAndGetRoundTrip(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	userID := newUser(t)
	repo := NewTransactionRepository(testDB, testClock)

	record := &models.Transaction{
		TypeID:      otherTypeID(t),
		UserID:      userID,
		Title:       "apartment lease",
		Description: "renewal needed",
		Data:        map[string]any{"landlord": "ACME Housing"},
		EndDate:     endOn(testClock.Today().AddDays(20)),
		Priority:    models.PriorityHigh,
	}
	require.NoError(t, repo.Create(ctx, record))
	require.NotZero(t, record.TransactionID)

	got, err := repo.GetByID(ctx, record.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, record.Title, got.Title)
	assert.Equal(t, record.Description, got.Description)
	assert.Equal(t, map[string]any{"landlord": "ACME Housing"}, got.Data)
	assert.Equal(t, models.PriorityHigh, got.Priority)
	assert.Equal(t, models.StatusActive, got.Status)
	require.NotNil(t, got.EndDate)
	assert.Equal(t, testClock.Today().AddDays(20), clock.DateOf(*got.EndDate))
	assert.Equal(t, testClock.Today(), clock.DateOf(got.StartDate))
}

func TestGetByIDNotFound(t *testing.T) {
	requireDB(t)
	repo := NewTransactionRepository(testDB, testClock)

	_, err := repo.GetByID(context.Background(), 99999999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreatePlansThresholds(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	userID := newUser(t)
	repo := NewTransactionRepository(testDB, testClock)
	notifications := NewNotificationRepository(testDB)

	// Five days out: only the 3-day and same-day thresholds are still ahead.
	record := &models.Transaction{
		TypeID:  otherTypeID(t),
		UserID:  userID,
		Title:   "insurance",
		EndDate: endOn(testClock.Today().AddDays(5)),
	}
	require.NoError(t, repo.Create(ctx, record))

	ns, err := notifications.ListByTransaction(ctx, record.TransactionID)
	require.NoError(t, err)
	require.Len(t, ns, 2)
	assert.Equal(t, 3, ns[0].DaysBefore)
	assert.Equal(t, 0, ns[1].DaysBefore)
	for _, n := range ns {
		assert.False(t, n.Sent)
		assert.Equal(t, []int64{userID}, n.Recipients)
	}
}

func TestCreateWithoutEndDatePlansNothing(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	userID := newUser(t)
	repo := NewTransactionRepository(testDB, testClock)

	record := &models.Transaction{TypeID: otherTypeID(t), UserID: userID, Title: "open-ended"}
	require.NoError(t, repo.Create(ctx, record))

	ns, err := NewNotificationRepository(testDB).ListByTransaction(ctx, record.TransactionID)
	require.NoError(t, err)
	assert.Empty(t, ns)
}

func TestDueListingAndMarkSent(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	userID := newUser(t)
	repo := NewTransactionRepository(testDB, testClock)
	notifications := NewNotificationRepository(testDB)

	record := &models.Transaction{
		TypeID:  otherTypeID(t),
		UserID:  userID,
		Title:   "work permit",
		EndDate: endOn(testClock.Today()),
	}
	require.NoError(t, repo.Create(ctx, record))

	due, err := notifications.ListDue(ctx, testClock.Today())
	require.NoError(t, err)

	var mine *models.DueNotification
	for _, d := range due {
		if d.TransactionID == record.TransactionID {
			mine = d
		}
	}
	require.NotNil(t, mine, "same-day notification should be due")
	assert.Equal(t, 0, mine.DaysBefore)
	assert.Equal(t, "work permit", mine.Title)
	assert.Equal(t, "Other", mine.TypeName)

	require.NoError(t, notifications.MarkSent(ctx, mine.NotificationID))

	due, err = notifications.ListDue(ctx, testClock.Today())
	require.NoError(t, err)
	for _, d := range due {
		assert.NotEqual(t, mine.NotificationID, d.NotificationID, "sent notification must not reappear")
	}

	ns, err := notifications.ListByTransaction(ctx, record.TransactionID)
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.True(t, ns[0].Sent)
	assert.NotNil(t, ns[0].SentAt)
}

func TestSoftDeleteSuppressesDue(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	userID := newUser(t)
	repo := NewTransactionRepository(testDB, testClock)
	notifications := NewNotificationRepository(testDB)

	record := &models.Transaction{
		TypeID:  otherTypeID(t),
		UserID:  userID,
		Title:   "to be deleted",
		EndDate: endOn(testClock.Today()),
	}
	require.NoError(t, repo.Create(ctx, record))
	require.NoError(t, repo.SoftDelete(ctx, record.TransactionID))

	due, err := notifications.ListDue(ctx, testClock.Today())
	require.NoError(t, err)
	for _, d := range due {
		assert.NotEqual(t, record.TransactionID, d.TransactionID)
	}

	// The notification row itself survives, unsent.
	ns, err := notifications.ListByTransaction(ctx, record.TransactionID)
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.False(t, ns[0].Sent)

	_, err = repo.GetByID(ctx, record.TransactionID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStatusChangeSuppressesDue(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	userID := newUser(t)
	repo := NewTransactionRepository(testDB, testClock)
	notifications := NewNotificationRepository(testDB)

	record := &models.Transaction{
		TypeID:  otherTypeID(t),
		UserID:  userID,
		Title:   "cancelled hearing",
		EndDate: endOn(testClock.Today()),
	}
	require.NoError(t, repo.Create(ctx, record))

	cancelled := models.StatusCancelled
	_, err := repo.Update(ctx, record.TransactionID, Patch{Status: &cancelled})
	require.NoError(t, err)

	due, err := notifications.ListDue(ctx, testClock.Today())
	require.NoError(t, err)
	for _, d := range due {
		assert.NotEqual(t, record.TransactionID, d.TransactionID)
	}

	// Status changes do not touch the notification rows.
	ns, err := notifications.ListByTransaction(ctx, record.TransactionID)
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.False(t, ns[0].Sent)
}

func TestUpdateEndDateReplans(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	userID := newUser(t)
	repo := NewTransactionRepository(testDB, testClock)
	notifications := NewNotificationRepository(testDB)

	record := &models.Transaction{
		TypeID:  otherTypeID(t),
		UserID:  userID,
		Title:   "visa",
		EndDate: endOn(testClock.Today().AddDays(5)),
	}
	require.NoError(t, repo.Create(ctx, record))

	ns, err := notifications.ListByTransaction(ctx, record.TransactionID)
	require.NoError(t, err)
	require.Len(t, ns, 2)

	// Pushing the deadline out re-arms every threshold.
	newEnd := testClock.Today().AddDays(41).Time()
	_, err = repo.Update(ctx, record.TransactionID, Patch{EndDate: &newEnd})
	require.NoError(t, err)

	ns, err = notifications.ListByTransaction(ctx, record.TransactionID)
	require.NoError(t, err)
	require.Len(t, ns, 5)
	assert.Equal(t, 30, ns[0].DaysBefore)
	assert.Equal(t, 0, ns[4].DaysBefore)
}

func TestIdentityUpdateKeepsSchedule(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	userID := newUser(t)
	repo := NewTransactionRepository(testDB, testClock)
	notifications := NewNotificationRepository(testDB)

	end := testClock.Today().AddDays(10)
	record := &models.Transaction{
		TypeID:  otherTypeID(t),
		UserID:  userID,
		Title:   "contract",
		EndDate: endOn(end),
	}
	require.NoError(t, repo.Create(ctx, record))

	before, err := notifications.ListByTransaction(ctx, record.TransactionID)
	require.NoError(t, err)

	// Same end date plus a title change: no re-plan.
	sameEnd := end.Time()
	newTitle := "contract (renamed)"
	_, err = repo.Update(ctx, record.TransactionID, Patch{Title: &newTitle, EndDate: &sameEnd})
	require.NoError(t, err)

	after, err := notifications.ListByTransaction(ctx, record.TransactionID)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].NotificationID, after[i].NotificationID)
	}
}

func TestReplanPreservesSentHistory(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	userID := newUser(t)
	repo := NewTransactionRepository(testDB, testClock)
	notifications := NewNotificationRepository(testDB)

	record := &models.Transaction{
		TypeID:  otherTypeID(t),
		UserID:  userID,
		Title:   "inspection",
		EndDate: endOn(testClock.Today()),
	}
	require.NoError(t, repo.Create(ctx, record))

	ns, err := notifications.ListByTransaction(ctx, record.TransactionID)
	require.NoError(t, err)
	require.Len(t, ns, 1)
	require.NoError(t, notifications.MarkSent(ctx, ns[0].NotificationID))
	sentID := ns[0].NotificationID

	newEnd := testClock.Today().AddDays(41).Time()
	_, err = repo.Update(ctx, record.TransactionID, Patch{EndDate: &newEnd})
	require.NoError(t, err)

	ns, err = notifications.ListByTransaction(ctx, record.TransactionID)
	require.NoError(t, err)
	require.Len(t, ns, 6, "5 re-planned plus the sent one kept as history")

	var sentSurvives bool
	for _, n := range ns {
		if n.NotificationID == sentID {
			sentSurvives = true
			assert.True(t, n.Sent)
		}
	}
	assert.True(t, sentSurvives)
}

func TestOwnedMutationsRejectForeignRecords(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	owner := newUser(t)
	stranger := newUser(t)
	repo := NewTransactionRepository(testDB, testClock)

	record := &models.Transaction{
		TypeID:  otherTypeID(t),
		UserID:  owner,
		Title:   "owner's permit",
		EndDate: endOn(testClock.Today().AddDays(10)),
	}
	require.NoError(t, repo.Create(ctx, record))

	// Another chat user guessing the id must not reach the record.
	completed := models.StatusCompleted
	_, err := repo.UpdateOwned(ctx, record.TransactionID, stranger, Patch{Status: &completed})
	assert.ErrorIs(t, err, ErrNotFound)

	err = repo.SoftDeleteOwned(ctx, record.TransactionID, stranger)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := repo.GetByID(ctx, record.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.Status)

	// The owner can.
	updated, err := repo.UpdateOwned(ctx, record.TransactionID, owner, Patch{Status: &completed})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, updated.Status)

	require.NoError(t, repo.SoftDeleteOwned(ctx, record.TransactionID, owner))
	_, err = repo.GetByID(ctx, record.TransactionID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMigrateIsIdempotent(t *testing.T) {
	requireDB(t)
	ctx := context.Background()

	var before int
	require.NoError(t, testDB.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&before))
	require.Positive(t, before)

	require.NoError(t, testDB.Migrate(ctx, quietLogger()))

	var after int
	require.NoError(t, testDB.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&after))
	assert.Equal(t, before, after)
}

func TestListOrderingAndFilters(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	userID := newUser(t)
	repo := NewTransactionRepository(testDB, testClock)

	later := &models.Transaction{TypeID: otherTypeID(t), UserID: userID, Title: "later", EndDate: endOn(testClock.Today().AddDays(30))}
	sooner := &models.Transaction{TypeID: otherTypeID(t), UserID: userID, Title: "sooner", EndDate: endOn(testClock.Today().AddDays(2))}
	dateless := &models.Transaction{TypeID: otherTypeID(t), UserID: userID, Title: "dateless"}
	for _, r := range []*models.Transaction{later, sooner, dateless} {
		require.NoError(t, repo.Create(ctx, r))
	}

	records, err := repo.List(ctx, ListFilter{OwnerID: &userID})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "sooner", records[0].Title)
	assert.Equal(t, "later", records[1].Title)
	assert.Equal(t, "dateless", records[2].Title, "records without an end date sort last")

	high := models.PriorityHigh
	records, err = repo.List(ctx, ListFilter{OwnerID: &userID, Priority: &high})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSearchIsCaseInsensitive(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	userID := newUser(t)
	repo := NewTransactionRepository(testDB, testClock)

	record := &models.Transaction{
		TypeID:      otherTypeID(t),
		UserID:      userID,
		Title:       "Vehicle Inspection",
		Description: "annual MOT check",
	}
	require.NoError(t, repo.Create(ctx, record))

	byTitle, err := repo.Search(ctx, userID, "vehicle")
	require.NoError(t, err)
	require.Len(t, byTitle, 1)

	byDescription, err := repo.Search(ctx, userID, "MOT")
	require.NoError(t, err)
	require.Len(t, byDescription, 1)

	none, err := repo.Search(ctx, userID, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStatistics(t *testing.T) {
	requireDB(t)
	ctx := context.Background()
	userID := newUser(t)
	repo := NewTransactionRepository(testDB, testClock)

	soon := &models.Transaction{TypeID: otherTypeID(t), UserID: userID, Title: "due soon", EndDate: endOn(testClock.Today().AddDays(3)), Priority: models.PriorityCritical}
	far := &models.Transaction{TypeID: otherTypeID(t), UserID: userID, Title: "far off", EndDate: endOn(testClock.Today().AddDays(60))}
	require.NoError(t, repo.Create(ctx, soon))
	require.NoError(t, repo.Create(ctx, far))

	completed := models.StatusCompleted
	_, err := repo.Update(ctx, far.TransactionID, Patch{Status: &completed})
	require.NoError(t, err)

	stats, err := repo.Statistics(ctx, &userID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[models.StatusActive])
	assert.Equal(t, 1, stats.ByStatus[models.StatusCompleted])
	assert.Equal(t, 1, stats.ByPriority[models.PriorityCritical])
	assert.Equal(t, 1, stats.DueWithinWeek)
	assert.Equal(t, 2, stats.PendingNotifications, "completed record's reminders are not pending")
}
