package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ivzakh/termkeeper/internal/clock"
	"github.com/ivzakh/termkeeper/internal/database"
	"github.com/ivzakh/termkeeper/internal/models"
	"github.com/ivzakh/termkeeper/internal/planner"
)

const transactionColumns = `transaction_id, type_id, user_id, responsible_id, title, description, data,
	start_date, end_date, priority, status, is_deleted, created_at, updated_at`

type TransactionRepository struct {
	db    *database.DB
	clock clock.Clock
}

func NewTransactionRepository(db *database.DB, clk clock.Clock) *TransactionRepository {
	return &TransactionRepository{db: db, clock: clk}
}

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	t := &models.Transaction{}
	err := row.Scan(&t.TransactionID, &t.TypeID, &t.UserID, &t.ResponsibleID, &t.Title, &t.Description,
		&t.Data, &t.StartDate, &t.EndDate, &t.Priority, &t.Status, &t.IsDeleted, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Create persists a new record and its planned notifications in one
// database transaction. Either both land or neither does.
func (r *TransactionRepository) Create(ctx context.Context, t *models.Transaction) error {
	if t.Title == "" {
		return fmt.Errorf("title is required")
	}
	if t.Priority == "" {
		t.Priority = models.PriorityNormal
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("invalid priority %q", t.Priority)
	}
	if t.Status == "" {
		t.Status = models.StatusActive
	}
	if !t.Status.Valid() {
		return fmt.Errorf("invalid status %q", t.Status)
	}
	today := r.clock.Today()
	if t.StartDate.IsZero() {
		t.StartDate = today.Time()
	}
	if t.Data == nil {
		t.Data = map[string]any{}
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO transactions (type_id, user_id, responsible_id, title, description, data, start_date, end_date, priority, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING transaction_id, start_date, created_at, updated_at`,
		t.TypeID, t.UserID, t.ResponsibleID, t.Title, t.Description, t.Data, t.StartDate, t.EndDate, t.Priority, t.Status,
	).Scan(&t.TransactionID, &t.StartDate, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return err
	}

	for _, n := range planner.Plan(t, today) {
		if err := insertNotification(ctx, tx, n); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *TransactionRepository) GetByID(ctx context.Context, id int) (*models.Transaction, error) {
	t, err := scanTransaction(r.db.Pool.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE transaction_id = $1 AND is_deleted = FALSE`,
		id,
	))
	if err != nil {
		return nil, mapNotFound(err)
	}
	return t, nil
}

type ListFilter struct {
	OwnerID  *int64
	TypeID   *int
	Status   *models.Status
	Priority *models.Priority
	Limit    int
}

// List returns records ordered by deadline, soonest first; records
// created later break ties first.
func (r *TransactionRepository) List(ctx context.Context, f ListFilter) ([]*models.Transaction, error) {
	where := []string{"is_deleted = FALSE"}
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.OwnerID != nil {
		add("user_id = $%d", *f.OwnerID)
	}
	if f.TypeID != nil {
		add("type_id = $%d", *f.TypeID)
	}
	if f.Status != nil {
		add("status = $%d", *f.Status)
	}
	if f.Priority != nil {
		add("priority = $%d", *f.Priority)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` + strings.Join(where, " AND ") +
		fmt.Sprintf(` ORDER BY end_date ASC NULLS LAST, created_at DESC LIMIT $%d`, len(args))

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Search does a case-insensitive substring match over title and description.
func (r *TransactionRepository) Search(ctx context.Context, ownerID int64, keyword string) ([]*models.Transaction, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE user_id = $1 AND is_deleted = FALSE AND (title ILIKE $2 OR description ILIKE $2)
		 ORDER BY end_date ASC NULLS LAST, created_at DESC`,
		ownerID, "%"+keyword+"%",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Patch is a partial update over the mutable columns. Clear* flags
// distinguish "set NULL" from "leave alone".
type Patch struct {
	Title            *string
	Description      *string
	EndDate          *time.Time
	ClearEndDate     bool
	Priority         *models.Priority
	Status           *models.Status
	ResponsibleID    *int64
	ClearResponsible bool
	Data             map[string]any
}

// Update applies the patch and, when the deadline or recipients changed,
// runs the re-plan protocol in the same database transaction: unsent
// notifications are dropped and the schedule is rebuilt from today. Sent
// notifications are immutable history.
func (r *TransactionRepository) Update(ctx context.Context, id int, p Patch) (*models.Transaction, error) {
	return r.update(ctx, id, nil, p)
}

// UpdateOwned is Update restricted to records owned by ownerID. Someone
// else's record reads as not found, so callers acting on behalf of a
// chat user cannot reach foreign records by guessing ids.
func (r *TransactionRepository) UpdateOwned(ctx context.Context, id int, ownerID int64, p Patch) (*models.Transaction, error) {
	return r.update(ctx, id, &ownerID, p)
}

func (r *TransactionRepository) update(ctx context.Context, id int, ownerID *int64, p Patch) (*models.Transaction, error) {
	if p.Priority != nil && !p.Priority.Valid() {
		return nil, fmt.Errorf("invalid priority %q", *p.Priority)
	}
	if p.Status != nil && !p.Status.Valid() {
		return nil, fmt.Errorf("invalid status %q", *p.Status)
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	lockQuery := `SELECT ` + transactionColumns + ` FROM transactions WHERE transaction_id = $1 AND is_deleted = FALSE`
	lockArgs := []any{id}
	if ownerID != nil {
		lockQuery += ` AND user_id = $2`
		lockArgs = append(lockArgs, *ownerID)
	}
	old, err := scanTransaction(tx.QueryRow(ctx, lockQuery+` FOR UPDATE`, lockArgs...))
	if err != nil {
		return nil, mapNotFound(err)
	}

	sets := []string{"updated_at = NOW()"}
	var args []any
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if p.Title != nil {
		set("title", *p.Title)
	}
	if p.Description != nil {
		set("description", *p.Description)
	}
	if p.ClearEndDate {
		sets = append(sets, "end_date = NULL")
	} else if p.EndDate != nil {
		set("end_date", *p.EndDate)
	}
	if p.Priority != nil {
		set("priority", *p.Priority)
	}
	if p.Status != nil {
		set("status", *p.Status)
	}
	if p.ClearResponsible {
		sets = append(sets, "responsible_id = NULL")
	} else if p.ResponsibleID != nil {
		set("responsible_id", *p.ResponsibleID)
	}
	if p.Data != nil {
		set("data", p.Data)
	}

	args = append(args, id)
	updated, err := scanTransaction(tx.QueryRow(ctx,
		`UPDATE transactions SET `+strings.Join(sets, ", ")+
			fmt.Sprintf(` WHERE transaction_id = $%d RETURNING `, len(args))+transactionColumns,
		args...,
	))
	if err != nil {
		return nil, err
	}

	if planner.NeedsReplan(old, updated) {
		if _, err := tx.Exec(ctx,
			`DELETE FROM notifications WHERE transaction_id = $1 AND sent = FALSE`, id,
		); err != nil {
			return nil, err
		}
		for _, n := range planner.Plan(updated, r.clock.Today()) {
			if err := insertNotification(ctx, tx, n); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return updated, nil
}

// SoftDelete flips the flag. Notifications stay but the due query
// suppresses them.
func (r *TransactionRepository) SoftDelete(ctx context.Context, id int) error {
	return r.softDelete(ctx, id, nil)
}

// SoftDeleteOwned is SoftDelete restricted to records owned by ownerID.
func (r *TransactionRepository) SoftDeleteOwned(ctx context.Context, id int, ownerID int64) error {
	return r.softDelete(ctx, id, &ownerID)
}

func (r *TransactionRepository) softDelete(ctx context.Context, id int, ownerID *int64) error {
	query := `UPDATE transactions SET is_deleted = TRUE, updated_at = NOW() WHERE transaction_id = $1`
	args := []any{id}
	if ownerID != nil {
		query += ` AND user_id = $2`
		args = append(args, *ownerID)
	}
	tag, err := r.db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *TransactionRepository) Statistics(ctx context.Context, ownerID *int64) (*models.Statistics, error) {
	stats := &models.Statistics{
		ByStatus:   map[models.Status]int{},
		ByPriority: map[models.Priority]int{},
	}

	ownerCond := ""
	var args []any
	if ownerID != nil {
		ownerCond = " AND user_id = $1"
		args = append(args, *ownerID)
	}

	rows, err := r.db.Pool.Query(ctx,
		`SELECT status, COUNT(*) FROM transactions WHERE is_deleted = FALSE`+ownerCond+` GROUP BY status`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var s models.Status
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			rows.Close()
			return nil, err
		}
		stats.ByStatus[s] = n
		stats.Total += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.db.Pool.Query(ctx,
		`SELECT priority, COUNT(*) FROM transactions WHERE is_deleted = FALSE`+ownerCond+` GROUP BY priority`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var p models.Priority
		var n int
		if err := rows.Scan(&p, &n); err != nil {
			rows.Close()
			return nil, err
		}
		stats.ByPriority[p] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	today := r.clock.Today()
	dueArgs := append(append([]any{}, args...), today.Time(), today.AddDays(7).Time())
	err = r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM transactions
		 WHERE is_deleted = FALSE AND status = 'active' AND end_date IS NOT NULL`+ownerCond+
			fmt.Sprintf(` AND end_date >= $%d AND end_date <= $%d`, len(args)+1, len(args)+2),
		dueArgs...,
	).Scan(&stats.DueWithinWeek)
	if err != nil {
		return nil, err
	}

	pendingCond := ""
	if ownerID != nil {
		pendingCond = " AND t.user_id = $1"
	}
	err = r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications n
		 JOIN transactions t ON t.transaction_id = n.transaction_id
		 WHERE n.sent = FALSE AND t.is_deleted = FALSE AND t.status = 'active' AND t.end_date IS NOT NULL`+pendingCond,
		args...,
	).Scan(&stats.PendingNotifications)
	if err != nil {
		return nil, err
	}

	return stats, nil
}
