package repository

import (
	"context"

	"github.com/ivzakh/termkeeper/internal/database"
	"github.com/ivzakh/termkeeper/internal/models"
)

type TransactionTypeRepository struct {
	db *database.DB
}

func NewTransactionTypeRepository(db *database.DB) *TransactionTypeRepository {
	return &TransactionTypeRepository{db: db}
}

var defaultTypes = []models.TransactionType{
	{Name: "Employment contract", Fields: []string{"employer", "position", "contract_number"}},
	{Name: "Leave", Fields: []string{"leave_type", "approver"}},
	{Name: "Vehicle documents", Fields: []string{"vehicle", "plate_number", "document"}},
	{Name: "Licence", Fields: []string{"authority", "licence_number"}},
	{Name: "Court hearing", Fields: []string{"court", "case_number"}},
	{Name: "Other", Fields: []string{}},
}

// EnsureDefaults seeds the fixed default type set. Safe to run on every
// startup; existing rows are left untouched.
func (r *TransactionTypeRepository) EnsureDefaults(ctx context.Context) error {
	for _, t := range defaultTypes {
		_, err := r.db.Pool.Exec(ctx,
			`INSERT INTO transaction_types (name, fields) VALUES ($1, $2)
			 ON CONFLICT (name) DO NOTHING`,
			t.Name, t.Fields,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *TransactionTypeRepository) List(ctx context.Context) ([]*models.TransactionType, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT type_id, name, level, parent_id, fields, is_active
		 FROM transaction_types WHERE is_active = TRUE ORDER BY type_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []*models.TransactionType
	for rows.Next() {
		t := &models.TransactionType{}
		if err := rows.Scan(&t.TypeID, &t.Name, &t.Level, &t.ParentID, &t.Fields, &t.IsActive); err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

func (r *TransactionTypeRepository) GetByID(ctx context.Context, typeID int) (*models.TransactionType, error) {
	t := &models.TransactionType{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT type_id, name, level, parent_id, fields, is_active
		 FROM transaction_types WHERE type_id = $1`,
		typeID,
	).Scan(&t.TypeID, &t.Name, &t.Level, &t.ParentID, &t.Fields, &t.IsActive)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return t, nil
}

func (r *TransactionTypeRepository) GetByName(ctx context.Context, name string) (*models.TransactionType, error) {
	t := &models.TransactionType{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT type_id, name, level, parent_id, fields, is_active
		 FROM transaction_types WHERE name = $1`,
		name,
	).Scan(&t.TypeID, &t.Name, &t.Level, &t.ParentID, &t.Fields, &t.IsActive)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return t, nil
}
