package models

type TransactionType struct {
	TypeID   int      `json:"type_id"`
	Name     string   `json:"name"`
	Level    int      `json:"level"`
	ParentID *int     `json:"parent_id"`
	Fields   []string `json:"fields"`
	IsActive bool     `json:"is_active"`
}
