package types

import "time"

// Contract represents an employment contract managed by the system.
type Contract struct {
	// ID is the unique identifier of the contract.
	ID int `json:"id" db:"id"`

	// Title is a short human-readable name for the contract.
	Title string `json:"title" db:"title"`

	// Counterparty is the name of the employee or company the contract
	// is signed with.
	Counterparty string `json:"counterparty" db:"counterparty"`

	// Amount is the contract value in the smallest currency unit.
	Amount int64 `json:"amount" db:"amount"`

	// StartsOn is the date the contract takes effect.
	StartsOn time.Time `json:"starts_on" db:"starts_on"`

	// EndsOn is the date the contract expires. Zero means open-ended.
	EndsOn time.Time `json:"ends_on,omitempty" db:"ends_on"`

	// Status is the lifecycle state of the contract
	// (e.g., "draft", "active", "terminated").
	Status string `json:"status" db:"status"`

	// DocumentKey is the object-storage key of the signed contract
	// document, empty if none has been uploaded.
	DocumentKey string `json:"-" db:"document_key"`

	// CreatedBy is the ID of the administrator who created the contract.
	CreatedBy int `json:"created_by" db:"created_by"`

	// CreatedAt is the timestamp when the contract was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
