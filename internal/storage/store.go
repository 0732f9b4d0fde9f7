// Package storage provides the persistence layer behind the time-entry and
// caregiver engines. One Store interface, three engines: embedded SQLite
// (default), PostgreSQL, and an in-memory store for tests and throwaway runs.
package storage

import (
	"context"

	"caretrack/internal/core"
)

// EntryWithNames is a time entry joined with its caregiver's display names,
// used by the all-entries listing.
type EntryWithNames struct {
	core.TimeEntry
	EnglishName string `json:"englishName"`
	ChineseName string `json:"chineseName"`
}

// Store is the table-like persistence contract the engines run against.
// Implementations return core.ErrCaregiverNotFound / core.ErrEntryNotFound
// for missing rows; any other failure is a storage error.
//
// A zero core.Month means "no month filter". Month filtering matches the
// clock-in timestamp's year and month (UTC); entries crossing a month
// boundary belong wholly to the month they started in.
type Store interface {
	FindCaregiver(ctx context.Context, id string) (core.Caregiver, error)
	// ListActiveCaregivers returns active caregivers ordered by EnglishName.
	ListActiveCaregivers(ctx context.Context) ([]core.Caregiver, error)
	// ListAllCaregivers includes deactivated caregivers; used by export.
	ListAllCaregivers(ctx context.Context) ([]core.Caregiver, error)
	InsertCaregiver(ctx context.Context, c core.Caregiver) error
	UpdateCaregiver(ctx context.Context, c core.Caregiver) error
	// DeactivateCaregiver is the soft delete: the row and its entries stay.
	DeactivateCaregiver(ctx context.Context, id string) error
	// DeleteCaregiver removes the row for good, cascading its entries.
	DeleteCaregiver(ctx context.Context, id string) error

	InsertTimeEntry(ctx context.Context, e core.TimeEntry) (int64, error)
	UpdateTimeEntry(ctx context.Context, e core.TimeEntry) error
	FindTimeEntry(ctx context.Context, id int64) (core.TimeEntry, error)
	// FindOpenEntry returns the entry with no clock-out for the caregiver.
	// Should several exist the most recently started wins.
	FindOpenEntry(ctx context.Context, caregiverID string) (core.TimeEntry, bool, error)
	// ListEntries returns one caregiver's entries, newest clock-in first.
	ListEntries(ctx context.Context, caregiverID string, month core.Month) ([]core.TimeEntry, error)
	// ListAllEntries returns entries of active caregivers with names joined,
	// newest clock-in first.
	ListAllEntries(ctx context.Context, month core.Month) ([]EntryWithNames, error)
	DeleteTimeEntry(ctx context.Context, id int64) error

	// ReplaceAll swaps the entire dataset in one transaction:
	// delete-all-then-insert-all, preserving the supplied ids and
	// timestamps. Used by restore.
	ReplaceAll(ctx context.Context, caregivers []core.Caregiver, entries []core.TimeEntry) error

	Close() error
}
