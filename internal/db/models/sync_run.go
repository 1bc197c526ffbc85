package models

import "time"

// SyncRun is the persisted record of one reconciliation tick against one
// AuthenticationProvider binding. It is written by the scheduled driver
// after Engine.Reconcile returns; the engine itself never touches this
// table, keeping SyncReport (the engine's return value) and SyncRun (its
// storage) independent.
type SyncRun struct {
	// ID is the unique identifier for this run.
	ID uint64 `gorm:"primaryKey"`
	// AuthenticationProviderID is the binding this run reconciled.
	AuthenticationProviderID string `gorm:"size:36;not null;index"`
	// TeamID is denormalized from the binding for cheap filtering.
	TeamID string `gorm:"size:36;not null;index"`
	// Created is the count of Users newly created this run.
	Created int
	// Updated is the count of Users whose attributes changed this run.
	Updated int
	// Suspended is the count of Users suspended this run.
	Suspended int
	// Reactivated is the count of Users reactivated this run.
	Reactivated int
	// Unchanged is the count of Users seen but left untouched this run.
	Unchanged int
	// AddedToGroup is the count of Users added to the binding's default group.
	AddedToGroup int
	// Errors holds the run's human-readable error strings, newline joined.
	Errors string `gorm:"type:text"`
	// StartedAt is when the reconciliation call began.
	StartedAt time.Time
	// FinishedAt is when the reconciliation call returned.
	FinishedAt time.Time
}

// TableName specifies the database table name for the SyncRun model.
func (SyncRun) TableName() string {
	return "sync_runs"
}
