// Package org manages the shared control table of organizations and
// orchestrates tenant partition provisioning and archival.
package org

import (
	"errors"
	"time"

	"orgctl/internal/tenant"
)

var (
	ErrNotFound        = errors.New("org: organization not found")
	ErrAlreadyExists   = errors.New("org: organization already exists")
	ErrAlreadyArchived = errors.New("org: organization already archived")
	ErrInvalidInput    = errors.New("org: invalid input")
)

// Status is the closed lifecycle state of an organization. Archived
// organizations keep their control row forever and never rescan into logins,
// and their old schema name is never reused.
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

func statusFromFlag(active bool) Status {
	if active {
		return StatusActive
	}
	return StatusArchived
}

// Active reports whether the organization is live.
func (s Status) Active() bool { return s == StatusActive }

// Organization is one row of the control table.
type Organization struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Schema      tenant.SchemaName `json:"schema_name"`
	MaxUsers    int               `json:"max_users"`
	Status      Status            `json:"status"`
	CreatedByID string            `json:"created_by_id"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}
