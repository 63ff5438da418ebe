package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	masterdata "metering-dashboard/internal/masterdata/domain"
)

const (
	defaultUsersTable        = "users"
	defaultGroupMembersTable = "recipient_group_members"
)

// RecipientDirectory is a Postgres implementation of the recipient directory.
type RecipientDirectory struct {
	db           DBTX
	usersTable   string
	membersTable string
}

// NewRecipientDirectory constructs a directory.
func NewRecipientDirectory(db DBTX, opts ...RecipientDirectoryOption) *RecipientDirectory {
	repo := &RecipientDirectory{db: db, usersTable: defaultUsersTable, membersTable: defaultGroupMembersTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// RecipientDirectoryOption configures the directory.
type RecipientDirectoryOption func(*RecipientDirectory)

// WithUsersTable overrides the default users table name.
func WithUsersTable(table string) RecipientDirectoryOption {
	return func(repo *RecipientDirectory) {
		if table != "" {
			repo.usersTable = table
		}
	}
}

// WithGroupMembersTable overrides the default membership table name.
func WithGroupMembersTable(table string) RecipientDirectoryOption {
	return func(repo *RecipientDirectory) {
		if table != "" {
			repo.membersTable = table
		}
	}
}

// GetRecipient loads a recipient by id.
func (r *RecipientDirectory) GetRecipient(ctx context.Context, id string) (*masterdata.Recipient, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("recipient directory: nil db")
	}
	if id == "" {
		return nil, errors.New("recipient directory: empty id")
	}

	query := fmt.Sprintf(`
SELECT id, name, COALESCE(email, ''), COALESCE(messaging_id, '')
FROM %s
WHERE id = $1 AND deleted_at IS NULL
LIMIT 1`, r.usersTable)

	var recipient masterdata.Recipient
	if err := r.db.QueryRowContext(ctx, query, id).Scan(
		&recipient.ID,
		&recipient.Name,
		&recipient.Email,
		&recipient.MessagingID,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &recipient, nil
}

// ListGroupMembers loads the members of a recipient group.
func (r *RecipientDirectory) ListGroupMembers(ctx context.Context, groupID string) ([]masterdata.Recipient, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("recipient directory: nil db")
	}
	if groupID == "" {
		return nil, errors.New("recipient directory: empty group id")
	}

	query := fmt.Sprintf(`
SELECT u.id, u.name, COALESCE(u.email, ''), COALESCE(u.messaging_id, '')
FROM %s m
JOIN %s u ON u.id = m.user_id
WHERE m.group_id = $1 AND u.deleted_at IS NULL
ORDER BY u.id ASC`, r.membersTable, r.usersTable)

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []masterdata.Recipient
	for rows.Next() {
		var recipient masterdata.Recipient
		if err := rows.Scan(&recipient.ID, &recipient.Name, &recipient.Email, &recipient.MessagingID); err != nil {
			return nil, err
		}
		result = append(result, recipient)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
