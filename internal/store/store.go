package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by lookups when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// User represents a user in the system.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Dialog is a named conversation group. Membership is managed outside the
// chat core; the core only queries it.
type Dialog struct {
	ID         int64
	Name       string
	UserIDs    []int64
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// Message is a persisted chat message. Exactly one of Text and FileID is
// set. IsRemoved is a soft-delete flag not interpreted by the chat core.
type Message struct {
	ID         int64
	DialogID   int64
	SenderID   int64
	Text       string
	FileID     *string
	IsRemoved  bool
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// UploadedFile is created by the HTTP upload path and referenced by id in
// file messages.
type UploadedFile struct {
	ID         string
	UploadedBy int64
	URL        string
	Size       int64
	Name       string
	UploadedAt time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// DialogStore handles dialog persistence and membership queries.
type DialogStore interface {
	// CreateDialog creates a dialog with the given members.
	CreateDialog(ctx context.Context, name string, userIDs []int64) (*Dialog, error)

	// DialogByPK retrieves a dialog, including its member ids.
	// Returns ErrNotFound if the dialog does not exist.
	DialogByPK(ctx context.Context, id int64) (*Dialog, error)

	// DialogsForUser returns the ids of every dialog the user belongs to.
	DialogsForUser(ctx context.Context, userID int64) ([]int64, error)

	// ListDialogs returns the dialogs a user belongs to, newest first.
	ListDialogs(ctx context.Context, userID int64) ([]*Dialog, error)
}

// MessageStore handles message and read-receipt persistence.
type MessageStore interface {
	// SaveTextMessage persists a text message and creates an unread receipt
	// for every dialog member except the sender.
	SaveTextMessage(ctx context.Context, text string, senderID, dialogID int64) (*Message, error)

	// SaveFileMessage persists a file message and creates an unread receipt
	// for every dialog member except the sender.
	SaveFileMessage(ctx context.Context, fileID string, senderID, dialogID int64) (*Message, error)

	// MessageByID returns the dialog and sender of a message.
	// Returns ErrNotFound if the message does not exist.
	MessageByID(ctx context.Context, id int64) (dialogID, senderID int64, err error)

	// MarkMessageRead sets the read flag on the (message, recipient)
	// receipt. Marking an already-read receipt is a no-op.
	MarkMessageRead(ctx context.Context, messageID, recipientID int64) error

	// UnreadCount recomputes the number of unread receipts for the
	// recipient within one dialog.
	UnreadCount(ctx context.Context, dialogID, recipientID int64) (int, error)

	// ListMessages retrieves dialog messages newest first. If beforeID is
	// set only messages older than that id are returned.
	ListMessages(ctx context.Context, dialogID int64, limit int, beforeID *int64) ([]*Message, error)

	// MessageReadFlag reports whether the recipient has read the message.
	// Messages without a receipt for the recipient count as read.
	MessageReadFlag(ctx context.Context, messageID, recipientID int64) (bool, error)

	// LastMessage returns the most recent message of a dialog, or
	// ErrNotFound for an empty dialog.
	LastMessage(ctx context.Context, dialogID int64) (*Message, error)
}

// FileStore handles uploaded file records.
type FileStore interface {
	// SaveFile records an uploaded file.
	SaveFile(ctx context.Context, f *UploadedFile) error

	// FileByID retrieves a file record.
	// Returns ErrNotFound if the file does not exist.
	FileByID(ctx context.Context, id string) (*UploadedFile, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	DialogStore
	MessageStore
	FileStore

	// Close closes the underlying database connection.
	Close() error
}
