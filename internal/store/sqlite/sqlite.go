package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/privchat-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := open(dbPath)
	if err != nil {
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// NewWithSetup creates a new SQLite store and runs a setup function instead
// of the default schema. Useful for tests.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := open(dbPath)
	if err != nil {
		return nil, err
	}

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

func open(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return db, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		username      TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS dialogs (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT NOT NULL UNIQUE,
		created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		modified_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS dialog_users (
		dialog_id INTEGER NOT NULL REFERENCES dialogs(id) ON DELETE CASCADE,
		user_id   INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		PRIMARY KEY (dialog_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS files (
		id          TEXT PRIMARY KEY,
		uploaded_by INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		url         TEXT NOT NULL,
		size        INTEGER NOT NULL,
		name        TEXT NOT NULL,
		uploaded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		dialog_id   INTEGER NOT NULL REFERENCES dialogs(id) ON DELETE CASCADE,
		sender_id   INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		text        TEXT NOT NULL DEFAULT '',
		file_id     TEXT REFERENCES files(id),
		is_removed  BOOLEAN NOT NULL DEFAULT 0,
		created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		modified_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_messages_dialog ON messages(dialog_id, id);

	CREATE TABLE IF NOT EXISTS message_reads (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id   INTEGER NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
		recipient_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		read         BOOLEAN NOT NULL DEFAULT 0,
		created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		modified_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (message_id, recipient_id)
	);
	CREATE INDEX IF NOT EXISTS idx_message_reads_recipient ON message_reads(recipient_id, read);
	`
	_, err := db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, password_hash)
		VALUES (?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, username, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE id = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &user, nil
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE username = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &user, nil
}

// ==== DialogStore implementation ====

// CreateDialog creates a dialog with the given members.
func (s *SQLiteStore) CreateDialog(ctx context.Context, name string, userIDs []int64) (*store.Dialog, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `INSERT INTO dialogs (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("insert dialog: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	for _, uid := range userIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO dialog_users (dialog_id, user_id) VALUES (?, ?)`, id, uid); err != nil {
			return nil, fmt.Errorf("insert dialog member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return s.DialogByPK(ctx, id)
}

// DialogByPK retrieves a dialog and its member ids.
func (s *SQLiteStore) DialogByPK(ctx context.Context, id int64) (*store.Dialog, error) {
	query := `
		SELECT id, name, created_at, modified_at
		FROM dialogs
		WHERE id = ?
	`
	var dialog store.Dialog
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&dialog.ID,
		&dialog.Name,
		&dialog.CreatedAt,
		&dialog.ModifiedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select dialog: %w", err)
	}

	members, err := s.dialogMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	dialog.UserIDs = members

	return &dialog, nil
}

func (s *SQLiteStore) dialogMembers(ctx context.Context, dialogID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM dialog_users WHERE dialog_id = ? ORDER BY user_id`, dialogID)
	if err != nil {
		return nil, fmt.Errorf("select dialog members: %w", err)
	}
	defer rows.Close()

	var members []int64
	for rows.Next() {
		var uid int64
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("scan dialog member: %w", err)
		}
		members = append(members, uid)
	}
	return members, rows.Err()
}

// DialogsForUser returns the ids of every dialog the user belongs to.
func (s *SQLiteStore) DialogsForUser(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT dialog_id FROM dialog_users WHERE user_id = ? ORDER BY dialog_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("select user dialogs: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan dialog id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListDialogs returns the dialogs a user belongs to, newest first.
func (s *SQLiteStore) ListDialogs(ctx context.Context, userID int64) ([]*store.Dialog, error) {
	query := `
		SELECT d.id, d.name, d.created_at, d.modified_at
		FROM dialogs d
		JOIN dialog_users du ON du.dialog_id = d.id
		WHERE du.user_id = ?
		ORDER BY d.modified_at DESC, d.id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("select dialogs: %w", err)
	}
	defer rows.Close()

	var dialogs []*store.Dialog
	for rows.Next() {
		var d store.Dialog
		if err := rows.Scan(&d.ID, &d.Name, &d.CreatedAt, &d.ModifiedAt); err != nil {
			return nil, fmt.Errorf("scan dialog: %w", err)
		}
		dialogs = append(dialogs, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, d := range dialogs {
		members, err := s.dialogMembers(ctx, d.ID)
		if err != nil {
			return nil, err
		}
		d.UserIDs = members
	}

	return dialogs, nil
}

// ==== MessageStore implementation ====

// SaveTextMessage persists a text message with unread receipts.
func (s *SQLiteStore) SaveTextMessage(ctx context.Context, text string, senderID, dialogID int64) (*store.Message, error) {
	return s.saveMessage(ctx, text, nil, senderID, dialogID)
}

// SaveFileMessage persists a file message with unread receipts.
func (s *SQLiteStore) SaveFileMessage(ctx context.Context, fileID string, senderID, dialogID int64) (*store.Message, error) {
	return s.saveMessage(ctx, "", &fileID, senderID, dialogID)
}

func (s *SQLiteStore) saveMessage(ctx context.Context, text string, fileID *string, senderID, dialogID int64) (*store.Message, error) {
	members, err := s.dialogMembers(ctx, dialogID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO messages (dialog_id, sender_id, text, file_id) VALUES (?, ?, ?, ?)`,
		dialogID, senderID, text, fileID)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	// One unread receipt per member other than the sender.
	for _, uid := range members {
		if uid == senderID {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO message_reads (message_id, recipient_id) VALUES (?, ?)`, id, uid); err != nil {
			return nil, fmt.Errorf("insert message read: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE dialogs SET modified_at = CURRENT_TIMESTAMP WHERE id = ?`, dialogID); err != nil {
		return nil, fmt.Errorf("touch dialog: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return s.messageByID(ctx, id)
}

func (s *SQLiteStore) messageByID(ctx context.Context, id int64) (*store.Message, error) {
	query := `
		SELECT id, dialog_id, sender_id, text, file_id, is_removed, created_at, modified_at
		FROM messages
		WHERE id = ?
	`
	var msg store.Message
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&msg.ID,
		&msg.DialogID,
		&msg.SenderID,
		&msg.Text,
		&msg.FileID,
		&msg.IsRemoved,
		&msg.CreatedAt,
		&msg.ModifiedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select message: %w", err)
	}
	return &msg, nil
}

// MessageByID returns the dialog and sender of a message.
func (s *SQLiteStore) MessageByID(ctx context.Context, id int64) (int64, int64, error) {
	var dialogID, senderID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT dialog_id, sender_id FROM messages WHERE id = ?`, id).Scan(&dialogID, &senderID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, store.ErrNotFound
	}
	if err != nil {
		return 0, 0, fmt.Errorf("select message: %w", err)
	}
	return dialogID, senderID, nil
}

// MarkMessageRead sets the read flag on the (message, recipient) receipt.
func (s *SQLiteStore) MarkMessageRead(ctx context.Context, messageID, recipientID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE message_reads SET read = 1, modified_at = CURRENT_TIMESTAMP
		 WHERE message_id = ? AND recipient_id = ? AND read = 0`,
		messageID, recipientID)
	if err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}
	return nil
}

// UnreadCount recomputes the unread receipt count for one (dialog, recipient).
func (s *SQLiteStore) UnreadCount(ctx context.Context, dialogID, recipientID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM message_reads mr
		JOIN messages m ON m.id = mr.message_id
		WHERE m.dialog_id = ? AND mr.recipient_id = ? AND mr.read = 0
	`
	var count int
	if err := s.db.QueryRowContext(ctx, query, dialogID, recipientID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

// ListMessages retrieves dialog messages newest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, dialogID int64, limit int, beforeID *int64) ([]*store.Message, error) {
	query := `
		SELECT id, dialog_id, sender_id, text, file_id, is_removed, created_at, modified_at
		FROM messages
		WHERE dialog_id = ? AND is_removed = 0
	`
	args := []any{dialogID}
	if beforeID != nil {
		query += ` AND id < ?`
		args = append(args, *beforeID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		var msg store.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.DialogID,
			&msg.SenderID,
			&msg.Text,
			&msg.FileID,
			&msg.IsRemoved,
			&msg.CreatedAt,
			&msg.ModifiedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}

// MessageReadFlag reports whether the recipient has read the message.
func (s *SQLiteStore) MessageReadFlag(ctx context.Context, messageID, recipientID int64) (bool, error) {
	var read bool
	err := s.db.QueryRowContext(ctx,
		`SELECT read FROM message_reads WHERE message_id = ? AND recipient_id = ?`,
		messageID, recipientID).Scan(&read)
	if errors.Is(err, sql.ErrNoRows) {
		// No receipt exists for own messages; they count as read.
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("select message read: %w", err)
	}
	return read, nil
}

// LastMessage returns the most recent message of a dialog.
func (s *SQLiteStore) LastMessage(ctx context.Context, dialogID int64) (*store.Message, error) {
	query := `
		SELECT id, dialog_id, sender_id, text, file_id, is_removed, created_at, modified_at
		FROM messages
		WHERE dialog_id = ? AND is_removed = 0
		ORDER BY id DESC
		LIMIT 1
	`
	var msg store.Message
	err := s.db.QueryRowContext(ctx, query, dialogID).Scan(
		&msg.ID,
		&msg.DialogID,
		&msg.SenderID,
		&msg.Text,
		&msg.FileID,
		&msg.IsRemoved,
		&msg.CreatedAt,
		&msg.ModifiedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select last message: %w", err)
	}
	return &msg, nil
}

// ==== FileStore implementation ====

// SaveFile records an uploaded file.
func (s *SQLiteStore) SaveFile(ctx context.Context, f *store.UploadedFile) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO files (id, uploaded_by, url, size, name) VALUES (?, ?, ?, ?, ?)`,
		f.ID, f.UploadedBy, f.URL, f.Size, f.Name)
	if err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}

// FileByID retrieves a file record.
func (s *SQLiteStore) FileByID(ctx context.Context, id string) (*store.UploadedFile, error) {
	query := `
		SELECT id, uploaded_by, url, size, name, uploaded_at
		FROM files
		WHERE id = ?
	`
	var f store.UploadedFile
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&f.ID,
		&f.UploadedBy,
		&f.URL,
		&f.Size,
		&f.Name,
		&f.UploadedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select file: %w", err)
	}
	return &f, nil
}
