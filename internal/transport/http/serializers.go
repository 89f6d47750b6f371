package http

import (
	"context"
	"errors"
	"strconv"

	"github.com/vovakirdan/privchat-server/internal/proto"
	"github.com/vovakirdan/privchat-server/internal/store"
)

// MessageResponse is the serialized form of a message in history responses.
// Timestamps are millisecond epoch values; pks are strings per the wire
// convention.
type MessageResponse struct {
	ID             int64                 `json:"id"`
	Text           string                `json:"text"`
	Sent           int64                 `json:"sent"`
	Edited         int64                 `json:"edited"`
	Read           bool                  `json:"read"`
	File           *proto.FileDescriptor `json:"file"`
	Sender         string                `json:"sender"`
	Recipient      string                `json:"recipient"`
	Out            bool                  `json:"out"`
	SenderUsername string                `json:"sender_username"`
}

// DialogResponse is the serialized form of a dialog in listing responses.
type DialogResponse struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	Created     int64            `json:"created"`
	Modified    int64            `json:"modified"`
	OtherUserID []string         `json:"other_user_id"`
	UnreadCount int              `json:"unread_count"`
	LastMessage *MessageResponse `json:"last_message"`
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func serializeMessage(ctx context.Context, st store.Store, msg *store.Message, viewerID int64) (*MessageResponse, error) {
	read, err := st.MessageReadFlag(ctx, msg.ID, viewerID)
	if err != nil {
		return nil, err
	}

	var file *proto.FileDescriptor
	if msg.FileID != nil {
		f, err := st.FileByID(ctx, *msg.FileID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		if f != nil {
			file = &proto.FileDescriptor{ID: f.ID, URL: f.URL, Size: f.Size, Name: f.Name}
		}
	}

	sender := ""
	senderUsername := ""
	if user, err := st.GetUserByID(ctx, msg.SenderID); err == nil {
		senderUsername = user.Username
	}
	sender = formatID(msg.SenderID)

	return &MessageResponse{
		ID:             msg.ID,
		Text:           msg.Text,
		Sent:           msg.CreatedAt.Unix() * 1000,
		Edited:         msg.ModifiedAt.Unix() * 1000,
		Read:           read,
		File:           file,
		Sender:         sender,
		Recipient:      formatID(msg.DialogID),
		Out:            msg.SenderID == viewerID,
		SenderUsername: senderUsername,
	}, nil
}

func serializeDialog(ctx context.Context, st store.Store, dialog *store.Dialog, viewerID int64) (*DialogResponse, error) {
	unread, err := st.UnreadCount(ctx, dialog.ID, viewerID)
	if err != nil {
		return nil, err
	}

	var lastMessage *MessageResponse
	last, err := st.LastMessage(ctx, dialog.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if last != nil {
		lastMessage, err = serializeMessage(ctx, st, last, viewerID)
		if err != nil {
			return nil, err
		}
	}

	otherUsers := make([]string, 0, len(dialog.UserIDs))
	for _, uid := range dialog.UserIDs {
		if uid == viewerID {
			continue
		}
		otherUsers = append(otherUsers, formatID(uid))
	}

	return &DialogResponse{
		ID:          dialog.ID,
		Name:        dialog.Name,
		Created:     dialog.CreatedAt.Unix() * 1000,
		Modified:    dialog.ModifiedAt.Unix() * 1000,
		OtherUserID: otherUsers,
		UnreadCount: unread,
		LastMessage: lastMessage,
	}, nil
}
