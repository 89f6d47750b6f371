package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/vovakirdan/privchat-server/internal/proto"
	"github.com/vovakirdan/privchat-server/internal/store"
)

// HandleFrame decodes, validates, and dispatches one inbound frame.
//
// Validation failures are reported to the sender as ErrorOccurred frames and
// never terminate the session. A returned error is an infrastructure failure
// (store unreachable, etc.); the transport logs it and may close the
// connection. Frames on one session are handled strictly sequentially by the
// connection's read loop.
func (s *Service) HandleFrame(ctx context.Context, sess *Session, data []byte) error {
	in, desc := proto.DecodeInbound(data, s.textMaxLength)
	if desc != nil {
		s.log.Debug().Str("group", sess.Group).Str("detail", desc.Detail).Msg("inbound frame rejected")
		s.sendError(sess, desc)
		return nil
	}
	if in == nil {
		// Server-only tag received from a client.
		s.log.Debug().Str("group", sess.Group).Msg("ignoring server-only message type")
		return nil
	}

	s.log.Debug().Str("group", sess.Group).Stringer("msg_type", in.InboundType()).Msg("dispatching inbound frame")

	var err error
	switch m := in.(type) {
	case proto.IsTyping:
		desc, err = s.handleIsTyping(ctx, sess, m)
	case proto.TypingStopped:
		desc, err = s.handleTypingStopped(ctx, sess, m)
	case proto.MessageRead:
		desc, err = s.handleMessageRead(ctx, sess, m)
	case proto.TextMessage:
		desc, err = s.handleTextMessage(ctx, sess, m)
	case proto.FileMessage:
		desc, err = s.handleFileMessage(ctx, sess, m)
	default:
		s.log.Error().Stringer("msg_type", in.InboundType()).Msg("inbound type without handler")
	}
	if err != nil {
		return err
	}
	if desc != nil {
		s.sendError(sess, desc)
	}
	return nil
}

func (s *Service) handleIsTyping(ctx context.Context, sess *Session, m proto.IsTyping) (*proto.ErrorDescription, error) {
	dialog, desc, err := s.lookupDialog(ctx, m.DialogID)
	if desc != nil || err != nil {
		return desc, err
	}

	s.broadcastToMembers(ctx, sess, dialog, proto.NewIsTyping(sess.Group), true)
	return nil, nil
}

func (s *Service) handleTypingStopped(ctx context.Context, sess *Session, m proto.TypingStopped) (*proto.ErrorDescription, error) {
	dialog, desc, err := s.lookupDialog(ctx, m.DialogID)
	if desc != nil || err != nil {
		return desc, err
	}

	s.broadcastToMembers(ctx, sess, dialog, proto.NewStoppedTyping(sess.Group), true)
	return nil, nil
}

func (s *Service) handleMessageRead(ctx context.Context, sess *Session, m proto.MessageRead) (*proto.ErrorDescription, error) {
	dialogPk := dialogPkString(m.DialogID)

	dialog, desc, err := s.lookupDialog(ctx, m.DialogID)
	if desc != nil || err != nil {
		return desc, err
	}

	s.broadcastToMembers(ctx, sess, dialog, proto.NewMessageRead(m.MessageID, dialogPk, sess.Group), false)

	msgDialogID, msgSenderID, err := s.store.MessageByID(ctx, m.MessageID)
	if errors.Is(err, store.ErrNotFound) {
		return protoErr(proto.ErrKindInvalidMessageReadID, "Message with id %d does not exist", m.MessageID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup message %d: %w", m.MessageID, err)
	}

	// The message must belong to the claimed dialog, and a sender cannot
	// mark its own message as read.
	if msgDialogID != m.DialogID || msgSenderID == sess.UserID {
		return protoErr(proto.ErrKindInvalidMessageReadID,
			"Message with id %d was not sent by %s to %s", m.MessageID, dialogPk, sess.Group), nil
	}

	if err := s.store.MarkMessageRead(ctx, m.MessageID, sess.UserID); err != nil {
		return nil, fmt.Errorf("mark message read: %w", err)
	}

	count, err := s.store.UnreadCount(ctx, m.DialogID, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("recompute unread count: %w", err)
	}
	s.sendToCaller(ctx, sess, proto.NewNewUnreadCount(dialogPk, count))

	return nil, nil
}

func (s *Service) handleTextMessage(ctx context.Context, sess *Session, m proto.TextMessage) (*proto.ErrorDescription, error) {
	dialogPk := dialogPkString(m.DialogID)

	dialog, desc, err := s.lookupDialog(ctx, m.DialogID)
	if desc != nil || err != nil {
		return desc, err
	}

	// Optimistic delivery keyed by the client's negative random id, before
	// any persistence work. The persisted id follows in MessageIDCreated.
	s.log.Debug().Str("group", sess.Group).Str("dialog_pk", dialogPk).Msg("validation passed, sending text message")
	s.broadcastToMembers(ctx, sess, dialog,
		proto.NewNewTextMessage(m.RandomID, m.Text, sess.Group, sess.Username, dialogPk), false)

	msg, err := s.store.SaveTextMessage(ctx, m.Text, sess.UserID, m.DialogID)
	if err != nil {
		return nil, fmt.Errorf("save text message: %w", err)
	}

	return nil, s.afterMessageSave(ctx, sess, dialog, msg.ID, m.RandomID)
}

func (s *Service) handleFileMessage(ctx context.Context, sess *Session, m proto.FileMessage) (*proto.ErrorDescription, error) {
	dialogPk := dialogPkString(m.DialogID)

	// No optimistic delivery for files: the event needs the resolved URL.
	file, err := s.store.FileByID(ctx, m.FileID)
	if errors.Is(err, store.ErrNotFound) {
		return protoErr(proto.ErrKindFileDoesNotExist, "File with id %s does not exist", m.FileID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup file %s: %w", m.FileID, err)
	}

	dialog, desc, err := s.lookupDialog(ctx, m.DialogID)
	if desc != nil || err != nil {
		return desc, err
	}

	msg, err := s.store.SaveFileMessage(ctx, m.FileID, sess.UserID, m.DialogID)
	if err != nil {
		return nil, fmt.Errorf("save file message: %w", err)
	}

	if err := s.afterMessageSave(ctx, sess, dialog, msg.ID, m.RandomID); err != nil {
		return nil, err
	}

	s.broadcastToMembers(ctx, sess, dialog,
		proto.NewNewFileMessage(msg.ID, serializeFile(file), sess.Group, sess.Username, dialogPk), false)

	return nil, nil
}

// afterMessageSave runs the shared post-persistence sequence: every dialog
// member, the sender included, gets the random-id/db-id correlation followed
// by a freshly recomputed unread count. Counts are always recomputed from
// the store, so concurrent writers self-heal on the next recompute.
func (s *Service) afterMessageSave(ctx context.Context, sess *Session, dialog *store.Dialog, dbID, randomID int64) error {
	idCreated := proto.NewMessageIDCreated(randomID, dbID)
	for _, uid := range dialog.UserIDs {
		member := groupName(uid)
		if err := s.router.Send(ctx, member, idCreated); err != nil {
			s.log.Warn().Err(err).Str("member", member).Msg("send message id created")
		}

		count, err := s.store.UnreadCount(ctx, dialog.ID, uid)
		if err != nil {
			return fmt.Errorf("recompute unread count for %d: %w", uid, err)
		}
		if err := s.router.Send(ctx, member, proto.NewNewUnreadCount(sess.Group, count)); err != nil {
			s.log.Warn().Err(err).Str("member", member).Msg("send unread count")
		}
	}
	return nil
}

// lookupDialog maps a missing dialog to the InvalidDialogPk protocol error
// and anything else to an infrastructure failure.
func (s *Service) lookupDialog(ctx context.Context, dialogID int64) (*store.Dialog, *proto.ErrorDescription, error) {
	dialog, err := s.store.DialogByPK(ctx, dialogID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, protoErr(proto.ErrKindInvalidDialogPk, "Discussion group with pk %d does not exist", dialogID), nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("lookup dialog %d: %w", dialogID, err)
	}
	return dialog, nil, nil
}

func serializeFile(f *store.UploadedFile) proto.FileDescriptor {
	return proto.FileDescriptor{
		ID:   f.ID,
		URL:  f.URL,
		Size: f.Size,
		Name: f.Name,
	}
}

func protoErr(kind proto.ErrorKind, format string, args ...any) *proto.ErrorDescription {
	return &proto.ErrorDescription{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
