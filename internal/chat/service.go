package chat

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/privchat-server/internal/proto"
	"github.com/vovakirdan/privchat-server/internal/router"
	"github.com/vovakirdan/privchat-server/internal/store"
)

// DefaultTextMaxLength bounds text message bodies when no limit is configured.
const DefaultTextMaxLength = 65535

// Service implements the chat protocol: session lifecycle, presence,
// validation, dispatch, and group fan-out. One Service is shared by all
// connections; all per-connection state lives in Session.
type Service struct {
	store         store.Store
	router        router.Router
	log           *zerolog.Logger
	textMaxLength int
}

// NewService builds the chat service. textMaxLength <= 0 selects the default.
func NewService(st store.Store, rt router.Router, logger *zerolog.Logger, textMaxLength int) *Service {
	if textMaxLength <= 0 {
		textMaxLength = DefaultTextMaxLength
	}
	return &Service{
		store:         st,
		router:        rt,
		log:           logger,
		textMaxLength: textMaxLength,
	}
}

// Connect joins the user's personal group and announces presence to every
// dialog the user belongs to, excluding the user itself.
//
// Authentication happens before Connect; an unauthenticated connection never
// reaches this point. Store errors here are fatal to the connection.
func (s *Service) Connect(ctx context.Context, userID int64, username string) (*Session, error) {
	sess := newSession(userID, username)

	leave, err := s.router.Join(ctx, sess.Group, func(payload []byte) {
		select {
		case sess.Outbound <- payload:
		default:
			// Drop if slow consumer.
			s.log.Warn().Str("group", sess.Group).Msg("outbound buffer full, dropping event")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("join personal group: %w", err)
	}
	sess.leave = leave

	dialogs, err := s.store.DialogsForUser(ctx, userID)
	if err != nil {
		leave()
		return nil, fmt.Errorf("list user dialogs: %w", err)
	}

	s.log.Info().Int64("user_id", userID).Ints64("dialogs", dialogs).Msg("user connected, announcing presence")
	ev := proto.NewWentOnline(sess.Group)
	for _, d := range dialogs {
		s.broadcastToDialog(ctx, sess, d, ev, true)
	}

	return sess, nil
}

// Disconnect leaves the personal group and announces the departure to the
// user's dialogs, excluding the user itself. A nil session (disconnect
// before authentication completed) is a no-op.
func (s *Service) Disconnect(ctx context.Context, sess *Session) {
	if sess == nil {
		return
	}
	if sess.leave != nil {
		sess.leave()
	}

	dialogs, err := s.store.DialogsForUser(ctx, sess.UserID)
	if err != nil {
		s.log.Warn().Err(err).Int64("user_id", sess.UserID).Msg("list dialogs on disconnect")
		return
	}

	s.log.Info().Int64("user_id", sess.UserID).Msg("user disconnected, announcing departure")
	ev := proto.NewWentOffline(sess.Group)
	for _, d := range dialogs {
		s.broadcastToDialog(ctx, sess, d, ev, true)
	}
}

// broadcastToDialog resolves current dialog membership and sends the event
// to each member's personal group, optionally skipping the caller. This is
// the sole multicast primitive used by the handlers.
//
// Sends are fire-and-forget: failures are logged and not rolled back. A
// missing dialog makes the broadcast a no-op; callers that need an error for
// that case look the dialog up themselves first.
func (s *Service) broadcastToDialog(ctx context.Context, sess *Session, dialogID int64, ev proto.Event, excludeSelf bool) {
	dialog, err := s.store.DialogByPK(ctx, dialogID)
	if err != nil {
		s.log.Warn().Err(err).Int64("dialog_id", dialogID).Msg("resolve dialog for broadcast")
		return
	}
	s.broadcastToMembers(ctx, sess, dialog, ev, excludeSelf)
}

func (s *Service) broadcastToMembers(ctx context.Context, sess *Session, dialog *store.Dialog, ev proto.Event, excludeSelf bool) {
	for _, uid := range dialog.UserIDs {
		if excludeSelf && uid == sess.UserID {
			continue
		}
		if err := s.router.Send(ctx, groupName(uid), ev); err != nil {
			s.log.Warn().Err(err).Int64("member", uid).Int64("dialog_id", dialog.ID).Msg("send to member")
		}
	}
}

// sendToCaller addresses the caller's personal group, reaching every active
// connection of that user.
func (s *Service) sendToCaller(ctx context.Context, sess *Session, ev proto.Event) {
	if err := s.router.Send(ctx, sess.Group, ev); err != nil {
		s.log.Warn().Err(err).Str("group", sess.Group).Msg("send to caller")
	}
}

// sendError replies with an ErrorOccurred frame on this connection only.
// Protocol errors never terminate the session and are never broadcast.
func (s *Service) sendError(sess *Session, desc *proto.ErrorDescription) {
	payload, err := proto.EncodeEvent(proto.NewErrorOccurred(*desc))
	if err != nil {
		s.log.Error().Err(err).Msg("encode error frame")
		return
	}
	select {
	case sess.Outbound <- payload:
	default:
		s.log.Warn().Str("group", sess.Group).Msg("outbound buffer full, dropping error frame")
	}
}

func dialogPkString(dialogID int64) string {
	return strconv.FormatInt(dialogID, 10)
}
