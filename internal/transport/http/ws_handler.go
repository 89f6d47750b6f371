package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/privchat-server/internal/auth"
	"github.com/vovakirdan/privchat-server/internal/chat"
)

// StatusUnauthRejected is the close code sent to unauthenticated connects.
// It is the only condition that terminates a connection outright.
const StatusUnauthRejected websocket.StatusCode = 4001

// WSHandler upgrades HTTP connections and bridges them to the chat service.
type WSHandler struct {
	chat        *chat.Service
	authService *auth.Service
	log         *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(chatService *chat.Service, authService *auth.Service, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{chat: chatService, authService: authService, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	// Token is resolved before the session exists so unauthenticated
	// clients are rejected before any group join.
	claims, authErr := h.authenticate(r)

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	if authErr != nil {
		h.log.Info().Err(authErr).Int("code", int(StatusUnauthRejected)).Msg("rejecting unauthenticated ws connect")
		conn.Close(StatusUnauthRejected, "unauthorized")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sess, err := h.chat.Connect(ctx, claims.UserID, claims.Username)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", claims.UserID).Msg("ws connect failed")
		conn.Close(websocket.StatusInternalError, "connect failed")
		return
	}
	defer func() {
		// The departure broadcast runs on its own context: the connection
		// context is already canceled at this point.
		disconnectCtx, cancelDisconnect := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelDisconnect()
		h.chat.Disconnect(disconnectCtx, sess)
	}()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, sess)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, sess)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// authenticate resolves the JWT from the "token" query parameter or the
// Authorization header.
func (h *WSHandler) authenticate(r *stdhttp.Request) (*auth.Claims, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		header := r.Header.Get("Authorization")
		if after, ok := strings.CutPrefix(header, "Bearer "); ok {
			token = after
		}
	}
	if token == "" {
		return nil, errors.New("missing token")
	}
	return h.authService.ValidateToken(token)
}

// readLoop processes inbound frames strictly one at a time. A handler's
// store work therefore never interleaves with another frame on the same
// connection, while other connections proceed on their own goroutines.
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, sess *chat.Session) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		if err := h.chat.HandleFrame(ctx, sess, data); err != nil {
			// Infrastructure failure, not a protocol error.
			h.log.Error().Err(err).Str("group", sess.Group).Msg("frame handling failed")
			return err
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, sess *chat.Session) error {
	for {
		select {
		case payload, ok := <-sess.Outbound:
			if !ok {
				return nil
			}
			if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
				h.log.Error().Err(err).Str("group", sess.Group).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
