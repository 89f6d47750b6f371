package chat

import "strconv"

// Session is the per-connection state. It is created after authentication
// succeeds, destroyed at disconnect, and owned exclusively by the
// connection's goroutine; handlers never share a session across connections.
type Session struct {
	UserID   int64
	Username string

	// Group is the personal multicast group, named by the stringified
	// user id. Every event addressed to this user lands here.
	Group string

	// Outbound carries encoded frames to the connection's write loop.
	// Both router deliveries and direct error replies feed it.
	Outbound chan []byte

	leave func()
}

func newSession(userID int64, username string) *Session {
	return &Session{
		UserID:   userID,
		Username: username,
		Group:    strconv.FormatInt(userID, 10),
		Outbound: make(chan []byte, 32),
	}
}

func groupName(userID int64) string {
	return strconv.FormatInt(userID, 10)
}
