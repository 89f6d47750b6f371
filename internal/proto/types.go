package proto

// MessageType is the integer tag carried in every frame as "msg_type".
// The same tag space is shared by inbound and outbound frames.
type MessageType int

const (
	MsgTypeWentOnline       MessageType = 1
	MsgTypeWentOffline      MessageType = 2
	MsgTypeTextMessage      MessageType = 3
	MsgTypeFileMessage      MessageType = 4
	MsgTypeIsTyping         MessageType = 5
	MsgTypeMessageRead      MessageType = 6
	MsgTypeErrorOccurred    MessageType = 7
	MsgTypeMessageIDCreated MessageType = 8
	MsgTypeNewUnreadCount   MessageType = 9
	MsgTypeTypingStopped    MessageType = 10
)

// String returns the protocol name of the tag for logging.
func (t MessageType) String() string {
	switch t {
	case MsgTypeWentOnline:
		return "went_online"
	case MsgTypeWentOffline:
		return "went_offline"
	case MsgTypeTextMessage:
		return "text_message"
	case MsgTypeFileMessage:
		return "file_message"
	case MsgTypeIsTyping:
		return "is_typing"
	case MsgTypeMessageRead:
		return "message_read"
	case MsgTypeErrorOccurred:
		return "error_occurred"
	case MsgTypeMessageIDCreated:
		return "message_id_created"
	case MsgTypeNewUnreadCount:
		return "new_unread_count"
	case MsgTypeTypingStopped:
		return "typing_stopped"
	default:
		return "unknown"
	}
}

// known reports whether the tag belongs to the protocol enumeration.
func (t MessageType) known() bool {
	return t >= MsgTypeWentOnline && t <= MsgTypeTypingStopped
}

// serverOnly reports whether the tag is only ever emitted by the server.
// Receiving one of these from a client is ignored without an error reply.
func (t MessageType) serverOnly() bool {
	switch t {
	case MsgTypeWentOnline, MsgTypeWentOffline, MsgTypeErrorOccurred, MsgTypeMessageIDCreated, MsgTypeNewUnreadCount:
		return true
	default:
		return false
	}
}
