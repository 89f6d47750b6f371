package proto

import "encoding/json"

// Event is an outbound frame. Every variant carries its msg_type tag so the
// marshaled form is a complete wire frame.
type Event interface {
	EventType() MessageType
}

// EncodeEvent marshals an outbound event into a single JSON frame.
func EncodeEvent(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}

// FileDescriptor is the serialized form of an uploaded file embedded in
// NewFileMessage events and history responses.
type FileDescriptor struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
	Name string `json:"name"`
}

// MessageIDCreated correlates a client random id with the persisted db id.
type MessageIDCreated struct {
	MsgType  MessageType `json:"msg_type"`
	RandomID int64       `json:"random_id"`
	DBID     int64       `json:"db_id"`
}

func NewMessageIDCreated(randomID, dbID int64) MessageIDCreated {
	return MessageIDCreated{MsgType: MsgTypeMessageIDCreated, RandomID: randomID, DBID: dbID}
}

func (MessageIDCreated) EventType() MessageType { return MsgTypeMessageIDCreated }

// NewUnreadCount pushes a freshly recomputed unread count for one dialog.
type NewUnreadCount struct {
	MsgType     MessageType `json:"msg_type"`
	Sender      string      `json:"sender"`
	UnreadCount int         `json:"unread_count"`
}

func NewNewUnreadCount(sender string, count int) NewUnreadCount {
	return NewUnreadCount{MsgType: MsgTypeNewUnreadCount, Sender: sender, UnreadCount: count}
}

func (NewUnreadCount) EventType() MessageType { return MsgTypeNewUnreadCount }

// NewTextMessage is the optimistic delivery of a text message, sent before
// the message is durable and keyed by the client's negative random id.
type NewTextMessage struct {
	MsgType        MessageType `json:"msg_type"`
	RandomID       int64       `json:"random_id"`
	Text           string      `json:"text"`
	Sender         string      `json:"sender"`
	SenderUsername string      `json:"sender_username"`
	Receiver       string      `json:"receiver"`
}

func NewNewTextMessage(randomID int64, text, sender, senderUsername, receiver string) NewTextMessage {
	return NewTextMessage{
		MsgType:        MsgTypeTextMessage,
		RandomID:       randomID,
		Text:           text,
		Sender:         sender,
		SenderUsername: senderUsername,
		Receiver:       receiver,
	}
}

func (NewTextMessage) EventType() MessageType { return MsgTypeTextMessage }

// NewFileMessage delivers a persisted file message with the resolved file
// descriptor. There is no optimistic variant for files.
type NewFileMessage struct {
	MsgType        MessageType    `json:"msg_type"`
	DBID           int64          `json:"db_id"`
	File           FileDescriptor `json:"file"`
	Sender         string         `json:"sender"`
	SenderUsername string         `json:"sender_username"`
	Receiver       string         `json:"receiver"`
}

func NewNewFileMessage(dbID int64, file FileDescriptor, sender, senderUsername, receiver string) NewFileMessage {
	return NewFileMessage{
		MsgType:        MsgTypeFileMessage,
		DBID:           dbID,
		File:           file,
		Sender:         sender,
		SenderUsername: senderUsername,
		Receiver:       receiver,
	}
}

func (NewFileMessage) EventType() MessageType { return MsgTypeFileMessage }

// MessageReadEvent notifies a dialog that one of its messages was read.
type MessageReadEvent struct {
	MsgType   MessageType `json:"msg_type"`
	MessageID int64       `json:"message_id"`
	Sender    string      `json:"sender"`
	Receiver  string      `json:"receiver"`
}

func NewMessageRead(messageID int64, sender, receiver string) MessageReadEvent {
	return MessageReadEvent{MsgType: MsgTypeMessageRead, MessageID: messageID, Sender: sender, Receiver: receiver}
}

func (MessageReadEvent) EventType() MessageType { return MsgTypeMessageRead }

// IsTypingEvent notifies dialog members that a user started typing.
type IsTypingEvent struct {
	MsgType MessageType `json:"msg_type"`
	UserPk  string      `json:"user_pk"`
}

func NewIsTyping(userPk string) IsTypingEvent {
	return IsTypingEvent{MsgType: MsgTypeIsTyping, UserPk: userPk}
}

func (IsTypingEvent) EventType() MessageType { return MsgTypeIsTyping }

// StoppedTyping notifies dialog members that a user stopped typing.
type StoppedTyping struct {
	MsgType MessageType `json:"msg_type"`
	UserPk  string      `json:"user_pk"`
}

func NewStoppedTyping(userPk string) StoppedTyping {
	return StoppedTyping{MsgType: MsgTypeTypingStopped, UserPk: userPk}
}

func (StoppedTyping) EventType() MessageType { return MsgTypeTypingStopped }

// WentOnline announces user presence to dialog members.
type WentOnline struct {
	MsgType MessageType `json:"msg_type"`
	UserPk  string      `json:"user_pk"`
}

func NewWentOnline(userPk string) WentOnline {
	return WentOnline{MsgType: MsgTypeWentOnline, UserPk: userPk}
}

func (WentOnline) EventType() MessageType { return MsgTypeWentOnline }

// WentOffline announces user departure to dialog members.
type WentOffline struct {
	MsgType MessageType `json:"msg_type"`
	UserPk  string      `json:"user_pk"`
}

func NewWentOffline(userPk string) WentOffline {
	return WentOffline{MsgType: MsgTypeWentOffline, UserPk: userPk}
}

func (WentOffline) EventType() MessageType { return MsgTypeWentOffline }

// ErrorOccurred reports a recoverable protocol error to the sender only.
type ErrorOccurred struct {
	MsgType MessageType      `json:"msg_type"`
	Error   ErrorDescription `json:"error"`
}

func NewErrorOccurred(desc ErrorDescription) ErrorOccurred {
	return ErrorOccurred{MsgType: MsgTypeErrorOccurred, Error: desc}
}

func (ErrorOccurred) EventType() MessageType { return MsgTypeErrorOccurred }
