package proto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"unicode/utf8"
)

// Inbound is a validated client frame ready for dispatch.
type Inbound interface {
	InboundType() MessageType
}

// TextMessage asks to deliver a text body to a dialog. RandomID is the
// client's negative placeholder id for optimistic delivery.
type TextMessage struct {
	Text     string
	DialogID int64
	RandomID int64
}

func (TextMessage) InboundType() MessageType { return MsgTypeTextMessage }

// FileMessage asks to deliver a previously uploaded file to a dialog.
type FileMessage struct {
	FileID   string
	DialogID int64
	RandomID int64
}

func (FileMessage) InboundType() MessageType { return MsgTypeFileMessage }

// IsTyping signals that the sender started typing in a dialog.
type IsTyping struct {
	DialogID int64
}

func (IsTyping) InboundType() MessageType { return MsgTypeIsTyping }

// TypingStopped signals that the sender stopped typing in a dialog.
type TypingStopped struct {
	DialogID int64
}

func (TypingStopped) InboundType() MessageType { return MsgTypeTypingStopped }

// MessageRead asks to mark a persisted message as read by the sender.
type MessageRead struct {
	DialogID  int64
	MessageID int64
}

func (MessageRead) InboundType() MessageType { return MsgTypeMessageRead }

// frame is a decoded but not yet validated client payload. Numbers are kept
// as json.Number so integer checks do not lose precision.
type frame map[string]any

func (f frame) stringField(key string) (val string, present, isString bool) {
	v, ok := f[key]
	if !ok {
		return "", false, false
	}
	s, ok := v.(string)
	return s, true, ok
}

func (f frame) intField(key string) (val int64, present, isInt bool) {
	v, ok := f[key]
	if !ok {
		return 0, false, false
	}
	num, ok := v.(json.Number)
	if !ok {
		return 0, true, false
	}
	n, err := num.Int64()
	if err != nil {
		return 0, true, false
	}
	return n, true, true
}

// DecodeInbound parses and validates a single client frame.
//
// A nil Inbound with a nil error means the frame carried a server-only tag
// and must be ignored. Validation failures come back as an ErrorDescription
// to be wrapped into an ErrorOccurred frame for the sender; they are never
// broadcast and never fatal.
func DecodeInbound(data []byte, maxTextLen int) (Inbound, *ErrorDescription) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var f frame
	if err := dec.Decode(&f); err != nil {
		return nil, protocolError(ErrKindMessageParsingError, fmt.Sprintf("jsonDecodeError - %v", err))
	}

	tag, present, isInt := f.intField("msg_type")
	if !present {
		return nil, protocolError(ErrKindMessageParsingError, "msg_type not present in json")
	}
	if !isInt {
		return nil, protocolError(ErrKindMessageParsingError, "msg_type is not an int")
	}

	msgType := MessageType(tag)
	if !msgType.known() {
		return nil, protocolError(ErrKindMessageParsingError, fmt.Sprintf("msg_type decoding error - %d is not a valid message type", tag))
	}
	if msgType.serverOnly() {
		return nil, nil
	}

	switch msgType {
	case MsgTypeIsTyping:
		dialogID, desc := f.dialogPk()
		if desc != nil {
			return nil, desc
		}
		return IsTyping{DialogID: dialogID}, nil

	case MsgTypeTypingStopped:
		dialogID, desc := f.dialogPk()
		if desc != nil {
			return nil, desc
		}
		return TypingStopped{DialogID: dialogID}, nil

	case MsgTypeMessageRead:
		return f.messageRead()

	case MsgTypeTextMessage:
		return f.textMessage(maxTextLen)

	case MsgTypeFileMessage:
		return f.fileMessage()
	}

	return nil, protocolError(ErrKindMessageParsingError, fmt.Sprintf("msg_type decoding error - %d is not a valid message type", tag))
}

// dialogPk validates the dialog_pk field shared by every inbound type.
// The value is a JSON string on the wire but names a numeric dialog id; it is
// parsed exactly once here so every later lookup and broadcast uses the same
// addressing scheme.
func (f frame) dialogPk() (int64, *ErrorDescription) {
	raw, present, isString := f.stringField("dialog_pk")
	if !present {
		return 0, protocolError(ErrKindMessageParsingError, "'dialog_pk' not present in data")
	}
	if !isString {
		return 0, protocolError(ErrKindInvalidDialogPk, "'dialog_pk' should be a string")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, protocolError(ErrKindInvalidDialogPk, fmt.Sprintf("Discussion group with pk %s does not exist", raw))
	}
	return id, nil
}

func (f frame) messageRead() (Inbound, *ErrorDescription) {
	if _, present, _ := f.stringField("dialog_pk"); !present {
		return nil, protocolError(ErrKindMessageParsingError, "'dialog_pk' not present in data")
	}
	if _, present, _ := f.intField("message_id"); !present {
		return nil, protocolError(ErrKindMessageParsingError, "'message_id' not present in data")
	}
	dialogID, desc := f.dialogPk()
	if desc != nil {
		return nil, desc
	}
	messageID, _, isInt := f.intField("message_id")
	if !isInt {
		return nil, protocolError(ErrKindInvalidRandomID, "'message_id' should be an int")
	}
	if messageID <= 0 {
		return nil, protocolError(ErrKindInvalidMessageReadID, "'message_id' should be > 0")
	}
	return MessageRead{DialogID: dialogID, MessageID: messageID}, nil
}

func (f frame) textMessage(maxTextLen int) (Inbound, *ErrorDescription) {
	if _, present, _ := f.stringField("text"); !present {
		return nil, protocolError(ErrKindMessageParsingError, "'text' not present in data")
	}
	if _, present, _ := f.stringField("dialog_pk"); !present {
		return nil, protocolError(ErrKindMessageParsingError, "'dialog_pk' not present in data")
	}
	if _, present, _ := f.intField("random_id"); !present {
		return nil, protocolError(ErrKindMessageParsingError, "'random_id' not present in data")
	}
	text, _, isString := f.stringField("text")
	if !isString {
		return nil, protocolError(ErrKindTextMessageInvalid, "'text' should be a string")
	}
	if text == "" {
		return nil, protocolError(ErrKindTextMessageInvalid, "'text' should not be blank")
	}
	if utf8.RuneCountInString(text) > maxTextLen {
		return nil, protocolError(ErrKindTextMessageInvalid, "'text' is too long")
	}
	dialogID, desc := f.dialogPk()
	if desc != nil {
		return nil, desc
	}
	randomID, desc := f.randomID()
	if desc != nil {
		return nil, desc
	}
	return TextMessage{Text: text, DialogID: dialogID, RandomID: randomID}, nil
}

func (f frame) fileMessage() (Inbound, *ErrorDescription) {
	if _, present, _ := f.stringField("file_id"); !present {
		return nil, protocolError(ErrKindMessageParsingError, "'file_id' not present in data")
	}
	if _, present, _ := f.stringField("dialog_pk"); !present {
		return nil, protocolError(ErrKindMessageParsingError, "'dialog_pk' not present in data")
	}
	if _, present, _ := f.intField("random_id"); !present {
		return nil, protocolError(ErrKindMessageParsingError, "'random_id' not present in data")
	}
	fileID, _, isString := f.stringField("file_id")
	if !isString {
		return nil, protocolError(ErrKindFileMessageInvalid, "'file_id' should be a string")
	}
	if fileID == "" {
		return nil, protocolError(ErrKindFileMessageInvalid, "'file_id' should not be blank")
	}
	dialogID, desc := f.dialogPk()
	if desc != nil {
		return nil, desc
	}
	randomID, desc := f.randomID()
	if desc != nil {
		return nil, desc
	}
	return FileMessage{FileID: fileID, DialogID: dialogID, RandomID: randomID}, nil
}

// randomID enforces the negative-id invariant: client-generated placeholder
// ids are strictly negative, persisted ids strictly positive.
func (f frame) randomID() (int64, *ErrorDescription) {
	id, _, isInt := f.intField("random_id")
	if !isInt {
		return 0, protocolError(ErrKindInvalidRandomID, "'random_id' should be an int")
	}
	if id >= 0 {
		return 0, protocolError(ErrKindInvalidRandomID, "'random_id' should be negative")
	}
	return id, nil
}
