package chat

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/privchat-server/internal/proto"
	"github.com/vovakirdan/privchat-server/internal/router"
	"github.com/vovakirdan/privchat-server/internal/store"
)

// recordedSend captures one router delivery for assertions.
type recordedSend struct {
	Group string
	Event proto.Event
}

// fakeRouter records every send and delivers to joined groups in-process.
type fakeRouter struct {
	mu     sync.Mutex
	sends  []recordedSend
	joined map[string]router.DeliverFunc
}

func newFakeRouter() *fakeRouter {
	return &fakeRouter{joined: make(map[string]router.DeliverFunc)}
}

func (r *fakeRouter) Join(_ context.Context, group string, deliver router.DeliverFunc) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.joined[group] = deliver
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.joined, group)
	}, nil
}

func (r *fakeRouter) Send(_ context.Context, group string, ev proto.Event) error {
	r.mu.Lock()
	r.sends = append(r.sends, recordedSend{Group: group, Event: ev})
	deliver := r.joined[group]
	r.mu.Unlock()

	if deliver != nil {
		payload, err := proto.EncodeEvent(ev)
		if err != nil {
			return err
		}
		deliver(payload)
	}
	return nil
}

func (r *fakeRouter) recorded() []recordedSend {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]recordedSend, len(r.sends))
	copy(out, r.sends)
	return out
}

// sendsTo filters recorded sends by group.
func (r *fakeRouter) sendsTo(group string) []proto.Event {
	var out []proto.Event
	for _, s := range r.recorded() {
		if s.Group == group {
			out = append(out, s.Event)
		}
	}
	return out
}

// fakeStore is an in-memory store.Store good enough for handler tests.
type fakeStore struct {
	mu       sync.Mutex
	users    map[int64]*store.User
	dialogs  map[int64]*store.Dialog
	files    map[string]*store.UploadedFile
	messages map[int64]*store.Message
	receipts map[[2]int64]bool // (message, recipient) -> read
	nextID   int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[int64]*store.User),
		dialogs:  make(map[int64]*store.Dialog),
		files:    make(map[string]*store.UploadedFile),
		messages: make(map[int64]*store.Message),
		receipts: make(map[[2]int64]bool),
		nextID:   1,
	}
}

func (f *fakeStore) addUser(id int64, username string) {
	f.users[id] = &store.User{ID: id, Username: username}
}

func (f *fakeStore) addDialog(id int64, name string, members ...int64) {
	f.dialogs[id] = &store.Dialog{ID: id, Name: name, UserIDs: members}
}

func (f *fakeStore) addFile(id, url, name string, size int64) {
	f.files[id] = &store.UploadedFile{ID: id, URL: url, Size: size, Name: name}
}

func (f *fakeStore) CreateUser(_ context.Context, username, passwordHash string) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	u := &store.User{ID: id, Username: username, PasswordHash: passwordHash}
	f.users[id] = u
	return u, nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id int64) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) GetUserByUsername(_ context.Context, username string) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) CreateDialog(_ context.Context, name string, userIDs []int64) (*store.Dialog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	d := &store.Dialog{ID: id, Name: name, UserIDs: userIDs}
	f.dialogs[id] = d
	return d, nil
}

func (f *fakeStore) DialogByPK(_ context.Context, id int64) (*store.Dialog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.dialogs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return d, nil
}

func (f *fakeStore) DialogsForUser(_ context.Context, userID int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int64
	for _, d := range f.dialogs {
		for _, uid := range d.UserIDs {
			if uid == userID {
				ids = append(ids, d.ID)
				break
			}
		}
	}
	return ids, nil
}

func (f *fakeStore) ListDialogs(ctx context.Context, userID int64) ([]*store.Dialog, error) {
	ids, _ := f.DialogsForUser(ctx, userID)
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*store.Dialog
	for _, id := range ids {
		out = append(out, f.dialogs[id])
	}
	return out, nil
}

func (f *fakeStore) SaveTextMessage(_ context.Context, text string, senderID, dialogID int64) (*store.Message, error) {
	return f.save(text, nil, senderID, dialogID)
}

func (f *fakeStore) SaveFileMessage(_ context.Context, fileID string, senderID, dialogID int64) (*store.Message, error) {
	return f.save("", &fileID, senderID, dialogID)
}

func (f *fakeStore) save(text string, fileID *string, senderID, dialogID int64) (*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.dialogs[dialogID]
	if !ok {
		return nil, store.ErrNotFound
	}
	id := f.nextID
	f.nextID++
	msg := &store.Message{
		ID:        id,
		DialogID:  dialogID,
		SenderID:  senderID,
		Text:      text,
		FileID:    fileID,
		CreatedAt: time.Now(),
	}
	f.messages[id] = msg
	for _, uid := range d.UserIDs {
		if uid == senderID {
			continue
		}
		f.receipts[[2]int64{id, uid}] = false
	}
	return msg, nil
}

func (f *fakeStore) MessageByID(_ context.Context, id int64) (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok {
		return 0, 0, store.ErrNotFound
	}
	return msg.DialogID, msg.SenderID, nil
}

func (f *fakeStore) MarkMessageRead(_ context.Context, messageID, recipientID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]int64{messageID, recipientID}
	if _, ok := f.receipts[key]; ok {
		f.receipts[key] = true
	}
	return nil
}

func (f *fakeStore) UnreadCount(_ context.Context, dialogID, recipientID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for key, read := range f.receipts {
		if read || key[1] != recipientID {
			continue
		}
		if msg, ok := f.messages[key[0]]; ok && msg.DialogID == dialogID {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) ListMessages(_ context.Context, dialogID int64, limit int, beforeID *int64) ([]*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*store.Message
	for _, msg := range f.messages {
		if msg.DialogID != dialogID {
			continue
		}
		if beforeID != nil && msg.ID >= *beforeID {
			continue
		}
		out = append(out, msg)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) MessageReadFlag(_ context.Context, messageID, recipientID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	read, ok := f.receipts[[2]int64{messageID, recipientID}]
	if !ok {
		return true, nil
	}
	return read, nil
}

func (f *fakeStore) LastMessage(_ context.Context, dialogID int64) (*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var last *store.Message
	for _, msg := range f.messages {
		if msg.DialogID != dialogID {
			continue
		}
		if last == nil || msg.ID > last.ID {
			last = msg
		}
	}
	if last == nil {
		return nil, store.ErrNotFound
	}
	return last, nil
}

func (f *fakeStore) SaveFile(_ context.Context, file *store.UploadedFile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[file.ID] = file
	return nil
}

func (f *fakeStore) FileByID(_ context.Context, id string) (*store.UploadedFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return file, nil
}

func (f *fakeStore) Close() error { return nil }

// newTestService wires a Service onto the fakes with a quiet logger.
func newTestService(st store.Store, rt *fakeRouter, maxTextLen int) *Service {
	logger := zerolog.Nop()
	return NewService(st, rt, &logger, maxTextLen)
}
