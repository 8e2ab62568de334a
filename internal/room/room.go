// Package room ties the merge engine, projections, pager, and envelope
// codec together behind the query surface consumed by CLIs and servers.
package room

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coveychat/covey/internal/envelope"
	"github.com/coveychat/covey/internal/identity"
	"github.com/coveychat/covey/internal/logstore"
	"github.com/coveychat/covey/internal/merge"
	"github.com/coveychat/covey/internal/pager"
	"github.com/coveychat/covey/internal/projection"
	"github.com/coveychat/covey/internal/types"
)

// ErrNotReady is returned for any operation on a room whose initialization
// has not completed (or that has been closed).
var ErrNotReady = errors.New("room not ready")

const configFile = "room.json"

// roomConfig is the persisted room descriptor.
type roomConfig struct {
	Version int    `json:"version"`
	RoomKey string `json:"room_key"`
}

// Config describes how to open a room.
type Config struct {
	// Dir is the room directory holding room.json and the per-writer logs.
	Dir string
	// Identity is this device's keypair; its public key is the writer log id.
	Identity *identity.Identity
	// RoomKey is the 32-byte room public key. Required for Join; ignored by
	// Create, which uses the creator's public key as the room key.
	RoomKey []byte
	// Now stamps outgoing messages. The engine never reads the clock itself,
	// so replaying identical inputs stays deterministic.
	Now func() int64
	// TailInterval overrides the live-tail polling period.
	TailInterval time.Duration
	// WatchFiles starts an fsnotify watcher that re-merges when replicated
	// log files change.
	WatchFiles bool
}

// Room is one open room instance. Independent rooms share no state.
type Room struct {
	cfg     Config
	roomKey []byte
	codec   *envelope.Codec
	dir     *logstore.Dir
	writers *merge.WriterSet
	engine  *merge.Engine
	view    *merge.View
	tailer  *pager.Tailer
	watcher *dirWatcher
	own     logstore.Log

	stateMu sync.Mutex
	state   *projection.State

	ready atomic.Bool
}

// Create initializes a new room in dir with the identity as creator. The
// creator's public key becomes the room key.
func Create(cfg Config) (*Room, error) {
	if cfg.Identity == nil {
		return nil, fmt.Errorf("create room: identity required")
	}
	cfg.RoomKey = cfg.Identity.Public
	if err := writeRoomConfig(cfg.Dir, cfg.RoomKey); err != nil {
		return nil, err
	}
	return Open(cfg)
}

// Join initializes a room directory for a room key obtained from an invite.
func Join(cfg Config) (*Room, error) {
	if len(cfg.RoomKey) != 32 {
		return nil, fmt.Errorf("join room: room key must be 32 bytes")
	}
	if err := writeRoomConfig(cfg.Dir, cfg.RoomKey); err != nil {
		return nil, err
	}
	return Open(cfg)
}

// Open opens an existing room directory. The room key is read from the
// persisted descriptor unless the config supplies one.
func Open(cfg Config) (*Room, error) {
	if cfg.Identity == nil {
		return nil, fmt.Errorf("open room: identity required")
	}
	if cfg.Now == nil {
		cfg.Now = func() int64 { return time.Now().UnixMilli() }
	}

	roomKey := cfg.RoomKey
	if roomKey == nil {
		loaded, err := readRoomConfig(cfg.Dir)
		if err != nil {
			return nil, err
		}
		roomKey = loaded
	}

	dir, err := logstore.OpenDir(cfg.Dir)
	if err != nil {
		return nil, err
	}

	codec, err := envelope.NewCodec(roomKey)
	if err != nil {
		return nil, err
	}

	creator := hex.EncodeToString(roomKey)
	writers := merge.NewWriterSet(creator)
	view := merge.NewView()
	source := merge.SourceFunc(func(key string) (logstore.Log, error) {
		return dir.Open(key), nil
	})
	engine := merge.NewEngine(writers, source, codec, view)

	r := &Room{
		cfg:     cfg,
		roomKey: roomKey,
		codec:   codec,
		dir:     dir,
		writers: writers,
		engine:  engine,
		view:    view,
		tailer:  pager.NewTailer(view, cfg.TailInterval),
		own:     dir.Open(cfg.Identity.Key()),
		state:   projection.NewState(),
	}

	if _, err := r.resync(); err != nil {
		return nil, err
	}

	if cfg.WatchFiles {
		watcher, err := newDirWatcher(dir.LogsPath(), func() {
			_, _ = r.Resync()
		})
		if err != nil {
			return nil, err
		}
		r.watcher = watcher
	}

	r.ready.Store(true)
	return r, nil
}

// Close stops the watcher and the tail pump. The room directory and logs
// are left untouched.
func (r *Room) Close() {
	r.ready.Store(false)
	if r.watcher != nil {
		r.watcher.close()
	}
	r.tailer.Close()
}

// Key returns the room's public key.
func (r *Room) Key() []byte {
	out := make([]byte, len(r.roomKey))
	copy(out, r.roomKey)
	return out
}

// WriterKey returns this device's writer key.
func (r *Room) WriterKey() string {
	return r.cfg.Identity.Key()
}

// Now returns the caller-supplied clock reading.
func (r *Room) Now() int64 {
	return r.cfg.Now()
}

// Append encrypts a message and appends it to this device's own writer log,
// then runs a merge pass so it becomes visible locally right away. Callers
// that care about authorization check the projections first; the engine
// never enforces it.
func (r *Room) Append(msg types.Message) error {
	if !r.ready.Load() {
		return ErrNotReady
	}
	raw, err := r.codec.Encrypt(msg)
	if err != nil {
		return err
	}
	if err := r.own.Append(raw); err != nil {
		return err
	}
	_, err = r.Resync()
	return err
}

// AddWriter appends the membership mutation admitting the given writer key.
// The mutation takes effect when the merge applies it; a duplicate add still
// lands in history with the writer set unchanged.
func (r *Room) AddWriter(key string) error {
	if !r.ready.Load() {
		return ErrNotReady
	}
	msg, err := types.NewAddWriter(r.WriterKey(), key, r.cfg.Now())
	if err != nil {
		return err
	}
	return r.Append(msg)
}

// StartCall appends a call-start system message and returns the new call's
// session id.
func (r *Room) StartCall(channelID string) (string, error) {
	if !r.ready.Load() {
		return "", ErrNotReady
	}
	msg, err := types.NewCallStart(r.WriterKey(), channelID, r.cfg.Now())
	if err != nil {
		return "", err
	}
	if err := r.Append(msg); err != nil {
		return "", err
	}
	return *msg.Data.CallID, nil
}

// EndCall appends the call-end system message closing a session.
func (r *Room) EndCall(callID string) error {
	if !r.ready.Load() {
		return ErrNotReady
	}
	msg, err := types.NewCallEnd(r.WriterKey(), callID, r.cfg.Now())
	if err != nil {
		return err
	}
	return r.Append(msg)
}

// Resync runs a merge pass over all eligible logs and wakes the tail pump.
// Returns the number of newly admitted view entries.
func (r *Room) Resync() (int, error) {
	if !r.ready.Load() {
		return 0, ErrNotReady
	}
	return r.resync()
}

func (r *Room) resync() (int, error) {
	admitted, err := r.engine.Merge()
	if admitted > 0 {
		r.tailer.Trigger()
	}
	return admitted, err
}

// History returns the most recent n view entries in chronological order.
func (r *Room) History(n int) ([]types.ViewEntry, error) {
	if !r.ready.Load() {
		return nil, ErrNotReady
	}
	length := r.view.Len()
	from := uint64(0)
	if n > 0 && length > uint64(n) {
		from = length - uint64(n)
	}
	return r.view.Slice(from, length), nil
}

// HistoryPage returns one backward page of the view.
func (r *Room) HistoryPage(limit int, beforeSeq *uint64) (pager.Page, error) {
	if !r.ready.Load() {
		return pager.Page{}, ErrNotReady
	}
	return pager.PageView(r.view, limit, beforeSeq), nil
}

// Watch registers a live-tail callback; the returned unsubscribe handle is
// idempotent.
func (r *Room) Watch(cb func(types.ViewEntry)) (func(), error) {
	if !r.ready.Load() {
		return nil, ErrNotReady
	}
	return r.tailer.Watch(cb), nil
}

// View exposes the merged view for callers that fold their own projections.
func (r *Room) View() *merge.View { return r.view }

// Writers returns the current writer set keys.
func (r *Room) Writers() ([]string, error) {
	if !r.ready.Load() {
		return nil, ErrNotReady
	}
	return r.writers.Keys(), nil
}

// withState catches the cached state up to the current view length, then
// runs read under the same lock so concurrent getters never observe a fold
// in progress. The cache only ever folds forward; the view below a
// previously folded length never changes.
func (r *Room) withState(read func(*projection.State)) {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	length := r.view.Len()
	for seq := r.state.Applied(); seq < length; seq++ {
		entry, ok := r.view.Get(seq)
		if !ok {
			break
		}
		r.state.Apply(entry)
	}
	read(r.state)
}

func writeRoomConfig(dir string, roomKey []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, configFile)
	if _, err := os.Stat(path); err == nil {
		existing, err := readRoomConfig(dir)
		if err != nil {
			return err
		}
		if hex.EncodeToString(existing) != hex.EncodeToString(roomKey) {
			return fmt.Errorf("room directory already holds a different room")
		}
		return nil
	}
	data, err := json.MarshalIndent(roomConfig{
		Version: 1,
		RoomKey: hex.EncodeToString(roomKey),
	}, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func readRoomConfig(dir string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(dir, configFile))
	if err != nil {
		return nil, err
	}
	var cfg roomConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse room config: %w", err)
	}
	key, err := hex.DecodeString(cfg.RoomKey)
	if err != nil || len(key) != 32 {
		return nil, fmt.Errorf("invalid room key in config")
	}
	return key, nil
}
