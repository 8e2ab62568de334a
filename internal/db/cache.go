package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/coveychat/covey/internal/projection"
	"github.com/coveychat/covey/internal/types"
)

const viewLenKey = "view_len"

// CachedViewLen returns the view length the cache was last rebuilt for,
// zero when the cache is empty.
func CachedViewLen(conn DBTX) (uint64, error) {
	var value string
	err := conn.QueryRow("SELECT value FROM covey_state WHERE key = ?", viewLenKey).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse cached view length: %w", err)
	}
	return n, nil
}

// Rebuild resets the cache from a view snapshot and its folded state. The
// view is append-only, so callers may skip the rebuild whenever the cached
// length already matches.
func Rebuild(conn *sql.DB, entries []types.ViewEntry, state projection.RoomState) error {
	tx, err := conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"covey_messages", "covey_state", "covey_pins", "covey_reactions", "covey_edits"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return err
		}
	}

	insertMsg := `
		INSERT INTO covey_messages (seq, id, ts, kind, sender, sender_name, channel_id, body, action, raw)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, entry := range entries {
		msg := entry.Message
		raw, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		var action *string
		if msg.Kind == types.KindSystem {
			a := string(msg.Action)
			action = &a
		}
		if _, err := tx.Exec(insertMsg,
			entry.Seq, msg.ID, msg.TS, string(msg.Kind), msg.Sender, msg.SenderName,
			msg.ChannelID, msg.Body, action, string(raw)); err != nil {
			return err
		}
	}

	if err := writeState(tx, state, uint64(len(entries))); err != nil {
		return err
	}

	for channel, messages := range state.Pins {
		for _, id := range messages {
			if _, err := tx.Exec("INSERT OR REPLACE INTO covey_pins (channel_id, message_id) VALUES (?, ?)", channel, id); err != nil {
				return err
			}
		}
	}
	for messageID, byEmoji := range state.Reactions {
		for emoji, reactors := range byEmoji {
			for _, sender := range reactors {
				if _, err := tx.Exec("INSERT OR REPLACE INTO covey_reactions (message_id, emoji, sender) VALUES (?, ?, ?)", messageID, emoji, sender); err != nil {
					return err
				}
			}
		}
	}
	for messageID, text := range state.Edits {
		if _, err := tx.Exec("INSERT OR REPLACE INTO covey_edits (message_id, text) VALUES (?, ?)", messageID, text); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func writeState(tx DBTX, state projection.RoomState, viewLen uint64) error {
	set := func(key, value string) error {
		_, err := tx.Exec("INSERT OR REPLACE INTO covey_state (key, value) VALUES (?, ?)", key, value)
		return err
	}
	setJSON := func(key string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return set(key, string(data))
	}

	if err := set(viewLenKey, strconv.FormatUint(viewLen, 10)); err != nil {
		return err
	}
	if err := set("owner", state.Owner); err != nil {
		return err
	}
	if err := set("room_name", state.RoomName); err != nil {
		return err
	}
	if err := set("profile", state.Profile); err != nil {
		return err
	}
	if err := setJSON("admins", state.Admins); err != nil {
		return err
	}
	if err := setJSON("channels", state.Channels); err != nil {
		return err
	}
	if err := setJSON("room_bans", state.RoomBans); err != nil {
		return err
	}
	if err := setJSON("room_kicks", state.RoomKicks); err != nil {
		return err
	}
	if err := setJSON("channel_bans", state.ChannelBans); err != nil {
		return err
	}
	return setJSON("emoji", state.Emoji)
}

// LatestMessages returns the most recent limit rows, optionally scoped to a
// channel, in chronological order.
func LatestMessages(conn DBTX, channelID *string, limit int) ([]types.ViewEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := "SELECT seq, raw FROM covey_messages"
	args := []any{}
	if channelID != nil {
		query += " WHERE channel_id = ?"
		args = append(args, *channelID)
	}
	query += " ORDER BY seq DESC LIMIT ?"
	args = append(args, limit)

	rows, err := conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.ViewEntry
	for rows.Next() {
		var seq uint64
		var raw string
		if err := rows.Scan(&seq, &raw); err != nil {
			return nil, err
		}
		var msg types.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return nil, err
		}
		out = append(out, types.ViewEntry{Seq: seq, Message: msg})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// reverse into chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// MessageByID returns the cached message with the given id.
func MessageByID(conn DBTX, id string) (*types.ViewEntry, error) {
	var seq uint64
	var raw string
	err := conn.QueryRow("SELECT seq, raw FROM covey_messages WHERE id = ? ORDER BY seq LIMIT 1", id).Scan(&seq, &raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var msg types.Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, err
	}
	return &types.ViewEntry{Seq: seq, Message: msg}, nil
}

// StateValue returns one cached state row, empty string when absent.
func StateValue(conn DBTX, key string) (string, error) {
	var value string
	err := conn.QueryRow("SELECT value FROM covey_state WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}
