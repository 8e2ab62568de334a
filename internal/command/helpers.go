package command

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/coveychat/covey/internal/db"
	"github.com/coveychat/covey/internal/identity"
	"github.com/coveychat/covey/internal/room"
	"github.com/coveychat/covey/internal/types"
)

func roomDir(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString("room")
	if dir == "" {
		dir = "."
	}
	return dir
}

func identityPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("identity")
	if path != "" {
		return path
	}
	return filepath.Join(roomDir(cmd), "identity.json")
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func loadIdentity(cmd *cobra.Command) (*identity.Identity, error) {
	passphrase, _ := cmd.Flags().GetString("passphrase")
	if passphrase != "" {
		return identity.LoadOrGenerateEncrypted(identityPath(cmd), []byte(passphrase))
	}
	return identity.LoadOrGenerate(identityPath(cmd))
}

func openRoom(cmd *cobra.Command) (*room.Room, error) {
	id, err := loadIdentity(cmd)
	if err != nil {
		return nil, err
	}
	return room.Open(room.Config{
		Dir:      roomDir(cmd),
		Identity: id,
		Now:      func() int64 { return time.Now().UnixMilli() },
	})
}

// openWatchedRoom opens the room with the fsnotify watcher enabled so
// replicated log files picked up by external sync trigger re-merges.
func openWatchedRoom(cmd *cobra.Command, id *identity.Identity) (*room.Room, error) {
	return room.Open(room.Config{
		Dir:        roomDir(cmd),
		Identity:   id,
		Now:        func() int64 { return time.Now().UnixMilli() },
		WatchFiles: true,
	})
}

// openCache opens the room directory's SQLite cache file.
func openCache(cmd *cobra.Command) (*sql.DB, error) {
	return db.OpenCache(filepath.Join(roomDir(cmd), "cache.db"))
}

// refreshCache rewrites the room's SQLite cache when the view outgrew it.
func refreshCache(cmd *cobra.Command, r *room.Room) error {
	conn, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer conn.Close()

	cached, err := db.CachedViewLen(conn)
	if err != nil {
		return err
	}
	entries := r.View().Snapshot()
	if cached >= uint64(len(entries)) {
		return nil
	}
	state, err := r.State()
	if err != nil {
		return err
	}
	return db.Rebuild(conn, entries, state)
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(data))
	return nil
}

func renderEntry(cmd *cobra.Command, entry types.ViewEntry) {
	msg := entry.Message
	when := time.UnixMilli(msg.TS).Format("15:04:05")
	sender := msg.SenderName
	if sender == "" {
		sender = shortKey(msg.Sender)
	}
	switch msg.Kind {
	case types.KindText:
		cmd.Printf("%5d %s <%s> %s\n", entry.Seq, when, sender, msg.Body)
	case types.KindFile:
		cmd.Printf("%5d %s <%s> [file] %s (%d bytes)\n", entry.Seq, when, sender, msg.Filename, msg.Size)
	case types.KindSystem:
		cmd.Printf("%5d %s -- %s by %s\n", entry.Seq, when, msg.Action, sender)
	case types.KindReaction:
		verb := "reacted"
		if msg.Remove {
			verb = "unreacted"
		}
		cmd.Printf("%5d %s -- %s %s %s on %s\n", entry.Seq, when, sender, verb, msg.Emoji, msg.MessageID)
	case types.KindCall:
		cmd.Printf("%5d %s -- call %s %s\n", entry.Seq, when, msg.CallID, msg.Stage)
	default:
		cmd.Printf("%5d %s -- %s\n", entry.Seq, when, msg.Kind)
	}
}

func shortKey(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[:8]
}

func requireArg(args []string, name string) (string, error) {
	if len(args) < 1 || args[0] == "" {
		return "", fmt.Errorf("%s required", name)
	}
	return args[0], nil
}
