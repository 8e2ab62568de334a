package command

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/coveychat/covey/internal/db"
	"github.com/coveychat/covey/internal/identity"
	"github.com/coveychat/covey/internal/invite"
	"github.com/coveychat/covey/internal/projection"
	"github.com/coveychat/covey/internal/types"
)

func TestInitPostHistoryFlow(t *testing.T) {
	dir := t.TempDir()

	output, err := executeCommand(NewRootCmd("test"), "init", "--room", dir, "--name", "test room")
	if err != nil {
		t.Fatalf("init command: %v", err)
	}
	if !strings.Contains(output, invite.Prefix) {
		t.Fatalf("init output missing invite link:\n%s", output)
	}

	if _, err := executeCommand(NewRootCmd("test"), "post", "--room", dir, "--as", "alice", "hello", "room"); err != nil {
		t.Fatalf("post command: %v", err)
	}

	output, err = executeCommand(NewRootCmd("test"), "history", "--room", dir)
	if err != nil {
		t.Fatalf("history command: %v", err)
	}
	if !strings.Contains(output, "hello room") || !strings.Contains(output, "<alice>") {
		t.Fatalf("history output missing posted message:\n%s", output)
	}
	if !strings.Contains(output, "room-rename") {
		t.Fatalf("history output missing the rename entry:\n%s", output)
	}
}

func TestHistoryPagination(t *testing.T) {
	dir := t.TempDir()
	if _, err := executeCommand(NewRootCmd("test"), "init", "--room", dir); err != nil {
		t.Fatalf("init command: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := executeCommand(NewRootCmd("test"), "post", "--room", dir, "msg"); err != nil {
			t.Fatalf("post command: %v", err)
		}
	}

	output, err := executeCommand(NewRootCmd("test"), "history", "--room", dir, "--limit", "2")
	if err != nil {
		t.Fatalf("history command: %v", err)
	}
	if !strings.Contains(output, "--before 3") {
		t.Fatalf("expected older-page cursor hint:\n%s", output)
	}

	output, err = executeCommand(NewRootCmd("test"), "history", "--room", dir, "--limit", "2", "--before", "3")
	if err != nil {
		t.Fatalf("history command: %v", err)
	}
	if !strings.Contains(output, "--before 1") {
		t.Fatalf("expected next cursor hint:\n%s", output)
	}
}

func TestInviteAndJoinFlow(t *testing.T) {
	creatorDir := t.TempDir()
	if _, err := executeCommand(NewRootCmd("test"), "init", "--room", creatorDir); err != nil {
		t.Fatalf("init command: %v", err)
	}

	output, err := executeCommand(NewRootCmd("test"), "invite", "--room", creatorDir)
	if err != nil {
		t.Fatalf("invite command: %v", err)
	}
	link := strings.TrimSpace(output)
	if !strings.HasPrefix(link, invite.Prefix) {
		t.Fatalf("unexpected invite output: %q", output)
	}

	joinerDir := t.TempDir()
	output, err = executeCommand(NewRootCmd("test"), "join", "--room", joinerDir, link)
	if err != nil {
		t.Fatalf("join command: %v", err)
	}
	if !strings.Contains(output, "joined room") {
		t.Fatalf("unexpected join output: %q", output)
	}

	// The joiner directory now carries the same room descriptor.
	joined, err := executeCommand(NewRootCmd("test"), "invite", "--room", joinerDir)
	if err != nil {
		t.Fatalf("invite in joined dir: %v", err)
	}
	if strings.TrimSpace(joined) != link {
		t.Fatalf("joined room has a different invite: %q vs %q", joined, link)
	}
}

func TestAddWriterCommand(t *testing.T) {
	dir := t.TempDir()
	if _, err := executeCommand(NewRootCmd("test"), "init", "--room", dir); err != nil {
		t.Fatalf("init command: %v", err)
	}

	key := strings.Repeat("b", 64)
	output, err := executeCommand(NewRootCmd("test"), "add-writer", "--room", dir, key)
	if err != nil {
		t.Fatalf("add-writer command: %v", err)
	}
	if !strings.Contains(output, "2 members") {
		t.Fatalf("unexpected add-writer output: %q", output)
	}
}

func TestChannelAddAndList(t *testing.T) {
	dir := t.TempDir()
	if _, err := executeCommand(NewRootCmd("test"), "init", "--room", dir); err != nil {
		t.Fatalf("init command: %v", err)
	}
	if _, err := executeCommand(NewRootCmd("test"), "channel-add", "--room", dir, "general"); err != nil {
		t.Fatalf("channel-add command: %v", err)
	}
	if _, err := executeCommand(NewRootCmd("test"), "channel-add", "--room", dir, "--voice", "--mod-only", "lounge"); err != nil {
		t.Fatalf("channel-add command: %v", err)
	}

	output, err := executeCommand(NewRootCmd("test"), "channels", "--room", dir)
	if err != nil {
		t.Fatalf("channels command: %v", err)
	}
	if !strings.Contains(output, "general (text)") {
		t.Fatalf("missing text channel:\n%s", output)
	}
	if !strings.Contains(output, "lounge (voice) [mod-only]") {
		t.Fatalf("missing voice channel:\n%s", output)
	}
}

func TestStateCommandJSON(t *testing.T) {
	dir := t.TempDir()
	if _, err := executeCommand(NewRootCmd("test"), "init", "--room", dir, "--name", "state room"); err != nil {
		t.Fatalf("init command: %v", err)
	}
	if _, err := executeCommand(NewRootCmd("test"), "post", "--room", dir, "hi"); err != nil {
		t.Fatalf("post command: %v", err)
	}

	output, err := executeCommand(NewRootCmd("test"), "state", "--room", dir)
	if err != nil {
		t.Fatalf("state command: %v", err)
	}
	var state projection.RoomState
	if err := json.Unmarshal([]byte(output), &state); err != nil {
		t.Fatalf("state output is not JSON: %v\n%s", err, output)
	}
	if state.RoomName != "state room" || state.Owner == "" || state.Applied != 2 {
		t.Fatalf("unexpected state: %+v", state)
	}
}

func TestCommandsPopulateCache(t *testing.T) {
	dir := t.TempDir()
	if _, err := executeCommand(NewRootCmd("test"), "init", "--room", dir); err != nil {
		t.Fatalf("init command: %v", err)
	}
	if _, err := executeCommand(NewRootCmd("test"), "post", "--room", dir, "cached"); err != nil {
		t.Fatalf("post command: %v", err)
	}

	conn, err := db.OpenCache(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	defer conn.Close()

	n, err := db.CachedViewLen(conn)
	if err != nil || n != 1 {
		t.Fatalf("CachedViewLen = %d, %v", n, err)
	}
	rows, err := db.LatestMessages(conn, nil, 10)
	if err != nil || len(rows) != 1 || rows[0].Message.Body != "cached" {
		t.Fatalf("cache rows wrong: %+v, %v", rows, err)
	}
}

func TestCallCommands(t *testing.T) {
	dir := t.TempDir()
	if _, err := executeCommand(NewRootCmd("test"), "init", "--room", dir); err != nil {
		t.Fatalf("init command: %v", err)
	}

	output, err := executeCommand(NewRootCmd("test"), "call-start", "--room", dir, "--channel", "lounge", "--json")
	if err != nil {
		t.Fatalf("call-start command: %v", err)
	}
	var started map[string]string
	if err := json.Unmarshal([]byte(output), &started); err != nil {
		t.Fatalf("call-start output is not JSON: %v\n%s", err, output)
	}
	callID := started["call_id"]
	if callID == "" {
		t.Fatalf("call-start returned no id: %q", output)
	}

	output, err = executeCommand(NewRootCmd("test"), "calls", "--room", dir)
	if err != nil {
		t.Fatalf("calls command: %v", err)
	}
	if !strings.Contains(output, callID) || !strings.Contains(output, "(in lounge)") {
		t.Fatalf("calls output missing the session:\n%s", output)
	}

	if _, err := executeCommand(NewRootCmd("test"), "call-end", "--room", dir, callID); err != nil {
		t.Fatalf("call-end command: %v", err)
	}
	output, err = executeCommand(NewRootCmd("test"), "calls", "--room", dir)
	if err != nil {
		t.Fatalf("calls command: %v", err)
	}
	if strings.Contains(output, callID) {
		t.Fatalf("session still listed after call-end:\n%s", output)
	}
}

func TestOfflineHistoryReadsCacheOnly(t *testing.T) {
	dir := t.TempDir()
	if _, err := executeCommand(NewRootCmd("test"), "init", "--room", dir); err != nil {
		t.Fatalf("init command: %v", err)
	}
	if _, err := executeCommand(NewRootCmd("test"), "post", "--room", dir, "--as", "bob", "still", "here"); err != nil {
		t.Fatalf("post command: %v", err)
	}

	// Offline must serve the cache even when the logs are unreadable.
	if err := os.RemoveAll(filepath.Join(dir, "logs")); err != nil {
		t.Fatalf("remove logs: %v", err)
	}

	output, err := executeCommand(NewRootCmd("test"), "history", "--room", dir, "--offline")
	if err != nil {
		t.Fatalf("history --offline: %v", err)
	}
	if !strings.Contains(output, "still here") || !strings.Contains(output, "<bob>") {
		t.Fatalf("offline history missing cached message:\n%s", output)
	}
}

func TestOfflineHistoryChannelFilter(t *testing.T) {
	dir := t.TempDir()
	if _, err := executeCommand(NewRootCmd("test"), "init", "--room", dir); err != nil {
		t.Fatalf("init command: %v", err)
	}
	if _, err := executeCommand(NewRootCmd("test"), "post", "--room", dir, "--channel", "dev", "in dev"); err != nil {
		t.Fatalf("post command: %v", err)
	}
	if _, err := executeCommand(NewRootCmd("test"), "post", "--room", dir, "--channel", "ops", "in ops"); err != nil {
		t.Fatalf("post command: %v", err)
	}

	output, err := executeCommand(NewRootCmd("test"), "history", "--room", dir, "--offline", "--channel", "dev")
	if err != nil {
		t.Fatalf("history --offline: %v", err)
	}
	if !strings.Contains(output, "in dev") || strings.Contains(output, "in ops") {
		t.Fatalf("channel filter not applied:\n%s", output)
	}
}

func TestShowCommand(t *testing.T) {
	dir := t.TempDir()
	if _, err := executeCommand(NewRootCmd("test"), "init", "--room", dir); err != nil {
		t.Fatalf("init command: %v", err)
	}
	output, err := executeCommand(NewRootCmd("test"), "post", "--room", dir, "--json", "find", "me")
	if err != nil {
		t.Fatalf("post command: %v", err)
	}
	var posted types.Message
	if err := json.Unmarshal([]byte(output), &posted); err != nil {
		t.Fatalf("post output is not JSON: %v\n%s", err, output)
	}

	output, err = executeCommand(NewRootCmd("test"), "show", "--room", dir, posted.ID)
	if err != nil {
		t.Fatalf("show command: %v", err)
	}
	if !strings.Contains(output, "find me") {
		t.Fatalf("show output missing the message:\n%s", output)
	}

	if _, err := executeCommand(NewRootCmd("test"), "show", "--room", dir, "no-such-id"); err == nil {
		t.Fatalf("expected error for an unknown message id")
	}
}

func TestStateOffline(t *testing.T) {
	dir := t.TempDir()
	if _, err := executeCommand(NewRootCmd("test"), "init", "--room", dir, "--name", "offline room"); err != nil {
		t.Fatalf("init command: %v", err)
	}
	if _, err := executeCommand(NewRootCmd("test"), "post", "--room", dir, "hi"); err != nil {
		t.Fatalf("post command: %v", err)
	}
	if err := os.RemoveAll(filepath.Join(dir, "logs")); err != nil {
		t.Fatalf("remove logs: %v", err)
	}

	output, err := executeCommand(NewRootCmd("test"), "state", "--room", dir, "--offline")
	if err != nil {
		t.Fatalf("state --offline: %v", err)
	}
	var cached map[string]string
	if err := json.Unmarshal([]byte(output), &cached); err != nil {
		t.Fatalf("state --offline output is not JSON: %v\n%s", err, output)
	}
	if cached["room_name"] != "offline room" || cached["owner"] == "" {
		t.Fatalf("unexpected cached state: %v", cached)
	}
}

func TestPassphraseSealsIdentity(t *testing.T) {
	dir := t.TempDir()
	if _, err := executeCommand(NewRootCmd("test"), "init", "--room", dir, "--passphrase", "sesame"); err != nil {
		t.Fatalf("init command: %v", err)
	}

	keyPath := filepath.Join(dir, "identity.json")
	id, err := identity.LoadEncrypted(keyPath, []byte("sesame"))
	if err != nil {
		t.Fatalf("identity file is not sealed: %v", err)
	}

	// The same passphrase opens the same writer identity on later runs.
	output, err := executeCommand(NewRootCmd("test"), "post", "--room", dir, "--passphrase", "sesame", "--json", "hi")
	if err != nil {
		t.Fatalf("post with passphrase: %v", err)
	}
	var posted types.Message
	if err := json.Unmarshal([]byte(output), &posted); err != nil {
		t.Fatalf("post output is not JSON: %v\n%s", err, output)
	}
	if posted.Sender != id.Key() {
		t.Fatalf("sender %s, want sealed identity %s", posted.Sender, id.Key())
	}

	// Without the passphrase the sealed key file is unusable.
	if _, err := executeCommand(NewRootCmd("test"), "post", "--room", dir, "hi"); err == nil {
		t.Fatalf("expected error posting without the passphrase")
	}
}
