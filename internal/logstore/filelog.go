package logstore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
)

const logsDirName = "logs"

func errOutOfRange(i, length int) error {
	return fmt.Errorf("log index %d out of range (len %d)", i, length)
}

// FileLog is a Log backed by one JSONL file, one entry per line.
// Appends take an exclusive flock so concurrent local processes never
// interleave partial lines.
type FileLog struct {
	mu   sync.Mutex
	key  string
	path string

	// read cache, invalidated by file size change
	cachedSize int64
	cached     [][]byte
}

// OpenFileLog opens (or creates lazily on first append) the log file for the
// given writer key.
func OpenFileLog(path, key string) *FileLog {
	return &FileLog{key: key, path: path}
}

// Key returns the writer's public key in hex.
func (l *FileLog) Key() string { return l.key }

// Path returns the backing file path.
func (l *FileLog) Path() string { return l.path }

// Len returns the number of entries currently on disk.
func (l *FileLog) Len() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.refresh(); err != nil {
		return 0, err
	}
	return len(l.cached), nil
}

// Get returns the entry at index i.
func (l *FileLog) Get(i int) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.refresh(); err != nil {
		return nil, err
	}
	if i < 0 || i >= len(l.cached) {
		return nil, errOutOfRange(i, len(l.cached))
	}
	entry := make([]byte, len(l.cached[i]))
	copy(entry, l.cached[i])
	return entry, nil
}

// Append adds one entry at the end of the log file.
func (l *FileLog) Append(entry []byte) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		return err
	}
	defer syscall.Flock(int(f.Fd()), syscall.LOCK_UN)

	data := make([]byte, 0, len(entry)+1)
	data = append(data, entry...)
	data = append(data, '\n')
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// refresh reloads the line cache when the file size changed. The file is
// append-only, so a size match means the cache is still valid.
func (l *FileLog) refresh() error {
	info, err := os.Stat(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			l.cached = nil
			l.cachedSize = 0
			return nil
		}
		return err
	}
	if info.Size() == l.cachedSize {
		return nil
	}

	f, err := os.Open(l.path)
	if err != nil {
		return err
	}
	defer f.Close()

	var entries [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entries = append(entries, []byte(line))
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	l.cached = entries
	l.cachedSize = info.Size()
	return nil
}

// Dir manages the per-writer log files of one room directory.
type Dir struct {
	mu   sync.Mutex
	root string
	open map[string]*FileLog
}

// OpenDir opens the room's log directory, creating it when missing.
func OpenDir(root string) (*Dir, error) {
	logsDir := filepath.Join(root, logsDirName)
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, err
	}
	return &Dir{root: root, open: make(map[string]*FileLog)}, nil
}

// LogsPath returns the directory holding the per-writer log files.
func (d *Dir) LogsPath() string {
	return filepath.Join(d.root, logsDirName)
}

// Open returns the FileLog for the given writer key.
func (d *Dir) Open(key string) *FileLog {
	d.mu.Lock()
	defer d.mu.Unlock()
	if log, ok := d.open[key]; ok {
		return log
	}
	path := filepath.Join(d.root, logsDirName, key+".jsonl")
	log := OpenFileLog(path, key)
	d.open[key] = log
	return log
}

// List returns the writer keys physically present in the directory, sorted.
// Presence alone does not make a writer eligible for the merge; the writer
// set decides that.
func (d *Dir) List() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(d.root, logsDirName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(entry.Name(), ".jsonl"))
	}
	sort.Strings(keys)
	return keys, nil
}
