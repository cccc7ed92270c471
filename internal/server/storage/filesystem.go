package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vshell/internal/eventlog"
)

const logExt = ".xml"

var ErrLogNotFound = errors.New("log not found")

// Store defines the interface for session log storage backends.
type Store interface {
	Create(sessionID string) (*eventlog.XMLWriter, error)
	GetPath(sessionID string) (string, error)
	Delete(sessionID string) error
	List() ([]LogInfo, error)
	EnsureDir() error
}

// LogInfo describes one stored log.
type LogInfo struct {
	SessionID string
	Size      int64
	ModTime   time.Time
}

// FileSystemStore keeps one XML event log per session on the local
// filesystem.
type FileSystemStore struct {
	basePath string
}

// NewFileSystemStore creates a new filesystem storage backend.
func NewFileSystemStore(basePath string) *FileSystemStore {
	return &FileSystemStore{basePath: basePath}
}

// EnsureDir creates the storage directory if it doesn't exist.
func (fs *FileSystemStore) EnsureDir() error {
	if err := os.MkdirAll(fs.basePath, 0755); err != nil {
		return fmt.Errorf("failed to create storage directory %s: %w", fs.basePath, err)
	}
	return nil
}

// Create starts the log {sessionID}.xml, replacing any previous one.
func (fs *FileSystemStore) Create(sessionID string) (*eventlog.XMLWriter, error) {
	if !validID(sessionID) {
		return nil, fmt.Errorf("invalid session id %q", sessionID)
	}
	return eventlog.CreateXMLFile(fs.filePath(sessionID))
}

// GetPath returns the path to a stored log.
// Returns ErrLogNotFound if the file does not exist.
func (fs *FileSystemStore) GetPath(sessionID string) (string, error) {
	if !validID(sessionID) {
		return "", ErrLogNotFound
	}
	filePath := fs.filePath(sessionID)

	if _, err := os.Stat(filePath); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: session %s", ErrLogNotFound, sessionID)
		}
		return "", fmt.Errorf("failed to stat file: %w", err)
	}

	return filePath, nil
}

// Delete removes the stored log of a session.
func (fs *FileSystemStore) Delete(sessionID string) error {
	if !validID(sessionID) {
		return nil
	}
	filePath := fs.filePath(sessionID)
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file %s: %w", filePath, err)
	}
	return nil
}

// List returns every stored log.
func (fs *FileSystemStore) List() ([]LogInfo, error) {
	entries, err := os.ReadDir(fs.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage directory: %w", err)
	}

	var logs []LogInfo
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, logExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// removed since ReadDir
			continue
		}
		logs = append(logs, LogInfo{
			SessionID: strings.TrimSuffix(name, logExt),
			Size:      info.Size(),
			ModTime:   info.ModTime(),
		})
	}
	return logs, nil
}

func (fs *FileSystemStore) filePath(sessionID string) string {
	return filepath.Join(fs.basePath, sessionID+logExt)
}

// validID keeps ids from escaping the storage directory.
func validID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}
