package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"vshell/internal/core"
	"vshell/internal/eventlog"
	"vshell/internal/seedsrc"
	"vshell/internal/server/config"
	"vshell/internal/server/database"
	"vshell/internal/server/storage"
	"vshell/internal/shell"
)

// Sentinel errors for the service layer.
var (
	ErrNotFound        = errors.New("session not found")
	ErrInvalidToken    = errors.New("invalid session token")
	ErrTooManySessions = errors.New("too many open sessions")
	ErrInvalidUsername = errors.New("invalid username")
	ErrLogNotFound     = errors.New("session log not found")
)

const (
	defaultUsername = "user"
	tokenLength     = 32
)

var usernamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_-]{0,31}$`)

// EventStore persists sessions and their events. It is optional; without
// it events only go to the XML log and the application log.
type EventStore interface {
	CreateSession(ctx context.Context, s *database.Session) error
	CloseSession(ctx context.Context, id string, at time.Time) error
	GetSession(ctx context.Context, id string) (*database.Session, error)
	RecordEvent(ctx context.Context, sessionID string, ev shell.Event) error
	ListEvents(ctx context.Context, sessionID string) ([]shell.Event, error)
}

// CreateResult is returned after a session is opened. The token is only
// ever shown here.
type CreateResult struct {
	ID     string `json:"id"`
	Token  string `json:"token"`
	Motd   string `json:"motd,omitempty"`
	Cwd    string `json:"cwd"`
	Prompt string `json:"prompt"`
}

// ExecResult is the outcome of one command line and the prompt that
// follows it. Prompt is empty once the session has exited.
type ExecResult struct {
	shell.Outcome
	Prompt string `json:"prompt,omitempty"`
}

type session struct {
	id        string
	username  string
	tokenHash []byte

	// mu serializes commands; the tree has no locking of its own.
	mu       sync.Mutex
	interp   *shell.Interpreter
	sink     eventlog.Sink
	log      *eventlog.XMLWriter
	lastUsed time.Time
	closed   bool
}

// SessionService owns the open shell sessions: one tree and interpreter
// each.
type SessionService struct {
	cfg    *config.Config
	store  storage.Store
	events EventStore

	mu       sync.Mutex
	sessions map[string]*session
	// closed maps ended sessions to their token hash while their log is
	// kept, so the log stays readable until cleanup removes it.
	closed map[string][]byte
	now    func() time.Time
}

// NewSessionService creates a new session service. events may be nil.
func NewSessionService(cfg *config.Config, store storage.Store, events EventStore) *SessionService {
	return &SessionService{
		cfg:      cfg,
		store:    store,
		events:   events,
		sessions: make(map[string]*session),
		closed:   make(map[string][]byte),
		now:      time.Now,
	}
}

// Create opens a session for username, seeding its tree from the
// configured source.
func (s *SessionService) Create(ctx context.Context, username string) (*CreateResult, error) {
	if username == "" {
		username = defaultUsername
	}
	if !usernamePattern.MatchString(username) {
		return nil, ErrInvalidUsername
	}
	if s.Count() >= s.cfg.MaxSessions {
		return nil, ErrTooManySessions
	}

	id := uuid.NewString()
	token, err := generateSecureToken(tokenLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), s.cfg.TokenCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash session token: %w", err)
	}

	tree := core.NewDefaultTree()
	if s.cfg.SeedSource != "" {
		sum, err := seedsrc.Load(ctx, tree, s.cfg.SeedSource, seedsrc.Options{
			KnownHosts: s.cfg.SeedKnownHosts,
			Timeout:    s.cfg.SeedTimeout,
		})
		if err != nil {
			// the default structure stays usable
			slog.Warn("seed import incomplete", "session_id", id, "error", err)
		}
		slog.Info("seed imported", "session_id", id, "dirs", sum.Dirs, "files", sum.Files, "binary", sum.Binary)
	}

	logWriter, err := s.store.Create(id)
	if err != nil {
		return nil, fmt.Errorf("failed to create session log: %w", err)
	}

	now := s.now().UTC()
	sinks := eventlog.Multi{
		logWriter,
		eventlog.SlogSink{Attrs: []any{"session_id", id}},
	}
	if s.events != nil {
		err := s.events.CreateSession(ctx, &database.Session{
			ID:        id,
			Username:  username,
			Hostname:  s.cfg.Hostname,
			TokenHash: hash,
			CreatedAt: now,
		})
		if err != nil {
			logWriter.Close()
			s.store.Delete(id)
			return nil, fmt.Errorf("failed to create session record: %w", err)
		}
		sinks = append(sinks, storeSink{events: s.events, sessionID: id})
	}

	sess := &session{
		id:        id,
		username:  username,
		tokenHash: hash,
		interp:    shell.New(tree, shell.NewSession(username, s.cfg.Hostname), shell.WithClock(s.now)),
		sink:      sinks,
		log:       logWriter,
		lastUsed:  now,
	}

	s.mu.Lock()
	if len(s.sessions) >= s.cfg.MaxSessions {
		s.mu.Unlock()
		// the token was never handed out, so nobody can read this log
		s.closeSession(ctx, sess)
		s.Forget(id)
		s.store.Delete(id)
		return nil, ErrTooManySessions
	}
	s.sessions[id] = sess
	s.mu.Unlock()

	slog.Info("session opened", "session_id", id, "username", username)

	motd, _ := tree.Motd()
	return &CreateResult{
		ID:     id,
		Token:  token,
		Motd:   motd,
		Cwd:    tree.CurrentPath(),
		Prompt: sess.interp.Prompt(),
	}, nil
}

// Exec runs one command line in a session. A session that runs exit is
// closed after the command.
func (s *SessionService) Exec(ctx context.Context, id, token, line string) (ExecResult, error) {
	sess, err := s.authorize(id, token)
	if err != nil {
		return ExecResult{}, err
	}
	return s.exec(ctx, sess, line)
}

func (s *SessionService) exec(ctx context.Context, sess *session, line string) (ExecResult, error) {
	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return ExecResult{}, ErrNotFound
	}
	o := sess.interp.Execute(line)
	sess.lastUsed = s.now().UTC()
	if !o.Noop() {
		if err := sess.sink.Record(ctx, o.Event); err != nil {
			slog.Warn("failed to record event", "session_id", sess.id, "error", err)
		}
	}
	res := ExecResult{Outcome: o}
	if !o.Exit {
		res.Prompt = sess.interp.Prompt()
	}
	sess.mu.Unlock()

	if o.Exit && s.remove(sess.id) {
		s.closeSession(ctx, sess)
	}
	return res, nil
}

// Terminal is a session attached once, for connections that run many
// commands under a single token check.
type Terminal struct {
	svc  *SessionService
	sess *session
}

// Attach authorizes token for session id and returns a terminal on it.
func (s *SessionService) Attach(id, token string) (*Terminal, error) {
	sess, err := s.authorize(id, token)
	if err != nil {
		return nil, err
	}
	return &Terminal{svc: s, sess: sess}, nil
}

// Prompt returns the current prompt of the session.
func (t *Terminal) Prompt() string {
	t.sess.mu.Lock()
	defer t.sess.mu.Unlock()
	return t.sess.interp.Prompt()
}

// Exec runs one command line. It fails with ErrNotFound once the session
// has been closed by any path.
func (t *Terminal) Exec(ctx context.Context, line string) (ExecResult, error) {
	return t.svc.exec(ctx, t.sess, line)
}

// Events returns the events of a session, from the event store when one is
// configured and from the XML log otherwise. Ended sessions stay readable
// until their log is cleaned up.
func (s *SessionService) Events(ctx context.Context, id, token string) ([]shell.Event, error) {
	sess, err := s.authorizeRead(ctx, id, token)
	if err != nil {
		return nil, err
	}
	if s.events != nil {
		return s.events.ListEvents(ctx, id)
	}
	if sess != nil {
		sess.mu.Lock()
		defer sess.mu.Unlock()
	}
	return s.logEvents(id)
}

// LogEvents returns the events of the XML log of a session, open or ended.
func (s *SessionService) LogEvents(ctx context.Context, id, token string) ([]shell.Event, error) {
	sess, err := s.authorizeRead(ctx, id, token)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		sess.mu.Lock()
		defer sess.mu.Unlock()
	}
	return s.logEvents(id)
}

func (s *SessionService) logEvents(id string) ([]shell.Event, error) {
	path, err := s.store.GetPath(id)
	if err != nil {
		if errors.Is(err, storage.ErrLogNotFound) {
			return nil, ErrLogNotFound
		}
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session log: %w", err)
	}
	defer f.Close()

	return eventlog.ReadXML(f)
}

// Archive writes the current tree of a session to w as a zip archive.
func (s *SessionService) Archive(ctx context.Context, id, token string, w io.Writer) (core.ExportSummary, error) {
	sess, err := s.authorize(id, token)
	if err != nil {
		return core.ExportSummary{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return core.ExportSummary{}, ErrNotFound
	}
	return sess.interp.Tree().WriteZip(w, s.now())
}

// Close ends a session. Its log stays in storage until cleanup.
func (s *SessionService) Close(ctx context.Context, id, token string) error {
	sess, err := s.authorize(id, token)
	if err != nil {
		return err
	}
	if s.remove(id) {
		s.closeSession(ctx, sess)
	}
	return nil
}

// CloseAll ends every open session.
func (s *SessionService) CloseAll(ctx context.Context) {
	s.mu.Lock()
	open := make([]*session, 0, len(s.sessions))
	for id, sess := range s.sessions {
		open = append(open, sess)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, sess := range open {
		s.closeSession(ctx, sess)
	}
}

// ReapIdle closes the sessions that have not run a command within the
// idle timeout and returns how many were closed.
func (s *SessionService) ReapIdle(ctx context.Context) int {
	cutoff := s.now().UTC().Add(-s.cfg.SessionIdleTimeout)

	s.mu.Lock()
	candidates := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		candidates = append(candidates, sess)
	}
	s.mu.Unlock()

	reaped := 0
	for _, sess := range candidates {
		sess.mu.Lock()
		idle := sess.lastUsed.Before(cutoff)
		sess.mu.Unlock()
		if !idle || !s.remove(sess.id) {
			continue
		}
		s.closeSession(ctx, sess)
		slog.Info("idle session reaped", "session_id", sess.id)
		reaped++
	}
	return reaped
}

// Active reports whether a session is open.
func (s *SessionService) Active(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	return ok
}

// Forget drops the record of an ended session. Cleanup calls it once the
// session log is deleted.
func (s *SessionService) Forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.closed, id)
}

// TreeBytes returns the combined file content size of every open tree.
func (s *SessionService) TreeBytes() int64 {
	s.mu.Lock()
	open := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		open = append(open, sess)
	}
	s.mu.Unlock()

	var total int64
	for _, sess := range open {
		sess.mu.Lock()
		if !sess.closed {
			total += sess.interp.Tree().TotalSize()
		}
		sess.mu.Unlock()
	}
	return total
}

// Count returns the number of open sessions.
func (s *SessionService) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionService) authorize(id, token string) (*session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	if err := bcrypt.CompareHashAndPassword(sess.tokenHash, []byte(token)); err != nil {
		return nil, ErrInvalidToken
	}
	return sess, nil
}

// authorizeRead admits readers of an open or ended session. The returned
// session is nil when it has ended.
func (s *SessionService) authorizeRead(ctx context.Context, id, token string) (*session, error) {
	sess, err := s.authorize(id, token)
	if !errors.Is(err, ErrNotFound) {
		return sess, err
	}

	s.mu.Lock()
	hash, ok := s.closed[id]
	s.mu.Unlock()

	// the database remembers sessions ended before a restart
	if !ok && s.events != nil {
		if _, perr := uuid.Parse(id); perr != nil {
			return nil, ErrNotFound
		}
		rec, err := s.events.GetSession(ctx, id)
		switch {
		case errors.Is(err, database.ErrSessionNotFound):
		case err != nil:
			return nil, err
		default:
			hash, ok = rec.TokenHash, len(rec.TokenHash) > 0
		}
	}
	if !ok {
		return nil, ErrNotFound
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(token)); err != nil {
		return nil, ErrInvalidToken
	}
	return nil, nil
}

// remove drops id from the open sessions and reports whether it was there.
func (s *SessionService) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

func (s *SessionService) closeSession(ctx context.Context, sess *session) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return
	}
	sess.closed = true

	if err := sess.log.Close(); err != nil {
		slog.Error("failed to close session log", "session_id", sess.id, "error", err)
	}
	s.mu.Lock()
	s.closed[sess.id] = sess.tokenHash
	s.mu.Unlock()
	if s.events != nil {
		if err := s.events.CloseSession(ctx, sess.id, s.now().UTC()); err != nil {
			slog.Error("failed to close session record", "session_id", sess.id, "error", err)
		}
	}
	slog.Info("session closed", "session_id", sess.id)
}

type storeSink struct {
	events    EventStore
	sessionID string
}

func (s storeSink) Record(ctx context.Context, ev shell.Event) error {
	return s.events.RecordEvent(ctx, s.sessionID, ev)
}

// --- Helpers ---

// generateSecureToken produces a cryptographically secure, URL-safe random string.
func generateSecureToken(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", fmt.Errorf("crypto/rand failure: %w", err)
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
