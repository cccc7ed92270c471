package service

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"vshell/internal/server/config"
	"vshell/internal/server/database"
	"vshell/internal/server/storage"
	"vshell/internal/shell"
)

type mockEventStore struct {
	mock.Mock
}

func (m *mockEventStore) CreateSession(ctx context.Context, s *database.Session) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockEventStore) CloseSession(ctx context.Context, id string, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *mockEventStore) GetSession(ctx context.Context, id string) (*database.Session, error) {
	args := m.Called(ctx, id)
	s, _ := args.Get(0).(*database.Session)
	return s, args.Error(1)
}

func (m *mockEventStore) RecordEvent(ctx context.Context, sessionID string, ev shell.Event) error {
	return m.Called(ctx, sessionID, ev).Error(0)
}

func (m *mockEventStore) ListEvents(ctx context.Context, sessionID string) ([]shell.Event, error) {
	args := m.Called(ctx, sessionID)
	events, _ := args.Get(0).([]shell.Event)
	return events, args.Error(1)
}

func testConfig() *config.Config {
	return &config.Config{
		Hostname:           "testhost",
		SessionIdleTimeout: 30 * time.Minute,
		MaxSessions:        4,
		TokenCost:          bcrypt.MinCost,
	}
}

func newTestService(t *testing.T, events EventStore) *SessionService {
	t.Helper()
	store := storage.NewFileSystemStore(t.TempDir())
	require.NoError(t, store.EnsureDir())
	svc := NewSessionService(testConfig(), store, events)
	t.Cleanup(func() { svc.CloseAll(context.Background()) })
	return svc
}

func TestCreate(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	res, err := svc.Create(ctx, "")
	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	assert.Len(t, res.Token, tokenLength)
	assert.Equal(t, "/", res.Cwd)
	assert.Equal(t, "user@testhost:/$ ", res.Prompt)
	assert.Contains(t, res.Motd, "Welcome to vshell!")
	assert.True(t, svc.Active(res.ID))

	res, err = svc.Create(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@testhost:/$ ", res.Prompt)
	assert.Equal(t, 2, svc.Count())

	for _, name := range []string{"Alice", "9lives", "a b", "../x"} {
		_, err := svc.Create(ctx, name)
		assert.ErrorIs(t, err, ErrInvalidUsername, name)
	}
}

func TestCreateLimit(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	for i := 0; i < svc.cfg.MaxSessions; i++ {
		_, err := svc.Create(ctx, "user")
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, "user")
	assert.ErrorIs(t, err, ErrTooManySessions)
}

func TestExec(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	res, err := svc.Create(ctx, "user")
	require.NoError(t, err)

	o, err := svc.Exec(ctx, res.ID, res.Token, "cd /home/user")
	require.NoError(t, err)
	assert.Nil(t, o.Err)

	o, err = svc.Exec(ctx, res.ID, res.Token, "pwd")
	require.NoError(t, err)
	assert.Equal(t, "/home/user", o.Text())
	assert.Equal(t, "user@testhost:/home/user$ ", o.Prompt)

	o, err = svc.Exec(ctx, res.ID, res.Token, "cat missing.txt")
	require.NoError(t, err)
	require.NotNil(t, o.Err)
	assert.Equal(t, "NotFound", o.Err.Kind)

	_, err = svc.Exec(ctx, res.ID, "wrong", "pwd")
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = svc.Exec(ctx, "unknown", res.Token, "pwd")
	assert.ErrorIs(t, err, ErrNotFound)

	// blank lines are not recorded
	_, err = svc.Exec(ctx, res.ID, res.Token, "   ")
	require.NoError(t, err)

	events, err := svc.Events(ctx, res.ID, res.Token)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "cd", events[0].Verb)
	assert.Equal(t, "/", events[0].Path)
	assert.Equal(t, "pwd", events[1].Verb)
	assert.Equal(t, "/home/user", events[1].Path)
	assert.Equal(t, "NotFound", events[2].Kind)
}

func TestExecExitClosesSession(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	res, err := svc.Create(ctx, "user")
	require.NoError(t, err)

	o, err := svc.Exec(ctx, res.ID, res.Token, "exit 3")
	require.NoError(t, err)
	assert.True(t, o.Exit)
	assert.Equal(t, 3, o.ExitCode)
	assert.Empty(t, o.Prompt)
	assert.False(t, svc.Active(res.ID))

	_, err = svc.Exec(ctx, res.ID, res.Token, "pwd")
	assert.ErrorIs(t, err, ErrNotFound)

	path, err := svc.store.GetPath(res.ID)
	require.NoError(t, err, "log is kept after the session ends")
	assert.NotEmpty(t, path)
}

func TestClose(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	res, err := svc.Create(ctx, "user")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Close(ctx, res.ID, "wrong"), ErrInvalidToken)
	require.NoError(t, svc.Close(ctx, res.ID, res.Token))
	assert.False(t, svc.Active(res.ID))
	assert.ErrorIs(t, svc.Close(ctx, res.ID, res.Token), ErrNotFound)
}

func TestLogEvents(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	res, err := svc.Create(ctx, "user")
	require.NoError(t, err)
	_, err = svc.Exec(ctx, res.ID, res.Token, "echo hello")
	require.NoError(t, err)

	events, err := svc.LogEvents(ctx, res.ID, res.Token)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "echo hello", events[0].Message)
}

func TestReadAfterClose(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	exited, err := svc.Create(ctx, "user")
	require.NoError(t, err)
	_, err = svc.Exec(ctx, exited.ID, exited.Token, "pwd")
	require.NoError(t, err)
	_, err = svc.Exec(ctx, exited.ID, exited.Token, "exit")
	require.NoError(t, err)

	deleted, err := svc.Create(ctx, "user")
	require.NoError(t, err)
	_, err = svc.Exec(ctx, deleted.ID, deleted.Token, "echo bye")
	require.NoError(t, err)
	require.NoError(t, svc.Close(ctx, deleted.ID, deleted.Token))

	for _, res := range []*CreateResult{exited, deleted} {
		events, err := svc.LogEvents(ctx, res.ID, res.Token)
		require.NoError(t, err)
		assert.NotEmpty(t, events)

		events, err = svc.Events(ctx, res.ID, res.Token)
		require.NoError(t, err)
		assert.NotEmpty(t, events)

		_, err = svc.LogEvents(ctx, res.ID, "wrong")
		assert.ErrorIs(t, err, ErrInvalidToken)
		_, err = svc.Exec(ctx, res.ID, res.Token, "pwd")
		assert.ErrorIs(t, err, ErrNotFound, "ended sessions only serve reads")
	}

	events, err := svc.LogEvents(ctx, exited.ID, exited.Token)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "pwd", events[0].Verb)
	assert.Equal(t, "exit", events[1].Verb)

	// cleanup deletes the log and then forgets the session
	require.NoError(t, svc.store.Delete(exited.ID))
	svc.Forget(exited.ID)
	_, err = svc.LogEvents(ctx, exited.ID, exited.Token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReadAfterRestart(t *testing.T) {
	store := new(mockEventStore)
	svc := newTestService(t, store)
	ctx := context.Background()

	id := "0b9a4a3e-6f1d-4c55-9a7e-3f1c2b0d4e5f"
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	want := []shell.Event{{Verb: "pwd", Message: "pwd", Path: "/"}}
	store.On("GetSession", ctx, id).Return(&database.Session{ID: id, TokenHash: hash}, nil)
	store.On("ListEvents", ctx, id).Return(want, nil).Once()

	events, err := svc.Events(ctx, id, "secret")
	require.NoError(t, err)
	assert.Equal(t, want, events)

	_, err = svc.Events(ctx, id, "wrong")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := "5d2c9f7a-1b3e-4f6a-8c0d-2e4f6a8b0c1d"
	store.On("GetSession", ctx, other).Return(nil, database.ErrSessionNotFound).Once()
	_, err = svc.Events(ctx, other, "secret")
	assert.ErrorIs(t, err, ErrNotFound)

	// ids that are not uuids never reach the database
	_, err = svc.Events(ctx, "not-a-uuid", "secret")
	assert.ErrorIs(t, err, ErrNotFound)

	store.AssertExpectations(t)
}

func TestAttach(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	res, err := svc.Create(ctx, "user")
	require.NoError(t, err)

	_, err = svc.Attach(res.ID, "wrong")
	assert.ErrorIs(t, err, ErrInvalidToken)

	term, err := svc.Attach(res.ID, res.Token)
	require.NoError(t, err)
	assert.Equal(t, "user@testhost:/$ ", term.Prompt())

	r, err := term.Exec(ctx, "cd /etc")
	require.NoError(t, err)
	assert.Equal(t, "user@testhost:/etc$ ", r.Prompt)

	require.NoError(t, svc.Close(ctx, res.ID, res.Token))
	_, err = term.Exec(ctx, "pwd")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTreeBytes(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	assert.Zero(t, svc.TreeBytes())

	a, err := svc.Create(ctx, "user")
	require.NoError(t, err)
	one := svc.TreeBytes()
	assert.Positive(t, one)

	_, err = svc.Create(ctx, "user")
	require.NoError(t, err)
	assert.Equal(t, 2*one, svc.TreeBytes())

	require.NoError(t, svc.Close(ctx, a.ID, a.Token))
	assert.Equal(t, one, svc.TreeBytes())
}

func TestArchive(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	res, err := svc.Create(ctx, "user")
	require.NoError(t, err)
	_, err = svc.Exec(ctx, res.ID, res.Token, "rmdir /tmp")
	require.NoError(t, err)

	var buf bytes.Buffer
	sum, err := svc.Archive(ctx, res.ID, res.Token, &buf)
	require.NoError(t, err)
	assert.Positive(t, sum.Files)

	reader, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range reader.File {
		names[f.Name] = true
	}
	assert.True(t, names["etc/hostname"])
	assert.False(t, names["tmp/"], "removed directory is not archived")

	_, err = svc.Archive(ctx, res.ID, "wrong", &buf)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestReapIdle(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	idle, err := svc.Create(ctx, "user")
	require.NoError(t, err)

	now = now.Add(20 * time.Minute)
	busy, err := svc.Create(ctx, "user")
	require.NoError(t, err)

	now = now.Add(15 * time.Minute)
	assert.Equal(t, 1, svc.ReapIdle(ctx))
	assert.False(t, svc.Active(idle.ID))
	assert.True(t, svc.Active(busy.ID))

	_, err = svc.Exec(ctx, busy.ID, busy.Token, "pwd")
	require.NoError(t, err)
	now = now.Add(29 * time.Minute)
	assert.Equal(t, 0, svc.ReapIdle(ctx))
}

func TestEventStore(t *testing.T) {
	store := new(mockEventStore)
	svc := newTestService(t, store)
	ctx := context.Background()

	store.On("CreateSession", ctx, mock.MatchedBy(func(s *database.Session) bool {
		return s.Username == "bob" && s.Hostname == "testhost" && len(s.TokenHash) > 0
	})).Return(nil).Once()
	store.On("RecordEvent", ctx, mock.AnythingOfType("string"), mock.MatchedBy(func(ev shell.Event) bool {
		return ev.Verb == "pwd" && ev.Path == "/"
	})).Return(nil).Once()
	store.On("CloseSession", ctx, mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil).Once()

	res, err := svc.Create(ctx, "bob")
	require.NoError(t, err)

	_, err = svc.Exec(ctx, res.ID, res.Token, "pwd")
	require.NoError(t, err)

	want := []shell.Event{{Verb: "pwd", Message: "pwd", Path: "/"}}
	store.On("ListEvents", ctx, res.ID).Return(want, nil).Once()
	events, err := svc.Events(ctx, res.ID, res.Token)
	require.NoError(t, err)
	assert.Equal(t, want, events)

	require.NoError(t, svc.Close(ctx, res.ID, res.Token))
	store.AssertExpectations(t)
}

func TestEventStoreCreateFailure(t *testing.T) {
	store := new(mockEventStore)
	svc := newTestService(t, store)
	ctx := context.Background()

	store.On("CreateSession", ctx, mock.Anything).Return(assert.AnError).Once()

	_, err := svc.Create(ctx, "user")
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 0, svc.Count())

	logs, err := svc.store.List()
	require.NoError(t, err)
	assert.Empty(t, logs, "log of the failed session is removed")
	store.AssertExpectations(t)
}

// --- Token generation ---

func TestGenerateSecureToken(t *testing.T) {
	t.Run("generates correct length", func(t *testing.T) {
		for _, length := range []int{8, 16, 24, 32} {
			token, err := generateSecureToken(length)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(token) != length {
				t.Errorf("expected length %d, got %d", length, len(token))
			}
		}
	})

	t.Run("generates unique tokens", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			token, err := generateSecureToken(16)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if seen[token] {
				t.Fatalf("duplicate token generated: %s", token)
			}
			seen[token] = true
		}
	})

	t.Run("only contains URL-safe characters", func(t *testing.T) {
		token, err := generateSecureToken(100)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
		for _, c := range token {
			found := false
			for _, valid := range charset {
				if c == valid {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("token contains invalid character: %c", c)
			}
		}
	})
}
