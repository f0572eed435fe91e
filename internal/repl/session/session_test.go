package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSession(t *testing.T) {
	s := NewSession()
	_, err := uuid.Parse(s.ID)
	require.NoError(t, err)
	assert.Empty(t, s.History())
	assert.False(t, s.IsExpired(time.Hour))
	assert.False(t, s.IsIdle(time.Hour))
}

func TestSession_History(t *testing.T) {
	s := NewSession()
	s.AddHistory("find person")
	s.AddHistory("count person")

	h := s.History()
	assert.Equal(t, []string{"find person", "count person"}, h)

	h[0] = "mutated"
	assert.Equal(t, "find person", s.History()[0], "History must return a copy")

	s.ClearHistory()
	assert.Empty(t, s.History())
}

func TestSession_HistoryBounded(t *testing.T) {
	s := NewSession()
	for i := 0; i < maxHistory+10; i++ {
		s.AddHistory(fmt.Sprintf("count person -- %d", i))
	}
	h := s.History()
	require.Len(t, h, maxHistory)
	assert.Equal(t, "count person -- 10", h[0])
}

func TestSession_IdleAndExpired(t *testing.T) {
	s := NewSession()
	s.CreatedAt = time.Now().Add(-2 * time.Hour)
	s.LastActiveAt = time.Now().Add(-time.Hour)

	assert.True(t, s.IsExpired(time.Hour))
	assert.True(t, s.IsIdle(30*time.Minute))

	s.Touch()
	assert.False(t, s.IsIdle(30*time.Minute))
}

func TestManager(t *testing.T) {
	m := NewManager(time.Hour, 30*time.Minute)
	s := m.Create()
	assert.Same(t, s, m.Get(s.ID))
	assert.Nil(t, m.Get("missing"))
	assert.Equal(t, 1, m.Len())

	m.Remove(s.ID)
	assert.Nil(t, m.Get(s.ID))
	assert.Equal(t, 0, m.Len())
}

func TestManager_GetDropsStale(t *testing.T) {
	m := NewManager(time.Hour, 30*time.Minute)
	s := m.Create()
	s.LastActiveAt = time.Now().Add(-time.Hour)

	assert.Nil(t, m.Get(s.ID))
	assert.Equal(t, 0, m.Len())
}

func TestManager_Cleanup(t *testing.T) {
	m := NewManager(time.Hour, 30*time.Minute)
	live := m.Create()
	idle := m.Create()
	old := m.Create()
	idle.LastActiveAt = time.Now().Add(-time.Hour)
	old.CreatedAt = time.Now().Add(-2 * time.Hour)

	assert.Equal(t, 2, m.Cleanup())
	assert.Same(t, live, m.Get(live.ID))
	assert.Equal(t, 1, m.Len())
}

func TestManager_Run(t *testing.T) {
	m := NewManager(time.Hour, 30*time.Minute)
	s := m.Create()
	s.LastActiveAt = time.Now().Add(-time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
