package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"recipe-swiper/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newStateStore(t *testing.T) *StateStore {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "state.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStateStore(db.SQL)
}

func TestStateStore(t *testing.T) {
	ctx := context.Background()
	store := newStateStore(t)

	t.Run("LoadMissing", func(t *testing.T) {
		var v []string
		ok, err := store.Load(ctx, "u1", KeyIngredients, &v)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "u1", KeyIngredients, []string{"chicken", "rice"}))
		require.NoError(t, store.Save(ctx, "u2", KeyIngredients, []string{"tofu"}))

		var v []string
		ok, err := store.Load(ctx, "u1", KeyIngredients, &v)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []string{"chicken", "rice"}, v)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "u1", KeyBudget, 100.0))
		require.NoError(t, store.Save(ctx, "u1", KeyBudget, 20.0))

		var budget float64
		_, err := store.Load(ctx, "u1", KeyBudget, &budget)
		require.NoError(t, err)
		assert.Equal(t, 20.0, budget)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "u1", KeyBudget))
		var budget float64
		ok, err := store.Load(ctx, "u1", KeyBudget, &budget)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("CorruptValue", func(t *testing.T) {
		require.NoError(t, store.SaveRaw(ctx, "u3", KeyBudget, []byte("not json")))
		var budget float64
		_, err := store.Load(ctx, "u3", KeyBudget, &budget)
		assert.Error(t, err)
	})
}

type recordingSaver struct {
	mu    sync.Mutex
	saves []string
	err   error
}

func (r *recordingSaver) SaveRaw(_ context.Context, user string, key Key, raw []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.saves = append(r.saves, user+"/"+string(key)+"="+string(raw))
	return nil
}

func (r *recordingSaver) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.saves...)
}

func TestWriter(t *testing.T) {
	t.Run("SupersededWritesAreCancelled", func(t *testing.T) {
		saver := &recordingSaver{}
		w := NewWriter(saver, 20*time.Millisecond, zap.NewNop())

		w.Schedule("u1", KeyBudget, 10)
		w.Schedule("u1", KeyBudget, 20)
		w.Schedule("u1", KeyBudget, 30)

		assert.Eventually(t, func() bool { return len(saver.all()) == 1 }, time.Second, 5*time.Millisecond)
		time.Sleep(40 * time.Millisecond)
		assert.Equal(t, []string{"u1/userBudget=30"}, saver.all())
		assert.Zero(t, w.Pending())
	})

	t.Run("IndependentKeys", func(t *testing.T) {
		saver := &recordingSaver{}
		w := NewWriter(saver, time.Hour, zap.NewNop())

		w.Schedule("u1", KeyBudget, 10)
		w.Schedule("u2", KeyBudget, 20)
		w.Schedule("u1", KeyIngredients, []string{"egg"})
		assert.Equal(t, 3, w.Pending())

		w.Flush(context.Background())
		assert.Zero(t, w.Pending())
		assert.ElementsMatch(t, []string{
			"u1/userBudget=10",
			"u2/userBudget=20",
			`u1/availableIngredients=["egg"]`,
		}, saver.all())
	})

	t.Run("SnapshotAtSchedule", func(t *testing.T) {
		saver := &recordingSaver{}
		w := NewWriter(saver, time.Hour, zap.NewNop())

		items := []string{"egg"}
		w.Schedule("u1", KeyIngredients, items)
		items[0] = "milk"
		w.Flush(context.Background())

		assert.Equal(t, []string{`u1/availableIngredients=["egg"]`}, saver.all())
	})

	t.Run("CloseFlushesAndWritesThrough", func(t *testing.T) {
		saver := &recordingSaver{}
		w := NewWriter(saver, time.Hour, zap.NewNop())

		w.Schedule("u1", KeyBudget, 10)
		w.Close(context.Background())
		assert.Equal(t, []string{"u1/userBudget=10"}, saver.all())

		w.Schedule("u1", KeyBudget, 11)
		assert.Equal(t, []string{"u1/userBudget=10", "u1/userBudget=11"}, saver.all())
	})

	t.Run("FailuresAreLogged", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		saver := &recordingSaver{err: errors.New("quota exceeded")}
		w := NewWriter(saver, 0, zap.New(core))

		assert.NotPanics(t, func() { w.Schedule("u1", KeyBudget, 10) })

		entries := logs.FilterMessage("failed to persist state").All()
		require.Len(t, entries, 1)
		assert.Equal(t, "u1", entries[0].ContextMap()["user"])
		assert.Equal(t, "userBudget", entries[0].ContextMap()["key"])
	})

	t.Run("WritesToStateStore", func(t *testing.T) {
		store := newStateStore(t)
		w := NewWriter(store, time.Hour, zap.NewNop())

		w.Schedule("u1", KeySavedRecipes, []int{1, 2})
		w.Flush(context.Background())

		var ids []int
		ok, err := store.Load(context.Background(), "u1", KeySavedRecipes, &ids)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []int{1, 2}, ids)
	})
}
