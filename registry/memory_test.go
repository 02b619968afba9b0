package registry

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()

	t.Run("lookup returns a copy", func(t *testing.T) {
		rec := newRecord(t, "svc-1")

		m, err := NewMemory(rec)
		require.NoError(t, err)

		got, err := m.Lookup(ctx, "svc-1")
		require.NoError(t, err)
		assert.Equal(t, rec, *got)

		got.Keys.Private = "mutated"

		again, err := m.Lookup(ctx, "svc-1")
		require.NoError(t, err)
		assert.Equal(t, rec.Keys.Private, again.Keys.Private)
	})

	t.Run("unknown identity", func(t *testing.T) {
		m, err := NewMemory()
		require.NoError(t, err)

		_, err = m.Lookup(ctx, "nobody")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("invalid identity", func(t *testing.T) {
		m, err := NewMemory()
		require.NoError(t, err)

		_, err = m.Lookup(ctx, "bad\nid")
		assert.ErrorIs(t, err, ErrInvalidIdentity)
	})

	t.Run("zero value is usable", func(t *testing.T) {
		var m Memory

		_, err := m.Lookup(ctx, "svc-1")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Empty(t, m.List())

		require.NoError(t, m.Put(newRecord(t, "svc-1")))

		_, err = m.Lookup(ctx, "svc-1")
		assert.NoError(t, err)
	})

	t.Run("put and delete", func(t *testing.T) {
		m, err := NewMemory()
		require.NoError(t, err)

		require.NoError(t, m.Put(newRecord(t, "svc-1")))
		assert.ErrorIs(t, m.Put(ServiceRecord{ID: "broken"}), ErrInvalidRecord)

		assert.True(t, m.Delete("svc-1"))
		assert.False(t, m.Delete("svc-1"))

		_, err = m.Lookup(ctx, "svc-1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("replace is all or nothing", func(t *testing.T) {
		m, err := NewMemory(newRecord(t, "svc-1"))
		require.NoError(t, err)

		err = m.Replace([]ServiceRecord{newRecord(t, "svc-2"), {ID: "broken"}})
		assert.ErrorIs(t, err, ErrInvalidRecord)

		_, err = m.Lookup(ctx, "svc-1")
		assert.NoError(t, err)
	})

	t.Run("duplicate identities rejected", func(t *testing.T) {
		_, err := NewMemory(newRecord(t, "svc-1"), newRecord(t, "svc-1"))
		assert.ErrorIs(t, err, ErrDuplicateIdentity)
	})

	t.Run("list is sorted", func(t *testing.T) {
		m, err := NewMemory(newRecord(t, "c"), newRecord(t, "a"), newRecord(t, "b"))
		require.NoError(t, err)

		var ids []string
		for _, rec := range m.List() {
			ids = append(ids, rec.ID)
		}

		assert.Equal(t, []string{"a", "b", "c"}, ids)
	})

	t.Run("concurrent lookups and updates", func(t *testing.T) {
		m, err := NewMemory(newRecord(t, "svc-0"))
		require.NoError(t, err)

		records := make([]ServiceRecord, 20)
		for i := range records {
			records[i] = newRecord(t, fmt.Sprintf("svc-%d", i+1))
		}

		var wg sync.WaitGroup

		for _, rec := range records {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, m.Put(rec))
			}()
		}

		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := m.Lookup(ctx, "svc-0")
				assert.NoError(t, err)
			}()
		}

		wg.Wait()

		assert.Len(t, m.List(), len(records)+1)
	})
}
