package switchboard

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadata(t *testing.T) {
	m := NewMetadata()

	m.Set(" Profile ", "ada")
	v, ok := m.Get("profile")
	require.True(t, ok)
	assert.Equal(t, "ada", v)
	assert.True(t, m.Exists("PROFILE"))

	m.Set("body", 1)
	assert.Equal(t, []string{"body", "profile"}, m.Keys())

	assert.True(t, m.Remove("Body"))
	assert.False(t, m.Remove("body"))
	assert.False(t, m.Exists("body"))
}

func TestMetadata_SetOrMerge(t *testing.T) {
	m := NewMetadata()

	m.SetOrMerge("claims", map[string]any{"sub": "1", "role": "user"})
	m.SetOrMerge("Claims", map[string]any{"role": "admin", "org": "x"})

	v, _ := m.Get("claims")
	assert.Equal(t, map[string]any{"sub": "1", "role": "admin", "org": "x"}, v)

	m.Set("scalar", 1)
	m.SetOrMerge("scalar", map[string]any{"a": 1})
	v, _ = m.Get("scalar")
	assert.Equal(t, map[string]any{"a": 1}, v)
}

func TestKey(t *testing.T) {
	type profile struct{ Name string }
	key := Key[profile]("profile")
	m := NewMetadata()

	_, ok := key.Get(m)
	assert.False(t, ok)

	key.Set(m, profile{Name: "Ada"})
	p, ok := key.Get(m)
	require.True(t, ok)
	assert.Equal(t, "Ada", p.Name)

	m.Set("profile", "not a profile")
	_, ok = key.Get(m)
	assert.False(t, ok, "wrong type is absent")
	assert.True(t, key.Exists(m))
}

func TestMetadata_ConcurrentUse(t *testing.T) {
	m := NewMetadata()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Set("k", i)
			m.Get("k")
			m.SetOrMerge("merged", map[string]any{"n": i})
		}()
	}
	wg.Wait()
	assert.True(t, m.Exists("k"))
}
