package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exercise runs the behaviour every backend must share.
func exercise(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "quiz:1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "quiz:1", []byte(`{"id":"1"}`), time.Minute))
	require.NoError(t, c.Set(ctx, "quizzes:p0", []byte(`[]`), time.Minute))
	require.NoError(t, c.Set(ctx, "quizzes:p1", []byte(`[]`), time.Minute))
	require.NoError(t, c.Set(ctx, "questions:1", []byte(`[]`), time.Minute))

	v, ok, err := c.Get(ctx, "quiz:1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"id":"1"}`, string(v))

	require.NoError(t, c.DeletePrefix(ctx, "quizzes:"))
	for _, k := range []string{"quizzes:p0", "quizzes:p1"} {
		_, ok, _ := c.Get(ctx, k)
		assert.False(t, ok, k)
	}
	_, ok, _ = c.Get(ctx, "questions:1")
	assert.True(t, ok, "other prefixes survive")

	require.NoError(t, c.Delete(ctx, "quiz:1", "questions:1", "missing"))
	_, ok, _ = c.Get(ctx, "quiz:1")
	assert.False(t, ok)
}

func TestMemory(t *testing.T) {
	exercise(t, NewMemory())
}

func TestMemory_TTL(t *testing.T) {
	m := NewMemory()
	now := time.Unix(1000, 0)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 10*time.Second))
	require.NoError(t, m.Set(ctx, "forever", []byte("v"), 0))

	now = now.Add(9 * time.Second)
	_, ok, _ := m.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok)
	_, ok, _ = m.Get(ctx, "forever")
	assert.True(t, ok)
	assert.Equal(t, 1, m.Len())
}

func TestMemory_ValuesAreCopied(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	buf := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", buf, 0))
	buf[0] = 'x'
	v, _, _ := m.Get(ctx, "k")
	assert.Equal(t, "abc", string(v))
}

func TestNone(t *testing.T) {
	ctx := context.Background()
	var c Cache = None{}
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	c, err := New(ctx, Options{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)

	c, err = New(ctx, Options{Driver: "none"})
	require.NoError(t, err)
	assert.IsType(t, None{}, c)

	_, err = New(ctx, Options{Driver: "memcached"})
	assert.Error(t, err)
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `quizzes:\*a\?`, escapeGlob("quizzes:*a?"))
}
