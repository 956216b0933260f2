package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClone(t *testing.T) {
	t.Parallel()

	p := Make([]byte("abc"))
	p.Anno[0] = 7
	q := p.Clone()
	q.Data()[0] = 'z'

	assert.Equal(t, "abc", string(p.Data()))
	assert.Equal(t, "zbc", string(q.Data()))
	assert.Equal(t, byte(7), q.Anno[0])
}

func TestDepth(t *testing.T) {
	t.Parallel()

	p := New(nil)
	require.Equal(t, 1, p.Enter())
	require.Equal(t, 2, p.Enter())
	assert.Equal(t, 2, p.Clone().Depth())
	p.ResetDepth()
	assert.Equal(t, 0, p.Depth())
}

func TestKill(t *testing.T) {
	t.Parallel()

	p := Make([]byte("x"))
	p.Kill()
	assert.True(t, p.Dead())
	assert.Zero(t, p.Len())
}

func TestTake(t *testing.T) {
	t.Parallel()

	p := Make([]byte("abcdef"))
	p.Take(2)
	assert.Equal(t, "abcd", string(p.Data()))
	p.Take(10)
	assert.Zero(t, p.Len())
}
