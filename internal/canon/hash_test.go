package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestStable(t *testing.T) {
	a := map[string]any{"tick": int64(3), "machines": map[string]map[string]float64{"x": {"v": 1.5}}}
	b := map[string]any{"machines": map[string]map[string]float64{"x": {"v": 1.5}}, "tick": int64(3)}

	da, err := Digest(DomainState, a)
	require.NoError(t, err)
	db, err := Digest(DomainState, b)
	require.NoError(t, err)

	assert.Equal(t, da, db)
	assert.Len(t, da, 64)
}

func TestDigestDomainSeparation(t *testing.T) {
	v := map[string]float64{"a": 1}
	assert.NotEqual(t, MustDigest(DomainState, v), MustDigest(DomainTuning, v))
}

func TestDigestDetectsChange(t *testing.T) {
	a := MustDigest(DomainState, map[string]float64{"a": 1})
	b := MustDigest(DomainState, map[string]float64{"a": 1.0000000001})
	assert.NotEqual(t, a, b)
}

func TestDigestBytesMatchesDigest(t *testing.T) {
	v := map[string]float64{"a": 1}
	data, err := MarshalCanonical(v)
	require.NoError(t, err)
	assert.Equal(t, MustDigest(DomainState, v), DigestBytes(DomainState, data))
}

func TestDigestError(t *testing.T) {
	_, err := Digest(DomainState, nil)
	assert.Error(t, err)
	assert.Panics(t, func() { MustDigest(DomainState, nil) })
}
