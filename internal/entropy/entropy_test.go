package entropy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeededIsDeterministic(t *testing.T) {
	a := NewSeeded(7)
	b := NewSeeded(7)
	for i := 0; i < 20; i++ {
		assert.Equal(t, a.Float64(), b.Float64())
		assert.Equal(t, a.Intn(10), b.Intn(10))
	}
}

func TestUniformBounds(t *testing.T) {
	src := NewSeeded(1)
	for i := 0; i < 1000; i++ {
		v := Uniform(src, 0.05, 0.25)
		require.GreaterOrEqual(t, v, 0.05)
		require.Less(t, v, 0.25)
	}
}

func TestScriptedCycles(t *testing.T) {
	s := NewScripted(0.1, 0.9)
	assert.Equal(t, 0.1, s.Float64())
	assert.Equal(t, 0.9, s.Float64())
	assert.Equal(t, 0.1, s.Float64())
	assert.Equal(t, 9, s.Intn(10))

	assert.Zero(t, NewScripted().Float64())
}

func TestIntnNeverReachesN(t *testing.T) {
	assert.Equal(t, 4, intnFromFloat(0.999999999, 5))
	assert.Equal(t, 0, intnFromFloat(0, 5))
}

func TestSampleDistinct(t *testing.T) {
	src := NewSeeded(3)
	items := []string{"a", "b", "c", "d", "e"}

	got := Sample(src, items, 3)
	require.Len(t, got, 3)
	seen := map[string]bool{}
	for _, g := range got {
		assert.False(t, seen[g], "duplicate %q", g)
		seen[g] = true
	}

	assert.Len(t, Sample(src, items, 10), 5)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, items)
}

func TestBetweenInclusive(t *testing.T) {
	src := NewScripted(0, 0.9999)
	assert.Equal(t, 3, Between(src, 3, 6))
	assert.Equal(t, 6, Between(src, 3, 6))
}

func TestCryptoBounds(t *testing.T) {
	var c Crypto
	for i := 0; i < 100; i++ {
		v := c.Float64()
		require.GreaterOrEqual(t, v, 0.0)
		require.Less(t, v, 1.0)
		require.Less(t, c.Intn(3), 3)
	}
}

func TestNilPoolFallsBack(t *testing.T) {
	var p *Pool
	assert.Nil(t, NewPool(""))
	assert.False(t, p.Enabled())
	v := p.Float64()
	assert.GreaterOrEqual(t, v, 0.0)
	assert.Less(t, v, 1.0)
}

func TestPoolRefillsFromAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data := make([]float64, 20)
		for i := range data {
			data[i] = 0.25
		}
		resp := map[string]any{
			"result": map[string]any{
				"random": map[string]any{"data": data},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := NewPool("key")
	p.endpoint = srv.URL

	assert.True(t, p.Enabled())
	assert.Equal(t, 0.25, p.Float64())
	assert.Equal(t, 1, p.Intn(4))
}

func TestPoolAPIErrorFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
	}))
	defer srv.Close()

	p := NewPool("key")
	p.endpoint = srv.URL

	v := p.Float64()
	assert.GreaterOrEqual(t, v, 0.0)
	assert.Less(t, v, 1.0)
}
