package record

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetaFrom(t *testing.T) {
	t.Run("nil is dropped", func(t *testing.T) {
		_, ok := MetaFrom(nil)
		assert.False(t, ok)
	})

	t.Run("string becomes a scalar", func(t *testing.T) {
		v, ok := MetaFrom("hello")
		require.True(t, ok)
		assert.Equal(t, MetaScalar, v.Kind)
		assert.Equal(t, []string{"hello"}, v.Rows())
	})

	t.Run("slice becomes a list", func(t *testing.T) {
		v, ok := MetaFrom([]interface{}{"a", "b", float64(3)})
		require.True(t, ok)
		assert.Equal(t, MetaList, v.Kind)
		assert.Equal(t, []string{"a", "b", "3"}, v.Rows())
	})

	t.Run("map becomes one json scalar", func(t *testing.T) {
		v, ok := MetaFrom(map[string]interface{}{"old": "draft", "new": "publish"})
		require.True(t, ok)
		require.Equal(t, MetaScalar, v.Kind)
		require.Len(t, v.Rows(), 1)

		var decoded map[string]string
		require.NoError(t, v.DecodeJSON(&decoded))
		assert.Equal(t, map[string]string{"old": "draft", "new": "publish"}, decoded)
	})

	t.Run("integral float keeps its integer form", func(t *testing.T) {
		v, _ := MetaFrom(float64(42))
		assert.Equal(t, "42", v.Scalar)

		v, _ = MetaFrom(float64(2.5))
		assert.Equal(t, "2.5", v.Scalar)
	})
}

func TestMetaValue_JSON(t *testing.T) {
	t.Run("scalar marshals as a string", func(t *testing.T) {
		data, err := json.Marshal(MetaString("publish"))
		require.NoError(t, err)
		assert.JSONEq(t, `"publish"`, string(data))
	})

	t.Run("list marshals as an array", func(t *testing.T) {
		data, err := json.Marshal(MetaStrings("a", "b"))
		require.NoError(t, err)
		assert.JSONEq(t, `["a","b"]`, string(data))
	})

	t.Run("round trip preserves the kind", func(t *testing.T) {
		for _, original := range []MetaValue{MetaString("x"), MetaStrings("a", "b")} {
			data, err := json.Marshal(original)
			require.NoError(t, err)

			var restored MetaValue
			require.NoError(t, json.Unmarshal(data, &restored))
			assert.Equal(t, original.Kind, restored.Kind)
			assert.Equal(t, original.Rows(), restored.Rows())
		}
	})
}

func TestGroupMeta(t *testing.T) {
	meta := groupMeta(map[string][]string{
		"status": {"publish"},
		"tags":   {"go", "audit", "stream"},
	})

	require.Len(t, meta, 2)
	assert.Equal(t, MetaScalar, meta["status"].Kind)
	assert.Equal(t, "publish", meta["status"].Scalar)

	assert.Equal(t, MetaList, meta["tags"].Kind)
	assert.Equal(t, []string{"go", "audit", "stream"}, meta["tags"].List)
}

func TestGroupMeta_SingleElementListReadsBackAsScalar(t *testing.T) {
	meta := groupMeta(map[string][]string{"tags": {"solo"}})
	assert.Equal(t, MetaScalar, meta["tags"].Kind)
	assert.Equal(t, []string{"solo"}, meta["tags"].Rows())
}

func TestTime_Format(t *testing.T) {
	ts := Time{time.Date(2026, 3, 15, 9, 30, 45, 123000000, time.UTC)}

	data, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2026-03-15T09:30:45.123Z"`, string(data))

	var restored Time
	require.NoError(t, json.Unmarshal(data, &restored))
	assert.True(t, restored.Equal(ts.Time))
}

func TestTime_SortableOrder(t *testing.T) {
	// millisecond zero-padding keeps lexical order equal to chronological
	earlier := Time{time.Date(2026, 3, 15, 9, 30, 45, 9000000, time.UTC)}
	later := Time{time.Date(2026, 3, 15, 9, 30, 45, 100000000, time.UTC)}

	a := earlier.UTC().Format(TimeFormat)
	b := later.UTC().Format(TimeFormat)
	assert.Less(t, a, b)
}
