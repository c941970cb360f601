package feed_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-graph-feed/internal/feed"
	"go-graph-feed/internal/model"
)

func obj(t *testing.T, s string) map[string]json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

func TestResolveType(t *testing.T) {
	cases := []struct {
		name     string
		json     string
		forced   model.PostType
		want     model.PostType
		reported string
	}{
		{"forced wins", `{"type":"link"}`, model.TypeStatus, model.TypeStatus, "link"},
		{"known kept verbatim", `{"type":"VIDEO"}`, "", model.PostType("VIDEO"), "VIDEO"},
		{"unknown falls back", `{"type":"story"}`, "", model.TypePost, "story"},
		{"missing falls back", `{"id":"1"}`, "", model.TypePost, ""},
		{"non-string falls back", `{"type":7}`, "", model.TypePost, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, reported := feed.ResolveType(obj(t, tc.json), tc.forced)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.reported, reported)
		})
	}
}

func TestDecodePost_Idempotent(t *testing.T) {
	raw := []byte(`{"id":"1","type":"Status","message":"m"}`)
	first, err := feed.DecodePost(raw, "")
	require.NoError(t, err)
	require.Equal(t, model.PostType("Status"), first.Base().Type)

	// 以解析出的类型再次编码并解码，类型保持不变
	again, err := json.Marshal(first)
	require.NoError(t, err)
	second, err := feed.DecodePost(again, "")
	require.NoError(t, err)
	assert.Equal(t, first.Base().Type, second.Base().Type)
	assert.IsType(t, first, second)
}

func TestDecodePost_Errors(t *testing.T) {
	cases := map[string]struct {
		raw    string
		forced model.PostType
		want   model.PostType
	}{
		"malformed":   {`{"id":`, model.TypeLink, model.TypeLink},
		"not object":  {`[1,2]`, "", model.TypePost},
		"null":        {`null`, "", model.TypePost},
		"missing id":  {`{"type":"video"}`, "", model.TypeVideo},
		"bad shares":  {`{"id":"1","shares":"many"}`, model.TypeStatus, model.TypeStatus},
		"bad objects": {`{"id":{"x":1}}`, "", model.TypePost},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := feed.DecodePost([]byte(tc.raw), tc.forced)
			var de *feed.DecodeError
			require.True(t, errors.As(err, &de), "got %v", err)
			assert.Equal(t, tc.want, de.Type)
			assert.NotNil(t, errors.Unwrap(err))
		})
	}
}

func TestParseConnection(t *testing.T) {
	c, err := feed.ParseConnection("checkins")
	require.NoError(t, err)
	assert.Equal(t, feed.ConnCheckins, c)
	_, err = feed.ParseConnection("photos")
	assert.Error(t, err)
}
