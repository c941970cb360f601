package feed_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-graph-feed/internal/graph"
	"go-graph-feed/internal/model"
)

func TestUpdateStatus_PostsMessageToMyFeed(t *testing.T) {
	tpl, srv := newTemplate(t)
	id, err := tpl.UpdateStatus(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "me_1", id)

	req := srv.LastRequest()
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "/v2.5/me/feed", req.Path)
	assert.Equal(t, "hello", req.Form.Get("message"))
	assert.Len(t, req.Form, 1)
}

func TestPost_ToOwner(t *testing.T) {
	tpl, srv := newTemplate(t)
	id, err := tpl.Post(context.Background(), "page1", "news")
	require.NoError(t, err)
	assert.Equal(t, "page1_1", id)
	assert.Equal(t, "/v2.5/page1/feed", srv.LastRequest().Path)
}

func TestPostLinkTo_OmitsUnsetFields(t *testing.T) {
	tpl, srv := newTemplate(t)
	_, err := tpl.PostLinkTo(context.Background(), "123", "look", model.Link{Link: "https://go.dev", Name: "Go"})
	require.NoError(t, err)

	form := srv.LastRequest().Form
	assert.Equal(t, "https://go.dev", form.Get("link"))
	assert.Equal(t, "Go", form.Get("name"))
	assert.Equal(t, "look", form.Get("message"))
	assert.False(t, form.Has("caption"))
	assert.False(t, form.Has("description"))
	assert.False(t, form.Has("picture"))
}

func TestPostLink_DefaultOwnerWithoutMessage(t *testing.T) {
	tpl, srv := newTemplate(t)
	_, err := tpl.PostLink(context.Background(), "", model.Link{Link: "https://go.dev", Caption: "go.dev", Description: "d"})
	require.NoError(t, err)
	req := srv.LastRequest()
	assert.Equal(t, "/v2.5/me/feed", req.Path)
	assert.False(t, req.Form.Has("message"))
	assert.Equal(t, "go.dev", req.Form.Get("caption"))
	assert.Equal(t, "d", req.Form.Get("description"))
}

func TestPublish_PostDataTargetAndParams(t *testing.T) {
	tpl, srv := newTemplate(t)
	at := time.Unix(1700000000, 0)
	data := model.NewPostData("page9").
		Message("launch").
		Link("https://go.dev", "", "Go", "", "").
		Tags("1", "2").
		Privacy("SELF").
		Published(false).
		ScheduledPublishTime(at).
		Param("og_action_type_id", "383634835006146")
	id, err := tpl.Publish(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, "page9_1", id)

	req := srv.LastRequest()
	assert.Equal(t, "/v2.5/page9/feed", req.Path)
	assert.Equal(t, "launch", req.Form.Get("message"))
	assert.Equal(t, "1,2", req.Form.Get("tags"))
	assert.JSONEq(t, `{"value":"SELF"}`, req.Form.Get("privacy"))
	assert.Equal(t, "false", req.Form.Get("published"))
	assert.Equal(t, "1700000000", req.Form.Get("scheduled_publish_time"))
	assert.Equal(t, "383634835006146", req.Form.Get("og_action_type_id"))
	assert.False(t, req.Form.Has("picture"))

	_, err = tpl.Publish(context.Background(), nil)
	assert.Error(t, err)
	_, err = tpl.Publish(context.Background(), model.NewPostData(""))
	assert.Error(t, err)
}

func TestDeletePost(t *testing.T) {
	tpl, srv := newTemplate(t)
	id, err := tpl.UpdateStatus(context.Background(), "bye")
	require.NoError(t, err)
	require.NoError(t, tpl.DeletePost(context.Background(), id))
	_, ok := srv.Object(id)
	assert.False(t, ok)
	assert.Equal(t, "DELETE", srv.LastRequest().Method)
}

func TestDeletePost_MissingSurfacesGraphError(t *testing.T) {
	tpl, _ := newTemplate(t)
	err := tpl.DeletePost(context.Background(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, graph.ErrNotFound)
	var ae *graph.APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, 100, ae.Code)
	assert.Equal(t, "delete", ae.Operation)
}

func TestWrites_Unauthorized(t *testing.T) {
	tpl, srv := newTemplate(t)
	srv.Token = "secret"
	_, err := tpl.UpdateStatus(context.Background(), "x")
	assert.True(t, graph.IsAuthError(err), "got %v", err)
}
