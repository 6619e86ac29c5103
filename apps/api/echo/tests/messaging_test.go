package tests

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/clubhouse/core/messaging"
)

func (f *fixture) sendMessage(t *testing.T, from string, body string) {
	t.Helper()
	token, payload := f.token(t, f.coach), messaging.NewMessage{TeamID: f.team.ID, ParentID: f.parent.ID, Body: body}
	if from == messaging.SenderParent {
		token, payload = f.token(t, f.parent), messaging.NewMessage{TeamID: f.team.ID, CoachID: f.coach.ID, Body: body}
	}
	rec := f.do(http.MethodPost, "/v1/messages", token, marshalObj(t, payload))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestMessagingAPI_Send(t *testing.T) {
	f := setup(t)

	tests := []httpTest{
		{name: "admin is forbidden", method: http.MethodPost, path: "/v1/messages", token: f.token(t, f.admin),
			body: marshalObj(t, messaging.NewMessage{TeamID: f.team.ID, CoachID: f.coach.ID, ParentID: f.parent.ID, Body: "hi"}),
			wantCode: http.StatusForbidden},
		{name: "empty body", method: http.MethodPost, path: "/v1/messages", token: f.token(t, f.coach),
			body:     marshalObj(t, messaging.NewMessage{TeamID: f.team.ID, ParentID: f.parent.ID, Body: "  "}),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"body":"body is a required field"}`)},
		{name: "parent writing to the wrong coach", method: http.MethodPost, path: "/v1/messages", token: f.token(t, f.parent),
			body:     marshalObj(t, messaging.NewMessage{TeamID: f.team.ID, CoachID: f.admin.ID, Body: "hi"}),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"coach_id":"coach does not train this team"}`)},
		{name: "parent without a student on the team", method: http.MethodPost, path: "/v1/messages", token: f.token(t, f.stranger),
			body:     marshalObj(t, messaging.NewMessage{TeamID: f.team.ID, CoachID: f.coach.ID, Body: "hi"}),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"team_id":"parent has no student on this team"}`)},
		{name: "coach writing to a parent of another team", method: http.MethodPost, path: "/v1/messages", token: f.token(t, f.coach),
			body:     marshalObj(t, messaging.NewMessage{TeamID: f.team.ID, ParentID: f.stranger.ID, Body: "hi"}),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"parent_id":"parent has no student on this team"}`)},
	}
	runHTTPTests(t, f, tests)

	f.sendMessage(t, messaging.SenderCoach, "Practice moved to 6pm")
	f.sendMessage(t, messaging.SenderParent, "Thanks coach!")

	// both sides see the same conversation
	for _, token := range []string{
		f.token(t, f.parent),
		f.token(t, f.coach),
	} {
		path := "/v1/messages?team_id=" + f.team.ID + "&coach_id=" + f.coach.ID + "&parent_id=" + f.parent.ID
		rec := f.do(http.MethodGet, path, token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var msgs []messaging.Message
		unmarshal(t, rec, &msgs)
		require.Len(t, msgs, 2)
		assert.Equal(t, messaging.SenderCoach, msgs[0].SenderRole)
		assert.Equal(t, messaging.SenderParent, msgs[1].SenderRole)
	}

	// another parent cannot read it
	rec := f.do(http.MethodGet, "/v1/messages?team_id="+f.team.ID+"&coach_id="+f.coach.ID+"&parent_id="+f.parent.ID, f.token(t, f.stranger))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestNotificationAPI_Unread(t *testing.T) {
	f := setup(t)
	token := f.token(t, f.parent)

	rec := f.do(http.MethodGet, "/v1/notifications/unread", token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"conversations":[],"total":0,"badge":0}`, rec.Body.String())

	f.sendMessage(t, messaging.SenderCoach, "Bring water")
	f.sendMessage(t, messaging.SenderCoach, "And sunscreen")
	f.sendMessage(t, messaging.SenderParent, "Will do")

	want := `{"conversations":[{"team_id":"` + f.team.ID + `","coach_id":"` + f.coach.ID + `","count":2}],"total":2,"badge":%s}`
	tests := []httpTest{
		{name: "badge shown", method: http.MethodGet, path: "/v1/notifications/unread", token: token,
			wantCode: http.StatusOK, wantData: []byte(strings.Replace(want, "%s", "2", 1))},
		{name: "badge hidden while viewing", method: http.MethodGet, path: "/v1/notifications/unread?viewing=true", token: token,
			wantCode: http.StatusOK, wantData: []byte(strings.Replace(want, "%s", "0", 1))},
		{name: "bad viewing flag", method: http.MethodGet, path: "/v1/notifications/unread?viewing=maybe", token: token,
			wantCode: http.StatusBadRequest, wantData: []byte(`{"viewing":"must be true or false"}`)},
		{name: "coach is forbidden", method: http.MethodGet, path: "/v1/notifications/unread", token: f.token(t, f.coach),
			wantCode: http.StatusForbidden},
	}
	runHTTPTests(t, f, tests)

	readReq := marshalObj(t, map[string]string{"team_id": f.team.ID, "coach_id": f.coach.ID})
	rec = f.do(http.MethodPost, "/v1/messages/read", token, readReq)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"marked":2}`, rec.Body.String())

	rec = f.do(http.MethodPost, "/v1/messages/read", token, readReq)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"marked":0}`, rec.Body.String())

	rec = f.do(http.MethodGet, "/v1/notifications/unread", token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"conversations":[],"total":0,"badge":0}`, rec.Body.String())
}

func TestNotificationAPI_Stream(t *testing.T) {
	f := setup(t)
	srv := httptest.NewServer(f.app)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/notifications/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+f.token(t, f.parent))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan string, 4)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := scanner.Text(); strings.HasPrefix(line, "data: ") {
				events <- strings.TrimPrefix(line, "data: ")
			}
		}
		close(events)
	}()

	next := func() string {
		select {
		case e, ok := <-events:
			require.True(t, ok, "stream closed")
			return e
		case <-ctx.Done():
			t.Fatal("timed out waiting for an event")
			return ""
		}
	}

	assert.JSONEq(t, `{"conversations":[],"total":0,"badge":0}`, next())

	require.Eventually(t, func() bool { return f.bus.Subscribers() > 0 }, time.Second, 10*time.Millisecond)
	f.sendMessage(t, messaging.SenderCoach, "Game on Saturday")
	assert.Contains(t, next(), `"total":1`)
}
