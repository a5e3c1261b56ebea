package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bluefodor88/activeportland-11.16.25/models"
	"github.com/bluefodor88/activeportland-11.16.25/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedForumMessage(t *testing.T, gw *memoryGateway, activityID, userID uint, body string, replyTo *uint) {
	t.Helper()
	require.NoError(t, gw.InsertForumMessage(context.Background(), NewForumMessage{
		ActivityID: activityID,
		UserID:     userID,
		Message:    body,
		ReplyToID:  replyTo,
	}))
}

func TestForumSetActivityLoadsNewestFirst(t *testing.T) {
	gw := newMemoryGateway()
	gw.addProfile(ProfileRow{ID: 1, Name: "Ana"})
	gw.addProfile(ProfileRow{ID: 2, Name: "Ben"})

	base := time.Date(2025, 11, 1, 10, 0, 0, 0, time.UTC)
	tick := 0
	gw.clock = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Minute) }

	seedForumMessage(t, gw, 7, 1, "first", nil)
	seedForumMessage(t, gw, 7, 2, "second", nil)
	seedForumMessage(t, gw, 9, 1, "other activity", nil)

	sync := NewForumSynchronizer(gw, 1, state.NewSelectedActivityStore())
	defer sync.Stop()
	require.NoError(t, sync.SetActivity(context.Background(), 7))

	messages := sync.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "second", messages[0].Message)
	assert.Equal(t, "first", messages[1].Message)
	assert.False(t, sync.Loading())
}

func TestForumSetActivityZeroClears(t *testing.T) {
	gw := newMemoryGateway()
	gw.addProfile(ProfileRow{ID: 1, Name: "Ana"})
	seedForumMessage(t, gw, 7, 1, "hello", nil)

	sync := NewForumSynchronizer(gw, 1, state.NewSelectedActivityStore())
	defer sync.Stop()
	require.NoError(t, sync.SetActivity(context.Background(), 7))
	require.NotEmpty(t, sync.Messages())

	require.NoError(t, sync.SetActivity(context.Background(), 0))
	assert.Empty(t, sync.Messages())
	assert.False(t, sync.Loading())
	assert.NoError(t, sync.LastErr())
}

// gatedGateway stalls queries for one activity until released, to force an
// overlap between an in-flight fetch and a newer one
type gatedGateway struct {
	*memoryGateway
	gatedActivity uint
	started       chan struct{}
	gate          chan struct{}
}

func (g *gatedGateway) QueryForumMessages(ctx context.Context, activityID uint) ([]ForumMessageRow, error) {
	if activityID == g.gatedActivity {
		g.started <- struct{}{}
		<-g.gate
	}
	return g.memoryGateway.QueryForumMessages(ctx, activityID)
}

func TestForumStaleFetchResultDiscarded(t *testing.T) {
	mem := newMemoryGateway()
	mem.addProfile(ProfileRow{ID: 1, Name: "Ana"})
	seedForumMessage(t, mem, 7, 1, "climbing talk", nil)
	seedForumMessage(t, mem, 9, 1, "tennis talk", nil)

	gw := &gatedGateway{
		memoryGateway: mem,
		gatedActivity: 7,
		started:       make(chan struct{}, 1),
		gate:          make(chan struct{}),
	}
	sync := NewForumSynchronizer(gw, 1, state.NewSelectedActivityStore())
	defer sync.Stop()

	// Switch to 7; its fetch stalls in flight
	done := make(chan error, 1)
	go func() { done <- sync.SetActivity(context.Background(), 7) }()
	<-gw.started

	// Switch to 9 while the old fetch is still pending
	require.NoError(t, sync.SetActivity(context.Background(), 9))
	messages := sync.Messages()
	require.Len(t, messages, 1)
	require.Equal(t, "tennis talk", messages[0].Message)

	// Release the stale fetch; its result must be discarded
	close(gw.gate)
	require.NoError(t, <-done)

	messages = sync.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "tennis talk", messages[0].Message, "stale fetch for the old activity must never land")
}

func TestForumFetchErrorKeepsPreviousList(t *testing.T) {
	gw := newMemoryGateway()
	gw.addProfile(ProfileRow{ID: 1, Name: "Ana"})
	seedForumMessage(t, gw, 7, 1, "still here", nil)

	sync := NewForumSynchronizer(gw, 1, state.NewSelectedActivityStore())
	defer sync.Stop()
	require.NoError(t, sync.SetActivity(context.Background(), 7))
	require.Len(t, sync.Messages(), 1)

	boom := errors.New("connection reset")
	gw.mu.Lock()
	gw.failQueryForum = boom
	gw.mu.Unlock()

	err := sync.Fetch(context.Background(), true)
	require.ErrorIs(t, err, boom)
	assert.Len(t, sync.Messages(), 1, "transient error must not blank the feed")
	assert.ErrorIs(t, sync.LastErr(), boom)
	assert.False(t, sync.Loading())
}

func TestForumSendValidation(t *testing.T) {
	gw := newMemoryGateway()
	gw.addProfile(ProfileRow{ID: 1, Name: "Ana"})

	sync := NewForumSynchronizer(gw, 1, state.NewSelectedActivityStore())
	defer sync.Stop()
	require.NoError(t, sync.SetActivity(context.Background(), 7))

	assert.False(t, sync.Send(context.Background(), "   ", nil, nil), "whitespace-only body rejected")
	assert.False(t, sync.Send(context.Background(), strings.Repeat("x", MaxMessageLength+1), nil, nil), "over-length body rejected")
	assert.Empty(t, sync.Messages())

	assert.True(t, sync.Send(context.Background(), "", nil, []string{"base64data"}), "image-only message is valid")
	messages := sync.Messages()
	require.Len(t, messages, 1)
	assert.Empty(t, messages[0].Message)
	require.Len(t, messages[0].ImageURLs, 1)
}

func TestForumSendDropsFailedUploads(t *testing.T) {
	gw := newMemoryGateway()
	gw.addProfile(ProfileRow{ID: 1, Name: "Ana"})
	gw.failUpload = errors.New("blob store down")

	sync := NewForumSynchronizer(gw, 1, state.NewSelectedActivityStore())
	defer sync.Stop()
	require.NoError(t, sync.SetActivity(context.Background(), 7))

	assert.True(t, sync.Send(context.Background(), "text survives", nil, []string{"img1", "img2"}))
	messages := sync.Messages()
	require.Len(t, messages, 1)
	assert.Empty(t, messages[0].ImageURLs)
}

func TestForumReplyResolution(t *testing.T) {
	gw := newMemoryGateway()
	gw.addProfile(ProfileRow{ID: 1, Name: "Ana"})
	gw.addProfile(ProfileRow{ID: 2, Name: "Ben"})

	seedForumMessage(t, gw, 7, 2, "anyone up for a ride?", nil)
	targetID := gw.forum[0].ID
	seedForumMessage(t, gw, 7, 1, "count me in", &targetID)

	missing := uint(9999)
	seedForumMessage(t, gw, 7, 1, "replying to nothing", &missing)

	sync := NewForumSynchronizer(gw, 1, state.NewSelectedActivityStore())
	defer sync.Stop()
	require.NoError(t, sync.SetActivity(context.Background(), 7))

	messages := sync.Messages() // newest-first
	require.Len(t, messages, 3)

	require.NotNil(t, messages[0].Reply)
	assert.Equal(t, "Unknown", messages[0].Reply.AuthorName)

	require.NotNil(t, messages[1].Reply)
	assert.Equal(t, "Ben", messages[1].Reply.AuthorName)
	assert.Equal(t, "anyone up for a ride?", messages[1].Reply.Message)

	assert.Nil(t, messages[2].Reply)
}

func TestForumSkillBadges(t *testing.T) {
	gw := newMemoryGateway()
	gw.addProfile(ProfileRow{ID: 1, Name: "Ana"})
	gw.addProfile(ProfileRow{ID: 2, Name: "Ben"})
	gw.addProfile(ProfileRow{ID: 3, Name: "Cam"})
	require.NoError(t, gw.UpsertSkill(context.Background(), SkillRow{UserID: 2, ActivityID: 7, SkillLevel: models.SkillAdvanced}))

	seedForumMessage(t, gw, 7, 1, "mine", nil)
	seedForumMessage(t, gw, 7, 2, "from ben", nil)
	seedForumMessage(t, gw, 7, 3, "from cam", nil)

	selected := state.NewSelectedActivityStore()
	selected.Set(state.SelectedActivity{ActivityID: 7, Name: "Climbing", SkillLevel: models.SkillBeginner})

	sync := NewForumSynchronizer(gw, 1, selected)
	defer sync.Stop()
	require.NoError(t, sync.SetActivity(context.Background(), 7))

	badges := make(map[uint]string)
	for _, m := range sync.Messages() {
		badges[m.AuthorID] = m.SkillBadge
	}
	assert.Equal(t, models.SkillBeginner, badges[1], "viewer's own badge comes from the selected-activity store")
	assert.Equal(t, models.SkillAdvanced, badges[2], "other authors use their joined skill row")
	assert.Equal(t, models.SkillIntermediate, badges[3], "missing skill row defaults to Intermediate")
}

func TestForumChangeEventTriggersRefetch(t *testing.T) {
	gw := newMemoryGateway()
	gw.addProfile(ProfileRow{ID: 1, Name: "Ana"})
	gw.addProfile(ProfileRow{ID: 2, Name: "Ben"})

	sync := NewForumSynchronizer(gw, 1, state.NewSelectedActivityStore())
	defer sync.Stop()
	require.NoError(t, sync.SetActivity(context.Background(), 7))
	require.Empty(t, sync.Messages())

	// Another user posts; the insert publishes on the activity's channel
	seedForumMessage(t, gw, 7, 2, "just landed", nil)

	require.Eventually(t, func() bool {
		messages := sync.Messages()
		return len(messages) == 1 && messages[0].Message == "just landed"
	}, time.Second, 10*time.Millisecond)
}

func TestForumStopBlocksLateResults(t *testing.T) {
	gw := newMemoryGateway()
	gw.addProfile(ProfileRow{ID: 1, Name: "Ana"})
	seedForumMessage(t, gw, 7, 1, "before stop", nil)

	sync := NewForumSynchronizer(gw, 1, state.NewSelectedActivityStore())
	require.NoError(t, sync.SetActivity(context.Background(), 7))
	sync.Stop()

	seedForumMessage(t, gw, 7, 1, "after stop", nil)
	require.NoError(t, sync.Fetch(context.Background(), false))
	assert.Len(t, sync.Messages(), 1, "no mutation after Stop")
}
