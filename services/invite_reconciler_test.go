package services

import (
	"context"
	"testing"
	"time"

	"github.com/bluefodor88/activeportland-11.16.25/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUrgencyBuckets(t *testing.T) {
	now := time.Date(2025, 11, 2, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		until time.Duration
		level UrgencyLevel
	}{
		{"exactly now", 0, UrgencyPassed},
		{"already started", -10 * time.Minute, UrgencyPassed},
		{"one minute out", time.Minute, UrgencyWithinHour},
		{"59 minutes out", 59 * time.Minute, UrgencyWithinHour},
		{"exactly an hour", 60 * time.Minute, UrgencyAboutAnHour},
		{"61 minutes out", 61 * time.Minute, UrgencyLaterToday},
		{"23h59m out", 24*time.Hour - time.Minute, UrgencyLaterToday},
		{"exactly a day", 24 * time.Hour, UrgencyDaysAway},
		{"25 hours out", 25 * time.Hour, UrgencyDaysAway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := UrgencyFor(now, now.Add(tc.until))
			assert.Equal(t, tc.level, got.Level)
		})
	}
}

func TestUrgencyDays(t *testing.T) {
	now := time.Date(2025, 11, 2, 12, 0, 0, 0, time.UTC)

	oneDay := UrgencyFor(now, now.Add(25*time.Hour))
	assert.Equal(t, 1, oneDay.Days)
	assert.Equal(t, "In 1 day", oneDay.Label())

	threeDays := UrgencyFor(now, now.Add(72*time.Hour))
	assert.Equal(t, 3, threeDays.Days)
	assert.Equal(t, "In 3 days", threeDays.Label())
}

func TestMergedFeedChronology(t *testing.T) {
	now := time.Date(2025, 11, 2, 12, 0, 0, 0, time.Local)

	messages := []ChatMessageRow{
		{ID: 1, Message: "early", CreatedAt: now.Add(-3 * time.Hour)},
		{ID: 2, Message: "late", CreatedAt: now.Add(-30 * time.Minute)},
	}
	pending := []InviteRow{
		{ID: 3, Location: "Park", Status: models.InvitePending, CreatedAt: now.Add(-2 * time.Hour)},
	}
	accepted := []InviteRow{
		{
			ID: 4, Location: "Cafe", Status: models.InviteAccepted,
			EventDate: now.Add(2 * time.Hour).Format("2006-01-02"),
			EventTime: now.Add(2 * time.Hour).Format("15:04"),
			CreatedAt: now.Add(-4 * time.Hour),
		},
	}

	feed := MergedFeed(now, messages, pending, accepted)
	require.Len(t, feed, 4)

	// Messages and pending invites sort on creation time; the accepted meetup
	// sorts on its event time, pushing it to the end here
	assert.Equal(t, FeedKindMessage, feed[0].Kind)
	assert.Equal(t, "early", feed[0].Message.Message)
	assert.Equal(t, FeedKindInvite, feed[1].Kind)
	assert.Equal(t, FeedKindMessage, feed[2].Kind)
	assert.Equal(t, FeedKindAcceptedMeeting, feed[3].Kind)
	assert.Equal(t, "Cafe", feed[3].Invite.Location)
}

func TestMergedFeedDropsPastAndBadMeetups(t *testing.T) {
	now := time.Date(2025, 11, 2, 12, 0, 0, 0, time.Local)

	accepted := []InviteRow{
		{ID: 1, EventDate: now.Add(-time.Hour).Format("2006-01-02"), EventTime: now.Add(-time.Hour).Format("15:04")},
		{ID: 2, EventDate: "not-a-date", EventTime: "99:99"},
		{ID: 3, Location: "Trailhead", EventDate: now.Add(time.Hour).Format("2006-01-02"), EventTime: now.Add(time.Hour).Format("15:04")},
	}

	feed := MergedFeed(now, nil, nil, accepted)
	require.Len(t, feed, 1)
	assert.Equal(t, "Trailhead", feed[0].Invite.Location)
}

func TestRespondIsOneShot(t *testing.T) {
	gw := newMemoryGateway()
	reconciler := NewInviteReconciler(gw)

	invite, err := reconciler.SendInvite(context.Background(), NewInvite{
		ChatID: 1, SenderID: 1, RecipientID: 2,
		Location: "Courts", EventDate: "2025-11-10", EventTime: "18:00",
	})
	require.NoError(t, err)
	require.Equal(t, models.InvitePending, invite.Status)

	require.NoError(t, reconciler.Respond(context.Background(), invite.ID, true))

	accepted, err := gw.QueryAcceptedInvites(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	require.NotNil(t, accepted[0].RespondedAt)

	// A second response, even a different one, changes nothing
	err = reconciler.Respond(context.Background(), invite.ID, false)
	require.ErrorIs(t, err, ErrAlreadyResponded)

	accepted, err = gw.QueryAcceptedInvites(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, accepted, 1)
}

func TestFeedFetchesAllCollections(t *testing.T) {
	gw := newMemoryGateway()
	now := time.Date(2025, 11, 2, 12, 0, 0, 0, time.Local)
	gw.clock = func() time.Time { return now.Add(-time.Hour) }

	require.NoError(t, gw.InsertChatMessage(context.Background(), NewChatMessage{ChatID: 1, SenderID: 1, Message: "see you there?"}))
	invite, err := gw.InsertInvite(context.Background(), NewInvite{
		ChatID: 1, SenderID: 1, RecipientID: 2,
		Location:  "Gym",
		EventDate: now.Add(3 * time.Hour).Format("2006-01-02"),
		EventTime: now.Add(3 * time.Hour).Format("15:04"),
	})
	require.NoError(t, err)

	reconciler := NewInviteReconciler(gw)
	reconciler.now = func() time.Time { return now }

	feed, err := reconciler.Feed(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, FeedKindMessage, feed[0].Kind)
	assert.Equal(t, FeedKindInvite, feed[1].Kind)

	// Accepting moves the invite from the pending lane to the meetup lane
	require.NoError(t, reconciler.Respond(context.Background(), invite.ID, true))
	feed, err = reconciler.Feed(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, FeedKindAcceptedMeeting, feed[1].Kind)
}

func TestReminderLoopFiresWithinHour(t *testing.T) {
	gw := newMemoryGateway()
	now := time.Date(2025, 11, 2, 12, 0, 0, 0, time.Local)

	invite, err := gw.InsertInvite(context.Background(), NewInvite{
		ChatID: 1, SenderID: 1, RecipientID: 2,
		Location:  "Dock",
		EventDate: now.Add(30 * time.Minute).Format("2006-01-02"),
		EventTime: now.Add(30 * time.Minute).Format("15:04"),
	})
	require.NoError(t, err)
	require.NoError(t, gw.UpdateInviteStatus(context.Background(), invite.ID, models.InviteAccepted, now))

	reconciler := NewInviteReconciler(gw)
	reconciler.now = func() time.Time { return now }

	reminded := make(chan InviteRow, 1)
	ctx, cancel := context.WithCancel(context.Background())
	go reconciler.RunReminderLoop(ctx, 2, func(inv InviteRow, u Urgency) {
		assert.Equal(t, UrgencyWithinHour, u.Level)
		reminded <- inv
		cancel()
	})

	select {
	case inv := <-reminded:
		assert.Equal(t, "Dock", inv.Location)
	case <-time.After(time.Second):
		cancel()
		t.Fatal("reminder did not fire on the initial check")
	}
}
