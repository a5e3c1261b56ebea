package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bluefodor88/activeportland-11.16.25/models"

	"github.com/sirupsen/logrus"
)

// Feed item kinds, dispatched on by the renderer
const (
	FeedKindMessage         = "message"
	FeedKindInvite          = "invite"
	FeedKindAcceptedMeeting = "acceptedMeeting"
)

// FeedItem is one entry of a chat's merged feed. Exactly one of Message or
// Invite is set, per Kind; accepted meetings reuse the invite row.
type FeedItem struct {
	Kind      string
	Timestamp time.Time
	Message   *ChatMessageRow
	Invite    *InviteRow
}

// Urgency buckets for an accepted, still-upcoming meetup
type UrgencyLevel int

const (
	UrgencyPassed UrgencyLevel = iota
	UrgencyWithinHour
	UrgencyAboutAnHour
	UrgencyLaterToday
	UrgencyDaysAway
)

type Urgency struct {
	Level UrgencyLevel
	// Minutes until start, floored; negative once passed
	Minutes int
	// Days until start, only meaningful for UrgencyDaysAway
	Days int
}

// Label renders the bucket the way the chat screen shows it
func (u Urgency) Label() string {
	switch u.Level {
	case UrgencyPassed:
		return "Already started"
	case UrgencyWithinHour:
		return fmt.Sprintf("Starting in %d minutes!", u.Minutes)
	case UrgencyAboutAnHour:
		return "Starting in about an hour!"
	case UrgencyLaterToday:
		return fmt.Sprintf("Today in %d hours", u.Minutes/60)
	default:
		if u.Days == 1 {
			return "In 1 day"
		}
		return fmt.Sprintf("In %d days", u.Days)
	}
}

// UrgencyFor buckets the time until eventAt as a pure step function of the
// elapsed minutes: <=0 passed, <60 within the hour, the 60th minute is "about
// an hour", <1440 later today, otherwise N days away with N = minutes/1440.
func UrgencyFor(now, eventAt time.Time) Urgency {
	minutes := int(eventAt.Sub(now).Minutes())
	switch {
	case eventAt.Sub(now) <= 0:
		return Urgency{Level: UrgencyPassed, Minutes: minutes}
	case minutes < 60:
		return Urgency{Level: UrgencyWithinHour, Minutes: minutes}
	case minutes == 60:
		return Urgency{Level: UrgencyAboutAnHour, Minutes: minutes}
	case minutes < 24*60:
		return Urgency{Level: UrgencyLaterToday, Minutes: minutes}
	default:
		return Urgency{Level: UrgencyDaysAway, Minutes: minutes, Days: minutes / (24 * 60)}
	}
}

// InviteReconciler merges a chat's three independently fetched collections
// into one chronological feed and drives invite responses and reminders.
type InviteReconciler struct {
	gw Gateway

	now func() time.Time
}

func NewInviteReconciler(gw Gateway) *InviteReconciler {
	return &InviteReconciler{gw: gw, now: time.Now}
}

// MergedFeed interleaves messages, pending invites and accepted meetups into
// one ascending sequence. Merge keys: message created-at, invite created-at,
// meetup event date+time. Accepted meetups already in the past are dropped.
func MergedFeed(now time.Time, messages []ChatMessageRow, pending []InviteRow, accepted []InviteRow) []FeedItem {
	items := make([]FeedItem, 0, len(messages)+len(pending)+len(accepted))

	for i := range accepted {
		invite := accepted[i]
		eventAt, err := invite.EventAt()
		if err != nil {
			logrus.WithError(err).WithField("inviteID", invite.ID).Warn("skipping meetup with bad date")
			continue
		}
		if !eventAt.After(now) {
			continue
		}
		items = append(items, FeedItem{Kind: FeedKindAcceptedMeeting, Timestamp: eventAt, Invite: &accepted[i]})
	}

	for i := range pending {
		items = append(items, FeedItem{Kind: FeedKindInvite, Timestamp: pending[i].CreatedAt, Invite: &pending[i]})
	}

	for i := range messages {
		items = append(items, FeedItem{Kind: FeedKindMessage, Timestamp: messages[i].CreatedAt, Message: &messages[i]})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp.Before(items[j].Timestamp)
	})
	return items
}

// Feed fetches the chat's collections and merges them
func (r *InviteReconciler) Feed(ctx context.Context, chatID uint) ([]FeedItem, error) {
	messages, err := r.gw.QueryChatMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	pending, err := r.gw.QueryPendingInvites(ctx, chatID)
	if err != nil {
		return nil, err
	}
	accepted, err := r.gw.QueryAcceptedInvites(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return MergedFeed(r.now(), messages, pending, accepted), nil
}

// SendInvite creates a pending invite in the chat
func (r *InviteReconciler) SendInvite(ctx context.Context, invite NewInvite) (*InviteRow, error) {
	return r.gw.InsertInvite(ctx, invite)
}

// Respond performs the one-shot pending -> accepted/declined transition.
// A second response returns ErrAlreadyResponded and changes nothing.
func (r *InviteReconciler) Respond(ctx context.Context, inviteID uint, accept bool) error {
	status := models.InviteDeclined
	if accept {
		status = models.InviteAccepted
	}
	return r.gw.UpdateInviteStatus(ctx, inviteID, status, r.now())
}

// reminderRepeat is the minimum gap between reminder callbacks
const reminderRepeat = 30 * time.Minute

// RunReminderLoop re-evaluates urgency buckets once a minute (the only
// timer-driven activity) and fires remind for a meeting starting within the
// hour, at most once per half hour. Blocks until ctx is done.
func (r *InviteReconciler) RunReminderLoop(ctx context.Context, userID uint, remind func(InviteRow, Urgency)) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	var lastReminded time.Time
	check := func() {
		now := r.now()
		if !lastReminded.IsZero() && now.Sub(lastReminded) < reminderRepeat {
			return
		}
		meetings, err := r.gw.QueryAcceptedInvitesForUser(ctx, userID)
		if err != nil {
			logrus.WithError(err).Warn("reminder check failed")
			return
		}
		for _, meeting := range meetings {
			eventAt, err := meeting.EventAt()
			if err != nil {
				continue
			}
			urgency := UrgencyFor(now, eventAt)
			if urgency.Level == UrgencyWithinHour {
				remind(meeting, urgency)
				lastReminded = now
				return
			}
		}
	}

	check()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}
