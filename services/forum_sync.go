package services

import (
	"context"
	"strings"
	"sync"

	"github.com/bluefodor88/activeportland-11.16.25/models"
	"github.com/bluefodor88/activeportland-11.16.25/state"

	"github.com/sirupsen/logrus"
)

// MaxMessageLength caps forum and chat message bodies
const MaxMessageLength = 1000

// ReplyPreview is the resolved target of a reply, looked up within the loaded
// list; AuthorName degrades to "Unknown" when the target is not loaded.
type ReplyPreview struct {
	MessageID  uint
	Message    string
	AuthorName string
}

// ForumMessageView is a ForumMessageRow plus everything resolved client-side:
// the reply preview and the sender's skill badge.
type ForumMessageView struct {
	ForumMessageRow
	SkillBadge string
	Reply      *ReplyPreview
}

// ForumSynchronizer keeps the message list for one activity current via
// subscribe-and-refetch: every insert notification triggers a full refetch
// that replaces the snapshot wholesale. No incremental patching.
type ForumSynchronizer struct {
	gw       Gateway
	viewerID uint
	selected *state.SelectedActivityStore

	mu         sync.Mutex
	activityID uint // 0 = idle
	messages   []ForumMessageView
	loading    bool
	lastErr    error
	fetchSeq   uint64
	sub        *Subscription
	stopped    bool
}

func NewForumSynchronizer(gw Gateway, viewerID uint, selected *state.SelectedActivityStore) *ForumSynchronizer {
	return &ForumSynchronizer{gw: gw, viewerID: viewerID, selected: selected}
}

// SetActivity switches the synchronizer to a new activity and refetches.
// Zero means idle: empty list, not loading. Any in-flight fetch for the
// previous activity is discarded by the sequence guard.
func (s *ForumSynchronizer) SetActivity(ctx context.Context, activityID uint) error {
	s.mu.Lock()
	if s.sub != nil {
		s.sub.Unsubscribe()
		s.sub = nil
	}
	s.activityID = activityID
	s.fetchSeq++ // invalidate in-flight fetches
	if activityID == 0 {
		s.messages = nil
		s.loading = false
		s.lastErr = nil
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.subscribe(ctx, activityID); err != nil {
		return err
	}
	return s.Fetch(ctx, true)
}

func (s *ForumSynchronizer) subscribe(ctx context.Context, activityID uint) error {
	sub, err := s.gw.Subscribe(ctx, TableForumMessages, activityID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.stopped || s.activityID != activityID {
		s.mu.Unlock()
		sub.Unsubscribe()
		return nil
	}
	s.sub = sub
	s.mu.Unlock()

	go func() {
		for range sub.Events() {
			// Full refetch is the reconciliation strategy; the payload is
			// only a wake-up call
			if err := s.Fetch(ctx, false); err != nil {
				logrus.WithError(err).Warn("forum refetch after change event failed")
			}
		}
	}()
	return nil
}

// Stop unsubscribes and blocks any late fetch results from mutating state
func (s *ForumSynchronizer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.sub != nil {
		s.sub.Unsubscribe()
		s.sub = nil
	}
}

// Fetch loads all messages for the current activity, newest-first, and
// replaces the snapshot atomically. A fetch result is discarded when a newer
// fetch started after it, so overlapping fetches can complete in any order
// without ever publishing stale data.
func (s *ForumSynchronizer) Fetch(ctx context.Context, showLoading bool) error {
	s.mu.Lock()
	if s.stopped || s.activityID == 0 {
		s.mu.Unlock()
		return nil
	}
	s.fetchSeq++
	seq := s.fetchSeq
	activityID := s.activityID
	if showLoading {
		s.loading = true
	}
	s.mu.Unlock()

	rows, err := s.gw.QueryForumMessages(ctx, activityID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || seq != s.fetchSeq || activityID != s.activityID {
		return nil
	}
	s.loading = false
	if err != nil {
		// Keep the last good list; transient blips must not blank the feed
		s.lastErr = err
		logrus.WithError(err).WithField("activityID", activityID).Error("error fetching forum messages")
		return err
	}
	s.lastErr = nil
	s.messages = s.buildViews(rows)
	return nil
}

func (s *ForumSynchronizer) buildViews(rows []ForumMessageRow) []ForumMessageView {
	byID := make(map[uint]*ForumMessageRow, len(rows))
	for i := range rows {
		byID[rows[i].ID] = &rows[i]
	}

	views := make([]ForumMessageView, 0, len(rows))
	for _, row := range rows {
		view := ForumMessageView{ForumMessageRow: row, SkillBadge: s.skillBadge(row)}
		if row.ReplyToID != nil {
			if target, ok := byID[*row.ReplyToID]; ok {
				view.Reply = &ReplyPreview{MessageID: target.ID, Message: target.Message, AuthorName: target.AuthorName}
			} else {
				// Target not in the loaded window; degrade instead of failing
				view.Reply = &ReplyPreview{MessageID: *row.ReplyToID, AuthorName: "Unknown"}
			}
		}
		views = append(views, view)
	}
	return views
}

// skillBadge prefers the viewer's locally held level for their own messages,
// which is fresher than the joined row; other authors fall back to
// Intermediate when no skill row exists for this activity.
func (s *ForumSynchronizer) skillBadge(row ForumMessageRow) string {
	if row.AuthorID == s.viewerID && s.selected != nil {
		if sel := s.selected.Get(); sel.ActivityID == row.ActivityID && sel.SkillLevel != "" {
			return sel.SkillLevel
		}
	}
	if row.AuthorSkill != "" {
		return row.AuthorSkill
	}
	return models.SkillIntermediate
}

// Send validates locally, uploads images best-effort, inserts the message and
// refetches. Returns false instead of an error; the caller only needs to know
// whether to show a retry alert.
func (s *ForumSynchronizer) Send(ctx context.Context, body string, replyToID *uint, images []string) bool {
	s.mu.Lock()
	activityID := s.activityID
	s.mu.Unlock()
	if activityID == 0 {
		return false
	}

	body = strings.TrimSpace(body)
	if body == "" && len(images) == 0 {
		return false
	}
	if len(body) > MaxMessageLength {
		return false
	}

	urls := uploadImages(ctx, s.gw, images, "forum")

	err := s.gw.InsertForumMessage(ctx, NewForumMessage{
		ActivityID: activityID,
		UserID:     s.viewerID,
		Message:    body,
		ImageURLs:  urls,
		ReplyToID:  replyToID,
	})
	if err != nil {
		logrus.WithError(err).Error("error sending forum message")
		return false
	}

	if err := s.Fetch(ctx, false); err != nil {
		logrus.WithError(err).Warn("refetch after send failed")
	}
	return true
}

// Messages returns the current snapshot, newest-first
func (s *ForumSynchronizer) Messages() []ForumMessageView {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ForumMessageView, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *ForumSynchronizer) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *ForumSynchronizer) LastErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// uploadImages pushes each image in parallel; individual failures are dropped
// silently and do not block the others.
func uploadImages(ctx context.Context, gw Gateway, images []string, folder string) []string {
	if len(images) == 0 {
		return nil
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		urls []string
	)
	for _, img := range images {
		wg.Add(1)
		go func(data string) {
			defer wg.Done()
			url, err := gw.UploadImage(ctx, data, folder)
			if err != nil {
				logrus.WithError(err).Warn("image upload dropped")
				return
			}
			mu.Lock()
			urls = append(urls, url)
			mu.Unlock()
		}(img)
	}
	wg.Wait()
	return urls
}
