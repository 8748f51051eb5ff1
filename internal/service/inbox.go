package service

import (
	"sort"
	"time"

	"github.com/ibaf-upi/ibaf-api/internal/models"
)

// Markers is the set of locally recorded read markers for one reader, keyed
// by markerKey.
type Markers map[string]bool

func markerKey(kind models.MessageKind, id string) string {
	return string(kind) + ":" + id
}

// Has reports whether the message carries a local read marker.
func (m Markers) Has(kind models.MessageKind, id string) bool {
	return m != nil && m[markerKey(kind, id)]
}

func fromUserMessage(m models.UserMessage, now time.Time) models.ThreadMessage {
	at := m.CreatedAt
	if at.IsZero() {
		at = now
	}
	return models.ThreadMessage{
		ID:          m.ID,
		Kind:        models.MessageKindUser,
		UserID:      m.UserID,
		Message:     m.Message,
		Status:      string(m.Status),
		Reply:       m.Reply,
		RepliedAt:   m.RepliedAt,
		ReplyReadAt: m.ReplyReadAt,
		Read:        m.Status != models.UserMessagePending,
		At:          at,
	}
}

func fromAdminMessage(m models.AdminMessage, now time.Time) models.ThreadMessage {
	at := m.SentAt
	if at.IsZero() {
		at = now
	}
	return models.ThreadMessage{
		ID:      m.ID,
		Kind:    models.MessageKindAdmin,
		UserID:  m.UserID,
		Message: m.Message,
		Status:  string(m.Status),
		SentBy:  m.SentBy,
		Read:    adminMessageRead(m),
		At:      at,
	}
}

func adminMessageRead(m models.AdminMessage) bool {
	return m.Read || m.Status == models.AdminMessageRead
}

// CombineThread merges both collections into the member's view: newest first,
// admin messages ahead of member messages on equal timestamps. Messages
// without a timestamp sort as now.
func CombineThread(userMsgs []models.UserMessage, adminMsgs []models.AdminMessage, now time.Time) []models.ThreadMessage {
	thread := make([]models.ThreadMessage, 0, len(userMsgs)+len(adminMsgs))
	for _, m := range adminMsgs {
		thread = append(thread, fromAdminMessage(m, now))
	}
	for _, m := range userMsgs {
		thread = append(thread, fromUserMessage(m, now))
	}
	sort.SliceStable(thread, func(i, j int) bool {
		if !thread[i].At.Equal(thread[j].At) {
			return thread[i].At.After(thread[j].At)
		}
		return thread[i].Kind == models.MessageKindAdmin && thread[j].Kind != models.MessageKindAdmin
	})
	return thread
}

// MemberUnread counts what the member has not seen yet: unread admin messages
// and replies not yet opened. Local markers suppress entries for the reader
// that recorded them.
func MemberUnread(userMsgs []models.UserMessage, adminMsgs []models.AdminMessage, markers Markers) int {
	unread := 0
	for _, m := range adminMsgs {
		if !adminMessageRead(m) && !markers.Has(models.MessageKindAdmin, m.ID) {
			unread++
		}
	}
	for _, m := range userMsgs {
		if m.Status == models.UserMessageReplied && m.ReplyReadAt == nil && !markers.Has(models.MessageKindUser, m.ID) {
			unread++
		}
	}
	return unread
}

// GroupInbox groups every message by the member it belongs to. Each entry
// lists its messages oldest first; entries are ordered by latest activity.
// Unread counts pending member messages plus admin messages the member has
// not read.
func GroupInbox(userMsgs []models.UserMessage, adminMsgs []models.AdminMessage, markers Markers, now time.Time) []models.InboxEntry {
	entries := make(map[string]*models.InboxEntry)
	entry := func(userID string) *models.InboxEntry {
		e, ok := entries[userID]
		if !ok {
			e = &models.InboxEntry{UserID: userID, Messages: []models.ThreadMessage{}}
			entries[userID] = e
		}
		return e
	}

	for _, m := range userMsgs {
		e := entry(m.UserID)
		tm := fromUserMessage(m, now)
		e.Messages = append(e.Messages, tm)
		if m.Status == models.UserMessagePending && !markers.Has(models.MessageKindUser, m.ID) {
			e.UnreadCount++
		}
		if tm.At.After(e.LastActivity) || e.UserName == "" {
			if m.UserName != "" {
				e.UserName = m.UserName
			}
			if m.UserEmail != "" {
				e.UserEmail = m.UserEmail
			}
		}
		touch(e, tm.At)
		if m.RepliedAt != nil {
			touch(e, *m.RepliedAt)
		}
	}
	for _, m := range adminMsgs {
		e := entry(m.UserID)
		tm := fromAdminMessage(m, now)
		e.Messages = append(e.Messages, tm)
		if !tm.Read {
			e.UnreadCount++
		}
		touch(e, tm.At)
	}

	out := make([]models.InboxEntry, 0, len(entries))
	for _, e := range entries {
		sort.SliceStable(e.Messages, func(i, j int) bool {
			return e.Messages[i].At.Before(e.Messages[j].At)
		})
		out = append(out, *e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].LastActivity.Equal(out[j].LastActivity) {
			return out[i].LastActivity.After(out[j].LastActivity)
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

func touch(e *models.InboxEntry, at time.Time) {
	if at.After(e.LastActivity) {
		e.LastActivity = at
	}
}
