package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ibaf-upi/ibaf-api/pkg/realtime"
)

// publish is best effort: a failed fan-out never fails the write that caused it.
func publish(ctx context.Context, p realtime.Publisher, logger *zap.Logger, events ...realtime.Event) {
	if p == nil {
		return
	}
	for _, evt := range events {
		if evt.At.IsZero() {
			evt.At = time.Now().UTC()
		}
		if err := p.Publish(ctx, evt); err != nil {
			logger.Warn("failed to publish realtime event", zap.String("topic", evt.Topic), zap.Error(err))
		}
	}
}

func userEvents(userID, typ string) []realtime.Event {
	return []realtime.Event{
		{Topic: realtime.TopicUsers, Type: typ, ID: userID},
		{Topic: realtime.TopicUser(userID), Type: typ, ID: userID},
	}
}

func messageEvents(userID, messageID, typ string) []realtime.Event {
	return []realtime.Event{
		{Topic: realtime.TopicMessages, Type: typ, ID: messageID},
		{Topic: realtime.TopicUserMessages(userID), Type: typ, ID: messageID},
	}
}

func workoutEvent(userID, logID, typ string) realtime.Event {
	return realtime.Event{Topic: realtime.TopicWorkoutLogs(userID), Type: typ, ID: logID}
}

func announcementEvent(id, typ string) realtime.Event {
	return realtime.Event{Topic: realtime.TopicAnnouncements, Type: typ, ID: id}
}
