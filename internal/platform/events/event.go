package events

import (
	"context"
	"time"
)

// 事件类型
const (
	TypePollCreated = "poll.created"
	TypePollUpdated = "poll.updated"
	TypePollDeleted = "poll.deleted"
	TypeBallotCast  = "ballot.cast"
)

// Event 是投票数据提交成功后对外发布的领域事件
type Event struct {
	Type         string    `json:"type"`
	PollID       uint      `json:"pollId"`
	BallotID     uint      `json:"ballotId,omitempty"`
	Voter        string    `json:"voter,omitempty"`
	CandidateIDs []uint    `json:"candidateIds,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// Publisher 负责把事件投递到外部系统
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher 在未配置消息队列时使用
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }
