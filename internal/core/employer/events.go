package employer

import (
	"context"
	"time"
)

// EventType はドメインイベントの種別です。ルーティングキーとしても使います。
type EventType string

const (
	EventCreated EventType = "employer.created"
	EventUpdated EventType = "employer.updated"
	EventDeleted EventType = "employer.deleted"
)

// Event はコミット後に発行される社員イベントです。
type Event struct {
	Type       EventType `json:"type"`
	EmployerID string    `json:"employer_id"`
	ExternalID string    `json:"external_id,omitempty"`
	Role       string    `json:"role,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPublisher はイベント発行の抽象です。発行失敗は呼び出し結果に影響しません。
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, Event) error { return nil }

// Recorder はワークフロー結果の計測先です。
type Recorder interface {
	Observe(operation, outcome string)
}

type noopRecorder struct{}

func (noopRecorder) Observe(string, string) {}
