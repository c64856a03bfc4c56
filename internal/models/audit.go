package models

import "time"

type AuditLog struct {
	ID         int64     `json:"id"`
	ActorID    int64     `json:"actor_id"`
	Action     string    `json:"action"`
	TargetType string    `json:"target_type"`
	TargetID   int64     `json:"target_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
