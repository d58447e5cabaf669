package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

const (
	EntityBook        = "book"
	EntityUser        = "user"
	EntityTransaction = "transaction"
	EntityEvent       = "event"
	EntitySystem      = "system"

	ActionCreate     = "create"
	ActionUpdate     = "update"
	ActionDelete     = "delete"
	ActionActivate   = "activate"
	ActionDeactivate = "deactivate"
	ActionReturn     = "return"
	ActionCancel     = "cancel"
	ActionReconcile  = "reconcile"
	ActionSeed       = "seed"
)

// Entry is one admin mutation.
type Entry struct {
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Entity      string          `json:"entity"`
	EntityID    string          `json:"entityId,omitempty"`
	Action      string          `json:"action"`
	PerformedBy string          `json:"performedBy"`
	Data        json.RawMessage `json:"data,omitempty"`
}

type Query struct {
	Entity      string
	Action      string
	PerformedBy string
	Limit       int
	Offset      int
}

type Repository interface {
	Insert(ctx context.Context, e *Entry) error
	List(ctx context.Context, q Query) ([]Entry, int, error)
}

// Recorder is what admin handlers depend on.
type Recorder interface {
	Record(ctx context.Context, entity, entityID, action, performedBy string, data any)
}

type Service struct {
	repo Repository
	log  *slog.Logger
	now  func() time.Time
}

func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log, now: time.Now}
}

// Record stores an entry. A failed write is logged and does not fail the
// mutation that triggered it.
func (s *Service) Record(ctx context.Context, entity, entityID, action, performedBy string, data any) {
	e := Entry{
		Timestamp:   s.now().UTC(),
		Entity:      entity,
		EntityID:    entityID,
		Action:      action,
		PerformedBy: performedBy,
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			s.log.Warn("audit payload not serializable", "entity", entity, "action", action, "error", err)
		} else {
			e.Data = raw
		}
	}
	if err := s.repo.Insert(context.WithoutCancel(ctx), &e); err != nil {
		s.log.Error("audit write failed",
			"entity", entity,
			"entity_id", entityID,
			"action", action,
			"performed_by", performedBy,
			"error", err,
		)
	}
}

func (s *Service) List(ctx context.Context, q Query) ([]Entry, int, error) {
	return s.repo.List(ctx, q)
}

type nop struct{}

func (nop) Record(context.Context, string, string, string, string, any) {}

// Nop discards every entry.
func Nop() Recorder { return nop{} }
