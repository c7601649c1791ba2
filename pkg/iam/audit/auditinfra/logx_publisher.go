package auditinfra

import (
	"context"

	"github.com/aibles/iam/pkg/asyncx"
	"github.com/aibles/iam/pkg/iam/audit"
	"github.com/aibles/iam/pkg/logx"
)

// LogxPublisher implements audit.Publisher with structured logx logging.
// Events are emitted asynchronously; a panicking or failing sink only
// produces an error log, never an error for the caller.
type LogxPublisher struct{}

func NewLogxPublisher() *LogxPublisher {
	return &LogxPublisher{}
}

func (p *LogxPublisher) Publish(_ context.Context, event audit.Event) {
	asyncx.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				logx.WithField("panic", r).Error("Audit sink panicked")
			}
		}()

		fields := logx.Fields{
			"audit_event": string(event.Type),
			"user_id":     event.UserID.String(),
			"occurred_at": event.OccurredAt,
		}
		if event.Method != "" {
			fields["method"] = event.Method
		}
		for k, v := range event.Metadata {
			fields[k] = v
		}

		logx.WithFields(fields).Info("Audit: " + string(event.Type))
	})
}
