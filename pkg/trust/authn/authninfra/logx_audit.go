package authninfra

import (
	"context"

	"github.com/Abraxas-365/trustgate/pkg/logx"
	"github.com/Abraxas-365/trustgate/pkg/trust/authn"
)

// LogxAudit writes audit events to the structured log. Suitable until a
// durable audit sink exists; the interface keeps the swap cheap.
type LogxAudit struct{}

// NewLogxAudit creates the log-backed audit service.
func NewLogxAudit() *LogxAudit {
	return &LogxAudit{}
}

// Record logs one event. Never fails the request.
func (a *LogxAudit) Record(ctx context.Context, e authn.Event) {
	fields := logx.Fields{"event": string(e.Type)}
	if !e.UserID.IsEmpty() {
		fields["user_id"] = e.UserID.String()
	}
	if e.Username != "" {
		fields["username"] = e.Username
	}
	if !e.ConsumerID.IsEmpty() {
		fields["consumer_id"] = e.ConsumerID.String()
	}
	if e.Reason != "" {
		fields["reason"] = e.Reason
	}

	entry := logx.WithFields(fields)
	switch e.Type {
	case authn.EventLoginFailed:
		entry.Warn("audit")
	default:
		entry.Info("audit")
	}
}
