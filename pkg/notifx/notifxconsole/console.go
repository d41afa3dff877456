package notifxconsole

import (
	"context"

	"github.com/Abraxas-365/trustgate/pkg/logx"
	"github.com/Abraxas-365/trustgate/pkg/notifx"
)

// ConsoleProvider prints one-time codes to the terminal via logx. Intended
// for development and testing only.
type ConsoleProvider struct{}

// NewConsoleProvider creates a new console code provider.
func NewConsoleProvider() *ConsoleProvider {
	return &ConsoleProvider{}
}

// SendCode logs the code instead of delivering it.
func (p *ConsoleProvider) SendCode(_ context.Context, msg notifx.CodeMessage) error {
	logx.WithFields(logx.Fields{
		"channel":     string(msg.Channel),
		"destination": msg.Destination,
		"code":        msg.Code,
	}).Info("notifx/console: one-time code (dev mode)")
	return nil
}
