package gateway

import (
	"context"
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"github.com/altbank/corebank/internal/domain"
)

// SimulatedSender stands in for the email/SMS/push providers. It logs
// the delivery and returns a provider-style reference. Real providers
// slot in behind the same port.ChannelSender interface.
type SimulatedSender struct {
	logger *zap.Logger
}

// NewSimulatedSender creates a sender that logs deliveries.
func NewSimulatedSender(logger *zap.Logger) *SimulatedSender {
	return &SimulatedSender{logger: logger}
}

// Send delivers the notification over its channel.
func (s *SimulatedSender) Send(ctx context.Context, n *domain.Notification) (string, error) {
	if !n.Channel.Valid() {
		return "", &domain.ErrValidation{Field: "channel", Message: "unknown channel: " + string(n.Channel)}
	}

	var prefix string
	switch n.Channel {
	case domain.ChannelEmail:
		prefix = "EMAIL"
	case domain.ChannelSMS:
		prefix = "SMS"
	case domain.ChannelPush:
		prefix = "PUSH"
	case domain.ChannelInApp:
		prefix = "INAPP"
	}
	ref := fmt.Sprintf("%s-%06d", prefix, rand.Intn(1000000))

	s.logger.Info("notification delivered",
		zap.String("notification_id", n.ID),
		zap.String("customer_id", n.CustomerID),
		zap.String("channel", string(n.Channel)),
		zap.String("subject", n.Subject),
		zap.String("gateway_reference", ref),
	)
	return ref, nil
}
