package notify

import (
	"context"

	"github.com/vcscsvcscs/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

// Dispatcher renders payloads and routes them to the sender of each channel
type Dispatcher struct {
	senders  map[model.Channel]Sender
	composer Composer
	logger   *zap.Logger
}

func NewDispatcher(composer Composer, logger *zap.Logger) *Dispatcher {
	if composer == nil {
		composer = NewTemplateComposer()
	}
	return &Dispatcher{
		senders:  make(map[model.Channel]Sender),
		composer: composer,
		logger:   logger,
	}
}

// Register installs the sender for a channel, replacing any previous one
func (d *Dispatcher) Register(channel model.Channel, sender Sender) {
	d.senders[channel] = sender
}

// Channels lists the channels with a registered sender
func (d *Dispatcher) Channels() []model.Channel {
	channels := make([]model.Channel, 0, len(d.senders))
	for _, c := range []model.Channel{model.ChannelEmail, model.ChannelPush} {
		if _, ok := d.senders[c]; ok {
			channels = append(channels, c)
		}
	}
	return channels
}

// Send implements Notifier. Every failure is returned as a *DeliveryError.
func (d *Dispatcher) Send(ctx context.Context, to model.Recipient, channel model.Channel, p Payload) error {
	sender, ok := d.senders[channel]
	if !ok {
		return &DeliveryError{UserID: to.UserID, Channel: channel, Err: ErrChannelUnavailable}
	}

	msg, err := d.composer.Compose(ctx, p)
	if err != nil {
		return &DeliveryError{UserID: to.UserID, Channel: channel, Err: err}
	}

	if err := sender.Deliver(ctx, to, msg); err != nil {
		return &DeliveryError{UserID: to.UserID, Channel: channel, Err: err}
	}

	d.logger.Info("reminder dispatched",
		zap.String("user_id", to.UserID),
		zap.String("regimen_id", p.RegimenID),
		zap.String("channel", string(channel)),
		zap.String("kind", string(p.Kind)),
		zap.Time("scheduled_time", p.ScheduledTime),
	)
	return nil
}

var _ Notifier = (*Dispatcher)(nil)
