package coordinator

import (
	"context"
	"fmt"
	"log/slog"

	pkgerrors "github.com/agrovision/fedcore/pkg/errors"
	"github.com/agrovision/fedcore/pkg/mqtt"
)

// Subscribe routes node registrations and updates published over MQTT to
// the same operations the HTTP API exposes.
func (svc *service) Subscribe(ctx context.Context) error {
	handler := svc.handle(ctx)
	for _, suffix := range []string{TopicRegister, TopicUpdates} {
		if err := svc.pubsub.Subscribe(ctx, svc.cfg.BaseTopic+"/"+suffix, handler); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", suffix, err)
		}
	}

	return nil
}

func (svc *service) handle(ctx context.Context) mqtt.Handler {
	return func(msg mqtt.Message) error {
		switch {
		case msg.Register != nil:
			p, err := svc.RegisterNode(ctx, msg.Register.NodeID, msg.Register.Region)
			if err != nil {
				return err
			}
			svc.logger.InfoContext(ctx, "registered node over MQTT", slog.String("node_id", p.ID))
		case msg.Update != nil:
			status, err := svc.SubmitUpdate(ctx, *msg.Update)
			if err != nil {
				return err
			}
			svc.logger.InfoContext(ctx, "accepted update over MQTT",
				slog.String("node_id", msg.Update.NodeID),
				slog.Uint64("round_id", status.RoundID),
				slog.Int("accepted_count", status.AcceptedCount),
			)
		default:
			return fmt.Errorf("%w: empty message on %s", pkgerrors.ErrInvalidData, msg.Topic)
		}

		return nil
	}
}
