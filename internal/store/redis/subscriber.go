package redis

import (
	"context"
	"log"
)

// configChannel carries live analysis-parameter updates.
const configChannel = "config:analysis"

// SubscribeConfig subscribes to the analysis config channel and invokes
// onUpdate with each payload. Runs until ctx is cancelled.
//
// The payload format is opaque here; the engine decides what a config
// update means (today: any message triggers a full reload).
func (p *Publisher) SubscribeConfig(ctx context.Context, onUpdate func(payload string)) {
	go func() {
		pubsub := p.client.Subscribe(ctx, configChannel)
		defer pubsub.Close()

		// Wait for confirmation before consuming.
		if _, err := pubsub.Receive(ctx); err != nil {
			log.Printf("[redis] WARNING: could not subscribe to %s: %v", configChannel, err)
			return
		}
		log.Printf("[redis] subscribed to %s for dynamic reload", configChannel)

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				log.Printf("[redis] received config update: %s", msg.Payload)
				onUpdate(msg.Payload)
			}
		}
	}()
}
