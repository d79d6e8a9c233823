package notification

import (
	"context"
	"fmt"
	"log"

	"zonesniper/internal/model"
)

// EventAlerter decorates an EventPublisher: every event is forwarded to the
// inner publisher, and zone entries additionally go out as alerts. Exits are
// not alerted; they are visible in the event stream but rarely actionable.
type EventAlerter struct {
	inner    model.EventPublisher
	notifier Notifier
}

// NewEventAlerter wraps inner. inner may be nil (alerts only).
func NewEventAlerter(inner model.EventPublisher, notifier Notifier) *EventAlerter {
	return &EventAlerter{inner: inner, notifier: notifier}
}

// RunZoneEvents drains eventCh, alerting on entries and forwarding
// everything downstream.
func (a *EventAlerter) RunZoneEvents(ctx context.Context, eventCh <-chan model.ZoneEvent) {
	forward := make(chan model.ZoneEvent, cap(eventCh))
	if a.inner != nil {
		go a.inner.RunZoneEvents(ctx, forward)
	}
	defer close(forward)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-eventCh:
			if !ok {
				return
			}
			if a.inner != nil {
				select {
				case forward <- ev:
				default:
					log.Printf("[notify] forward channel full, dropping %s event for %s", ev.Type, ev.Pair)
				}
			}
			if ev.Type == model.ZoneEntered {
				if err := a.notifier.Send(ctx, alertFor(ev)); err != nil {
					log.Printf("[notify] alert delivery failed: %v", err)
				}
			}
		}
	}
}

// PublishDiagnostics forwards to the inner publisher. Diagnostics are
// operational data, not alert-worthy.
func (a *EventAlerter) PublishDiagnostics(ctx context.Context, diags []model.TriggerDiagnostics) {
	if a.inner != nil {
		a.inner.PublishDiagnostics(ctx, diags)
	}
}

// Close closes the inner publisher.
func (a *EventAlerter) Close() error {
	if a.inner != nil {
		return a.inner.Close()
	}
	return nil
}

// alertFor formats a zone entry as an alert. Support and low-wick zones are
// buy-side interest, resistance and high-wick zones sell-side.
func alertFor(ev model.ZoneEvent) Alert {
	level := AlertInfo
	switch ev.ZoneType {
	case model.ZoneSupport, model.ZoneResistance:
		level = AlertWarning
	}
	return Alert{
		Level: level,
		Title: fmt.Sprintf("%s entered %s zone", ev.Pair, ev.ZoneType),
		Message: fmt.Sprintf("%s crossed into %s zone #%d at %.4f (%s)",
			ev.Pair, ev.ZoneType, ev.ZoneID, ev.Price, ev.TS.Format("15:04:05 MST")),
		Pair:  ev.Pair,
		Price: ev.Price,
	}
}
