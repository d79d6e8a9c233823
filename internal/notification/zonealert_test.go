package notification

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"zonesniper/internal/model"
)

type captureNotifier struct {
	mu     sync.Mutex
	alerts []Alert
}

func (c *captureNotifier) Send(ctx context.Context, alert Alert) error {
	c.mu.Lock()
	c.alerts = append(c.alerts, alert)
	c.mu.Unlock()
	return nil
}

func (c *captureNotifier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.alerts)
}

func TestEventAlerterAlertsOnEntryOnly(t *testing.T) {
	sink := &captureNotifier{}
	a := NewEventAlerter(nil, sink)

	eventCh := make(chan model.ZoneEvent, 4)
	eventCh <- model.ZoneEvent{Type: model.ZoneEntered, Pair: "BTCUSDT", ZoneID: 3, ZoneType: model.ZoneSupport, Price: 50000, TS: time.Now().UTC()}
	eventCh <- model.ZoneEvent{Type: model.ZoneExited, Pair: "BTCUSDT", ZoneID: 3, ZoneType: model.ZoneSupport, Price: 50500, TS: time.Now().UTC()}
	close(eventCh)

	a.RunZoneEvents(context.Background(), eventCh)

	if sink.count() != 1 {
		t.Fatalf("expected 1 alert (entry only), got %d", sink.count())
	}
	alert := sink.alerts[0]
	if alert.Level != AlertWarning {
		t.Fatalf("support entry should be a warning, got %s", alert.Level)
	}
	if !strings.Contains(alert.Title, "BTCUSDT") || !strings.Contains(alert.Title, "support") {
		t.Fatalf("bad title: %q", alert.Title)
	}
}

func TestAlertForLevels(t *testing.T) {
	cases := []struct {
		zt   model.ZoneType
		want AlertLevel
	}{
		{model.ZoneSupport, AlertWarning},
		{model.ZoneResistance, AlertWarning},
		{model.ZoneSticky, AlertInfo},
		{model.ZoneLowWicks, AlertInfo},
	}
	for _, tc := range cases {
		got := alertFor(model.ZoneEvent{Type: model.ZoneEntered, Pair: "X", ZoneType: tc.zt, TS: time.Now()})
		if got.Level != tc.want {
			t.Errorf("%s: level %s, want %s", tc.zt, got.Level, tc.want)
		}
	}
}
