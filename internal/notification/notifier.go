// Package notification delivers trade-signal alerts to external channels
// (Telegram, generic webhooks). HOLD signals are never forwarded.
package notification

import (
	"context"
	"fmt"
	"log"
	"time"

	"candlesignal/internal/model"
)

// Alert is the delivery payload for one actionable signal. It carries the
// signal fields individually so each transport can format them its own way
// instead of re-parsing a prose message.
type Alert struct {
	Symbol     string
	Decision   model.Decision
	Price      float64
	StopLoss   float64
	TakeProfit float64
	RSI        float64
	Confidence float64 // 0..0.95
	Pattern    string  // empty when no pattern matched
	Reason     string
}

// Headline is the one-line summary shared by all backends.
func (a Alert) Headline() string {
	return fmt.Sprintf("%s %s @ %.2f", a.Decision, a.Symbol, a.Price)
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier is a simple notifier that logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] %s stop %.2f / target %.2f, confidence %.0f%% (%s)",
		alert.Headline(), alert.StopLoss, alert.TakeProfit, alert.Confidence*100, alert.Reason)
	return nil
}

// FromSignal maps an actionable signal onto an alert. Returns false for
// HOLD decisions, which carry no alert.
func FromSignal(s model.Signal) (Alert, bool) {
	if s.Decision != model.DecisionBuy && s.Decision != model.DecisionSell {
		return Alert{}, false
	}
	a := Alert{
		Symbol:     s.Symbol,
		Decision:   s.Decision,
		Price:      s.Price,
		StopLoss:   s.StopLoss,
		TakeProfit: s.TakeProfit,
		RSI:        s.RSI,
		Confidence: s.Confidence,
		Reason:     s.Reason,
	}
	if s.Pattern != nil {
		a.Pattern = string(s.Pattern.Kind)
	}
	return a, true
}

// Dispatcher fans a signal out to every configured backend off the
// evaluation path.
type Dispatcher struct {
	notifiers []Notifier
	timeout   time.Duration
}

// NewDispatcher creates a dispatcher over the given backends.
func NewDispatcher(notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{notifiers: notifiers, timeout: 10 * time.Second}
}

// SignalFired delivers an alert for s to all backends. Non-blocking; delivery
// failures only log.
func (d *Dispatcher) SignalFired(s model.Signal) {
	alert, ok := FromSignal(s)
	if !ok {
		return
	}
	for _, n := range d.notifiers {
		n := n
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()
			if err := n.Send(ctx, alert); err != nil {
				log.Printf("[notify] delivery failed: %v", err)
			}
		}()
	}
}
