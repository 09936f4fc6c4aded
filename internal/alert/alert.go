// Package alert implements the Alert Router: dispatching
// verdicts to configured sinks by status and dataset criticality.
// Each sink call is wrapped in its own circuit
// breaker so a flapping webhook/pager endpoint trips open instead of
// blocking the run — ties into the InfraTransient error kind.
package alert

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/pgEdge/data-gatekeeper/internal/models"
)

// Channel is one opaque dispatch target: a webhook URL, a Slack
// channel, or any other sink the routing document names.
type Channel struct {
	Type   string `yaml:"type" json:"type"`
	Target string `yaml:"target" json:"target"`
}

// RouteEntry maps one verdict status to the criticalities that must be
// met for a dispatch, and the channels to dispatch to.
type RouteEntry struct {
	StatusName               string    `yaml:"status" json:"status"`
	RequiredCriticalityNames []string  `yaml:"required_criticality" json:"required_criticality"`
	Channels                 []Channel `yaml:"channels" json:"channels"`
}

// RoutingDoc is the alert router's configuration document.
type RoutingDoc struct {
	Routes []RouteEntry `yaml:"routes" json:"routes"`
}

// Sink delivers one payload to one channel.
type Sink interface {
	Send(ctx context.Context, ch Channel, v *models.Verdict, criticality models.Criticality) error
}

// Router dispatches verdicts per the routing document, via
// circuit-breaker-wrapped sinks.
type Router struct {
	doc   RoutingDoc
	sinks map[string]Sink
	cb    map[string]*gobreaker.CircuitBreaker
	log   *zap.Logger
}

// New builds a Router over doc with the default webhook and Slack sinks.
func New(doc RoutingDoc, slackClient *slack.Client, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Router{
		doc:   doc,
		sinks: map[string]Sink{},
		cb:    map[string]*gobreaker.CircuitBreaker{},
		log:   log,
	}
	r.sinks["webhook"] = WebhookSink{Client: http.DefaultClient}
	if slackClient != nil {
		r.sinks["slack"] = SlackSink{Client: slackClient}
	}
	return r
}

// RegisterSink adds or overrides the sink implementation for a channel type.
func (r *Router) RegisterSink(channelType string, s Sink) {
	r.sinks[channelType] = s
}

func (r *Router) breakerFor(channelType string) *gobreaker.CircuitBreaker {
	if cb, ok := r.cb[channelType]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "alert-" + channelType,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	r.cb[channelType] = cb
	return cb
}

// Dispatch sends v to every channel whose route matches v.Status and
// whose required_criticality set contains criticality.
// Sink failures are logged, never fatal to the run.
func (r *Router) Dispatch(ctx context.Context, v *models.Verdict, criticality models.Criticality) {
	for _, route := range r.doc.Routes {
		if route.StatusName != v.Status.String() {
			continue
		}
		if !matchesCriticality(route.RequiredCriticalityNames, criticality) {
			continue
		}
		for _, ch := range route.Channels {
			r.dispatchOne(ctx, ch, v, criticality)
		}
	}
}

func (r *Router) dispatchOne(ctx context.Context, ch Channel, v *models.Verdict, criticality models.Criticality) {
	sink, ok := r.sinks[ch.Type]
	if !ok {
		r.log.Warn("alert: no sink registered for channel type", zap.String("type", ch.Type))
		return
	}
	cb := r.breakerFor(ch.Type)
	_, err := cb.Execute(func() (any, error) {
		return nil, sink.Send(ctx, ch, v, criticality)
	})
	if err != nil {
		r.log.Warn("alert dispatch failed", zap.String("type", ch.Type), zap.String("target", ch.Target), zap.Error(err))
	}
}

func matchesCriticality(names []string, c models.Criticality) bool {
	for _, name := range names {
		if models.ParseCriticality(name) == c {
			return true
		}
	}
	return false
}

// WebhookSink POSTs a JSON payload to an arbitrary HTTP endpoint.
type WebhookSink struct {
	Client *http.Client
}

func (s WebhookSink) Send(ctx context.Context, ch Channel, v *models.Verdict, criticality models.Criticality) error {
	body := fmt.Sprintf(`{"table_name":%q,"status":%q,"criticality":%q}`, v.TableName, v.Status.String(), criticality.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ch.Target, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s returned status %d", ch.Target, resp.StatusCode)
	}
	return nil
}

// SlackSink posts a formatted verdict summary to a Slack channel.
type SlackSink struct {
	Client *slack.Client
}

func (s SlackSink) Send(ctx context.Context, ch Channel, v *models.Verdict, criticality models.Criticality) error {
	text := fmt.Sprintf("*%s* — table `%s` — status *%s* (criticality %s)",
		verdictHeadline(v), v.TableName, v.Status.String(), criticality.String())
	_, _, err := s.Client.PostMessageContext(ctx, ch.Target, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("post slack message: %w", err)
	}
	return nil
}

func verdictHeadline(v *models.Verdict) string {
	if v.Status == models.StatusFail {
		return "Gatekeeper FAIL"
	}
	return "Gatekeeper verdict"
}
