package services

import (
	"fmt"
	"time"

	"github.com/agropulse/cropalert-go/internal/domain/alert"
	"github.com/agropulse/cropalert-go/internal/domain/match"
	"github.com/agropulse/cropalert-go/internal/infrastructure/observability/logging"
	"github.com/agropulse/cropalert-go/internal/infrastructure/observability/metrics"
	"github.com/agropulse/cropalert-go/internal/infrastructure/realtime"
	"github.com/agropulse/cropalert-go/pkg/config"
)

// MutationKind labels the lifecycle change carried by an
// alert_update_notification frame.
type MutationKind string

const (
	MutationUpdated MutationKind = "updated"
	MutationDeleted MutationKind = "deleted"
)

// AlertPayload is the body of a new_alert_notification frame. Location
// is wire-ordered [lng, lat]; ExpiresAt is omitted for open-ended alerts.
type AlertPayload struct {
	AlertID     string     `json:"alertId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Severity    string     `json:"severity"`
	AlertType   string     `json:"alertType"`
	CropType    string     `json:"cropType"`
	CreatedAt   string     `json:"createdAt"`
	ExpiresAt   string     `json:"expiresAt,omitempty"`
	Location    [2]float64 `json:"location"`
	CreatorName string     `json:"creatorName"`
}

// AlertUpdatePayload is the body of an alert_update_notification frame.
type AlertUpdatePayload struct {
	AlertID    string `json:"alertId"`
	Title      string `json:"title"`
	UpdateType string `json:"updateType"`
	Message    string `json:"message"`
}

// NotificationDispatcher fans an alert lifecycle event out to every
// matching online farmer. It runs synchronously after the triggering
// write has committed; delivery is strictly best-effort and a dispatch
// failure never propagates back into the request that caused it.
type NotificationDispatcher struct {
	spatial      *SpatialIndex
	registry     *realtime.Registry
	transport    realtime.Transport
	logger       *logging.ChanneledLogger
	metrics      *metrics.Collector
	radiusMeters float64
	now          func() time.Time
}

// NewNotificationDispatcher creates the dispatcher with the configured
// notification radius and the wall clock.
func NewNotificationDispatcher(
	spatial *SpatialIndex,
	registry *realtime.Registry,
	transport realtime.Transport,
	logger *logging.ChanneledLogger,
	collector *metrics.Collector,
) *NotificationDispatcher {
	return &NotificationDispatcher{
		spatial:      spatial,
		registry:     registry,
		transport:    transport,
		logger:       logger,
		metrics:      collector,
		radiusMeters: config.NotifyRadiusMeters,
		now:          time.Now,
	}
}

// NotifyCreated pushes a new_alert_notification to every matching online
// farmer and returns the number of recipients that received at least one
// frame.
func (d *NotificationDispatcher) NotifyCreated(a *alert.Alert) int {
	return d.dispatch(a, realtime.EventNewAlert, buildAlertPayload(a))
}

// NotifyMutated pushes an alert_update_notification describing an update
// or deletion to every matching online farmer.
func (d *NotificationDispatcher) NotifyMutated(a *alert.Alert, kind MutationKind) int {
	payload := AlertUpdatePayload{
		AlertID:    a.ID,
		Title:      a.Title,
		UpdateType: string(kind),
		Message:    fmt.Sprintf("Alert '%s' has been %s", a.Title, kind),
	}
	return d.dispatch(a, realtime.EventAlertUpdate, payload)
}

// dispatch resolves recipients and emits one frame per online recipient's
// personal room. The payload is built exactly once per batch; a failure
// against one recipient never aborts the rest.
func (d *NotificationDispatcher) dispatch(a *alert.Alert, event string, payload any) int {
	start := d.now()

	candidates, err := d.spatial.CandidatesNear(a.Location, d.radiusMeters)
	if err != nil {
		d.metrics.RecordSpatialFailure()
		d.logger.Dispatch().Error("Dispatch aborted, spatial query failed",
			"alertId", a.ID, "event", event, "error", err.Error())
		return 0
	}

	recipients := match.SelectRecipients(*a, candidates, d.now())
	if len(recipients) == 0 {
		d.logger.Dispatch().Debug("No matching recipients", "alertId", a.ID, "event", event)
		d.metrics.RecordDispatch(0, d.now().Sub(start))
		return 0
	}

	delivered := 0
	for _, recipient := range recipients {
		if len(d.registry.SessionsOf(recipient.ID)) == 0 {
			d.metrics.RecordOfflineSkip()
			continue
		}

		if err := d.transport.Emit(event, payload, realtime.UserRoom(recipient.ID)); err != nil {
			d.metrics.RecordDeliveryFailure()
			d.logger.Dispatch().Warn("Delivery failed",
				"alertId", a.ID, "userId", recipient.ID, "event", event, "error", err.Error())
			continue
		}
		delivered++
	}

	d.metrics.RecordDelivered(delivered)
	d.metrics.RecordDispatch(len(recipients), d.now().Sub(start))
	d.logger.Dispatch().Info("Dispatch complete",
		"alertId", a.ID, "event", event, "matched", len(recipients), "delivered", delivered)
	return delivered
}

// buildAlertPayload flattens an alert into its notification shape.
func buildAlertPayload(a *alert.Alert) AlertPayload {
	payload := AlertPayload{
		AlertID:     a.ID,
		Title:       a.Title,
		Description: a.Description,
		Severity:    string(a.Severity),
		AlertType:   string(a.AlertType),
		CropType:    a.CropType,
		CreatedAt:   a.CreatedAt.UTC().Format(time.RFC3339),
		Location:    a.Location.LngLat(),
		CreatorName: a.CreatorName,
	}
	if a.ExpiresAt != nil {
		payload.ExpiresAt = a.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return payload
}
