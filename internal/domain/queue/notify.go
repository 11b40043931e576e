package queue

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/medqueue/medqueue/internal/platform/websocket"
)

// NextUpContent is the message stored and pushed when a patient reaches
// the front of the queue.
const NextUpContent = "You're next! Please be ready."

// Dispatcher notifies the patient at the front of the queue.
type Dispatcher interface {
	NotifyNext(ctx context.Context, appt *Appointment) error
}

type dispatcher struct {
	messages MessageRepository
	events   websocket.EventPublisher
	log      zerolog.Logger
}

// NewDispatcher builds a Dispatcher that records a message per
// appointment and pushes a live event. events may be nil.
func NewDispatcher(messages MessageRepository, events websocket.EventPublisher, log zerolog.Logger) Dispatcher {
	return &dispatcher{messages: messages, events: events, log: log}
}

// NotifyNext stores the next-up message for the appointment. The unique
// constraint on appointment_id makes repeated calls a no-op, so a
// patient is messaged at most once per visit.
func (d *dispatcher) NotifyNext(ctx context.Context, appt *Appointment) error {
	m := &Message{
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		Content:       NextUpContent,
	}
	created, err := d.messages.Create(ctx, m)
	if err != nil {
		return fmt.Errorf("recording next-up message: %w", err)
	}
	if !created {
		return nil
	}

	d.log.Info().
		Str("appointment_id", appt.ID.String()).
		Str("patient_id", appt.PatientID.String()).
		Msg("patient notified: next up")

	if d.events != nil {
		event := websocket.NewQueueEvent(websocket.EventPatientNotified, appt.ID.String(), appt.PatientID.String(), nil)
		event.Topic = websocket.TopicMessages
		if err := d.events.Publish(ctx, event); err != nil {
			d.log.Warn().Err(err).Msg("publishing notification event")
		}
	}
	return nil
}
