package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Topics the alert consumer subscribes to.
var Topics = []string{
	"booking.appointment.booked.v1",
	"booking.appointment.cancelled.v1",
	"salon.schedule.updated.v1",
	"salon.staff.created.v1",
	"salon.staff.updated.v1",
	"salon.staff.deleted.v1",
}

type Credentials struct {
	BotToken string
	ChatID   string
}

type CredentialsSource interface {
	StaffCredentials(ctx context.Context, staffID string) (Credentials, error)
}

type Telegram interface {
	SendMessage(ctx context.Context, botToken, chatID, text, parseMode string) error
}

// Handler turns domain events into immediate Telegram alerts for the staff
// member involved. Delivery is best effort: a failed send is logged and the
// event is considered handled, never retried.
type Handler struct {
	creds  CredentialsSource
	tg     Telegram
	logger *slog.Logger
	loc    *time.Location
}

func NewHandler(creds CredentialsSource, tg Telegram, logger *slog.Logger, loc *time.Location) *Handler {
	return &Handler{creds: creds, tg: tg, logger: logger, loc: loc}
}

type appointmentEvent struct {
	AppointmentID string `json:"appointment_id"`
	StaffID       string `json:"staff_id"`
	StaffName     string `json:"staff_name"`
	ServiceName   string `json:"service_name"`
	ClientName    string `json:"client_name"`
	StartTime     string `json:"start_time"`
	Reason        string `json:"reason"`
}

type scheduleEvent struct {
	StaffID    string `json:"staff_id"`
	StaffName  string `json:"staff_name"`
	ChangeType string `json:"change_type"`
	Details    string `json:"details"`
}

func (h *Handler) Handle(ctx context.Context, msg kafka.Message) error {
	switch msg.Topic {
	case "booking.appointment.booked.v1":
		return h.handleAppointment(ctx, msg.Value, false)
	case "booking.appointment.cancelled.v1":
		return h.handleAppointment(ctx, msg.Value, true)
	case "salon.schedule.updated.v1", "salon.staff.created.v1", "salon.staff.updated.v1", "salon.staff.deleted.v1":
		return h.handleSchedule(ctx, msg.Value)
	default:
		h.logger.Warn("unknown alert topic", "topic", msg.Topic)
		return nil
	}
}

func (h *Handler) handleAppointment(ctx context.Context, payload []byte, cancelled bool) error {
	var evt appointmentEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		h.logger.Error("invalid appointment event payload", "err", err)
		return nil
	}
	if evt.StaffID == "" {
		return nil
	}

	start, err := time.Parse(time.RFC3339, evt.StartTime)
	if err != nil {
		h.logger.Error("invalid start_time in event", "appointment_id", evt.AppointmentID, "err", err)
		return nil
	}

	text := BookedMessage(evt.ClientName, evt.ServiceName, start.In(h.loc))
	if cancelled {
		text = CancelledMessage(evt.ClientName, evt.ServiceName, start.In(h.loc), evt.Reason)
	}
	h.send(ctx, evt.StaffID, text)
	return nil
}

func (h *Handler) handleSchedule(ctx context.Context, payload []byte) error {
	var evt scheduleEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		h.logger.Error("invalid schedule event payload", "err", err)
		return nil
	}
	if evt.StaffID == "" {
		return nil
	}
	h.send(ctx, evt.StaffID, ScheduleMessage(evt.StaffName, evt.ChangeType, evt.Details))
	return nil
}

func (h *Handler) send(ctx context.Context, staffID, text string) {
	creds, err := h.creds.StaffCredentials(ctx, staffID)
	if err != nil {
		h.logger.Warn("staff credentials lookup failed", "staff_id", staffID, "err", err)
		return
	}
	if creds.BotToken == "" || creds.ChatID == "" {
		return
	}
	if err := h.tg.SendMessage(ctx, creds.BotToken, creds.ChatID, text, "HTML"); err != nil {
		h.logger.Warn("telegram alert failed", "staff_id", staffID, "err", err)
	}
}

// appointmentNotice is the shared staff-bot layout for every per-appointment
// message; the dispatcher's created/reminder copies use it too.
func appointmentNotice(header, clientName, serviceName string, start time.Time, footer string) string {
	return fmt.Sprintf(`%s

👤 Клиент: %s
💆‍♂️ Услуга: %s
📅 Дата: %s
⏰ Время: %s

%s`,
		header, clientName, serviceName, start.Format("02.01.2006"), start.Format("15:04"), footer)
}

func BookedMessage(clientName, serviceName string, start time.Time) string {
	return appointmentNotice("🔔 <b>Новая запись</b>", clientName, serviceName, start,
		"<i>Пожалуйста, проверьте детали в админ-панели.</i>")
}

func ReminderMessage(clientName, serviceName string, start time.Time) string {
	return appointmentNotice("⏰ <b>Напоминание о записи</b>", clientName, serviceName, start,
		"<i>Запись скоро состоится.</i>")
}

func CancelledMessage(clientName, serviceName string, start time.Time, reason string) string {
	footer := "<i>Время освободилось для новых записей.</i>"
	if reason != "" {
		footer = fmt.Sprintf("❓ Причина: %s\n\n%s", reason, footer)
	}
	return appointmentNotice("❌ <b>Отмена записи</b>", clientName, serviceName, start, footer)
}

func ScheduleMessage(staffName, changeType, details string) string {
	kind := "Рабочие часы"
	if changeType == "time_off" {
		kind = "Отпуск/выходной"
	}
	return fmt.Sprintf(`📋 <b>Обновление расписания</b>

👨‍⚕️ Специалист: %s
🔄 Тип изменения: %s
ℹ️ Детали: %s

<i>Обновите график в системе бронирования.</i>`,
		staffName, kind, details)
}
