package alerts

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type fakeCreds struct {
	creds map[string]Credentials
}

func (f *fakeCreds) StaffCredentials(_ context.Context, staffID string) (Credentials, error) {
	return f.creds[staffID], nil
}

type sent struct {
	ChatID string
	Text   string
}

type fakeTelegram struct {
	messages []sent
}

func (f *fakeTelegram) SendMessage(_ context.Context, _, chatID, text, _ string) error {
	f.messages = append(f.messages, sent{ChatID: chatID, Text: text})
	return nil
}

func newTestHandler() (*Handler, *fakeTelegram) {
	tg := &fakeTelegram{}
	creds := &fakeCreds{creds: map[string]Credentials{
		"staff-1": {BotToken: "token", ChatID: "chat-1"},
	}}
	return NewHandler(creds, tg, slog.Default(), time.UTC), tg
}

func TestHandleBookedEvent(t *testing.T) {
	h, tg := newTestHandler()

	err := h.Handle(context.Background(), kafka.Message{
		Topic: "booking.appointment.booked.v1",
		Value: []byte(`{"appointment_id":"a-1","staff_id":"staff-1","client_name":"Мария","service_name":"Массаж","start_time":"2026-02-02T10:00:00Z"}`),
	})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if len(tg.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(tg.messages))
	}
	msg := tg.messages[0]
	if msg.ChatID != "chat-1" {
		t.Fatalf("chat id = %q", msg.ChatID)
	}
	for _, want := range []string{"Новая запись", "Мария", "Массаж", "02.02.2026", "10:00"} {
		if !strings.Contains(msg.Text, want) {
			t.Fatalf("message missing %q: %s", want, msg.Text)
		}
	}
}

func TestHandleCancelledEventWithReason(t *testing.T) {
	h, tg := newTestHandler()

	err := h.Handle(context.Background(), kafka.Message{
		Topic: "booking.appointment.cancelled.v1",
		Value: []byte(`{"staff_id":"staff-1","client_name":"Мария","service_name":"Массаж","start_time":"2026-02-02T10:00:00Z","reason":"клиент заболел"}`),
	})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if len(tg.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(tg.messages))
	}
	if !strings.Contains(tg.messages[0].Text, "Отмена записи") || !strings.Contains(tg.messages[0].Text, "клиент заболел") {
		t.Fatalf("unexpected text: %s", tg.messages[0].Text)
	}
}

func TestHandleStaffWithoutCredentialsSkipped(t *testing.T) {
	h, tg := newTestHandler()

	err := h.Handle(context.Background(), kafka.Message{
		Topic: "booking.appointment.booked.v1",
		Value: []byte(`{"staff_id":"staff-2","client_name":"Мария","service_name":"Массаж","start_time":"2026-02-02T10:00:00Z"}`),
	})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if len(tg.messages) != 0 {
		t.Fatalf("expected no messages, got %d", len(tg.messages))
	}
}

func TestHandleInvalidPayloadSwallowed(t *testing.T) {
	h, tg := newTestHandler()

	err := h.Handle(context.Background(), kafka.Message{
		Topic: "booking.appointment.booked.v1",
		Value: []byte(`not json`),
	})
	if err != nil {
		t.Fatalf("invalid payload must not error (no retry), got %v", err)
	}
	if len(tg.messages) != 0 {
		t.Fatal("unexpected message for invalid payload")
	}
}

func TestHandleScheduleUpdate(t *testing.T) {
	h, tg := newTestHandler()

	err := h.Handle(context.Background(), kafka.Message{
		Topic: "salon.schedule.updated.v1",
		Value: []byte(`{"staff_id":"staff-1","staff_name":"Анна","change_type":"time_off","details":"отпуск 10.03-12.03"}`),
	})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if len(tg.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(tg.messages))
	}
	if !strings.Contains(tg.messages[0].Text, "Отпуск/выходной") {
		t.Fatalf("unexpected text: %s", tg.messages[0].Text)
	}
}
