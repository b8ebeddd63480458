package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/intonus/salon-backend/services/notify-service/internal/alerts"
	"github.com/intonus/salon-backend/services/notify-service/internal/gateway"
	"github.com/intonus/salon-backend/services/notify-service/internal/queue"
)

type fakeTx struct {
	pgx.Tx
}

func (fakeTx) Commit(context.Context) error   { return nil }
func (fakeTx) Rollback(context.Context) error { return nil }

type storedItem struct {
	queue.Item
	Status string
	Error  string
}

type fakeStore struct {
	items map[int64]*storedItem
}

func (s *fakeStore) Begin(context.Context) (pgx.Tx, error) { return fakeTx{}, nil }

func (s *fakeStore) FetchDue(_ context.Context, _ pgx.Tx, limit int, now time.Time) ([]queue.Item, error) {
	var due []queue.Item
	for _, it := range s.items {
		if it.Status == "pending" && !it.ScheduledTime.After(now) {
			due = append(due, it.Item)
		}
		if len(due) == limit {
			break
		}
	}
	return due, nil
}

func (s *fakeStore) MarkSent(_ context.Context, _ pgx.Tx, id int64, _ time.Time) error {
	s.items[id].Status = "sent"
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, _ pgx.Tx, id int64, errMsg string) error {
	s.items[id].Status = "failed"
	s.items[id].Error = errMsg
	return nil
}

type sentMessage struct {
	Phone    string
	Text     string
	Priority int
	Route    string
}

type fakeGateway struct {
	balance   float64
	failPhone string
	sent      []sentMessage
}

func (g *fakeGateway) SendMessage(_ context.Context, phone, text string, priority int, route string) (string, error) {
	if phone == g.failPhone {
		return "", gateway.GatewayError{Code: "45", Message: "undeliverable"}
	}
	g.sent = append(g.sent, sentMessage{Phone: phone, Text: text, Priority: priority, Route: route})
	return "1", nil
}

func (g *fakeGateway) CheckBalance(context.Context) (float64, error) {
	return g.balance, nil
}

type telegramCopy struct {
	ChatID string
	Text   string
}

type fakeTelegram struct {
	copies []telegramCopy
	err    error
}

func (t *fakeTelegram) SendMessage(_ context.Context, _, chatID, text, _ string) error {
	if t.err != nil {
		return t.err
	}
	t.copies = append(t.copies, telegramCopy{ChatID: chatID, Text: text})
	return nil
}

var testNow = time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)

func newItem(id int64, tplType string) *storedItem {
	return &storedItem{
		Item: queue.Item{
			ID:                id,
			AppointmentID:     "appt-1",
			ScheduledTime:     testNow.Add(-time.Minute),
			TemplateType:      tplType,
			MessageTemplate:   "{client_name}, ждём вас на {service_name} {appointment_time}",
			ClientName:        "Мария",
			ClientPhone:       "79161234567",
			ServiceName:       "Массаж",
			StaffName:         "Анна",
			AppointmentStart:  testNow.Add(2 * time.Hour),
			AppointmentStatus: "pending",
		},
		Status: "pending",
	}
}

func newDispatcher(store *fakeStore, gw *fakeGateway, tg *fakeTelegram) *Dispatcher {
	d := New(store, gw, tg, slog.Default(), time.UTC, Config{
		Location: "ул. Ленина, 1",
		SiteURL:  "https://salon.example/",
	})
	d.now = func() time.Time { return testNow }
	return d
}

func TestCycleSendsDueItemOnce(t *testing.T) {
	store := &fakeStore{items: map[int64]*storedItem{1: newItem(1, "appointment_created")}}
	gw := &fakeGateway{balance: 100}
	d := newDispatcher(store, gw, nil)

	if err := d.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}
	if store.items[1].Status != "sent" {
		t.Fatalf("status = %q, want sent", store.items[1].Status)
	}
	if len(gw.sent) != 1 {
		t.Fatalf("expected 1 send, got %d", len(gw.sent))
	}
	if gw.sent[0].Text != "Мария, ждём вас на Массаж 02.02.2026 11:00" {
		t.Fatalf("rendered text = %q", gw.sent[0].Text)
	}

	// A second cycle must not re-send a terminal item.
	if err := d.Cycle(context.Background()); err != nil {
		t.Fatalf("second Cycle failed: %v", err)
	}
	if len(gw.sent) != 1 {
		t.Fatalf("terminal item re-sent: %d sends", len(gw.sent))
	}
}

func TestCycleFillsSiteLinks(t *testing.T) {
	review := newItem(1, "post_appointment")
	review.Item.MessageTemplate = "{client_name}, спасибо, что выбрали нас! Будем рады отзыву: {review_link}"
	returning := newItem(2, "return_reminder")
	returning.Item.MessageTemplate = "{client_name}, запишитесь снова: {booking_link}"

	store := &fakeStore{items: map[int64]*storedItem{1: review, 2: returning}}
	gw := &fakeGateway{balance: 100}
	d := newDispatcher(store, gw, nil)

	if err := d.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}
	if len(gw.sent) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(gw.sent))
	}
	for _, m := range gw.sent {
		if strings.Contains(m.Text, "{") {
			t.Fatalf("unfilled placeholder delivered to client: %q", m.Text)
		}
	}
	texts := map[string]bool{}
	for _, m := range gw.sent {
		texts[m.Text] = true
	}
	if !texts["Мария, спасибо, что выбрали нас! Будем рады отзыву: https://salon.example/reviews"] {
		t.Fatalf("review link not resolved: %+v", gw.sent)
	}
	if !texts["Мария, запишитесь снова: https://salon.example/booking"] {
		t.Fatalf("booking link not resolved: %+v", gw.sent)
	}
}

func TestCycleZeroBalanceSkipsEverything(t *testing.T) {
	store := &fakeStore{items: map[int64]*storedItem{1: newItem(1, "appointment_created")}}
	gw := &fakeGateway{balance: 0}
	d := newDispatcher(store, gw, nil)

	if err := d.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}
	if store.items[1].Status != "pending" {
		t.Fatalf("status = %q, want pending (left for the next cycle)", store.items[1].Status)
	}
	if len(gw.sent) != 0 {
		t.Fatalf("sent %d messages with zero balance", len(gw.sent))
	}
}

func TestCyclePerItemFailureIsolation(t *testing.T) {
	bad := newItem(1, "appointment_created")
	bad.Item.ClientPhone = "70000000000"
	good := newItem(2, "appointment_created")

	store := &fakeStore{items: map[int64]*storedItem{1: bad, 2: good}}
	gw := &fakeGateway{balance: 100, failPhone: "70000000000"}
	d := newDispatcher(store, gw, nil)

	if err := d.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}
	if store.items[1].Status != "failed" {
		t.Fatalf("bad item status = %q, want failed", store.items[1].Status)
	}
	if store.items[1].Error == "" {
		t.Fatal("failed item has no error message")
	}
	if store.items[2].Status != "sent" {
		t.Fatalf("good item status = %q, want sent", store.items[2].Status)
	}
}

func TestCycleReminderGetsHighPriority(t *testing.T) {
	store := &fakeStore{items: map[int64]*storedItem{
		1: newItem(1, "appointment_reminder"),
		2: newItem(2, "post_appointment"),
	}}
	gw := &fakeGateway{balance: 100}
	d := newDispatcher(store, gw, nil)

	if err := d.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}
	priorities := map[int]bool{}
	for _, m := range gw.sent {
		priorities[m.Priority] = true
	}
	if !priorities[gateway.PriorityHigh] || !priorities[gateway.PriorityDefault] {
		t.Fatalf("priorities = %+v, want both high and default", gw.sent)
	}
}

func TestCycleCancelledAppointmentFails(t *testing.T) {
	it := newItem(1, "appointment_reminder")
	it.Item.AppointmentStatus = "cancelled"
	store := &fakeStore{items: map[int64]*storedItem{1: it}}
	gw := &fakeGateway{balance: 100}
	d := newDispatcher(store, gw, nil)

	if err := d.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}
	if store.items[1].Status != "failed" {
		t.Fatalf("status = %q, want failed", store.items[1].Status)
	}
	if len(gw.sent) != 0 {
		t.Fatal("cancelled appointment still produced a send")
	}
}

func TestCycleStaffTelegramCopy(t *testing.T) {
	it := newItem(1, "appointment_created")
	it.Item.StaffBotToken = "bot-token"
	it.Item.StaffChatID = "chat-1"
	store := &fakeStore{items: map[int64]*storedItem{1: it}}
	gw := &fakeGateway{balance: 100}
	tg := &fakeTelegram{}
	d := newDispatcher(store, gw, tg)

	if err := d.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}
	if len(tg.copies) != 1 {
		t.Fatalf("expected 1 telegram copy, got %d", len(tg.copies))
	}
	if tg.copies[0].ChatID != "chat-1" {
		t.Fatalf("chat id = %q", tg.copies[0].ChatID)
	}
	want := alerts.BookedMessage("Мария", "Массаж", testNow.Add(2*time.Hour))
	if tg.copies[0].Text != want {
		t.Fatalf("staff copy = %q, want the shared booked layout", tg.copies[0].Text)
	}
}

func TestCycleTelegramFailureDoesNotFailItem(t *testing.T) {
	it := newItem(1, "appointment_created")
	it.Item.StaffBotToken = "bot-token"
	it.Item.StaffChatID = "chat-1"
	store := &fakeStore{items: map[int64]*storedItem{1: it}}
	gw := &fakeGateway{balance: 100}
	tg := &fakeTelegram{err: errors.New("chat not found")}
	d := newDispatcher(store, gw, tg)

	if err := d.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}
	if store.items[1].Status != "sent" {
		t.Fatalf("status = %q, want sent despite telegram failure", store.items[1].Status)
	}
}
