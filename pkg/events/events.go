package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fairwaylabs/clubhouse/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	ID        string
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// Event subjects
const (
	// Booking events
	BookingCreated  = "booking.created"
	BookingPartial  = "booking.partial"
	BookingCanceled = "booking.canceled"

	// Guest events
	GuestInvited     = "guest.invited"
	ReferralRedeemed = "referral.redeemed"

	// Payment events
	GuestPassCharged      = "guestpass.charged"
	GuestPassChargeFailed = "guestpass.charge_failed"

	// Door events
	DoorCheckIn = "door.checkin"
)

// Event payloads
type BookingCreatedEvent struct {
	MemberID    string    `json:"member_id"`
	BookingIDs  []int64   `json:"booking_ids"`
	ServiceName string    `json:"service_name"`
	Day         string    `json:"day"`
	GuestCount  int       `json:"guest_count"`
	CreatedAt   time.Time `json:"created_at"`
}

type BookingPartialEvent struct {
	MemberID    string    `json:"member_id"`
	BookedIDs   []int64   `json:"booked_ids"`
	FailedSlots []string  `json:"failed_slots"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type BookingCanceledEvent struct {
	MemberID    string    `json:"member_id"`
	BookingID   int64     `json:"booking_id"`
	GuestsFreed int       `json:"guests_freed"`
	CanceledAt  time.Time `json:"canceled_at"`
}

type GuestInvitedEvent struct {
	MemberID     string    `json:"member_id"`
	GuestEmail   string    `json:"guest_email"`
	ReferralCode string    `json:"referral_code"`
	BookingID    int64     `json:"booking_id"`
	InvitedAt    time.Time `json:"invited_at"`
}

type ReferralRedeemedEvent struct {
	ReferralCode string    `json:"referral_code"`
	GuestEmail   string    `json:"guest_email"`
	RedeemedAt   time.Time `json:"redeemed_at"`
}

type GuestPassChargedEvent struct {
	MemberID    string `json:"member_id"`
	Passes      int    `json:"passes"`
	AmountCents int64  `json:"amount_cents"`
	PaymentID   string `json:"payment_id"`
}

type DoorCheckInEvent struct {
	MemberID  string    `json:"member_id"`
	DoorID    int64     `json:"door_id"`
	CheckedAt time.Time `json:"checked_at"`
}
