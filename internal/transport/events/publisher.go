// Package events доставляет события заказов, выводов и ваучеров в NATS после фиксации транзакции.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

const (
	connectionName = "digimarket"
	reconnectWait  = 2 * time.Second
)

// Envelope формат сообщения в шине.
type Envelope struct {
	ID         uuid.UUID `json:"id"`
	Subject    string    `json:"subject"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

// Connect подключается к NATS. Переподключение бесконечное, события о потере связи уходят в лог.
func Connect(url string, l *logrus.Logger) (*nats.Conn, error) {
	log := l.WithFields(logrus.Fields{
		"component": "events",
		"module":    "nats",
	})
	nc, err := nats.Connect(url,
		nats.Name(connectionName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(reconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.WithField("url", c.ConnectedUrl()).Info("reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return nc, nil
}

// Publisher публикует события в NATS. Ошибки доставки только логируются.
type Publisher struct {
	conn Conn
	l    *logrus.Entry
	now  func() time.Time
}

func NewPublisher(conn Conn, l *logrus.Logger) *Publisher {
	return &Publisher{
		conn: conn,
		l: l.WithFields(logrus.Fields{
			"component": "events",
			"module":    "publisher",
		}),
		now: time.Now,
	}
}

func (p *Publisher) Publish(_ context.Context, subject string, payload any) {
	env := Envelope{
		ID:         uuid.New(),
		Subject:    subject,
		OccurredAt: p.now().UTC(),
		Payload:    payload,
	}
	l := p.l.WithFields(logrus.Fields{
		"subject": subject,
		"eventID": env.ID,
	})

	data, err := json.Marshal(env)
	if err != nil {
		l.WithError(err).Error("encode event")
		return
	}
	if err = p.conn.Publish(subject, data); err != nil {
		l.WithError(err).Error("publish event")
		return
	}
	l.Debug("published")
}

// Noop используется, когда NATS не настроен.
type Noop struct {
	l *logrus.Entry
}

func NewNoop(l *logrus.Logger) *Noop {
	return &Noop{l: l.WithField("component", "events")}
}

func (n *Noop) Publish(_ context.Context, subject string, _ any) {
	n.l.WithField("subject", subject).Debug("event dropped, nats is not configured")
}
