package service

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/tableside/api/internal/enum"
	"github.com/tableside/api/internal/notify"
)

// event is a row change collected inside a transaction and published after
// it commits.
type event struct {
	typ   string
	topic string
	row   any
}

// publisher fans committed changes out to the broker. A nil broker drops
// everything, which is what tests and one-off tools want.
type publisher struct {
	broker notify.Broker
}

// publish never fails the caller: the mutation is already committed, so
// broker errors are only logged.
func (p publisher) publish(ctx context.Context, events []event) {
	if p.broker == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	for _, e := range events {
		var (
			c   notify.Change
			err error
		)
		switch e.typ {
		case enum.ChangeInsert:
			c, err = notify.Insert(e.topic, e.row)
		case enum.ChangeDelete:
			c, err = notify.Delete(e.topic, e.row)
		default:
			c, err = notify.Update(e.topic, e.row)
		}
		if err == nil {
			err = p.broker.Publish(ctx, c)
		}
		if err != nil {
			log.WithError(err).WithFields(log.Fields{
				"topic": e.topic,
				"type":  e.typ,
			}).Error("publish change")
		}
	}
}
