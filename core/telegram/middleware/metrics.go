package middleware

import tele "gopkg.in/telebot.v4"

const countersKey = "reply_counters"

// Counters summarise what a handler produced for one update.
type Counters struct {
	Sent     int
	Edited   int
	Deleted  int
	Keyboard bool
}

// countingContext wraps tele.Context and records outbound calls.
type countingContext struct {
	tele.Context
	n *Counters
}

func withMarkup(opts []any) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

func (c countingContext) count(err error, field *int, opts []any) error {
	if err == nil {
		*field++
		c.n.Keyboard = c.n.Keyboard || withMarkup(opts)
	}
	return err
}

func (c countingContext) Send(what any, opts ...any) error {
	return c.count(c.Context.Send(what, opts...), &c.n.Sent, opts)
}

func (c countingContext) Reply(what any, opts ...any) error {
	return c.count(c.Context.Reply(what, opts...), &c.n.Sent, opts)
}

func (c countingContext) Edit(what any, opts ...any) error {
	return c.count(c.Context.Edit(what, opts...), &c.n.Edited, opts)
}

func (c countingContext) EditOrSend(what any, opts ...any) error {
	edit := c.Callback() != nil
	err := c.Context.EditOrSend(what, opts...)
	if edit {
		return c.count(err, &c.n.Edited, opts)
	}
	return c.count(err, &c.n.Sent, opts)
}

func (c countingContext) Delete() error {
	return c.count(c.Context.Delete(), &c.n.Deleted, nil)
}

// MessageMetricsMiddleware counts the messages a handler sends, edits and deletes.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		n := &Counters{}
		c.Set(countersKey, n)
		return next(countingContext{Context: c, n: n})
	}
}

// GetCounters returns the counters recorded for the update in c.
func GetCounters(c tele.Context) Counters {
	if n, ok := c.Get(countersKey).(*Counters); ok && n != nil {
		return *n
	}
	return Counters{}
}
