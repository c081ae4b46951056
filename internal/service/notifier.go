package service

import "expensecontrol/internal/model"

// Notifier receives request lifecycle events once the change is committed.
// Implementations must not block the caller.
type Notifier interface {
	Publish(event model.RequestEvent)
}

type nopNotifier struct{}

func (nopNotifier) Publish(model.RequestEvent) {}

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}
