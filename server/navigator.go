package server

import (
	"github.com/jrsteele09/fleet-console/notify"
	"github.com/jrsteele09/fleet-console/session"
)

// NotificationNavigator turns a session redirect into a system notification
// so every open console view learns it has to go back to the login page.
func NotificationNavigator(ch *notify.Channel) session.Navigator {
	return session.NavigatorFunc(func(location string) {
		ch.Push(notify.Notification{
			Type:     notify.TypeSystem,
			Title:    "Signed out",
			Message:  sessionExpiredNotice,
			Priority: notify.PriorityHigh,
			Data:     map[string]any{"redirect": location},
		})
	})
}
