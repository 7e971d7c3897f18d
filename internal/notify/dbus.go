package notify

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/sandeepkv93/taskremind/internal/platform"
	"github.com/sandeepkv93/taskremind/internal/store"
)

const (
	notifyObj    = "org.freedesktop.Notifications"
	notifyPath   = "/org/freedesktop/Notifications"
	notifyMethod = "org.freedesktop.Notifications.Notify"
)

// Urgency levels of the desktop notification spec.
const (
	urgencyNormal   byte = 1
	urgencyCritical byte = 2
)

type caller interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// DBusNotifier posts notifications to org.freedesktop.Notifications on the
// session bus.
type DBusNotifier struct {
	conn    *dbus.Conn
	obj     caller
	appName string
	// ExpireTimeout in milliseconds; -1 lets the server decide.
	ExpireTimeout int32
}

func NewDBusNotifier(appName string) (*DBusNotifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("notify: connect session bus: %w", err)
	}
	n := newDBusNotifier(conn.Object(notifyObj, notifyPath), appName)
	n.conn = conn
	return n, nil
}

func newDBusNotifier(obj caller, appName string) *DBusNotifier {
	return &DBusNotifier{obj: obj, appName: appName, ExpireTimeout: -1}
}

func (n *DBusNotifier) Send(ctx context.Context, d platform.Delivery) error {
	urgency := urgencyNormal
	if d.Priority == store.PriorityMax {
		urgency = urgencyCritical
	}
	hints := map[string]dbus.Variant{
		"urgency":  dbus.MakeVariant(urgency),
		"category": dbus.MakeVariant("im.received"),
	}

	res := n.obj.CallWithContext(ctx,
		notifyMethod,
		0,
		n.appName,
		uint32(0),
		"",
		d.Title,
		d.Body,
		[]string{},
		hints,
		n.ExpireTimeout,
	)
	if res.Err != nil {
		return fmt.Errorf("notify: post %q: %w", d.Title, res.Err)
	}
	return nil
}

func (n *DBusNotifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Close()
}
