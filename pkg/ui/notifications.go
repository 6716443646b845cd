package ui

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"profilegrab/pkg/events"
)

// NotificationSender delivers a desktop notification
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender uses notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", title, message).Run()
}

// MacOSNotificationSender uses osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	return exec.Command("osascript", "-e", script).Run()
}

// WindowsNotificationSender uses a PowerShell toast
type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null
		$xml = @"
<toast><visual><binding template="ToastText02">
	<text id="1">%s</text>
	<text id="2">%s</text>
</binding></visual></toast>
"@
		$doc = [Windows.Data.Xml.Dom.XmlDocument]::new()
		$doc.LoadXml($xml)
		$toast = [Windows.UI.Notifications.ToastNotification]::new($doc)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("profilegrab").Show($toast)
	`, xmlEscape(title), xmlEscape(message))

	return exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script).Run()
}

func xmlEscape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}

// DefaultSender picks the sender for the current OS, nil when unsupported
func DefaultSender() NotificationSender {
	switch runtime.GOOS {
	case "linux":
		return &LinuxNotificationSender{}
	case "darwin":
		return &MacOSNotificationSender{}
	case "windows":
		return &WindowsNotificationSender{}
	}
	return nil
}

// Notifier raises a desktop notification when a run finishes. It is an
// events.Emitter and ignores everything but terminal events.
type Notifier struct {
	sender NotificationSender
	title  string
}

// NewNotifier creates a notifier titled after the scraped target
func NewNotifier(sender NotificationSender, title string) *Notifier {
	return &Notifier{sender: sender, title: title}
}

// Emit implements events.Emitter. Delivery failures are swallowed; a missing
// notification daemon must not fail the run.
func (n *Notifier) Emit(e events.Event) error {
	if n.sender == nil || !e.Terminal() {
		return nil
	}
	title := n.title
	if e.Type == events.TypeError {
		title += " failed"
	}
	_ = n.sender.Send(title, e.Message())
	return nil
}
