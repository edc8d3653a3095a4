package indicator

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

const (
	notificationsDest = "org.freedesktop.Notifications"
	notificationsPath = "/org/freedesktop/Notifications"
	notifySignature   = "susssasa{sv}i"
	urgencyNormal     = 1
	urgencyCritical   = 2
)

// desktopSurface keeps one replaceable notification per owner.
type desktopSurface struct {
	appName string

	mu sync.Mutex
	id uint32
}

func newDesktopSurface(appName string) *desktopSurface {
	appName = strings.TrimSpace(appName)
	if appName == "" {
		appName = "voxdrop"
	}
	return &desktopSurface{appName: appName}
}

func (d *desktopSurface) show(ctx context.Context, st noticeStyle, text string) error {
	d.mu.Lock()
	replaceID := d.id
	d.mu.Unlock()

	id, err := desktopNotify(ctx, desktopNotice{
		AppName:   d.appName,
		ReplaceID: replaceID,
		Summary:   text,
		Urgency:   st.urgency,
		TimeoutMS: st.timeoutMS,
	})
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.id = id
	d.mu.Unlock()
	return nil
}

// clear closes the current notification, if any.
func (d *desktopSurface) clear(ctx context.Context) error {
	d.mu.Lock()
	id := d.id
	d.id = 0
	d.mu.Unlock()

	if id == 0 {
		return nil
	}
	return desktopDismiss(ctx, id)
}

// desktopNotice is one freedesktop Notify call. ReplaceID 0 asks for a new ID.
type desktopNotice struct {
	AppName   string
	ReplaceID uint32
	Summary   string
	Urgency   int
	TimeoutMS int
}

func (n desktopNotice) args() []string {
	return []string{
		"Notify", notifySignature,
		n.AppName,
		strconv.FormatUint(uint64(n.ReplaceID), 10),
		"", // icon
		n.Summary,
		"", // body
		"0",
		"1", "urgency", "y", strconv.Itoa(n.Urgency),
		strconv.Itoa(n.TimeoutMS),
	}
}

// desktopNotify sends n over the session bus and returns the server-assigned ID.
func desktopNotify(ctx context.Context, n desktopNotice) (uint32, error) {
	out, err := busctl(ctx, "notify", n.args()...)
	if err != nil {
		return 0, err
	}

	fields := strings.Fields(out)
	if len(fields) < 2 || fields[0] != "u" {
		return 0, fmt.Errorf("desktop notify invalid response: %q", out)
	}

	id, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("desktop notify parse id %q: %w", fields[1], err)
	}
	return uint32(id), nil
}

func desktopDismiss(ctx context.Context, id uint32) error {
	_, err := busctl(ctx, "dismiss", "CloseNotification", "u", strconv.FormatUint(uint64(id), 10))
	return err
}

// busctl calls a method on the notifications service and returns trimmed output.
func busctl(ctx context.Context, op string, method ...string) (string, error) {
	args := append([]string{"--user", "call", notificationsDest, notificationsPath, notificationsDest}, method...)
	raw, err := exec.CommandContext(ctx, "busctl", args...).CombinedOutput()
	out := strings.TrimSpace(string(raw))
	if err != nil {
		if out == "" {
			return "", fmt.Errorf("desktop %s failed: %w", op, err)
		}
		return "", fmt.Errorf("desktop %s failed: %w (%s)", op, err, out)
	}
	return out, nil
}
