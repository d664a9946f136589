package capture

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"reelcap/internal/logging"
)

// DeviceWatcher listens for udev remove events and reports when a device
// held by the active capture disappears.
type DeviceWatcher struct {
	logger    *slog.Logger
	active    func() []string
	onRemoved func(ctx context.Context, device string)

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewDeviceWatcher creates a watcher. active lists the device nodes in use;
// onRemoved runs for each removal that matches one of them.
func NewDeviceWatcher(logger *slog.Logger, active func() []string, onRemoved func(ctx context.Context, device string)) *DeviceWatcher {
	return &DeviceWatcher{
		logger:    logging.NewComponentLogger(logger, "device-watcher"),
		active:    active,
		onRemoved: onRemoved,
	}
}

// Start begins listening. Failure to open the netlink socket is logged and
// leaves the watcher inactive.
func (w *DeviceWatcher) Start(ctx context.Context) error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		logging.WarnWithContext(w.logger, "failed to connect to netlink socket; device removal will not be detected", "netlink_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "ensure the daemon may open NETLINK_KOBJECT_UEVENT sockets"),
			logging.String(logging.FieldImpact, "unplugged devices surface only when the recording stops"),
		)
		return nil
	}
	w.conn = conn
	w.quit = make(chan struct{})
	w.running = true

	quit := w.quit
	go w.loop(ctx, conn, quit)
	w.logger.Info("device watcher started", logging.String(logging.FieldEventType, "device_watcher_started"))
	return nil
}

// Stop shuts the watcher down. It is safe to call repeatedly.
func (w *DeviceWatcher) Stop() {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	close(w.quit)
	w.quit = nil
	if w.conn != nil {
		_ = w.conn.Close()
		w.conn = nil
	}
	w.running = false
	w.logger.Info("device watcher stopped", logging.String(logging.FieldEventType, "device_watcher_stopped"))
}

// Running reports whether the watcher is listening.
func (w *DeviceWatcher) Running() bool {
	if w == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *DeviceWatcher) loop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, buildRemovalMatcher())
	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			w.handleEvent(ctx, uevent)
		case err := <-errs:
			logging.WarnWithContext(w.logger, "netlink monitor error", "netlink_monitor_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "device removal detection may be affected"),
			)
		}
	}
}

// buildRemovalMatcher matches ACTION=remove for camera and sound devices.
func buildRemovalMatcher() netlink.Matcher {
	action := "remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "^(video4linux|sound)$",
		},
	})
	return rules
}

func (w *DeviceWatcher) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	device := deviceName(uevent)
	if device == "" {
		w.logger.Debug("ignoring event without device name",
			logging.String("action", string(uevent.Action)),
			logging.String("kobj", uevent.KObj),
		)
		return
	}
	inUse := false
	if w.active != nil {
		for _, d := range w.active() {
			if d == device {
				inUse = true
				break
			}
		}
	}
	if !inUse {
		w.logger.Debug("ignoring removal of idle device", logging.String("device", device))
		return
	}
	logging.WarnWithContext(w.logger, "capture device removed during recording", "device_removed",
		logging.String("device", device),
		logging.String(logging.FieldErrorHint, "reconnect the device and start a new recording"),
		logging.String(logging.FieldImpact, "recording may be missing video or audio"),
	)
	if w.onRemoved != nil {
		w.onRemoved(ctx, device)
	}
}

// deviceName prefers DEVNAME and falls back to the last DEVPATH element.
func deviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		if !strings.HasPrefix(devname, "/") {
			devname = "/dev/" + devname
		}
		return devname
	}
	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	return "/dev/" + parts[len(parts)-1]
}
