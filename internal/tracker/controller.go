package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/visit-tracker/internal/domain"
	"github.com/couchcryptid/visit-tracker/internal/observability"
)

// Mode is the tracking mode. Continuous tracking is a temporary overlay on
// visit tracking: disabling it falls back to ModeVisits, not ModeDisabled,
// while base tracking remains enabled.
type Mode string

const (
	ModeDisabled   Mode = "disabled"
	ModeVisits     Mode = "visits"
	ModeContinuous Mode = "continuous"
)

// RemainingStatus qualifies the continuous-tracking auto-off countdown.
type RemainingStatus string

const (
	RemainingNotRunning RemainingStatus = "not_running"
	RemainingNoLimit    RemainingStatus = "no_limit"
	RemainingRunning    RemainingStatus = "running"
)

// SensorController is the external device-control collaborator. Calls are
// fire-and-forget; the device answers asynchronously through sensor events.
type SensorController interface {
	StartVisitMonitoring()
	StopVisitMonitoring()
	StartContinuousUpdates()
	StopContinuousUpdates()
	RequestPermission()
}

// ModeController owns permission state and the tracking modes, including
// the continuous-mode auto-off timer. Permission changes arrive from any
// goroutine and are serialized by the controller's mutex.
type ModeController struct {
	mu sync.Mutex

	permission       domain.PermissionStatus
	trackingWanted   bool // user intent, persisted and restored
	continuousWanted bool
	trackingActive   bool
	continuous       bool
	continuousFrom   time.Time
	autoOffTimer     clockwork.Timer

	autoOff time.Duration // 0 means never auto-off
	clock   clockwork.Clock
	sensors SensorController
	store   VisitStore
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewModeController creates a controller. autoOffHours 0 disables the
// continuous auto-off timer.
func NewModeController(sensors SensorController, store VisitStore, autoOffHours float64, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *ModeController {
	return &ModeController{
		permission: domain.PermissionUnknown,
		autoOff:    time.Duration(autoOffHours * float64(time.Hour)),
		clock:      clock,
		sensors:    sensors,
		store:      store,
		logger:     logger,
		metrics:    metrics,
	}
}

// Restore re-applies the persisted tracking flags at startup. Monitoring is
// only activated once a permission event confirms access.
func (c *ModeController) Restore(ctx context.Context) {
	settings, err := c.store.LoadSettings(ctx)
	if err != nil {
		c.logger.Warn("load settings failed", "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.trackingWanted = settings.TrackingEnabled
	c.continuousWanted = settings.TrackingEnabled && settings.ContinuousEnabled
	if c.trackingWanted && c.permission.AllowsTracking() {
		c.activateLocked()
		if c.continuousWanted {
			c.startContinuousLocked(ctx)
		}
	}
	c.logger.Info("settings restored",
		"tracking_enabled", settings.TrackingEnabled,
		"continuous_enabled", settings.ContinuousEnabled,
	)
}

// EnableTracking requests visit tracking. Without sufficient permission it
// triggers a permission request and leaves the mode unchanged; the pending
// intent is applied when the permission callback grants access.
func (c *ModeController) EnableTracking(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.trackingWanted = true
	c.persistLocked(ctx)

	if !c.permission.AllowsTracking() {
		c.logger.Info("tracking requested without permission, asking device", "permission", c.permission)
		c.sensors.RequestPermission()
		return
	}
	c.activateLocked()
}

// DisableTracking turns all tracking off unconditionally, forcing
// continuous mode off as well.
func (c *ModeController) DisableTracking(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.trackingWanted = false
	if c.continuous {
		c.stopContinuousLocked(ctx, false)
	}
	if c.trackingActive {
		c.trackingActive = false
		c.sensors.StopVisitMonitoring()
	}
	c.persistLocked(ctx)
	c.metrics.TrackingMode.Set(0)
	c.logger.Info("tracking disabled")
}

// EnableContinuous starts high-frequency updates on top of visit tracking.
// A no-op without permission or while base tracking is off.
func (c *ModeController) EnableContinuous(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.permission.AllowsTracking() || !c.trackingActive {
		c.logger.Info("continuous tracking rejected",
			"permission", c.permission,
			"tracking_active", c.trackingActive,
		)
		return
	}
	c.startContinuousLocked(ctx)
}

// DisableContinuous stops high-frequency updates. If base tracking is still
// enabled the controller resumes ordinary visit monitoring, never leaving
// the sensor fully idle against the user's intent.
func (c *ModeController) DisableContinuous(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.continuous {
		return
	}
	c.stopContinuousLocked(ctx, true)
}

// HandlePermissionChange is the asynchronous permission callback. Granting
// while tracking is wanted but not yet active (re)activates monitoring;
// revoking while active deactivates it, keeping the intent for later.
func (c *ModeController) HandlePermissionChange(ctx context.Context, status domain.PermissionStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.permission = status
	c.logger.Info("permission changed", "permission", status)

	if status.AllowsTracking() {
		if c.trackingWanted && !c.trackingActive {
			c.activateLocked()
			if c.continuousWanted && !c.continuous {
				c.startContinuousLocked(ctx)
			}
		}
		return
	}

	if c.continuous {
		c.stopContinuousLocked(ctx, false)
	}
	if c.trackingActive {
		c.trackingActive = false
		c.sensors.StopVisitMonitoring()
		c.metrics.TrackingMode.Set(0)
	}
}

// Mode returns the current tracking mode.
func (c *ModeController) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.modeLocked()
}

// Permission returns the last known permission status.
func (c *ModeController) Permission() domain.PermissionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.permission
}

// Remaining reports the time left before continuous tracking auto-disables.
// It returns RemainingNotRunning while continuous mode is off and
// RemainingNoLimit when no auto-off is configured, even while running.
func (c *ModeController) Remaining() (time.Duration, RemainingStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.continuous {
		return 0, RemainingNotRunning
	}
	if c.autoOff == 0 {
		return 0, RemainingNoLimit
	}
	remaining := c.autoOff - c.clock.Since(c.continuousFrom)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, RemainingRunning
}

func (c *ModeController) modeLocked() Mode {
	switch {
	case c.continuous:
		return ModeContinuous
	case c.trackingActive:
		return ModeVisits
	default:
		return ModeDisabled
	}
}

func (c *ModeController) activateLocked() {
	c.trackingActive = true
	c.sensors.StartVisitMonitoring()
	c.metrics.TrackingMode.Set(1)
	c.logger.Info("visit tracking active")
}

func (c *ModeController) startContinuousLocked(ctx context.Context) {
	// The old timer must never keep running alongside a replacement.
	c.stopTimerLocked()

	c.continuous = true
	c.continuousWanted = true
	c.continuousFrom = c.clock.Now()
	c.sensors.StartContinuousUpdates()
	c.metrics.TrackingMode.Set(2)
	c.persistLocked(ctx)

	if c.autoOff > 0 {
		c.autoOffTimer = c.clock.AfterFunc(c.autoOff, c.autoOffFired)
		c.logger.Info("continuous tracking active", "auto_off_in", c.autoOff)
	} else {
		c.logger.Info("continuous tracking active", "auto_off_in", "never")
	}
}

// stopContinuousLocked stops high-accuracy updates. resume controls whether
// visit monitoring is restarted for still-enabled base tracking; the full
// DisableTracking path passes false because everything is going down.
func (c *ModeController) stopContinuousLocked(ctx context.Context, resume bool) {
	c.stopTimerLocked()
	c.continuous = false
	c.continuousWanted = false
	c.continuousFrom = time.Time{}
	c.sensors.StopContinuousUpdates()
	c.persistLocked(ctx)

	if resume && c.trackingActive {
		c.sensors.StartVisitMonitoring()
		c.metrics.TrackingMode.Set(1)
	}
	c.logger.Info("continuous tracking stopped", "mode", c.modeLocked())
}

func (c *ModeController) stopTimerLocked() {
	if c.autoOffTimer != nil {
		c.autoOffTimer.Stop()
		c.autoOffTimer = nil
	}
}

// autoOffFired is the single-shot timer callback.
func (c *ModeController) autoOffFired() {
	c.logger.Info("continuous tracking auto-off timer fired")
	c.DisableContinuous(context.Background())
}

func (c *ModeController) persistLocked(ctx context.Context) {
	s := Settings{
		TrackingEnabled:   c.trackingWanted,
		ContinuousEnabled: c.continuousWanted,
	}
	if err := c.store.SaveSettings(ctx, s); err != nil {
		c.logger.Warn("persist settings failed", "error", err)
	}
}
