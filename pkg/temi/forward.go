package temi

import (
	"fmt"
	"strings"
)

// Head tilt limits (degrees).
const (
	MaxTiltAngle = 55
	MinTiltAngle = -25
)

// motionSpeed is sent with every turn and tilt; the service ignores any
// other value.
const motionSpeed float32 = 1.0

// clamp restricts v to the range [min, max].
func clamp[T int | float32](v, min, max T) T {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// invoke runs fn against the bound service. Absent service and transport
// failure both report false; failures are logged, never returned.
func (r *Robot) invoke(method string, fn func(Service) error) bool {
	svc := r.current()
	if svc == nil {
		r.logger.Debug("skipped, sdk service not connected", "method", method)
		return false
	}
	if err := fn(svc); err != nil {
		r.logger.Error("remote call failed", "method", method, "error", err)
		return false
	}
	return true
}

// query is invoke for calls with a result; def is returned on any failure.
func query[T any](r *Robot, method string, def T, fn func(Service) (T, error)) T {
	result := def
	ok := r.invoke(method, func(svc Service) error {
		v, err := fn(svc)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if !ok {
		return def
	}
	return result
}

// require is used by the operations that report disconnection to the caller.
func (r *Robot) require(method string, fn func(Service) error) error {
	svc := r.current()
	if svc == nil {
		r.logger.Warn("sdk service not connected", "method", method)
		return ErrNotReady
	}
	if err := fn(svc); err != nil {
		r.logger.Error("remote call failed", "method", method, "error", err)
		return fmt.Errorf("temi: %s: %w", method, err)
	}
	return nil
}

// OnStart tells the service which activity came to the foreground.
func (r *Robot) OnStart(activity ActivityInfo) {
	if r.current() == nil {
		r.logger.Warn("onStart skipped, sdk service not connected", "activity", activity.ActivityName)
		return
	}
	r.invoke("onStart", func(s Service) error { return s.OnStart(activity) })
}

// Speak queues a speech request on behalf of this application.
func (r *Robot) Speak(req TtsRequest) {
	req.PackageName = r.app.PackageName
	r.invoke("speak", func(s Service) error { return s.Speak(req) })
}

// CancelAllTtsRequests stops the current speech and empties the queue.
func (r *Robot) CancelAllTtsRequests() {
	r.invoke("cancelAll", func(s Service) error { return s.CancelAll() })
}

// LockContexts keeps the named contexts locked even without a visible UI.
func (r *Robot) LockContexts(contexts []string) {
	r.logger.Debug("lockContexts", "contexts", contexts)
	r.invoke("lockContexts", func(s Service) error { return s.LockContexts(contexts) })
}

// ReleaseContexts releases contexts locked by LockContexts.
func (r *Robot) ReleaseContexts(contexts []string) {
	r.logger.Debug("releaseContexts", "contexts", contexts)
	r.invoke("releaseContexts", func(s Service) error { return s.ReleaseContexts(contexts) })
}

// GoTo sends the robot to a saved location. An empty name is rejected
// without reaching the service.
func (r *Robot) GoTo(location string) error {
	r.logger.Debug("goTo", "location", location)
	if strings.TrimSpace(location) == "" {
		return ErrEmptyLocation
	}
	r.invoke("goTo", func(s Service) error { return s.GoTo(location) })
	return nil
}

// GetLocations returns the saved locations, or an empty list.
func (r *Robot) GetLocations() []string {
	return query(r, "getLocations", []string{}, func(s Service) ([]string, error) {
		locations, err := s.GetLocations()
		if locations == nil && err == nil {
			locations = []string{}
		}
		return locations, err
	})
}

// SaveLocation saves the current position under name.
func (r *Robot) SaveLocation(name string) bool {
	r.logger.Debug("saveLocation", "name", name)
	if strings.TrimSpace(name) == "" {
		return false
	}
	return query(r, "saveLocation", false, func(s Service) (bool, error) { return s.SaveLocation(name) })
}

// DeleteLocation deletes a saved location.
func (r *Robot) DeleteLocation(name string) bool {
	r.logger.Debug("deleteLocation", "name", name)
	if strings.TrimSpace(name) == "" {
		return false
	}
	return query(r, "deleteLocation", false, func(s Service) (bool, error) { return s.DeleteLocation(name) })
}

// BeWithMe makes the robot follow the user.
func (r *Robot) BeWithMe() {
	r.invoke("beWithMe", func(s Service) error { return s.BeWithMe() })
}

// StopMovement stops any movement.
func (r *Robot) StopMovement() {
	r.invoke("stopMovement", func(s Service) error { return s.StopMovement() })
}

// SkidJoy drives the base; x and y are clamped to [-1, 1].
func (r *Robot) SkidJoy(x, y float32) {
	x, y = clamp(x, -1, 1), clamp(y, -1, 1)
	r.invoke("skidJoy", func(s Service) error { return s.SkidJoy(x, y) })
}

// TurnBy rotates the base by degrees.
func (r *Robot) TurnBy(degrees int) {
	r.logger.Debug("turnBy", "degrees", degrees)
	r.invoke("turnBy", func(s Service) error { return s.TurnBy(degrees, motionSpeed) })
}

// TiltAngle tilts the head to an absolute angle within [MinTiltAngle, MaxTiltAngle].
func (r *Robot) TiltAngle(degrees int) {
	degrees = clamp(degrees, MinTiltAngle, MaxTiltAngle)
	r.logger.Debug("tiltAngle", "degrees", degrees)
	r.invoke("tiltAngle", func(s Service) error { return s.TiltAngle(degrees, motionSpeed) })
}

// TiltBy tilts the head relative to its current angle.
func (r *Robot) TiltBy(degrees int) {
	r.logger.Debug("tiltBy", "degrees", degrees)
	r.invoke("tiltBy", func(s Service) error { return s.TiltBy(degrees, motionSpeed) })
}

// GetSerialNumber returns the robot serial number, or "".
func (r *Robot) GetSerialNumber() string {
	return query(r, "getSerialNumber", "", func(s Service) (string, error) { return s.GetSerialNumber() })
}

// GetBatteryData returns the battery status, or nil.
func (r *Robot) GetBatteryData() *BatteryData {
	return query(r, "getBatteryData", (*BatteryData)(nil), func(s Service) (*BatteryData, error) { return s.GetBatteryData() })
}

// StartTelepresence calls peerID and returns the session ID, or "".
func (r *Robot) StartTelepresence(displayName, peerID string) string {
	r.logger.Debug("startTelepresence", "display_name", displayName, "peer", peerID)
	return query(r, "startTelepresence", "", func(s Service) (string, error) {
		return s.StartTelepresence(displayName, peerID)
	})
}

// GetAdminInfo returns the robot's admin, or nil.
func (r *Robot) GetAdminInfo() *UserInfo {
	return query(r, "getAdminInfo", (*UserInfo)(nil), func(s Service) (*UserInfo, error) { return s.GetAdminInfo() })
}

// GetAllContacts returns every contact, or an empty list.
func (r *Robot) GetAllContacts() []UserInfo {
	contacts := query(r, "getAllContacts", []UserInfo(nil), func(s Service) ([]UserInfo, error) { return s.GetAllContacts() })
	if contacts == nil {
		return []UserInfo{}
	}
	return contacts
}

// GetRecentCalls returns the call history, or an empty list.
func (r *Robot) GetRecentCalls() []RecentCall {
	calls := query(r, "getRecentCalls", []RecentCall(nil), func(s Service) ([]RecentCall, error) { return s.GetRecentCalls() })
	if calls == nil {
		return []RecentCall{}
	}
	return calls
}

// ShowAppList opens the launcher's application list.
func (r *Robot) ShowAppList() {
	r.invoke("showAppList", func(s Service) error { return s.ShowAppList() })
}

// ShowTopBar shows the system top bar.
func (r *Robot) ShowTopBar() {
	r.invoke("showTopBar", func(s Service) error { return s.ShowTopBar() })
}

// HideTopBar hides the system top bar.
func (r *Robot) HideTopBar() {
	r.invoke("hideTopBar", func(s Service) error { return s.HideTopBar() })
}

// ToggleWakeup disables (true) or enables (false) the wakeup trigger.
// Only kiosk applications may do this.
func (r *Robot) ToggleWakeup(disable bool) {
	r.logger.Debug("toggleWakeup", "disable", disable)
	if r.current() != nil && !r.app.Kiosk() {
		r.logger.Error("wakeup can only be toggled in kiosk mode")
		return
	}
	r.invoke("toggleWakeup", func(s Service) error { return s.ToggleWakeup(disable) })
}

// ToggleNavigationBillboard hides (true) or shows (false) the billboard
// displayed during GoTo. Only kiosk applications may do this.
func (r *Robot) ToggleNavigationBillboard(hide bool) {
	r.logger.Debug("toggleNavigationBillboard", "hide", hide)
	if r.current() != nil && !r.app.Kiosk() {
		r.logger.Error("billboard can only be toggled in kiosk mode")
		return
	}
	r.invoke("toggleNavigationBillboard", func(s Service) error { return s.ToggleNavigationBillboard(hide) })
}

// Wakeup triggers the wakeup flow as if the wakeup word was heard.
func (r *Robot) Wakeup() {
	r.invoke("wakeup", func(s Service) error { return s.Wakeup() })
}

// GetWakeupWord returns the configured wakeup word, or "".
func (r *Robot) GetWakeupWord() string {
	return query(r, "getWakeupWord", "", func(s Service) (string, error) { return s.GetWakeupWord() })
}

// ShowNormalNotification shows a passive notification.
func (r *Robot) ShowNormalNotification(n NormalNotification) error {
	return r.require("showNormalNotification", func(s Service) error { return s.ShowNormalNotification(n) })
}

// ShowAlertNotification shows an alert and arranges for onClick to receive
// the first button click. onClick may be nil.
func (r *Robot) ShowAlertNotification(n AlertNotification, onClick func(button int)) error {
	if n.NotificationID == "" {
		return ErrEmptyNotificationID
	}
	if r.current() == nil {
		return ErrNotReady
	}

	// Registered before the call so a click racing the response is not lost.
	// A failed re-show leaves the alert already on screen with its callback.
	var pending, prev *pendingAlert
	if onClick != nil {
		pending = &pendingAlert{onClick: onClick}
		prev = r.putAlert(n.NotificationID, pending)
	}

	err := r.require("showAlertNotification", func(s Service) error { return s.ShowAlertNotification(n) })
	if err != nil && pending != nil {
		r.revertAlert(n.NotificationID, pending, prev)
	}
	return err
}

// RemoveAlertNotification dismisses an alert; its pending click callback
// is dropped.
func (r *Robot) RemoveAlertNotification(n AlertNotification) error {
	err := r.require("removeAlertNotification", func(s Service) error { return s.RemoveAlertNotification(n) })
	if err == nil {
		r.takeAlert(n.NotificationID)
	}
	return err
}

// UpdateMediaBar replaces the media bar content for this application.
func (r *Robot) UpdateMediaBar(data MediaBarData) error {
	data.PackageName = r.app.PackageName
	return r.currentMediaBar().update(data)
}

// PauseMediaBar pauses the media bar.
func (r *Robot) PauseMediaBar() error {
	return r.currentMediaBar().pause()
}

// SetMediaPlaying updates the media bar play state for this application.
func (r *Robot) SetMediaPlaying(playing bool) error {
	return r.currentMediaBar().setPlaying(playing, r.app.PackageName)
}
