package sim

import (
	"context"
	"fmt"
	"slices"

	"github.com/teslashibe/go-temi/pkg/protocol"
	"github.com/teslashibe/go-temi/pkg/temi"
)

func (s *Service) ShowNormalNotification(n temi.NormalNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(protocol.MethodShowNormalNotification)
	s.notifications = append(s.notifications, n)
	return nil
}

func (s *Service) ShowAlertNotification(n temi.AlertNotification) error {
	if n.NotificationID == "" {
		return fmt.Errorf("sim: alert %q has no id", n.Title)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(protocol.MethodShowAlertNotification)
	s.alerts[n.NotificationID] = n
	return nil
}

func (s *Service) RemoveAlertNotification(n temi.AlertNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(protocol.MethodRemoveAlertNotification)
	delete(s.alerts, n.NotificationID)
	return nil
}

func (s *Service) UpdateMediaBar(data temi.MediaBarData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(protocol.MethodUpdateMediaBar)
	s.mediaBar = data
	return nil
}

func (s *Service) PauseMediaBar() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(protocol.MethodPauseMediaBar)
	s.mediaBar.Playing = false
	return nil
}

func (s *Service) SetMediaPlaying(playing bool, packageName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(protocol.MethodSetMediaPlaying)
	if s.mediaBar.PackageName == "" {
		s.mediaBar.PackageName = packageName
	}
	s.mediaBar.Playing = playing
	return nil
}

// ClickAlert presses button on a shown alert, which closes it.
func (s *Service) ClickAlert(notificationID string, button int) error {
	s.mu.Lock()
	_, ok := s.alerts[notificationID]
	delete(s.alerts, notificationID)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAlert, notificationID)
	}

	cb := temi.NotificationCallback{NotificationID: notificationID, Event: button}
	s.emit(func(c temi.Callback) { c.OnNotificationBtnClicked(cb) })
	return nil
}

// TriggerWakeup simulates someone saying the wakeup word. It does nothing
// while wakeup is disabled and reports whether any application handled it.
func (s *Service) TriggerWakeup() bool {
	s.mu.Lock()
	disabled, word := s.wakeupDisabled, s.wakeupWord
	s.mu.Unlock()
	if disabled {
		return false
	}

	handled := false
	s.emit(func(cb temi.Callback) {
		if cb.OnWakeupWord(word) {
			handled = true
		}
	})
	s.emit(func(cb temi.Callback) { cb.OnConversationViewAttaches(true) })
	return handled
}

// Utter simulates a recognised utterance. Applications without active NLP
// listeners are skipped. It reports whether any application handled it.
func (s *Service) Utter(result temi.NlpResult) bool {
	handled := false
	s.emit(func(cb temi.Callback) {
		if cb.HasActiveNlpListeners() && cb.OnNlpCompleted(result) {
			handled = true
		}
	})
	return handled
}

// DetectUser simulates a person walking up to the robot: welcoming mode
// goes through prewelcoming to welcoming and the user is reported, then
// the robot returns to idle.
func (s *Service) DetectUser(user temi.UserInfo) {
	welcoming := func(status string) {
		s.emit(func(cb temi.Callback) { cb.OnWelcomingModeStatusChanged(status) })
	}

	s.run(s.ctx, func(ctx context.Context) {
		welcoming(temi.WelcomingPrewelcoming)
		if !s.sleep(ctx) {
			return
		}
		welcoming(temi.WelcomingActive)
		s.emit(func(cb temi.Callback) { cb.OnUserUpdated(user) })
		if !s.sleep(ctx) {
			return
		}
		welcoming(temi.WelcomingIdle)
	})
}

// PressPlay simulates the media bar play/pause button.
func (s *Service) PressPlay(play bool) {
	s.mu.Lock()
	s.mediaBar.Playing = play
	s.mu.Unlock()
	s.emit(func(cb temi.Callback) { cb.OnPlayButtonClicked(play) })
}

// PressNext simulates the media bar next button.
func (s *Service) PressNext() {
	s.emit(func(cb temi.Callback) { cb.OnNextButtonClicked() })
}

// PressBack simulates the media bar back button.
func (s *Service) PressBack() {
	s.emit(func(cb temi.Callback) { cb.OnBackButtonClicked() })
}

// Seek simulates dragging the media bar track to position seconds.
func (s *Service) Seek(position int) {
	s.mu.Lock()
	s.mediaBar.Position = position
	s.mu.Unlock()
	s.emit(func(cb temi.Callback) { cb.OnTrackBarChanged(position) })
}

// EndCall finishes a telepresence session with status, which is ENDED,
// DECLINED or NOT_ANSWERED.
func (s *Service) EndCall(sessionID string, status temi.CallStatus) error {
	switch status {
	case temi.CallEnded, temi.CallDeclined, temi.CallNotAnswered:
	default:
		return fmt.Errorf("sim: %s does not end a call", status)
	}

	s.mu.Lock()
	known := slices.ContainsFunc(s.recentCalls, func(c temi.RecentCall) bool { return c.SessionID == sessionID })
	s.mu.Unlock()
	if !known {
		return fmt.Errorf("%w: %s", ErrUnknownCall, sessionID)
	}

	call := temi.CallState{SessionID: sessionID, State: status}
	s.emit(func(cb temi.Callback) { cb.OnTelepresenceStatusChanged(call) })
	return nil
}

// State is a snapshot of the simulated robot.
type State struct {
	Locations       []string          `json:"locations"`
	Battery         temi.BatteryData  `json:"battery"`
	Heading         int               `json:"heading"`
	Tilt            int               `json:"tilt"`
	TopBarVisible   bool              `json:"top_bar_visible"`
	BillboardHidden bool              `json:"billboard_hidden"`
	WakeupDisabled  bool              `json:"wakeup_disabled"`
	MediaBar        temi.MediaBarData `json:"media_bar"`
	Notifications   int               `json:"notifications"`
	Alerts          []string          `json:"alerts"`
	Applications    []string          `json:"applications"`
	RecentCalls     int               `json:"recent_calls"`
	Activity        int               `json:"activity"`
	Admin           temi.UserInfo     `json:"admin"`
	Contacts        []temi.UserInfo   `json:"contacts"`
	LastCall        *temi.RecentCall  `json:"last_call,omitempty"`
}

// State returns a snapshot of the simulated robot.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Locations:       slices.Clone(s.locations),
		Battery:         s.battery,
		Heading:         s.heading,
		Tilt:            s.tilt,
		TopBarVisible:   s.topBarVisible,
		BillboardHidden: s.billboardHidden,
		WakeupDisabled:  s.wakeupDisabled,
		MediaBar:        s.mediaBar,
		Notifications:   len(s.notifications),
		RecentCalls:     len(s.recentCalls),
		Activity:        len(s.activity),
		Admin:           s.admin,
		Contacts:        slices.Clone(s.contacts),
	}
	for id := range s.alerts {
		st.Alerts = append(st.Alerts, id)
	}
	slices.Sort(st.Alerts)
	for pkg := range s.callbacks {
		st.Applications = append(st.Applications, pkg)
	}
	slices.Sort(st.Applications)
	if n := len(s.recentCalls); n > 0 {
		last := s.recentCalls[n-1]
		st.LastCall = &last
	}
	return st
}
