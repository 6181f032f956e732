package temi

import "log/slog"

// callbackSink is the single Callback registered with the service. It runs
// on the transport goroutine and only schedules work on the dispatcher.
type callbackSink struct {
	robot  *Robot
	logger *slog.Logger
}

var _ Callback = (*callbackSink)(nil)

// deliver posts call for every listener in set, read at delivery time so a
// listener removed before the dispatcher runs is skipped. It reports whether
// any listener was registered when the event arrived.
func deliver[T any](ui Poster, set *listenerSet[T], call func(T)) bool {
	if set.empty() {
		return false
	}
	ui.Post(func() {
		for _, l := range set.snapshot() {
			call(l)
		}
	})
	return true
}

func (s *callbackSink) OnWakeupWord(wakeupWord string) bool {
	s.logger.Debug("onWakeupWord", "wakeup_word", wakeupWord)
	return deliver(s.robot.ui, &s.robot.listeners.wakeupWord, func(fn func(string)) {
		fn(wakeupWord)
	})
}

func (s *callbackSink) OnTtsStatusChanged(req TtsRequest) bool {
	s.logger.Debug("onTtsStatusChanged", "id", req.ID, "status", req.Status)
	return deliver(s.robot.ui, &s.robot.listeners.tts, func(fn func(TtsRequest)) {
		fn(req)
	})
}

func (s *callbackSink) OnNlpCompleted(result NlpResult) bool {
	s.logger.Debug("onNlpCompleted", "action", result.Action)
	return deliver(s.robot.ui, &s.robot.listeners.nlp, func(fn func(NlpResult)) {
		fn(result)
	})
}

func (s *callbackSink) OnConversationViewAttaches(attached bool) bool {
	s.logger.Debug("onConversationViewAttaches", "attached", attached)
	return deliver(s.robot.ui, &s.robot.listeners.conversationView, func(fn func(bool)) {
		fn(attached)
	})
}

func (s *callbackSink) HasActiveNlpListeners() bool {
	active := !s.robot.listeners.nlp.empty()
	s.logger.Debug("hasActiveNlpListeners", "active", active)
	return active
}

func (s *callbackSink) OnBeWithMeStatusChanged(status string) bool {
	s.logger.Debug("onBeWithMeStatusChanged", "status", status)
	return deliver(s.robot.ui, &s.robot.listeners.beWithMe, func(fn func(string)) {
		fn(status)
	})
}

func (s *callbackSink) OnGoToLocationStatusChanged(location, status string, descriptionID int, description string) bool {
	s.logger.Debug("onGoToLocationStatusChanged",
		"location", location, "status", status, "description_id", descriptionID, "description", description)
	ev := GoToLocationStatus{
		Location:      location,
		Status:        status,
		DescriptionID: descriptionID,
		Description:   description,
	}
	return deliver(s.robot.ui, &s.robot.listeners.goToLocation, func(fn func(GoToLocationStatus)) {
		fn(ev)
	})
}

func (s *callbackSink) OnTelepresenceStatusChanged(state CallState) bool {
	s.logger.Debug("onTelepresenceStatusChanged", "session", state.SessionID, "state", state.State)
	return deliver(s.robot.ui, &s.robot.listeners.telepresence, func(l telepresenceListener) {
		if l.accepts(state) {
			l.fn(state)
		}
	})
}

func (s *callbackSink) OnLocationsUpdated(locations []string) bool {
	s.logger.Debug("onLocationsUpdated", "count", len(locations))
	return deliver(s.robot.ui, &s.robot.listeners.locationsUpdated, func(fn func([]string)) {
		fn(locations)
	})
}

func (s *callbackSink) OnUserUpdated(user UserInfo) bool {
	s.logger.Debug("onUserUpdated", "user", user.UserID)
	return deliver(s.robot.ui, &s.robot.listeners.usersUpdated, func(l usersListener) {
		if l.accepts(user) {
			l.fn(user)
		}
	})
}

func (s *callbackSink) OnWelcomingModeStatusChanged(status string) bool {
	s.logger.Debug("onWelcomingModeStatusChanged", "status", status)
	return deliver(s.robot.ui, &s.robot.listeners.welcomingMode, func(fn func(string)) {
		fn(status)
	})
}

func (s *callbackSink) OnActivityStreamPublish(msg ActivityStreamPublishMessage) {
	s.logger.Debug("onActivityStreamPublish", "object", msg.ObjectID, "success", msg.Success)
	s.robot.ui.Post(func() {
		s.robot.listeners.mu.RLock()
		fn := s.robot.listeners.activityStreamPublish
		s.robot.listeners.mu.RUnlock()
		if fn != nil {
			fn(msg)
		}
	})
}

// withMediaButton runs call on the dispatcher against the current media
// button listener.
func (s *callbackSink) withMediaButton(event string, call func(MediaButtonListener)) {
	s.robot.ui.Post(func() {
		s.robot.listeners.mu.RLock()
		l := s.robot.listeners.mediaButton
		s.robot.listeners.mu.RUnlock()
		if l == nil {
			s.logger.Warn("media button listener not set", "event", event)
			return
		}
		call(l)
	})
}

func (s *callbackSink) OnPlayButtonClicked(play bool) {
	s.withMediaButton("play", func(l MediaButtonListener) { l.OnPlayButtonClicked(play) })
}

func (s *callbackSink) OnNextButtonClicked() {
	s.withMediaButton("next", func(l MediaButtonListener) { l.OnNextButtonClicked() })
}

func (s *callbackSink) OnBackButtonClicked() {
	s.withMediaButton("back", func(l MediaButtonListener) { l.OnBackButtonClicked() })
}

func (s *callbackSink) OnTrackBarChanged(position int) {
	s.withMediaButton("track_bar", func(l MediaButtonListener) { l.OnTrackBarChanged(position) })
}

// OnNotificationBtnClicked claims the pending callback for the notification
// immediately, so a repeated click event finds nothing to deliver.
func (s *callbackSink) OnNotificationBtnClicked(cb NotificationCallback) {
	s.logger.Debug("onNotificationBtnClicked", "notification", cb.NotificationID, "button", cb.Event)
	fn := s.robot.takeAlert(cb.NotificationID)
	if fn == nil {
		return
	}
	s.robot.ui.Post(func() {
		fn(cb.Event)
	})
}
