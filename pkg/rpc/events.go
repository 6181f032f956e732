package rpc

import (
	"fmt"

	"github.com/teslashibe/go-temi/pkg/protocol"
	"github.com/teslashibe/go-temi/pkg/temi"
)

func handled[T any](msg *protocol.Message, fn func(T) bool) (bool, error) {
	var v T
	if err := msg.ParseData(&v); err != nil {
		return false, err
	}
	return fn(v), nil
}

func notify[T any](msg *protocol.Message, fn func(T)) (bool, error) {
	var v T
	if err := msg.ParseData(&v); err != nil {
		return false, err
	}
	fn(v)
	return false, nil
}

// deliverEvent decodes msg and invokes the matching callback method. The
// result is only meaningful for events listed in protocol.AckedEvents.
func deliverEvent(cb temi.Callback, msg *protocol.Message) (bool, error) {
	switch msg.Method {
	case protocol.EventWakeupWord:
		return handled(msg, cb.OnWakeupWord)
	case protocol.EventTtsStatusChanged:
		return handled(msg, cb.OnTtsStatusChanged)
	case protocol.EventNlpCompleted:
		return handled(msg, cb.OnNlpCompleted)
	case protocol.EventConversationViewAttach:
		return handled(msg, cb.OnConversationViewAttaches)
	case protocol.EventHasActiveNlpListeners:
		return cb.HasActiveNlpListeners(), nil
	case protocol.EventBeWithMeStatusChanged:
		return handled(msg, cb.OnBeWithMeStatusChanged)
	case protocol.EventGoToLocationStatus:
		return handled(msg, func(d protocol.GoToStatusData) bool {
			return cb.OnGoToLocationStatusChanged(d.Location, d.Status, d.DescriptionID, d.Description)
		})
	case protocol.EventTelepresenceStatus:
		return handled(msg, cb.OnTelepresenceStatusChanged)
	case protocol.EventLocationsUpdated:
		return handled(msg, cb.OnLocationsUpdated)
	case protocol.EventUserUpdated:
		return handled(msg, cb.OnUserUpdated)
	case protocol.EventWelcomingModeStatus:
		return handled(msg, cb.OnWelcomingModeStatusChanged)

	case protocol.EventActivityStreamPublish:
		return notify(msg, cb.OnActivityStreamPublish)
	case protocol.EventPlayButtonClicked:
		return notify(msg, cb.OnPlayButtonClicked)
	case protocol.EventNextButtonClicked:
		cb.OnNextButtonClicked()
		return false, nil
	case protocol.EventBackButtonClicked:
		cb.OnBackButtonClicked()
		return false, nil
	case protocol.EventTrackBarChanged:
		return notify(msg, cb.OnTrackBarChanged)
	case protocol.EventNotificationBtnClicked:
		return notify(msg, cb.OnNotificationBtnClicked)
	}
	return false, fmt.Errorf("rpc: unknown event %q", msg.Method)
}

// proxyCallback forwards callback invocations from a server backend to the
// remote client of one session.
type proxyCallback struct {
	s *session
}

var _ temi.Callback = (*proxyCallback)(nil)

func (p *proxyCallback) OnWakeupWord(wakeupWord string) bool {
	return p.s.emit(protocol.EventWakeupWord, wakeupWord)
}

func (p *proxyCallback) OnTtsStatusChanged(req temi.TtsRequest) bool {
	return p.s.emit(protocol.EventTtsStatusChanged, req)
}

func (p *proxyCallback) OnNlpCompleted(result temi.NlpResult) bool {
	return p.s.emit(protocol.EventNlpCompleted, result)
}

func (p *proxyCallback) OnConversationViewAttaches(attached bool) bool {
	return p.s.emit(protocol.EventConversationViewAttach, attached)
}

func (p *proxyCallback) HasActiveNlpListeners() bool {
	return p.s.emit(protocol.EventHasActiveNlpListeners, nil)
}

func (p *proxyCallback) OnBeWithMeStatusChanged(status string) bool {
	return p.s.emit(protocol.EventBeWithMeStatusChanged, status)
}

func (p *proxyCallback) OnGoToLocationStatusChanged(location, status string, descriptionID int, description string) bool {
	return p.s.emit(protocol.EventGoToLocationStatus, protocol.GoToStatusData{
		Location:      location,
		Status:        status,
		DescriptionID: descriptionID,
		Description:   description,
	})
}

func (p *proxyCallback) OnTelepresenceStatusChanged(state temi.CallState) bool {
	return p.s.emit(protocol.EventTelepresenceStatus, state)
}

func (p *proxyCallback) OnLocationsUpdated(locations []string) bool {
	return p.s.emit(protocol.EventLocationsUpdated, locations)
}

func (p *proxyCallback) OnUserUpdated(user temi.UserInfo) bool {
	return p.s.emit(protocol.EventUserUpdated, user)
}

func (p *proxyCallback) OnWelcomingModeStatusChanged(status string) bool {
	return p.s.emit(protocol.EventWelcomingModeStatus, status)
}

func (p *proxyCallback) OnActivityStreamPublish(msg temi.ActivityStreamPublishMessage) {
	p.s.emit(protocol.EventActivityStreamPublish, msg)
}

func (p *proxyCallback) OnPlayButtonClicked(play bool) {
	p.s.emit(protocol.EventPlayButtonClicked, play)
}

func (p *proxyCallback) OnNextButtonClicked() {
	p.s.emit(protocol.EventNextButtonClicked, nil)
}

func (p *proxyCallback) OnBackButtonClicked() {
	p.s.emit(protocol.EventBackButtonClicked, nil)
}

func (p *proxyCallback) OnTrackBarChanged(position int) {
	p.s.emit(protocol.EventTrackBarChanged, position)
}

func (p *proxyCallback) OnNotificationBtnClicked(cb temi.NotificationCallback) {
	p.s.emit(protocol.EventNotificationBtnClicked, cb)
}
