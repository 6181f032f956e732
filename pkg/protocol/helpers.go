package protocol

import "time"

// Remote methods (request.method).
const (
	MethodRegister                  = "register"
	MethodOnStart                   = "onStart"
	MethodSpeak                     = "speak"
	MethodCancelAll                 = "cancelAll"
	MethodLockContexts              = "lockContexts"
	MethodReleaseContexts           = "releaseContexts"
	MethodWakeup                    = "wakeup"
	MethodGetWakeupWord             = "getWakeupWord"
	MethodToggleWakeup              = "toggleWakeup"
	MethodGoTo                      = "goTo"
	MethodGetLocations              = "getLocations"
	MethodSaveLocation              = "saveLocation"
	MethodDeleteLocation            = "deleteLocation"
	MethodBeWithMe                  = "beWithMe"
	MethodStopMovement              = "stopMovement"
	MethodSkidJoy                   = "skidJoy"
	MethodTurnBy                    = "turnBy"
	MethodTiltAngle                 = "tiltAngle"
	MethodTiltBy                    = "tiltBy"
	MethodToggleNavigationBillboard = "toggleNavigationBillboard"
	MethodGetSerialNumber           = "getSerialNumber"
	MethodGetBatteryData            = "getBatteryData"
	MethodShowAppList               = "showAppList"
	MethodShowTopBar                = "showTopBar"
	MethodHideTopBar                = "hideTopBar"
	MethodStartTelepresence         = "startTelepresence"
	MethodGetAdminInfo              = "getAdminInfo"
	MethodGetAllContacts            = "getAllContacts"
	MethodGetRecentCalls            = "getRecentCalls"
	MethodShareActivityStreamObject = "shareActivityStreamObject"
	MethodShowNormalNotification    = "showNormalNotification"
	MethodShowAlertNotification     = "showAlertNotification"
	MethodRemoveAlertNotification   = "removeAlertNotification"
	MethodUpdateMediaBar            = "updateMediaBar"
	MethodPauseMediaBar             = "pauseMediaBar"
	MethodSetMediaPlaying           = "setMediaPlaying"
)

// Events pushed by the service (event.method).
const (
	EventWakeupWord             = "onWakeupWord"
	EventTtsStatusChanged       = "onTtsStatusChanged"
	EventNlpCompleted           = "onNlpCompleted"
	EventConversationViewAttach = "onConversationViewAttaches"
	EventHasActiveNlpListeners  = "hasActiveNlpListeners"
	EventBeWithMeStatusChanged  = "onBeWithMeStatusChanged"
	EventGoToLocationStatus     = "onGoToLocationStatusChanged"
	EventTelepresenceStatus     = "onTelepresenceStatusChanged"
	EventLocationsUpdated       = "onLocationsUpdated"
	EventUserUpdated            = "onUserUpdated"
	EventWelcomingModeStatus    = "onWelcomingModeStatusChanged"
	EventActivityStreamPublish  = "onActivityStreamPublish"
	EventPlayButtonClicked      = "onPlayButtonClicked"
	EventNextButtonClicked      = "onNextButtonClicked"
	EventBackButtonClicked      = "onBackButtonClicked"
	EventTrackBarChanged        = "onTrackBarChanged"
	EventNotificationBtnClicked = "onNotificationBtnClicked"
)

// AckedEvents are the events whose callback returns a bool. The client
// answers each of them with an ack.
var AckedEvents = map[string]bool{
	EventWakeupWord:             true,
	EventTtsStatusChanged:       true,
	EventNlpCompleted:           true,
	EventConversationViewAttach: true,
	EventHasActiveNlpListeners:  true,
	EventBeWithMeStatusChanged:  true,
	EventGoToLocationStatus:     true,
	EventTelepresenceStatus:     true,
	EventLocationsUpdated:       true,
	EventUserUpdated:            true,
	EventWelcomingModeStatus:    true,
}

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewRequest creates a request message
func NewRequest(id, method string, params interface{}) (*Message, error) {
	return NewMessage(TypeRequest, id, method, params)
}

// NewResponse creates a successful response to request id
func NewResponse(id, method string, result interface{}) (*Message, error) {
	return NewMessage(TypeResponse, id, method, result)
}

// NewErrorResponse creates a failed response to request id
func NewErrorResponse(id, method string, err error) *Message {
	msg, _ := NewMessage(TypeResponse, id, method, nil)
	msg.Error = err.Error()
	return msg
}

// NewEvent creates an event message
func NewEvent(id, name string, data interface{}) (*Message, error) {
	return NewMessage(TypeEvent, id, name, data)
}

// NewAck creates the reply to event id
func NewAck(id, name string, handled bool) (*Message, error) {
	return NewMessage(TypeAck, id, name, AckData{Handled: handled})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, id, "", PingData{
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
	})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, id, "", PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetAckData extracts ack data from a message
func (m *Message) GetAckData() (*AckData, error) {
	var data AckData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetGoToStatusData extracts go-to status data from a message
func (m *Message) GetGoToStatusData() (*GoToStatusData, error) {
	var data GoToStatusData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
