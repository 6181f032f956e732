package temi

import (
	"time"

	"github.com/google/uuid"
)

// Reserved NLP actions delivered through NlpResult.Action.
const (
	DefaultAction = "skill.default"
	Pause         = "reserved.pauseMediaBar"
	Stop          = "reserved.stop"
	Resume        = "reserved.resume"
)

// MetaDataKiosk is the application metadata flag that enables kiosk-only operations.
const MetaDataKiosk = "com.robotemi.sdk.metadata.Kiosk"

// Go-to location statuses.
const (
	GoToStart       = "start"
	GoToCalculating = "calculating"
	GoToGoing       = "going"
	GoToComplete    = "complete"
	GoToAbort       = "abort"
	GoToReposing    = "reposing"
)

// Be-with-me statuses.
const (
	BeWithMeAbort       = "abort"
	BeWithMeCalculating = "calculating"
	BeWithMeLock        = "lock"
	BeWithMeSearch      = "search"
	BeWithMeStart       = "start"
	BeWithMeTrack       = "track"
)

// Welcoming mode statuses.
const (
	WelcomingIdle         = "idle"
	WelcomingPrewelcoming = "prewelcoming"
	WelcomingActive       = "welcoming"
)

// AppInfo identifies the calling application to the robot service.
type AppInfo struct {
	PackageName string          `json:"package_name"`
	MetaData    map[string]bool `json:"meta_data,omitempty"`
}

// Kiosk reports whether the application declared kiosk mode.
func (a AppInfo) Kiosk() bool {
	return a.MetaData[MetaDataKiosk]
}

// ActivityInfo describes the activity that came to the foreground.
type ActivityInfo struct {
	PackageName  string `json:"package_name"`
	ActivityName string `json:"activity_name"`
}

// TtsStatus is the lifecycle state of a speech request.
type TtsStatus string

const (
	TtsPending    TtsStatus = "PENDING"
	TtsProcessing TtsStatus = "PROCESSING"
	TtsStarted    TtsStatus = "STARTED"
	TtsCompleted  TtsStatus = "COMPLETED"
	TtsError      TtsStatus = "ERROR"
	TtsNotAllowed TtsStatus = "NOT_ALLOWED"
	TtsCanceled   TtsStatus = "CANCELED"
)

// TtsRequest is a speech request and, on status events, its current state.
type TtsRequest struct {
	ID                      uuid.UUID `json:"id"`
	Speech                  string    `json:"speech"`
	PackageName             string    `json:"package_name,omitempty"`
	ShowOnConversationLayer bool      `json:"show_on_conversation_layer"`
	Status                  TtsStatus `json:"status"`
}

// NewTtsRequest creates a pending speech request with a fresh ID.
func NewTtsRequest(speech string, showOnConversationLayer bool) TtsRequest {
	return TtsRequest{
		ID:                      uuid.New(),
		Speech:                  speech,
		ShowOnConversationLayer: showOnConversationLayer,
		Status:                  TtsPending,
	}
}

// NlpResult is the outcome of natural language processing of an utterance.
type NlpResult struct {
	Action        string            `json:"action"`
	Params        map[string]string `json:"params,omitempty"`
	ResolvedQuery string            `json:"resolved_query"`
}

// CallStatus is the state of a telepresence session.
type CallStatus string

const (
	CallInitialized CallStatus = "INITIALIZED"
	CallStarted     CallStatus = "STARTED"
	CallEnded       CallStatus = "ENDED"
	CallDeclined    CallStatus = "DECLINED"
	CallNotAnswered CallStatus = "NOT_ANSWERED"
)

// CallState reports a telepresence session transition.
type CallState struct {
	SessionID string     `json:"session_id"`
	State     CallStatus `json:"state"`
}

// UserInfo describes a contact or a detected user.
type UserInfo struct {
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	PictureURL string `json:"picture_url,omitempty"`
	Role       string `json:"role,omitempty"`
}

// RecentCall is an entry of the call history.
type RecentCall struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	SessionID string    `json:"session_id"`
	CallType  string    `json:"call_type"`
	Timestamp time.Time `json:"timestamp"`
}

// BatteryData reports battery level (0-100) and charging state.
type BatteryData struct {
	Level    int  `json:"level"`
	Charging bool `json:"charging"`
}

// MediaBarData is the content shown on the robot's media bar.
type MediaBarData struct {
	PackageName string `json:"package_name,omitempty"`
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Duration    int    `json:"duration"` // seconds
	Position    int    `json:"position"` // seconds
	Playing     bool   `json:"playing"`
}

// NormalNotification is a passive notification.
type NormalNotification struct {
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`
}

// AlertNotification is a notification with buttons; clicks are reported
// once through NotificationCallback.
type AlertNotification struct {
	NotificationID string   `json:"notification_id"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	Buttons        []string `json:"buttons,omitempty"`
}

// NewAlertNotification creates an alert with a fresh notification ID.
func NewAlertNotification(title, description string, buttons ...string) AlertNotification {
	return AlertNotification{
		NotificationID: uuid.NewString(),
		Title:          title,
		Description:    description,
		Buttons:        buttons,
	}
}

// NotificationCallback reports which button of an alert was clicked.
type NotificationCallback struct {
	NotificationID string `json:"notification_id"`
	Event          int    `json:"event"` // button number
}

// ActivityStreamObject is an entry published to the robot's activity stream.
type ActivityStreamObject struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Date         time.Time `json:"date"`
	ActivityType string    `json:"activity_type,omitempty"`
	MediaType    string    `json:"media_type,omitempty"`
	URL          string    `json:"url,omitempty"`
	LocalFile    string    `json:"-"`
	MediaData    []byte    `json:"media_data,omitempty"`
}

// ActivityStreamPublishMessage reports the outcome of a publish.
type ActivityStreamPublishMessage struct {
	ObjectID string `json:"object_id"`
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
}
