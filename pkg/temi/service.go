// Package temi is the application-side facade of the temi robot service.
//
// A Robot holds the connection to the remote service, forwards calls to it
// and fans out the service's asynchronous events (speech, navigation, user
// presence, telepresence, media bar) to locally registered listeners on a
// single serial dispatch queue.
//
// The remote side is reached through the Service interface; pkg/rpc
// provides a WebSocket implementation and pkg/sim an in-memory one.
package temi

// Service is the remote robot service. Every error return is a transport
// failure; the service reports domain outcomes through results and events.
type Service interface {
	// Register installs the callback that receives events for app.
	Register(app AppInfo, cb Callback) error
	OnStart(activity ActivityInfo) error

	// Speech
	Speak(req TtsRequest) error
	CancelAll() error
	LockContexts(contexts []string) error
	ReleaseContexts(contexts []string) error
	Wakeup() error
	GetWakeupWord() (string, error)
	ToggleWakeup(disable bool) error

	// Navigation and motion
	GoTo(location string) error
	GetLocations() ([]string, error)
	SaveLocation(name string) (bool, error)
	DeleteLocation(name string) (bool, error)
	BeWithMe() error
	StopMovement() error
	SkidJoy(x, y float32) error
	TurnBy(degrees int, speed float32) error
	TiltAngle(degrees int, speed float32) error
	TiltBy(degrees int, speed float32) error
	ToggleNavigationBillboard(hide bool) error

	// Device
	GetSerialNumber() (string, error)
	GetBatteryData() (*BatteryData, error)
	ShowAppList() error
	ShowTopBar() error
	HideTopBar() error

	// Telepresence and contacts
	StartTelepresence(displayName, peerID string) (string, error)
	GetAdminInfo() (*UserInfo, error)
	GetAllContacts() ([]UserInfo, error)
	GetRecentCalls() ([]RecentCall, error)

	// Activity stream
	ShareActivityStreamObject(obj ActivityStreamObject) error

	// Notifications
	ShowNormalNotification(n NormalNotification) error
	ShowAlertNotification(n AlertNotification) error
	RemoveAlertNotification(n AlertNotification) error

	// Media bar
	UpdateMediaBar(data MediaBarData) error
	PauseMediaBar() error
	SetMediaPlaying(playing bool, packageName string) error
}

// Callback receives events pushed by the remote service.
//
// Methods returning bool report whether a local listener was interested;
// the service uses that to decide whether to suppress its default handling.
// Implementations must return quickly: they run on the transport goroutine.
type Callback interface {
	OnWakeupWord(wakeupWord string) bool
	OnTtsStatusChanged(req TtsRequest) bool
	OnNlpCompleted(result NlpResult) bool
	OnConversationViewAttaches(attached bool) bool
	HasActiveNlpListeners() bool
	OnBeWithMeStatusChanged(status string) bool
	OnGoToLocationStatusChanged(location, status string, descriptionID int, description string) bool
	OnTelepresenceStatusChanged(state CallState) bool
	OnLocationsUpdated(locations []string) bool
	OnUserUpdated(user UserInfo) bool
	OnWelcomingModeStatusChanged(status string) bool

	OnActivityStreamPublish(msg ActivityStreamPublishMessage)
	OnPlayButtonClicked(play bool)
	OnNextButtonClicked()
	OnBackButtonClicked()
	OnTrackBarChanged(position int)
	OnNotificationBtnClicked(cb NotificationCallback)
}

// MediaButtonListener receives media bar button presses.
type MediaButtonListener interface {
	OnPlayButtonClicked(play bool)
	OnNextButtonClicked()
	OnBackButtonClicked()
	OnTrackBarChanged(position int)
}
