package bridge

import (
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-temi/pkg/temi"
)

// Status is the body of GET /api/status.
type Status struct {
	Ready        bool              `json:"ready"`
	PackageName  string            `json:"package_name"`
	Kiosk        bool              `json:"kiosk"`
	SerialNumber string            `json:"serial_number,omitempty"`
	WakeupWord   string            `json:"wakeup_word,omitempty"`
	Battery      *temi.BatteryData `json:"battery,omitempty"`
	Clients      int               `json:"clients"`
	Connection   any               `json:"connection,omitempty"`
}

func (b *Bridge) status() Status {
	app := b.robot.App()
	st := Status{
		Ready:       b.robot.IsReady(),
		PackageName: app.PackageName,
		Kiosk:       app.Kiosk(),
		Clients:     b.hub.ClientCount(),
	}
	if st.Ready {
		st.SerialNumber = b.robot.GetSerialNumber()
		st.WakeupWord = b.robot.GetWakeupWord()
		st.Battery = b.robot.GetBatteryData()
	}
	if b.connStats != nil {
		st.Connection = b.connStats()
	}
	return st
}

// parse decodes the JSON body into v.
func parse(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body: "+err.Error())
	}
	return nil
}

func (b *Bridge) handleStatus(c *fiber.Ctx) error {
	return c.JSON(b.status())
}

func (b *Bridge) handleGetLocations(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"locations": b.robot.GetLocations()})
}

// LocationRequest is the body of POST /api/locations.
type LocationRequest struct {
	Name string `json:"name"`
}

func (b *Bridge) handleSaveLocation(c *fiber.Ctx) error {
	var req LocationRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Name) == "" {
		return fiber.NewError(fiber.StatusBadRequest, temi.ErrEmptyLocation.Error())
	}
	if !b.robot.SaveLocation(req.Name) {
		return fiber.NewError(fiber.StatusConflict, "location not saved: "+req.Name)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"saved": req.Name})
}

func (b *Bridge) handleDeleteLocation(c *fiber.Ctx) error {
	name, err := url.PathUnescape(c.Params("name"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid location name")
	}
	if !b.robot.DeleteLocation(name) {
		return fiber.NewError(fiber.StatusNotFound, "location not deleted: "+name)
	}
	return c.JSON(fiber.Map{"deleted": name})
}

// GoToRequest is the body of POST /api/goto.
type GoToRequest struct {
	Location string `json:"location"`
}

func (b *Bridge) handleGoTo(c *fiber.Ctx) error {
	var req GoToRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	if err := b.robot.GoTo(req.Location); err != nil {
		return serviceError(err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"location": req.Location})
}

func (b *Bridge) handleFollow(c *fiber.Ctx) error {
	b.robot.BeWithMe()
	return c.SendStatus(fiber.StatusAccepted)
}

// StopRequest is the optional body of POST /api/stop.
type StopRequest struct {
	Speech bool `json:"speech"`
}

func (b *Bridge) handleStop(c *fiber.Ctx) error {
	var req StopRequest
	if len(c.Body()) > 0 {
		if err := parse(c, &req); err != nil {
			return err
		}
	}
	b.robot.StopMovement()
	if req.Speech {
		b.robot.CancelAllTtsRequests()
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// TurnRequest is the body of POST /api/turn.
type TurnRequest struct {
	Degrees int `json:"degrees"`
}

func (b *Bridge) handleTurn(c *fiber.Ctx) error {
	var req TurnRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	b.robot.TurnBy(req.Degrees)
	return c.SendStatus(fiber.StatusAccepted)
}

// TiltRequest is the body of POST /api/tilt. Exactly one of Angle
// (absolute) and By (relative) is set.
type TiltRequest struct {
	Angle *int `json:"angle,omitempty"`
	By    *int `json:"by,omitempty"`
}

func (b *Bridge) handleTilt(c *fiber.Ctx) error {
	var req TiltRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	switch {
	case req.Angle != nil && req.By == nil:
		angle := min(max(*req.Angle, temi.MinTiltAngle), temi.MaxTiltAngle)
		b.robot.TiltAngle(angle)
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"angle": angle})
	case req.By != nil && req.Angle == nil:
		b.robot.TiltBy(*req.By)
		return c.SendStatus(fiber.StatusAccepted)
	default:
		return fiber.NewError(fiber.StatusBadRequest, "set exactly one of angle and by")
	}
}

// SpeakRequest is the body of POST /api/speak.
type SpeakRequest struct {
	Speech                  string `json:"speech"`
	ShowOnConversationLayer bool   `json:"show_on_conversation_layer"`
}

func (b *Bridge) handleSpeak(c *fiber.Ctx) error {
	var req SpeakRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Speech) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "speech can not be empty")
	}
	tts := temi.NewTtsRequest(req.Speech, req.ShowOnConversationLayer)
	b.robot.Speak(tts)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"id": tts.ID})
}

func (b *Bridge) handleBattery(c *fiber.Ctx) error {
	battery := b.robot.GetBatteryData()
	if battery == nil {
		return fiber.NewError(fiber.StatusBadGateway, "battery data unavailable")
	}
	return c.JSON(battery)
}

func (b *Bridge) handleContacts(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"contacts": b.robot.GetAllContacts()})
}

func (b *Bridge) handleRecentCalls(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"calls": b.robot.GetRecentCalls()})
}

// TelepresenceRequest is the body of POST /api/telepresence.
type TelepresenceRequest struct {
	DisplayName string `json:"display_name"`
	PeerID      string `json:"peer_id"`
}

func (b *Bridge) handleTelepresence(c *fiber.Ctx) error {
	var req TelepresenceRequest
	if err := parse(c, &req); err != nil {
		return err
	}
	if req.PeerID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "peer_id is required")
	}
	sessionID := b.robot.StartTelepresence(req.DisplayName, req.PeerID)
	if sessionID == "" {
		return fiber.NewError(fiber.StatusBadGateway, "telepresence not started")
	}
	b.watchCall(sessionID)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"session_id": sessionID})
}

func (b *Bridge) handleNotification(c *fiber.Ctx) error {
	var n temi.NormalNotification
	if err := parse(c, &n); err != nil {
		return err
	}
	if err := b.robot.ShowNormalNotification(n); err != nil {
		return serviceError(err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

func (b *Bridge) handleShowAlert(c *fiber.Ctx) error {
	var n temi.AlertNotification
	if err := parse(c, &n); err != nil {
		return err
	}
	if n.NotificationID == "" {
		n.NotificationID = uuid.NewString()
	}
	id := n.NotificationID
	err := b.robot.ShowAlertNotification(n, func(button int) {
		b.publish(EventAlertClicked, temi.NotificationCallback{NotificationID: id, Event: button})
	})
	if err != nil {
		return serviceError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"notification_id": id})
}

func (b *Bridge) handleRemoveAlert(c *fiber.Ctx) error {
	n := temi.AlertNotification{NotificationID: c.Params("id")}
	if err := b.robot.RemoveAlertNotification(n); err != nil {
		return serviceError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
