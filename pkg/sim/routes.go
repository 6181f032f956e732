package sim

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-temi/pkg/temi"
)

// RegisterRoutes mounts the simulator's state and control endpoints on
// api. They drive the events a person near a real robot would cause.
func (s *Service) RegisterRoutes(api fiber.Router) {
	api.Get("/state", s.handleState)
	api.Get("/calls", s.handleCalls)
	api.Post("/wakeup", s.handleWakeup)
	api.Post("/utter", s.handleUtter)
	api.Post("/user", s.handleUser)
	api.Post("/battery", s.handleBattery)
	api.Post("/alerts/:id/click", s.handleClickAlert)
	api.Post("/telepresence/:id/end", s.handleEndCall)
	api.Post("/media/:button", s.handleMedia)
}

func bad(err error) error {
	return fiber.NewError(fiber.StatusBadRequest, err.Error())
}

func (s *Service) handleState(c *fiber.Ctx) error {
	return c.JSON(s.State())
}

func (s *Service) handleCalls(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"calls": s.Calls()})
}

func (s *Service) handleWakeup(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"handled": s.TriggerWakeup()})
}

func (s *Service) handleUtter(c *fiber.Ctx) error {
	var result temi.NlpResult
	if err := c.BodyParser(&result); err != nil {
		return bad(err)
	}
	if result.Action == "" {
		result.Action = temi.DefaultAction
	}
	return c.JSON(fiber.Map{"handled": s.Utter(result)})
}

func (s *Service) handleUser(c *fiber.Ctx) error {
	var user temi.UserInfo
	if err := c.BodyParser(&user); err != nil {
		return bad(err)
	}
	if user.UserID == "" {
		return bad(errors.New("user_id is required"))
	}
	s.DetectUser(user)
	return c.SendStatus(fiber.StatusAccepted)
}

func (s *Service) handleBattery(c *fiber.Ctx) error {
	var battery temi.BatteryData
	if err := c.BodyParser(&battery); err != nil {
		return bad(err)
	}
	s.SetBattery(battery.Level, battery.Charging)
	b, _ := s.GetBatteryData()
	return c.JSON(b)
}

func (s *Service) handleClickAlert(c *fiber.Ctx) error {
	button := c.QueryInt("button", 0)
	if err := s.ClickAlert(c.Params("id"), button); err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Service) handleEndCall(c *fiber.Ctx) error {
	status := temi.CallStatus(c.Query("status", string(temi.CallEnded)))
	err := s.EndCall(c.Params("id"), status)
	switch {
	case errors.Is(err, ErrUnknownCall):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case err != nil:
		return bad(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Service) handleMedia(c *fiber.Ctx) error {
	switch c.Params("button") {
	case "play":
		s.PressPlay(true)
	case "pause":
		s.PressPlay(false)
	case "next":
		s.PressNext()
	case "back":
		s.PressBack()
	case "seek":
		s.Seek(c.QueryInt("position", 0))
	default:
		return fiber.NewError(fiber.StatusNotFound, "unknown media button")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
