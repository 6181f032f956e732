package temi

import "fmt"

// mediaBarController forwards media bar operations to the service it was
// built with. A new one is created on every SetService.
type mediaBarController struct {
	svc Service
}

func newMediaBarController(svc Service) *mediaBarController {
	return &mediaBarController{svc: svc}
}

func (m *mediaBarController) update(data MediaBarData) error {
	if m.svc == nil {
		return ErrNotReady
	}
	if err := m.svc.UpdateMediaBar(data); err != nil {
		return fmt.Errorf("temi: update media bar: %w", err)
	}
	return nil
}

func (m *mediaBarController) pause() error {
	if m.svc == nil {
		return ErrNotReady
	}
	if err := m.svc.PauseMediaBar(); err != nil {
		return fmt.Errorf("temi: pause media bar: %w", err)
	}
	return nil
}

func (m *mediaBarController) setPlaying(playing bool, packageName string) error {
	if m.svc == nil {
		return ErrNotReady
	}
	if err := m.svc.SetMediaPlaying(playing, packageName); err != nil {
		return fmt.Errorf("temi: set media playing: %w", err)
	}
	return nil
}
