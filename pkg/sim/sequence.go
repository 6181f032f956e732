package sim

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/teslashibe/go-temi/pkg/protocol"
	"github.com/teslashibe/go-temi/pkg/temi"
)

// run starts fn on a tracked goroutine with a context derived from parent.
// The returned func cancels it.
func (s *Service) run(parent context.Context, fn func(ctx context.Context)) context.CancelFunc {
	ctx, cancel := context.WithCancel(parent)
	s.runMu.Lock()
	if s.closed {
		s.runMu.Unlock()
		cancel()
		return cancel
	}
	s.wg.Add(1)
	s.runMu.Unlock()

	go func() {
		defer s.wg.Done()
		defer cancel()
		fn(ctx)
	}()
	return cancel
}

// sleep waits one step. It reports false when ctx ended first.
func (s *Service) sleep(ctx context.Context) bool {
	if s.step <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(s.step)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// interrupted reports whether a cancelled sequence should still report
// its abort; nothing is reported once the simulator is closing.
func (s *Service) interrupted() bool {
	return s.ctx.Err() == nil
}

// move replaces the running movement; the old one reports an abort.
func (s *Service) move(fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopMove != nil {
		s.stopMove()
	}
	s.stopMove = s.run(s.ctx, fn)
}

func (s *Service) GoTo(location string) error {
	name := normalize(location)

	s.mu.Lock()
	s.record(protocol.MethodGoTo)
	known := slices.Contains(s.locations, name)
	s.mu.Unlock()

	report := func(status string, descriptionID int, description string) {
		s.emit(func(cb temi.Callback) {
			cb.OnGoToLocationStatusChanged(name, status, descriptionID, description)
		})
	}

	s.move(func(ctx context.Context) {
		if !known {
			if s.sleep(ctx) {
				report(temi.GoToAbort, 404, "location not found")
			}
			return
		}
		for _, status := range []string{temi.GoToStart, temi.GoToCalculating, temi.GoToGoing, temi.GoToComplete} {
			if !s.sleep(ctx) {
				if s.interrupted() {
					report(temi.GoToAbort, 0, "navigation stopped")
				}
				return
			}
			report(status, 0, "")
		}
	})
	return nil
}

func (s *Service) BeWithMe() error {
	s.mu.Lock()
	s.record(protocol.MethodBeWithMe)
	s.mu.Unlock()

	report := func(status string) {
		s.emit(func(cb temi.Callback) { cb.OnBeWithMeStatusChanged(status) })
	}

	s.move(func(ctx context.Context) {
		for _, status := range []string{temi.BeWithMeStart, temi.BeWithMeSearch, temi.BeWithMeTrack} {
			if !s.sleep(ctx) {
				if s.interrupted() {
					report(temi.BeWithMeAbort)
				}
				return
			}
			report(status)
		}
		// Keep tracking until stopped.
		<-ctx.Done()
		if s.interrupted() {
			report(temi.BeWithMeAbort)
		}
	})
	return nil
}

func (s *Service) StopMovement() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(protocol.MethodStopMovement)
	if s.stopMove != nil {
		s.stopMove()
		s.stopMove = nil
	}
	return nil
}

// Speak queues req behind any utterance still playing.
func (s *Service) Speak(req temi.TtsRequest) error {
	done := make(chan struct{})

	s.mu.Lock()
	s.record(protocol.MethodSpeak)
	parent := s.speechCtx
	prev := s.lastSpeech
	s.lastSpeech = done
	s.mu.Unlock()

	report := func(status temi.TtsStatus) {
		r := req
		r.Status = status
		s.emit(func(cb temi.Callback) { cb.OnTtsStatusChanged(r) })
	}

	s.run(parent, func(ctx context.Context) {
		defer close(done)
		if prev != nil {
			select {
			case <-prev:
			case <-ctx.Done():
			}
		}
		if ctx.Err() != nil {
			if s.interrupted() {
				report(temi.TtsCanceled)
			}
			return
		}

		if strings.TrimSpace(req.Speech) == "" {
			if s.sleep(ctx) {
				report(temi.TtsError)
			}
			return
		}
		for _, status := range []temi.TtsStatus{temi.TtsStarted, temi.TtsCompleted} {
			if !s.sleep(ctx) {
				if s.interrupted() {
					report(temi.TtsCanceled)
				}
				return
			}
			report(status)
		}
	})
	return nil
}

// CancelAll cancels the playing utterance and everything queued.
func (s *Service) CancelAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(protocol.MethodCancelAll)
	s.cancelSpeech()
	s.speechCtx, s.cancelSpeech = context.WithCancel(s.ctx)
	return nil
}
