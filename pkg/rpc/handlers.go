package rpc

import (
	"github.com/teslashibe/go-temi/pkg/protocol"
	"github.com/teslashibe/go-temi/pkg/temi"
)

// handler serves one request method against a backend.
type handler func(b temi.Service, msg *protocol.Message) (any, error)

func noArgs(fn func(temi.Service) error) handler {
	return func(b temi.Service, _ *protocol.Message) (any, error) {
		return nil, fn(b)
	}
}

func withArg[T any](fn func(temi.Service, T) error) handler {
	return func(b temi.Service, msg *protocol.Message) (any, error) {
		var arg T
		if err := msg.ParseData(&arg); err != nil {
			return nil, err
		}
		return nil, fn(b, arg)
	}
}

func result[R any](fn func(temi.Service) (R, error)) handler {
	return func(b temi.Service, _ *protocol.Message) (any, error) {
		return fn(b)
	}
}

func argResult[T, R any](fn func(temi.Service, T) (R, error)) handler {
	return func(b temi.Service, msg *protocol.Message) (any, error) {
		var arg T
		if err := msg.ParseData(&arg); err != nil {
			return nil, err
		}
		return fn(b, arg)
	}
}

func motion(fn func(temi.Service, int, float32) error) handler {
	return withArg(func(b temi.Service, p protocol.MotionParams) error {
		return fn(b, p.Degrees, p.Speed)
	})
}

// handlers maps every request method except register, which needs the
// session's proxy callback.
var handlers = map[string]handler{
	protocol.MethodOnStart:         withArg(temi.Service.OnStart),
	protocol.MethodSpeak:           withArg(temi.Service.Speak),
	protocol.MethodCancelAll:       noArgs(temi.Service.CancelAll),
	protocol.MethodLockContexts:    withArg(temi.Service.LockContexts),
	protocol.MethodReleaseContexts: withArg(temi.Service.ReleaseContexts),
	protocol.MethodWakeup:          noArgs(temi.Service.Wakeup),
	protocol.MethodGetWakeupWord:   result(temi.Service.GetWakeupWord),
	protocol.MethodToggleWakeup:    withArg(temi.Service.ToggleWakeup),

	protocol.MethodGoTo:           withArg(temi.Service.GoTo),
	protocol.MethodGetLocations:   result(temi.Service.GetLocations),
	protocol.MethodSaveLocation:   argResult(temi.Service.SaveLocation),
	protocol.MethodDeleteLocation: argResult(temi.Service.DeleteLocation),
	protocol.MethodBeWithMe:       noArgs(temi.Service.BeWithMe),
	protocol.MethodStopMovement:   noArgs(temi.Service.StopMovement),
	protocol.MethodSkidJoy: withArg(func(b temi.Service, p protocol.JoystickParams) error {
		return b.SkidJoy(p.X, p.Y)
	}),
	protocol.MethodTurnBy:                    motion(temi.Service.TurnBy),
	protocol.MethodTiltAngle:                 motion(temi.Service.TiltAngle),
	protocol.MethodTiltBy:                    motion(temi.Service.TiltBy),
	protocol.MethodToggleNavigationBillboard: withArg(temi.Service.ToggleNavigationBillboard),

	protocol.MethodGetSerialNumber: result(temi.Service.GetSerialNumber),
	protocol.MethodGetBatteryData:  result(temi.Service.GetBatteryData),
	protocol.MethodShowAppList:     noArgs(temi.Service.ShowAppList),
	protocol.MethodShowTopBar:      noArgs(temi.Service.ShowTopBar),
	protocol.MethodHideTopBar:      noArgs(temi.Service.HideTopBar),

	protocol.MethodStartTelepresence: argResult(func(b temi.Service, p protocol.TelepresenceParams) (string, error) {
		return b.StartTelepresence(p.DisplayName, p.PeerID)
	}),
	protocol.MethodGetAdminInfo:   result(temi.Service.GetAdminInfo),
	protocol.MethodGetAllContacts: result(temi.Service.GetAllContacts),
	protocol.MethodGetRecentCalls: result(temi.Service.GetRecentCalls),

	protocol.MethodShareActivityStreamObject: withArg(temi.Service.ShareActivityStreamObject),
	protocol.MethodShowNormalNotification:    withArg(temi.Service.ShowNormalNotification),
	protocol.MethodShowAlertNotification:     withArg(temi.Service.ShowAlertNotification),
	protocol.MethodRemoveAlertNotification:   withArg(temi.Service.RemoveAlertNotification),

	protocol.MethodUpdateMediaBar: withArg(temi.Service.UpdateMediaBar),
	protocol.MethodPauseMediaBar:  noArgs(temi.Service.PauseMediaBar),
	protocol.MethodSetMediaPlaying: withArg(func(b temi.Service, p protocol.MediaPlayingParams) error {
		return b.SetMediaPlaying(p.Playing, p.PackageName)
	}),
}
