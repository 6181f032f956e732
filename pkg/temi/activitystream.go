package temi

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// MaxActivityMediaSize bounds the local file inlined into an activity
// stream object.
const MaxActivityMediaSize = 8 << 20

// prepareActivityStreamObject fills the ID and date and inlines LocalFile
// into MediaData, detecting MediaType when it is not set.
func prepareActivityStreamObject(obj ActivityStreamObject, now time.Time) (ActivityStreamObject, error) {
	if obj.ID == "" {
		obj.ID = uuid.NewString()
	}
	if obj.Date.IsZero() {
		obj.Date = now
	}
	if obj.LocalFile == "" {
		return obj, nil
	}

	info, err := os.Stat(obj.LocalFile)
	if err != nil {
		return obj, fmt.Errorf("temi: activity media: %w", err)
	}
	if info.Size() > MaxActivityMediaSize {
		return obj, fmt.Errorf("temi: activity media %s is %d bytes, limit is %d", obj.LocalFile, info.Size(), MaxActivityMediaSize)
	}
	data, err := os.ReadFile(obj.LocalFile)
	if err != nil {
		return obj, fmt.Errorf("temi: activity media: %w", err)
	}
	obj.MediaData = data

	if obj.MediaType == "" {
		obj.MediaType = mime.TypeByExtension(filepath.Ext(obj.LocalFile))
		if obj.MediaType == "" {
			obj.MediaType = http.DetectContentType(data)
		}
	}
	return obj, nil
}

// ShareActivityObject publishes obj to the activity stream. Preparation and
// the remote call run on a background goroutine; the outcome arrives through
// the activity stream publish listener.
func (r *Robot) ShareActivityObject(obj ActivityStreamObject) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	svc := r.service
	if svc == nil {
		r.mu.Unlock()
		return ErrNotReady
	}
	r.background.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.background.Done()

		prepared, err := prepareActivityStreamObject(obj, time.Now())
		if err != nil {
			r.logger.Error("prepare activity stream object failed", "error", err)
			return
		}
		if err := svc.ShareActivityStreamObject(prepared); err != nil {
			r.logger.Error("remote call failed", "method", "shareActivityStreamObject", "error", err)
		}
	}()
	return nil
}
