package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// DeviceCookie names the cookie that identifies a browser.
const DeviceCookie = "loyaltyloop_device"

// deviceCookieMaxAge is the longest lifetime browsers honour.
const deviceCookieMaxAge = 400 * 24 * time.Hour

type contextKey string

const deviceContextKey contextKey = "device"

// DeviceOptions configures Device.
type DeviceOptions struct {
	Secure bool // mark the cookie Secure
}

// Device puts the browser's device id in the request context, issuing a new
// one when the cookie is missing or malformed. It never blocks a request.
func Device(opts DeviceOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(DeviceCookie); err == nil {
				if u, err := uuid.Parse(c.Value); err == nil {
					id = u.String()
				}
			}
			if id == "" {
				id = uuid.NewString()
				SetDeviceCookie(w, id, opts.Secure)
			}
			next.ServeHTTP(w, r.WithContext(ContextWithDevice(r.Context(), id)))
		})
	}
}

// SetDeviceCookie writes the device cookie.
func SetDeviceCookie(w http.ResponseWriter, id string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     DeviceCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(deviceCookieMaxAge / time.Second),
	})
}

// DeviceID returns the device id set by Device.
func DeviceID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(deviceContextKey).(string)
	return id, ok && id != ""
}

// ContextWithDevice returns a context carrying id.
func ContextWithDevice(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, deviceContextKey, id)
}
