package api

import (
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// SetPushSender replaces the web push transport and returns a restore func.
func SetPushSender(f func([]byte, *webpush.Subscription, *webpush.Options) (*http.Response, error)) func() {
	prev := sendNotification
	sendNotification = f
	return func() { sendNotification = prev }
}
