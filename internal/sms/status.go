package sms

import "github.com/smschat/server/internal/model"

// MapProviderStatus maps a provider-reported delivery status token onto the
// internal status vocabulary. Matching is exact and case-sensitive. Unknown
// tokens degrade to "sent" rather than failing the message; the provider adds
// status values over time and an unrecognized one means the message left our
// hands, not that delivery failed.
func MapProviderStatus(providerStatus string) model.Status {
	switch providerStatus {
	case "queued", "sending":
		return model.StatusSending
	case "sent":
		return model.StatusSent
	case "delivered":
		return model.StatusDelivered
	case "failed", "undelivered":
		return model.StatusFailed
	default:
		return model.StatusSent
	}
}
