package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/kkk1998sss/webinar-sub002/internal/domain/ports/adapter"
)

var _ adapter.SignatureVerifier = (*HMACVerifier)(nil)

// Sign returns the lowercase hex HMAC-SHA256 of payload under secret.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is the HMAC-SHA256 of the exact payload
// bytes under secret. It never panics and fails closed on any malformed input.
func Verify(payload []byte, signature, secret string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	signature = strings.TrimSpace(signature)
	if signature == "" || secret == "" {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(got, mac.Sum(nil))
}

// HMACVerifier binds the gateway secrets.
// Webhooks are signed with the webhook secret over the raw body; the
// checkout redirect is signed with the API key secret over "order_id|payment_id".
type HMACVerifier struct {
	webhookSecret string
	keySecret     string
}

func NewHMACVerifier(webhookSecret, keySecret string) *HMACVerifier {
	return &HMACVerifier{webhookSecret: webhookSecret, keySecret: keySecret}
}

func (v *HMACVerifier) VerifyWebhook(rawBody []byte, signature string) bool {
	return Verify(rawBody, signature, v.webhookSecret)
}

func (v *HMACVerifier) VerifyCheckout(gatewayOrderID, gatewayPaymentID, signature string) bool {
	if gatewayOrderID == "" || gatewayPaymentID == "" {
		return false
	}
	return Verify(CheckoutPayload(gatewayOrderID, gatewayPaymentID), signature, v.keySecret)
}

// CheckoutPayload is the message signed for client-side confirmations.
func CheckoutPayload(gatewayOrderID, gatewayPaymentID string) []byte {
	return []byte(gatewayOrderID + "|" + gatewayPaymentID)
}
