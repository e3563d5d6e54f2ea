package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

func base64UrlEncode(input []byte) string {
	return strings.TrimRight(base64.URLEncoding.EncodeToString(input), "=")
}

func base64UrlDecode(input string) ([]byte, error) {
	padded := input
	if m := len(input) % 4; m != 0 {
		padded += strings.Repeat("=", 4-m)
	}
	return base64.URLEncoding.DecodeString(padded)
}

// CreateOrderTrackingToken signs restaurantCode:orderNumber so the public
// order-status endpoint needs no customer account.
func CreateOrderTrackingToken(secret, restaurantCode, orderNumber string) string {
	payload := restaurantCode + ":" + orderNumber
	payloadB64 := base64UrlEncode([]byte(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payloadB64))
	return payloadB64 + "." + base64UrlEncode(mac.Sum(nil))
}

func VerifyOrderTrackingToken(secret, token, restaurantCode, orderNumber string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(parts[0]))
	expected := mac.Sum(nil)

	actual, err := base64UrlDecode(parts[1])
	if err != nil {
		return false
	}
	if !hmac.Equal(actual, expected) {
		return false
	}

	payloadRaw, err := base64UrlDecode(parts[0])
	if err != nil {
		return false
	}
	return string(payloadRaw) == restaurantCode+":"+orderNumber
}
