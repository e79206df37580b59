package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/tnqbao/gau-platform/apperror"
)

// EmptyBodyHash is the SHA256 of an empty body.
const EmptyBodyHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// SignatureTolerance bounds the clock skew accepted on signed webhook requests.
const SignatureTolerance = 300 * time.Second

// BuildStringToSign returns METHOD\nPATH\nTIMESTAMP\nSHA256(body).
func BuildStringToSign(method, path string, timestamp int64, bodyHash string) string {
	return fmt.Sprintf("%s\n%s\n%d\n%s", method, path, timestamp, bodyHash)
}

func ComputeHMACSHA256(secretKey, message string) string {
	h := hmac.New(sha256.New, []byte(secretKey))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func HashBodySHA256(body []byte) string {
	if len(body) == 0 {
		return EmptyBodyHash
	}
	hash := sha256.Sum256(body)
	return hex.EncodeToString(hash[:])
}

// SignRequest produces the signature a webhook sender is expected to send.
func SignRequest(secret, method, path string, timestamp int64, body []byte) string {
	return ComputeHMACSHA256(secret, BuildStringToSign(method, path, timestamp, HashBodySHA256(body)))
}

// VerifySignature checks a signed inbound request against secret.
func VerifySignature(secret, method, path, timestampHeader, signature string, body []byte, now time.Time) error {
	if timestampHeader == "" || signature == "" {
		return apperror.InvalidSignature("timestamp and signature headers are required")
	}
	timestamp, err := strconv.ParseInt(timestampHeader, 10, 64)
	if err != nil {
		return apperror.InvalidSignature("malformed timestamp")
	}
	skew := now.Sub(time.Unix(timestamp, 0))
	if skew > SignatureTolerance || skew < -SignatureTolerance {
		return apperror.InvalidSignature("timestamp outside tolerance")
	}
	expected := SignRequest(secret, method, path, timestamp, body)
	if !SecureCompare(expected, signature) {
		return apperror.InvalidSignature("signature mismatch")
	}
	return nil
}
