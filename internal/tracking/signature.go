package tracking

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// SignatureTolerance bounds the age of a signed webhook delivery.
const SignatureTolerance = 5 * time.Minute

var (
	ErrMissingSignature = errors.New("webhook signature headers missing")
	ErrInvalidSignature = errors.New("webhook signature mismatch")
	ErrStaleSignature   = errors.New("webhook timestamp outside tolerance")
)

// Verifier checks Svix-style webhook signatures as sent by Resend:
// base64(HMAC-SHA256(secret, id + "." + timestamp + "." + body)) in the
// svix-signature header, possibly several space-separated "v1,<sig>"
// entries.
type Verifier struct {
	key []byte
	now func() time.Time
}

// NewVerifier creates a verifier from a "whsec_" prefixed secret. A secret
// that is not base64 is used as raw key bytes.
func NewVerifier(secret string) *Verifier {
	raw := strings.TrimPrefix(secret, "whsec_")
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		key = []byte(raw)
	}
	return &Verifier{key: key, now: time.Now}
}

// Sign computes the signature header value for a delivery.
func (v *Verifier) Sign(id string, ts time.Time, body []byte) string {
	return "v1," + v.digest(id, strconv.FormatInt(ts.Unix(), 10), body)
}

func (v *Verifier) digest(id, ts string, body []byte) string {
	h := hmac.New(sha256.New, v.key)
	h.Write([]byte(id + "." + ts + "."))
	h.Write(body)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// Verify validates the signature headers of a delivery.
func (v *Verifier) Verify(header http.Header, body []byte) error {
	id := firstHeader(header, "svix-id", "webhook-id")
	ts := firstHeader(header, "svix-timestamp", "webhook-timestamp")
	sigs := firstHeader(header, "svix-signature", "webhook-signature")
	if id == "" || ts == "" || sigs == "" {
		return ErrMissingSignature
	}

	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	if d := v.now().Sub(time.Unix(sec, 0)); d > SignatureTolerance || d < -SignatureTolerance {
		return ErrStaleSignature
	}

	expected := []byte(v.digest(id, ts, body))
	for _, entry := range strings.Fields(sigs) {
		version, sig, ok := strings.Cut(entry, ",")
		if !ok || version != "v1" {
			continue
		}
		if hmac.Equal([]byte(sig), expected) {
			return nil
		}
	}
	return ErrInvalidSignature
}

func firstHeader(h http.Header, names ...string) string {
	for _, n := range names {
		if v := h.Get(n); v != "" {
			return v
		}
	}
	return ""
}
