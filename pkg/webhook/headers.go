package webhook

import (
	"net/http"
	"strconv"
	"strings"
)

// Header names follow the widely used X-Webhook-* convention. The signature
// header may carry several comma-separated values: providers send one
// signature per active secret while rotating.
const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderTimestamp = "X-Webhook-Timestamp"
	HeaderID        = "X-Webhook-ID"
)

// Headers is the signature material extracted from an inbound delivery.
type Headers struct {
	Signatures []string
	Timestamp  int64
	ID         string
}

// ExtractHeaders pulls signature data out of the HTTP headers of a webhook
// delivery. The ID header is optional; signature and timestamp are required.
func ExtractHeaders(h http.Header) (Headers, error) {
	raw := h.Get(HeaderSignature)
	tsRaw := h.Get(HeaderTimestamp)
	if raw == "" || tsRaw == "" {
		return Headers{}, ErrMissingHeaders
	}

	ts, err := strconv.ParseInt(tsRaw, 10, 64)
	if err != nil {
		return Headers{}, ErrInvalidTimestamp
	}

	var sigs []string
	for s := range strings.SplitSeq(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			sigs = append(sigs, s)
		}
	}
	if len(sigs) == 0 {
		return Headers{}, ErrMissingHeaders
	}

	return Headers{
		Signatures: sigs,
		Timestamp:  ts,
		ID:         h.Get(HeaderID),
	}, nil
}
