package marketplace

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"strconv"
	"strings"
	"time"
)

// Request headers of the signed API
const (
	HeaderKey       = "KEY"
	HeaderVersion   = "VERSION"
	HeaderURI       = "URI"
	HeaderTime      = "TIME"
	HeaderSignature = "SIGNATURE"
)

// Sign computes the request signature: base64 of the HMAC-SHA512, keyed
// with the private key, over the body length followed by the method, URI,
// API version and timestamp.
func Sign(privateKey string, bodyLength int, method, uri, version, timestamp string) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(bodyLength))
	b.WriteString(method)
	b.WriteString(uri)
	b.WriteString(version)
	b.WriteString(timestamp)

	mac := hmac.New(sha512.New, []byte(privateKey))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// signedHeaders returns the authentication headers for one request.
func signedHeaders(publicKey, privateKey string, body []byte, method, uri, version string, at time.Time) map[string]string {
	timestamp := at.Format(time.RFC3339)
	return map[string]string{
		HeaderKey:       publicKey,
		HeaderVersion:   version,
		HeaderURI:       uri,
		HeaderTime:      timestamp,
		HeaderSignature: Sign(privateKey, len(body), method, uri, version, timestamp),
	}
}
