package utils

import (
	"net/url"
	"strings"
)

// CanonicalAddress lower-cases an address so that keys from different sources compare equal.
func CanonicalAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// GetRedactedURL hides the password part of requrl, unparsable urls are returned as they are.
func GetRedactedURL(requrl string) string {
	var logurl string

	urlData, _ := url.Parse(requrl)
	if urlData != nil {
		logurl = urlData.Redacted()
	} else {
		logurl = requrl
	}

	return logurl
}
