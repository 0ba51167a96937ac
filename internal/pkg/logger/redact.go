package logger

import (
	"net/mail"
	"regexp"
	"strings"
)

var (
	emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	// Tracking URLs carry the recipient query-escaped.
	escapedEmailRegex = regexp.MustCompile(`[a-zA-Z0-9._+-]+%40[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
)

// RedactEmail masks the local part of an address, keeping the domain:
// "ana.souza@example.com" becomes "an***@example.com". Local parts of two
// characters or fewer are masked entirely. "Name <addr>" forms keep only
// the masked address.
func RedactEmail(email string) string {
	if strings.ContainsRune(email, '<') {
		if a, err := mail.ParseAddress(email); err == nil {
			email = a.Address
		}
	}
	at := strings.LastIndex(email, "@")
	if at < 0 || strings.Count(email, "@") != 1 {
		return "***@***"
	}
	return maskLocal(email[:at]) + "@" + email[at+1:]
}

func maskLocal(local string) string {
	if len(local) > 2 {
		return local[:2] + "***"
	}
	return "***"
}

func redactEscaped(s string) string {
	at := strings.Index(s, "%40")
	return maskLocal(s[:at]) + s[at:]
}

// redactPIIValue masks address-like keys wholesale and any address embedded
// in other values.
func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	if key == "to" || key == "from" || strings.Contains(key, "email") || strings.Contains(key, "recipient") {
		return RedactEmail(val)
	}
	val = emailRegex.ReplaceAllStringFunc(val, RedactEmail)
	return escapedEmailRegex.ReplaceAllStringFunc(val, redactEscaped)
}
