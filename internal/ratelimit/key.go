package ratelimit

import "strings"

// KeyForEmail builds a cooldown key for an email address.
func KeyForEmail(scope Scope, email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || scope == "" {
		return ""
	}
	return string(scope) + ":e:" + email
}

// KeyForIP builds a cooldown key for a client IP.
func KeyForIP(scope Scope, ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" || scope == "" {
		return ""
	}
	return string(scope) + ":ip:" + ip
}

// KeyForName builds a cooldown key for a username or other identifier.
func KeyForName(scope Scope, name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || scope == "" {
		return ""
	}
	return string(scope) + ":n:" + name
}
