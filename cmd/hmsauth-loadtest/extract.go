package main

import (
	"fmt"
	"regexp"

	"github.com/MrEthical07/hmsAuth/mailer"
)

var (
	codePattern     = regexp.MustCompile(`\b[1-9][0-9]{5}\b`)
	passwordPattern = regexp.MustCompile(`Temporary password: (\S+)`)
)

func extractCode(text string) string {
	return codePattern.FindString(text)
}

func extractTemporaryPassword(text string) string {
	m := passwordPattern.FindStringSubmatch(text)
	if len(m) != 2 {
		return ""
	}
	return m[1]
}

func lastMatch(mail *mailer.Memory, addr string, extract func(string) string) (string, error) {
	msg, ok := mail.Last(addr)
	if !ok {
		return "", fmt.Errorf("no email sent to %s", addr)
	}
	v := extract(msg.Text)
	if v == "" {
		return "", fmt.Errorf("nothing to extract from email to %s", addr)
	}
	return v, nil
}
