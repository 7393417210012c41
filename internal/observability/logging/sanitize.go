package logging

import (
	"regexp"
)

var (
	// ゲートウェイ API キーパターン
	bearerTokenPattern = regexp.MustCompile(`(?i)bearer [a-zA-Z0-9._\-]+`)
	apiKeyPattern      = regexp.MustCompile(`(?i)(api[_-]?key[=:]\s*)[a-zA-Z0-9._\-]+`)

	// データベース・SMTP パスワードパターン（URL内）
	urlPasswordPattern = regexp.MustCompile(`://([^:/]+):([^@]+)@`)
)

// SanitizeError returns the error message with credentials masked. Error
// text from senders and repositories can embed gateway tokens or connection
// strings, and it ends up in logs and in the delivery ledger's error column.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return Sanitize(err.Error())
}

// Sanitize masks credentials embedded in a string.
func Sanitize(msg string) string {
	msg = bearerTokenPattern.ReplaceAllString(msg, "Bearer ****")
	msg = apiKeyPattern.ReplaceAllString(msg, "${1}****")
	msg = urlPasswordPattern.ReplaceAllString(msg, "://$1:****@")
	return msg
}
