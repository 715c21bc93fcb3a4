// Package mailer delivers account emails (verification codes and temporary
// passwords) through pluggable dispatchers: SMTP, an MQTT outbox, a zap log
// sink for development, and wrappers adding retries and pacing.
package mailer
