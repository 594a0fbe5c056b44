package logger

import "go.uber.org/zap"

const fingerprintLen = 8

// Credential logs a credential by the tail of its signature only.
// A full credential in a log line is a usable bearer token.
func Credential(cred string) zap.Field {
	if len(cred) <= fingerprintLen {
		return zap.String("credential", "...")
	}
	return zap.String("credential", "..."+cred[len(cred)-fingerprintLen:])
}
