package logger

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Length caps for text that reaches the logs
const (
	MaxPathLength         = 500
	MaxSessionIDLength    = 128
	MaxFilenameLength     = 255
	MaxErrorMessageLength = 1000
	// MaxGeneralStringLength applies when no cap is given
	MaxGeneralStringLength = 2000
	// MaxDebugContentLength caps prompts and model replies in debug mode
	MaxDebugContentLength = 10000
)

// SanitizeString drops invalid UTF-8 and control characters (tab, newline and
// carriage return survive) and truncates to maxLength bytes plus "...".
func SanitizeString(s string, maxLength int) string {
	if s == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		return -1
	}, s)
	if len(s) > maxLength {
		s = s[:maxLength] + "..."
	}
	return s
}

// SanitizeSessionID caps a client supplied chat session ID
func SanitizeSessionID(id string) string {
	return SanitizeString(id, MaxSessionIDLength)
}

// File is a sanitized "file" field for document names and loose references
func File(name string) zap.Field {
	return zap.String("file", SanitizeString(name, MaxFilenameLength))
}

// Path is a sanitized "path" field for request paths
func Path(p string) zap.Field {
	return zap.String("path", SanitizeString(p, MaxPathLength))
}

// Err is a sanitized "error" field. Model and client text often ends up in
// error messages, so zap.Error is avoided for those.
func Err(err error) zap.Field {
	if err == nil {
		return zap.Skip()
	}
	return ErrString(err.Error())
}

// ErrString is Err for errors already flattened to text
func ErrString(msg string) zap.Field {
	return zap.String("error", SanitizeString(msg, MaxErrorMessageLength))
}
