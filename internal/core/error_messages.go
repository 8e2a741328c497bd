// Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// When a request fails, the code is returned next to the message so operators
// can find the cause quickly.
//
// # Dataset Errors (DS001-DS099)
//
//	DS001 - Dataset not found: No dataset is cached under the requested name
//	        Action: Check the name with the dataset list or load the file first
//	        Patterns: "dataset not found"
//
//	DS002 - Invalid name: Dataset name is empty or contains a slash
//	        Patterns: "invalid dataset name"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large          Patterns: "file too large"
//	FILE002 - Invalid CSV             Patterns: "invalid csv"
//	FILE003 - Encoding error          Patterns: "encoding error"
//	FILE004 - No file                 Patterns: "no file provided"
//	FILE005 - Empty file              Patterns: "empty file"
//
// # Source Errors (SRC001-SRC099)
//
// Errors from discovering and extracting files on disk or inside archives:
//
//	SRC001 - Unsupported file type    Patterns: "unsupported source"
//	SRC002 - Corrupt archive          Patterns: "zip: not a valid zip file"
//	SRC003 - Missing path             Patterns: "no such file or directory"
//	SRC004 - Unreadable path          Patterns: "permission denied"
//
// # Load Errors (LOAD001-LOAD099)
//
//	LOAD001 - System busy             Patterns: "too many concurrent loads"
//	LOAD002 - Request cancelled       Patterns: "context canceled"
//	LOAD003 - Request timeout         Patterns: "context deadline exceeded"
//	LOAD004 - Missing path            Patterns: "missing path"
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Bad query parameter      Patterns: "invalid parameter"
//	REQ002 - Bad request body         Patterns: "invalid request body"
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited            Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches. Check the server log for the
// original error, which is always logged with the request ID.
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns should be
// defined before general ones.

package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// Patterns are matched using strings.Contains, so partial matches work.
// The first matching pattern wins, so order matters:
//   - More specific patterns should come before general ones
//   - Multiple patterns can map to the same error code
//
// To add a new error pattern:
//  1. Choose the appropriate category and code range
//  2. Add the pattern in the correct position (specific before general)
//  3. Update the reference at the top of this file
var errorPatterns = []errorPattern{
	// =========================================================================
	// Dataset Errors (DS001-DS002)
	// These errors occur when querying the dataset cache.
	// =========================================================================
	{
		pattern: "dataset not found",
		msg: UserMessage{
			Message: "Dataset not found",
			Action:  "Check the name with the dataset list or load the file first",
			Code:    "DS001",
		},
	},
	{
		pattern: "invalid dataset name",
		msg: UserMessage{
			Message: "Dataset name is not valid",
			Action:  "Use a non-empty name without slashes",
			Code:    "DS002",
		},
	},

	// =========================================================================
	// File Errors (FILE001-FILE005)
	// These errors occur when reading CSV text.
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure file is comma-separated with consistent columns",
			Code:    "FILE002",
		},
	},
	{
		pattern: "encoding error",
		msg: UserMessage{
			Message: "File contains invalid characters",
			Action:  "Save file as UTF-8 encoding",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was provided",
			Action:  "Send the CSV text as the request body",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The file is empty",
			Action:  "Provide a CSV file with a header and data rows",
			Code:    "FILE005",
		},
	},

	// =========================================================================
	// Source Errors (SRC001-SRC004)
	// These errors occur while discovering and extracting source files.
	// =========================================================================
	{
		pattern: "unsupported source",
		msg: UserMessage{
			Message: "File type is not supported",
			Action:  "Use .csv, .csv.gz, .csv.zst, .csv.xz, .xlsx or a .zip of those",
			Code:    "SRC001",
		},
	},
	{
		pattern: "zip: not a valid zip file",
		msg: UserMessage{
			Message: "Archive is not a valid zip file",
			Action:  "Re-create the archive and try again",
			Code:    "SRC002",
		},
	},
	{
		pattern: "no such file or directory",
		msg: UserMessage{
			Message: "Source path does not exist",
			Action:  "Check the path is visible to the server",
			Code:    "SRC003",
		},
	},
	{
		pattern: "permission denied",
		msg: UserMessage{
			Message: "Source path cannot be read",
			Action:  "Check file permissions on the server",
			Code:    "SRC004",
		},
	},

	// =========================================================================
	// Load Errors (LOAD001-LOAD004)
	// These errors occur during the load process.
	// =========================================================================
	{
		pattern: "too many concurrent loads",
		msg: UserMessage{
			Message: "System is busy processing other loads",
			Action:  "Please wait a moment and try again",
			Code:    "LOAD001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "LOAD002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try loading a smaller file or check your connection",
			Code:    "LOAD003",
		},
	},
	{
		pattern: "missing path",
		msg: UserMessage{
			Message: "No source path was given",
			Action:  "Send a JSON body with a path field",
			Code:    "LOAD004",
		},
	},

	// =========================================================================
	// Request Errors (REQ001-REQ002)
	// =========================================================================
	{
		pattern: "invalid parameter",
		msg: UserMessage{
			Message: "A request parameter is not valid",
			Action:  "Use a non-negative whole number",
			Code:    "REQ001",
		},
	},
	{
		pattern: "invalid request body",
		msg: UserMessage{
			Message: "Request body could not be read",
			Action:  "Send a JSON object such as {\"path\": \"/data/sales.csv\"}",
			Code:    "REQ002",
		},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
	// These errors occur when request limits are exceeded.
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
// This is the fallback for unexpected errors. Support staff should check
// application logs for the original technical error when users report ERR000.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It searches through known error patterns (case-insensitive) and returns
// the first match. If no pattern matches, a generic fallback message with
// code ERR000 is returned.
//
// Example:
//
//	_, err := cache.Get("missing", 0)
//	msg := MapError(err)
//	// msg.Code == "DS001"
//	// msg.Message == "Dataset not found"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
//
// Example output: "Dataset not found (Code: DS001). Check the name with the dataset list or load the file first"
//
// This is the primary function for displaying errors to end users.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing checks if an error matches a known pattern and should be shown to users.
// Returns true if the error matches a specific pattern (not the generic ERR000 fallback).
// Use this to decide whether to show the raw error or the mapped user message.
//
// Example:
//
//	if IsUserFacing(err) {
//	    showToUser(FormatUserError(err))
//	} else {
//	    log.Error(err) // Log technical error
//	    showToUser("An error occurred. Please try again.")
//	}
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	msg := MapError(err)
	return msg.Code != defaultMessage.Code
}

// WrapWithUserMessage wraps a technical error with a user-friendly message.
// The original error is preserved for logging while providing a clean message for users.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError creates a UserError by mapping a technical error to a user-friendly message.
// The returned UserError preserves the original technical error for logging via Unwrap(),
// while providing a clean user message via Error().
//
// Returns nil if err is nil.
//
// Example:
//
//	ue := NewUserError(err)
//	slog.Error("load failed", "error", ue.Technical)
//	fmt.Println(ue.Error())   // "File exceeds the maximum size limit"
//	fmt.Println(ue.User.Code) // "FILE001"
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
