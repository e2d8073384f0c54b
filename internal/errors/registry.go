package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Mutation Errors (R001-R009)
	// ============================================

	"R001": {
		Category:   CategoryMutation,
		Message:    "Re-entrant edit rejected",
		Suggestion: "Collect the changes and apply them in a single Edit call",
	},
	"R002": {
		Category:   CategoryMutation,
		Message:    "Index out of range",
		Suggestion: "Check Editor.Len() before addressing elements",
	},
	"R003": {
		Category: CategoryMutation,
		Message:  "List disposed",
	},
	"R004": {
		Category: CategoryMutation,
		Message:  "Edit callback panicked",
	},

	// ============================================
	// Command Errors (R010-R019)
	// ============================================

	"R010": {
		Category: CategoryCommand,
		Message:  "Command faulted",
	},
	"R011": {
		Category: CategoryCommand,
		Message:  "View-model disposed",
	},

	// ============================================
	// Dispatch Errors (R020-R029)
	// ============================================

	"R020": {
		Category: CategoryDispatch,
		Message:  "Render failed",
	},
	"R021": {
		Category:   CategoryDispatch,
		Message:    "Dispatch loop closed",
		Suggestion: "The session has ended; reconnect to start a new one",
	},

	// ============================================
	// Config Errors (R030-R039)
	// ============================================

	"R030": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
	},
	"R031": {
		Category:   CategoryConfig,
		Message:    "Configuration file not readable",
		Suggestion: "Check the path passed to --config",
	},
	"R032": {
		Category:   CategoryConfig,
		Message:    "Configuration file malformed",
		Suggestion: "Configuration files are JSON (.json) or YAML (.yaml, .yml)",
	},

	// ============================================
	// CLI Errors (R040-R049)
	// ============================================

	"R040": {
		Category:   CategoryCLI,
		Message:    "Invalid flag value",
		Suggestion: "Run with --help to see accepted values",
	},
	"R041": {
		Category: CategoryCLI,
		Message:  "Server failed",
	},
	"R042": {
		Category:   CategoryCLI,
		Message:    "Unknown client action",
		Suggestion: "Send one of: start, cancel, start_interval, cancel_interval",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
