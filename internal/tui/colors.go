package tui

// Color constants for the fieldtask console theme
const (
	// Base Colors
	ColorAppBackground  = ""        // Use terminal default background
	ColorCardBackground = "#1C1712" // Dark warm grey
	ColorBorder         = "#4A4438" // Muted brown-grey

	// Text Colors
	ColorPrimaryText   = "#F2EDE4" // Primary text (labels, titles)
	ColorSecondaryText = "#C4BBA9" // Secondary text
	ColorDisabledText  = "#7D7668" // Disabled/muted text
	ColorHelpText      = "240"     // Dark grey for help text

	// Accent Colors (amber theme)
	ColorAccentMain   = "#D97706" // Accent elements, active borders
	ColorAccentBright = "#FBBF24" // Highlights, live counters

	// State Colors
	ColorError   = "#EF4444" // Missing evidence, failures
	ColorSuccess = "#22C55E" // Completion-ready, confirmations
	ColorWarning = "#F59E0B" // Pending evidence
)
