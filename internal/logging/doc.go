// Package logging builds the slog loggers used across scour. It provides
// a console handler for interactive runs, a JSON handler for machine
// consumption, and small attr helpers shared by every component.
package logging
