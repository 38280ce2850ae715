// Package domain defines core data models and interfaces shared across the app.
// It contains plain types (wire/state), contracts (interfaces) and the
// sentinel errors callers match with errors.Is.
package domain
