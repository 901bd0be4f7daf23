// Package storage implements the persisted-session and user-profile stores on sqlx.
// Queries are written with '?' placeholders and rebound for the active driver.
package storage
