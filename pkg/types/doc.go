// Package types defines the Store interface, the table, column and row
// types, the identifier grammar and the standard errors for the sheets
// dynamic-schema service.
package types
