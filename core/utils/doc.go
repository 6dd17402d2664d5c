// Package utils provides common helpers for the inventory-sync application.
// It holds the type conversions used to normalize values read from SQL drivers,
// which return integers, booleans and text in driver-specific Go types.
package utils
