// Package store persists review results in SQLite.
//
// Each review is stored as its JSON document alongside the columns needed
// for listing and for the aggregate totals reported by [Store.Totals].
package store
