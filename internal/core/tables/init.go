// Package tables registers the import definitions of every entity with the
// core registry. Import it for its side effects to make ImportAll see them.
//
// Entities run in Order: users, points, products, orders. Later entities
// reference rows created by earlier ones (orders need pickup points and
// statuses, products need their lookup tables).
package tables

// Pipeline positions.
const (
	orderUsers = iota + 1
	orderPoints
	orderProducts
	orderOrders
)
