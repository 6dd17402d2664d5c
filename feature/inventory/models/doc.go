// Package models defines the gorm table models of the network inventory and the
// audit table of sync runs.
//
// The inventory tables carry no gorm associations: relations are written by the
// record binding in core/binding, which keeps key columns, join tables and
// relationship associations in step with the records.
package models
