// Package reservation provides the permit reservation query checked by permit-watch.
//
// The reservation package handles query validation, the deterministic date label the
// reservation calendar uses for each day cell, and the number of month steps the
// calendar must be advanced before the requested day is visible.
package reservation
