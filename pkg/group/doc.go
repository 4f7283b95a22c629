// Package group implements the grouping engine behind PROC SORT, MEANS and
// FREQ: stable multi-key sorting with optional key deduplication, grouped
// aggregation over non-missing values, and one-way frequency tables.
//
// Every function here treats its input dataset as immutable and returns a
// freshly built dataset with its own catalog.
package group
