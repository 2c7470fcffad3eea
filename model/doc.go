// Package model holds the query and result records exchanged between the
// builder, filter, rank, semantic and search packages.
package model
