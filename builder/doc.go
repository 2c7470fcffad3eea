// Package builder compiles a model.Query into a parameterized SQLite
// statement over the screenplay tables and a matching count statement.
//
// Predicate groups are ANDed together and the values of one group (several
// character names, several locations) are ORed. Arguments are appended in
// exactly the order their placeholders are emitted, and the search
// statement always ends with LIMIT ? OFFSET ?.
package builder
