// Package sqlquote renders statement text for the persistence engine.
//
// Identifiers are always double-quoted and values are always rendered as
// escaped literals, so no caller-controlled string reaches a statement
// verbatim. The same literal forms work for both supported dialects:
// booleans are 't'/'f', identities and dates are quoted strings, and lists
// use the array literal form {a,b}.
package sqlquote
