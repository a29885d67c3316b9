// Package value implements the tagged-union property value carried by
// vertices, edges and index entries throughout the graph engine.
//
// A Value is a small struct with a Kind discriminant and narrow payload
// fields, never an interface{} payload - copying a Value only copies the
// tag and header, never the backing container of a list or map.
package value
