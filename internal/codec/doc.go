// Package codec converts a task invocation (identity path plus keyword
// arguments) to and from the transport-safe body carried by the push-queue
// and the local broker: canonical JSON, base64-encoded.
//
// Encoding understands a few value types that plain JSON does not: time.Time,
// civil dates, times and datetimes, arbitrary-precision decimals and UUIDs.
// The same formatting applies inside maps, slices and struct fields; structs
// are rendered by their json tags.
// Decoding does not reconstruct those types; receivers get plain JSON values.
package codec
