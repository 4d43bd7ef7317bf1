// Package proto describes the RecordStore gRPC service spoken between the
// habitsync client and server.
//
// The service carries google.protobuf.Struct messages, so it runs on the
// default proto codec without generated message types. Typed request and
// response structs in this package are converted to and from Struct with
// Encode and Decode.
package proto
