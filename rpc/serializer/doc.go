// Package serializer provides message serialization capabilities for
// the sharded graph storage engine's RPC system. It defines a common
// interface for serializing and deserializing the rpc/common.Message
// envelope between client and server components.
//
// The package focuses on:
//   - Providing a consistent interface independent of wire format
//   - Human-readable output useful for debugging the shard-manager
//     protocol (heartbeat, route, split forward)
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - jsonSerializerImpl: Implementation using JSON encoding. The only
//     serializer this engine carries; see DESIGN.md for why the
//     teacher's binary and gob implementations were not ported.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	Serializers are typically created once and reused throughout the application:
//
//	  serializer := serializer.NewJSONSerializer()
//	  data, err := serializer.Serialize(message)
//	  // ... send data ...
//	  var receivedMsg common.Message
//	  err = serializer.Deserialize(receivedData, &receivedMsg)
package serializer
