/*
Package adminapi is the gRPC admin/inspection surface cmd/raftctl drives:
Status, Servers, Apply, AddServer, RemoveServer, Promote.

No .proto sources or generated stubs for this service existed in the
retrieval pack, so the service is registered by hand against a
grpc.ServiceDesc (server.go) and encoded with a small gob-based
encoding.Codec (codec.go) instead of protoc-generated marshaling. Request
and response shapes live in types.go as plain Go structs; nothing here
depends on google.golang.org/protobuf's generated runtime.

Every RPC ultimately calls into one pkg/raft.Engine. Because the engine's
methods may only be called from its own owning goroutine, Service.run
marshals each call onto that goroutine via a caller-supplied submit
function (see service.go) rather than calling the engine directly from
the gRPC handler goroutine.
*/
package adminapi
