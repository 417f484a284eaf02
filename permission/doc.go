// Package permission provides the flat permission Set used by adminauth
// authorization checks, its cache codec, and an in-memory RoleTable.
//
// Permission keys are opaque strings ("system:user:list"). A Set grants a key
// by exact membership, or unconditionally when it holds RootPermission.
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O. The session
// store uses EncodeSet/DecodeSet to cache resolved sets in Redis.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import adminauth, jwt, or session.
package permission
