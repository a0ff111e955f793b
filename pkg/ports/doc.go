/*
Package ports defines the driven ports (interfaces) for the scenesync engine.

These interfaces decouple the transaction engine from the scene framework that
owns the nodes, from the transport that reaches the authority, and from the
storage backends the authority persists documents in.

# Key Interfaces

  - Tree / Node: the scene tree collaborator. The engine never builds or destroys nodes outside these calls.
  - Transport: submits a batch to the authority and reports success or failure.
  - DocumentLoader: fetches the authoritative snapshot of a document.
  - SnapshotSource / SnapshotStore: authority-side document persistence.
  - DistributedLocker: serializes writes to one document across authority replicas.
  - IDGenerator: produces collision resistant transaction ids.
*/
package ports
