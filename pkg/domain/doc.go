/*
Package domain contains the core domain models of the scenesync transaction engine.

It defines the edits that can be applied to a scene graph, the batches that group
them, and the snapshots exchanged with the authority. This package is kept pure and
free of I/O, following Hexagonal Architecture principles.

# Key Entities

  - Action: one typed edit (CreateAction, DeleteAction, UpdateAction).
  - Transaction: an immutable, ordered batch of Actions bound to a document.
  - Field: a typed value stored on a scene node (string, int, float, bool, vec3, col4).
  - DocumentSnapshot: the serializable form of a whole scene document.
*/
package domain
