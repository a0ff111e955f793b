/*
Package document implements the transaction manager.

A Manager tracks documents: it loads each document's snapshot once, builds its
scene tree and binds a txn.Store to it. Requests run the store's precommit
synchronously, then submit the batch to the authority in the background and
commit or roll back when the answer arrives. Every mutation of a document's
tree and store happens under that document's session lock, so answers may
arrive in any order and from any goroutine.
*/
package document
