// Package models defines the records manipulated by the page-builder: pages,
// blocks and templates, plus the references and errors shared by every layer.
//
// # Nodes
//
// Pages and blocks share one shape, [Node]. A node is a tagged union whose
// discriminant is [Node.Store]: a node stored in [CollectionPages] carries a
// non-nil [PageMeta], a node stored in [CollectionBlocks] never does. Code that
// needs to branch on the variant switches on Store (see [Node.Kind]) rather
// than probing fields.
//
// Every node owns a [Slots] map from slot name to an ordered list of child
// block ids. The slot arrays are the only record of parent/child structure:
// a block is alive while some page or template reaches it through a chain of
// slot memberships, and its position is its index in the parent's array.
//
// # Templates
//
// A [Template] is a saved subtree. Its root block lives in the blocks
// collection and is referenced from Template.Slots["root"]. Templates carry a
// dense zero-based Order used for listing; the ordering package keeps it
// gap-free.
//
// # Copy on write
//
// Records read from a store must not be mutated in place by callers that may
// share them. Every mutation in the engine starts from [Node.Clone] or
// [Template.Clone], which deep-copy slots and props.
//
// # Errors
//
// The error types in errors.go form the failure taxonomy of the tree engine:
// [NotFoundError], [DanglingReferenceError], [IncompleteTreeError] and
// [ConstraintViolationError]. Each matches a sentinel with errors.Is so
// callers can branch without type assertions.
package models
