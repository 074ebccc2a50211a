// Package hub holds an in-memory copy of one hub project tree and
// reconciles changes into batched server operations.
//
// A Hub is loaded once per sync run. Mutations (created entities,
// field and attribute changes, removals) accumulate against a locked
// baseline; Commit diffs the tree against that baseline, submits one
// operations batch with creates ordered parent-before-child and
// deletes child-before-parent, and re-locks on success. A clean hub
// commits nothing.
//
// Immutability of subtrees that carry published output is answered by
// ImmutableForHierarchy, computed lazily and cached until a
// structural change touches the subtree.
package hub
