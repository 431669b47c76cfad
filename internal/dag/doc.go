// Package dag declares and executes the segmentation pipeline as a DAG of
// pure compute nodes with content-fingerprinted caching.
//
// It is split into:
//   - Declaration (Pipeline, Node): names, dependencies, parameters, compute
//   - Immutable graph (TaskGraph): validated structure + stable GraphHash
//   - Mutable execution state (ExecutionState): per-run node statuses
//
// The graph identity (GraphHash) is computed from node definitions and the
// canonicalized edge structure, making it invariant to declaration order.
package dag
