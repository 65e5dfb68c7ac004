// Package dependent provides ready-made types.Dependent implementations.
//
// KeyIndex keeps a key to local-row index in step with the rows that leave
// and land on a rank. RoutingPublisher mirrors the block to rank table into a
// JetStream KV bucket so that processes outside the computation can route
// requests to the owning rank.
package dependent
