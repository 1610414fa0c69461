/*
Package cluster abstracts node membership for the deployment controllers.

Membership is the collaborator interface the controllers consult once per
tick to learn which nodes are alive. Replicas placed on nodes that have left
the live set become "dangling" and are preferentially recycled; global-mode
deployments additionally derive their target replica count from the size of
the live set.

Static is a fixed, mutable in-memory implementation suitable for
single-host operation and tests.
*/
package cluster
