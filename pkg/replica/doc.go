/*
Package replica tracks individual worker replicas through their lifecycle.

A replica is one running instance of a deployment's worker process. The
package defines:

  - Handle: the capability interface over one worker process, implemented by
    the external launcher (start-readiness polling, live reconfigure,
    graceful and forced stop, health checks)
  - Launcher: the collaborator that creates Handles and reattaches to
    replicas that survived a controller restart
  - Record: one tracked replica (stable tag, assigned version, timers and
    the stop escalation state machine)
  - StateContainer: the per-deployment collection of Records indexed by
    lifecycle state, with the filtered count/get/pop operations the
    reconciliation loop is built on
  - RankForStopping: the stop-preference ordering used when choosing which
    replicas to drain

All polling operations are non-blocking point queries: a Handle must answer
immediately and report progress on a later tick rather than block the
control loop.
*/
package replica
