// Package health provides liveness and readiness probes and the handlers
// the ops listener serves them with.
//
// [ShutdownGate] fails readiness as soon as shutdown starts so a load
// balancer stops routing new clients before the listeners close.
package health
