// Package log provides structured logging on top of zerolog: a global
// logger configured once via Init, and component/entity-scoped child
// loggers (WithComponent, WithNodeID, WithWorkloadID, WithTaskName) that
// every other package uses instead of passing a logger down by hand.
package log
