// Package events publishes sensor events to NATS for other home automation
// consumers. Publishing is best effort: failures are logged and never reach
// the sensor monitor.
package events
