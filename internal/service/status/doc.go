// Package status implements doorbell-status, a small tool that queries the
// server health endpoint and prints the reported status of the server and of
// the sensor as protobuf JSON.
package status
