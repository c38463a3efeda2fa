// Package logger wraps zap for the doorbell binaries:
//   - a global sugared logger with a console encoder and an atomic level,
//   - context helpers (ToContext/FromContext/WithName/WithKV/WithFields),
//   - level parsing for the --log-level flag,
//   - convenience functions (Infof, ErrorKV, etc.).
//
// Components receive a context and log through the logger stored in it, so
// session IDs and component names follow every entry.
package logger
