// Package cli parses the executor's command line: the --config flag and the
// (flagToken, rank) positional pair the launch supervisor passes to every
// worker. It owns process-level concerns like usage text and exit codes and
// translates validated input into the application's configuration.
package cli
