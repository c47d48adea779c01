/*
Package dump provides I/O operations for snapshots of the social contract
storage.

Snapshots make it possible to inspect the state of a deployed contract and
to reproduce it in tests or on another store. The package works with dumps
stored in the file system using human-readable encoding.
*/
package dump
