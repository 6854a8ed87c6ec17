// Package common provides the configuration and logging shared by the zKV command line
// tools and everything else that opens a store.
//
// Key Components:
//
//   - Config: the parameters of a store (engine, data directory, namespace, garbage
//     collection intervals, log level). Config.DBFactory opens the configured engine,
//     Config.StoreOptions derives the options of the sorted-set store.
//
//   - Logger: a custom implementation of dragonboat's logger.ILogger printing
//     "LEVEL | package | message" lines. InitLoggers installs it and sets the level
//     of all zKV loggers.
package common
