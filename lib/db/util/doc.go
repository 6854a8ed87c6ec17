// Package util provides utility components shared by the database engines
// and the stores built on top of them.
//
// The package contains:
//   - mapheap: A generic priority queue that also supports key-based access,
//     used to schedule expirations whose deadline can move or be cancelled
package util
