// Package internal contains the byte encodings of the sorted-set store:
//   - score: an order-preserving 8 byte code for float64 scores
//   - keys: builders and parsers for metadata, score-index and member-index row keys
//   - meta: the metadata row value and the version generator
package internal
