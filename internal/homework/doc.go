// Package homework holds the pure part of the review-status relay: the
// verdict catalog, validation of raw API responses, the submission-to-message
// mapping, and the error taxonomy the poll loop switches over.
//
// Nothing in this package performs I/O.
package homework
