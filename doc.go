// Package ipfls provides code intelligence for Igor Pro procedure files.
//
// An Engine keeps one symbol book per procedure file, re-parsing a file on
// every open, change or save event and discarding superseded work. A
// QueryBuilder answers completion, hover, signature help, definition and
// workspace symbol requests by reading across the built-in books, an
// optional external book and every file book, filtered by the configured
// Igor Pro version.
package ipfls
