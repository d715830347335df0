// Package scratch stages artifacts in a fast shared directory so that
// out-of-process tools can read them by path.
//
// Ownership boundary:
// - artifact write/remove under one pre-existing root
//
// - name resolution that never escapes that root
//
// The store does no locking. Two callers writing the same name race; the
// optimizer avoids that by handing out a unique name per call.
package scratch
