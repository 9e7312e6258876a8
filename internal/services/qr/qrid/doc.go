// Package qrid generates and validates the short identifiers printed under
// each QR code and used as sheet names.
//
// Identifiers are six characters drawn uniformly from 0-9 and A-Z. Draws come
// from a general-purpose PCG stream seeded once from crypto/rand; they are
// hard to collide with but not unguessable, so the shared secret, not the
// identifier, protects binding.
package qrid
