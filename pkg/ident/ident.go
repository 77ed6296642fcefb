// Package ident generates the human-facing reference numbers printed on
// receipts and purchase orders. Uniqueness is ultimately enforced by the
// database, these just need to be readable and collision-unlikely.
package ident

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"
)

const (
	txnPrefix       = "TRX-"
	autoDraftPrefix = "PO-AUTO-"
)

// TransactionNumber returns a receipt reference like TRX-18C2F4A1B39E07.
func TransactionNumber() string {
	return txnPrefix + token()
}

// AutoDraftOrderNumber returns a reference for a system-created draft
// purchase order, like PO-AUTO-18C2F4A1B39E07.
func AutoDraftOrderNumber() string {
	return autoDraftPrefix + token()
}

// token mixes wall-clock nanoseconds with random bytes so numbers sort
// roughly by creation time while staying unguessable.
func token() string {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is unrecoverable for this process.
		panic(fmt.Sprintf("ident: read random: %v", err))
	}
	return strings.ToUpper(fmt.Sprintf("%x%x", time.Now().UnixNano()&0xFFFFFFFFFF, buf))
}
