// Package controlplane implements the production gateway variant: every
// operation becomes one HTTP exchange with the remote control plane, which
// alone holds provider credentials. The agent process only ever sees a
// session token.
//
// The broker's cost figures are ground truth. The local ledger is a mirror
// used for fail-fast cap checks; it is reconciled from every invoke response
// and from SessionCost, and never recomputes costs on its own.
package controlplane
