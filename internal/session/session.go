// Package session tells the service which account it acts for.
package session

// Provider reports the signed-in account. Wallet authentication happens
// outside of this service.
type Provider interface {
	IsSignedIn() bool
	AccountID() string
}

// Static is a session fixed at start-up, the account the signer service
// holds the keys of.
type Static struct {
	ID string
}

func (s Static) IsSignedIn() bool {
	return s.ID != ""
}

func (s Static) AccountID() string {
	return s.ID
}
