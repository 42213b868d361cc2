package erp

import (
	"context"
	"time"
)

// Authenticator performs delegated logins against per-company connection
// parameters. It builds a fresh client per call because every tenant
// company may point at a different remote host.
type Authenticator struct {
	ClientTag string
	Timeout   time.Duration
}

// Login signs a user into the remote system scoped to the given connection.
func (a *Authenticator) Login(ctx context.Context, conn Connection, username, password string) (*Credential, error) {
	client, err := NewClient(Config{
		Connection: conn,
		ClientTag:  a.ClientTag,
		Timeout:    a.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return client.Login(ctx, username, password)
}

// ClientFromCredential rebuilds a client for authenticated calls using a
// previously stored delegated credential.
func ClientFromCredential(cred *Credential, clientTag string, timeout time.Duration) (*Client, error) {
	return NewClient(Config{
		Connection: Connection{BaseURL: cred.BaseURL, CompanyCode: cred.CompanyCode},
		ClientTag:  clientTag,
		Timeout:    timeout,
	})
}
