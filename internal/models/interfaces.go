package models

import "context"

// IDGenerator generates the IDs used for sessions and credentials.
type IDGenerator interface {
	ID() (string, error)
}

// Encryptor handles the encryption of token values at rest.
type Encryptor interface {
	Encrypt(value string) (encrypted string, err error)
	Decrypt(value string) (decrypted string, err error)
}

// CredentialRepository persists the credential pair of a session.
type CredentialRepository interface {
	GetCredentials(ctx context.Context, sessionID string) (CredentialPair, error)
	SetCredentials(ctx context.Context, sessionID string, pair CredentialPair) error
	RemoveCredentials(ctx context.Context, sessionID string) error
	// ExpiringSessionIDs lists the sessions whose access token expires
	// between the two instants, used by the proactive refresh sweep.
	ExpiringSessionIDs(ctx context.Context, from, until int64) ([]string, error)
}

// ProfileRepository persists the cached user profile of a session together
// with the last-logged-in user ID used for session-switch detection.
type ProfileRepository interface {
	GetProfile(ctx context.Context, sessionID string) (UserProfile, error)
	SetProfile(ctx context.Context, sessionID string, profile UserProfile) error
	RemoveProfile(ctx context.Context, sessionID string) error
	GetLastUserID(ctx context.Context, sessionID string) (string, error)
	SetLastUserID(ctx context.Context, sessionID string, userID string) error
}

// TabRepository persists the cached navigation tabs of a session in their
// display order.
type TabRepository interface {
	GetTabs(ctx context.Context, sessionID string) (SerializableOrderedMap, error)
	SetTabs(ctx context.Context, sessionID string, tabs SerializableOrderedMap) error
	RemoveTabs(ctx context.Context, sessionID string) error
}
