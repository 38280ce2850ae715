package types

// EncryptedKeyBackup is the password-protected copy of the private key held
// by the server. CipherText and IV are base64.
type EncryptedKeyBackup struct {
	Username   Username `json:"username"`
	CipherText string   `json:"encryptedPrivateKey"`
	IV         string   `json:"privateKeyIv"`
}

// RecoveryBackup has the same shape as EncryptedKeyBackup but is keyed by a
// recovery code and stored under separate server fields.
type RecoveryBackup struct {
	Username   Username `json:"username"`
	CipherText string   `json:"encryptedRecoveryPrivateKey"`
	IV         string   `json:"recoveryKeyIv"`
}

// AccountBackups carries the key material a login response exposes for the
// account. Every field may be empty.
type AccountBackups struct {
	Username                    Username `json:"username"`
	PublicKey                   string   `json:"publicKey,omitempty"`
	EncryptedPrivateKey         string   `json:"encryptedPrivateKey,omitempty"`
	PrivateKeyIV                string   `json:"privateKeyIv,omitempty"`
	EncryptedRecoveryPrivateKey string   `json:"encryptedRecoveryPrivateKey,omitempty"`
	RecoveryKeyIV               string   `json:"recoveryKeyIv,omitempty"`
}

// HasPasswordBackup reports whether a password backup is present.
func (b AccountBackups) HasPasswordBackup() bool {
	return b.EncryptedPrivateKey != "" && b.PrivateKeyIV != ""
}

// HasRecoveryBackup reports whether a recovery-code backup is present.
func (b AccountBackups) HasRecoveryBackup() bool {
	return b.EncryptedRecoveryPrivateKey != "" && b.RecoveryKeyIV != ""
}

// Profile remembers which account is signed in against a server origin.
type Profile struct {
	Origin   string   `json:"origin"`
	Username Username `json:"username"`
	UserID   UserID   `json:"user_id"`
}
