package session

import "github.com/E8A281E6ACA2/BinaryStore/internal"

// NewID returns a fresh opaque session id: 32 random bytes, base64url
// without padding.
func NewID() (string, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return "", err
	}
	return sid.String(), nil
}

// WellFormedID reports whether id could have been produced by NewID.
func WellFormedID(id string) bool {
	if id == "" || len(id) > internal.MaxSessionIDLength {
		return false
	}
	_, err := internal.ParseSessionID(id)
	return err == nil
}
