package domain

import "strings"

// EnrolledUser is one entry of the user directory. The JSON layout is the
// on-disk format of users.json.
type EnrolledUser struct {
	Username   string    `json:"username"`
	FullName   string    `json:"fullName"`
	Credential string    `json:"password"`
	FaceVector []float64 `json:"faceDescriptor"`
	FaceMethod string    `json:"faceMethod,omitempty"`
}

// HasFace reports whether a biometric has been enrolled for the user.
func (u *EnrolledUser) HasFace() bool {
	return len(u.FaceVector) > 0
}

// FindUser returns the index of username in users, or -1.
func FindUser(users []EnrolledUser, username string) int {
	for i := range users {
		if users[i].Username == username {
			return i
		}
	}
	return -1
}

// NormalizeUsername trims surrounding whitespace from a username.
func NormalizeUsername(username string) string {
	return strings.TrimSpace(username)
}
