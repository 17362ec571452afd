package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/clinicbook/internal/clinicapi"
)

// Role is the kind of user signed in.
type Role = clinicapi.Role

const (
	RolePatient = clinicapi.RolePatient
	RoleDoctor  = clinicapi.RoleDoctor
)

// User-facing notices.
const (
	NoticeSelectRole     = "Please select user: patient / doctor..."
	NoticeSessionExpired = "Session expired or invalid. Please login again."
)

var ErrInvalidRole = errors.New("session: unknown role")

// ParseRole accepts "patient" or "doctor", case-insensitively.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RolePatient:
		return RolePatient, nil
	case RoleDoctor:
		return RoleDoctor, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}
