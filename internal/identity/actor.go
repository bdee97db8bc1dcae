package identity

// Role is the coarse permission class supplied by the authentication layer.
// The core trusts it and only enforces role-appropriate preconditions.
type Role string

const (
	RoleCandidate Role = "candidate"
	RoleHR        Role = "hr"
	RoleAgent     Role = "agent"
	RoleAdmin     Role = "admin"
	RoleSystem    Role = "system"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleCandidate, RoleHR, RoleAgent, RoleAdmin, RoleSystem:
		return true
	default:
		return false
	}
}

// Actor identifies who performs an operation.
type Actor struct {
	ID   string `yaml:"id"`
	Role Role   `yaml:"role"`
}

// System is the actor recorded for mutations the platform performs on its
// own behalf (recurrence clones, reconciliation, retention sweeps).
var System = Actor{ID: "system", Role: RoleSystem}

func (a Actor) Is(role Role) bool {
	return a.Role == role
}
