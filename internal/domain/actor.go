package domain

// Role enumerates portal operator roles.
type Role string

const (
	RoleIntake     Role = "INTAKE"
	RoleOfficer    Role = "OFFICER"
	RoleSupervisor Role = "SUPERVISOR"
	RoleAdmin      Role = "ADMIN"
)

// ParseRole accepts INTAKE, officer, Supervisor and similar spellings.
func ParseRole(raw string) (Role, bool) {
	key := normalize(raw)
	for _, r := range []Role{RoleIntake, RoleOfficer, RoleSupervisor, RoleAdmin} {
		if normalize(string(r)) == key {
			return r, true
		}
	}
	return "", false
}
