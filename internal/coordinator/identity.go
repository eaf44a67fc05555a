package coordinator

// Role tags an identity's privilege level.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

// Identity is the logical participant a connection speaks for. One
// identity may own several concurrent connections (multi-device).
type Identity struct {
	Name  string
	Role  Role
	Badge string
}
