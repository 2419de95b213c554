package user

type Role string

const (
	RoleOwner    Role = "owner"    // Company owner - full access
	RoleManager  Role = "manager"  // Can correct and approve time records
	RoleEmployee Role = "employee" // Regular employee
	RolePending  Role = "pending"  // Still in onboarding
)

// Claims are the JWT claims every authenticated request carries.
type Claims struct {
	UserID     string
	CompanyID  string
	EmployeeID string
	Role       Role
}
