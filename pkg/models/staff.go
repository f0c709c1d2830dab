package models

// StaffRole is the job function of a staff member within a clinic.
type StaffRole string

const (
	RoleSalesStaff  StaffRole = "sales_staff"
	RoleBeautician  StaffRole = "beautician"
	RoleReception   StaffRole = "reception"
	RoleClinicOwner StaffRole = "clinic_owner"
)

// Staff is the slice of the identity store this core needs: enough to check
// that an assignee exists and is active, and to enumerate assignment
// candidates. Identity itself is owned by the external record store.
type Staff struct {
	ID       string    `json:"id"`
	ClinicID string    `json:"clinic_id"`
	Name     string    `json:"name"`
	Role     StaffRole `json:"role"`
	Active   bool      `json:"active"`
}
