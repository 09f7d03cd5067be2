package model

// Roles. A principal may hold any number of roles; grants are admin-only and
// there is no revocation.
const (
	RoleFarmer      = "farmer"
	RoleDistributor = "distributor"
	RoleRetailer    = "retailer"
	RoleConsumer    = "consumer"
	RoleAdmin       = "admin"
)

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleFarmer, RoleDistributor, RoleRetailer, RoleConsumer, RoleAdmin:
		return true
	}
	return false
}
