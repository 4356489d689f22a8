package rbac

// RolePermissions maps auth service roles to gateway permissions. Every
// logged in user implicitly holds "user".
var RolePermissions = map[string][]string{
	"user": {
		"quiz:list",
		"quiz:view",
		"quiz:take",
		"session:view-own",
	},
	"admin_quiz": {
		"quiz:*",
		"question:*",
		"session:*",
	},
	"admin": {
		"*", // everything
	},
}
