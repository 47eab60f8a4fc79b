package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"student": {
		"exam:view",
		"attempt:create",
		"attempt:submit",
		"attempt:view-own",
		"result:view-own",
	},
	"teacher": {
		"exam:view",
		"exam:create",
		"exam:publish",
		"exam:delete_own",
		"question:create",
		"question:view",
		"attempt:view-all",
		"grade:preview",
		"reports:view",
	},
	"admin": {
		"*", // everything
	},
}
