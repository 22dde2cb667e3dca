package permission

// Admin portal permissions.
const (
	AccountRead    = "account.read"
	SessionsRead   = "sessions.read"
	SessionsRevoke = "sessions.revoke"
	UsersDelete    = "users.delete"
	SettingsManage = "settings.manage"
)

// All lists every portal permission in registration order.
var All = []string{AccountRead, SessionsRead, SessionsRevoke, UsersDelete, SettingsManage}

// Portal builds the frozen role table for the admin portal: USER may read
// its own account, ADMIN holds the root grant.
func Portal() (*RoleManager, error) {
	reg := NewRegistry(true)
	for _, name := range All {
		if _, err := reg.Register(name); err != nil {
			return nil, err
		}
	}
	reg.Freeze()

	rm := NewRoleManager(reg)
	if err := rm.RegisterRole("USER", []string{AccountRead}, false); err != nil {
		return nil, err
	}
	if err := rm.RegisterRole("ADMIN", nil, true); err != nil {
		return nil, err
	}
	rm.Freeze()
	return rm, nil
}
