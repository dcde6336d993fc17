package auth

import (
	"sort"
	"strings"
)

// Permission is one capability from the closed catalog below. Permissions are
// referenced at runtime, never created.
type Permission string

const (
	PermOrgView Permission = "org.view"
	PermOrgEdit Permission = "org.edit"

	PermUserView   Permission = "user.view"
	PermUserInvite Permission = "user.invite"
	PermUserEdit   Permission = "user.edit"
	PermUserDelete Permission = "user.delete"

	PermRoleView   Permission = "role.view"
	PermRoleManage Permission = "role.manage"

	PermLeadViewAll   Permission = "lead.view.all"
	PermLeadViewOwn   Permission = "lead.view.own"
	PermLeadCreate    Permission = "lead.create"
	PermLeadEditAll   Permission = "lead.edit.all"
	PermLeadEditOwn   Permission = "lead.edit.own"
	PermLeadDeleteAll Permission = "lead.delete.all"
	PermLeadDeleteOwn Permission = "lead.delete.own"

	PermProjectView    Permission = "project.view"
	PermProjectCreate  Permission = "project.create"
	PermProjectEdit    Permission = "project.edit"
	PermProjectDelete  Permission = "project.delete"
	PermProjectMembers Permission = "project.members.manage"

	PermTaskView   Permission = "task.view"
	PermTaskCreate Permission = "task.create"
	PermTaskEdit   Permission = "task.edit"
	PermTaskDelete Permission = "task.delete"

	PermNoteView   Permission = "note.view"
	PermNoteCreate Permission = "note.create"
	PermNoteEdit   Permission = "note.edit"
	PermNoteDelete Permission = "note.delete"

	PermAttachmentView   Permission = "attachment.view"
	PermAttachmentUpload Permission = "attachment.upload"
	PermAttachmentDelete Permission = "attachment.delete"

	PermAuditView     Permission = "audit.view"
	PermAnalyticsView Permission = "analytics.view"
)

// Catalog lists every permission the system knows about.
var Catalog = []Permission{
	PermOrgView, PermOrgEdit,
	PermUserView, PermUserInvite, PermUserEdit, PermUserDelete,
	PermRoleView, PermRoleManage,
	PermLeadViewAll, PermLeadViewOwn, PermLeadCreate,
	PermLeadEditAll, PermLeadEditOwn, PermLeadDeleteAll, PermLeadDeleteOwn,
	PermProjectView, PermProjectCreate, PermProjectEdit, PermProjectDelete, PermProjectMembers,
	PermTaskView, PermTaskCreate, PermTaskEdit, PermTaskDelete,
	PermNoteView, PermNoteCreate, PermNoteEdit, PermNoteDelete,
	PermAttachmentView, PermAttachmentUpload, PermAttachmentDelete,
	PermAuditView, PermAnalyticsView,
}

var catalogSet = func() map[Permission]struct{} {
	set := make(map[Permission]struct{}, len(Catalog))
	for _, p := range Catalog {
		set[p] = struct{}{}
	}
	return set
}()

// ValidPermission reports whether the string names a cataloged permission.
func ValidPermission(p string) bool {
	_, ok := catalogSet[Permission(p)]
	return ok
}

// Category returns the segment before the first separator, e.g. "lead" for
// "lead.view.own".
func (p Permission) Category() string {
	s := string(p)
	if i := strings.IndexByte(s, '.'); i > 0 {
		return s[:i]
	}
	return s
}

// OwnScoped reports whether the permission restricts the holder to records
// they own. The gate itself never interprets this; business operations do.
func (p Permission) OwnScoped() bool {
	return strings.HasSuffix(string(p), ".own")
}

// PermissionCatalog returns the full catalog grouped by category, with both
// categories and members sorted for stable output.
func PermissionCatalog() map[string][]Permission {
	grouped := make(map[string][]Permission)
	for _, p := range Catalog {
		cat := p.Category()
		grouped[cat] = append(grouped[cat], p)
	}
	for cat := range grouped {
		sort.Slice(grouped[cat], func(i, j int) bool { return grouped[cat][i] < grouped[cat][j] })
	}
	return grouped
}
