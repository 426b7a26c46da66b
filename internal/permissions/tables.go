package permissions

// Bounty operations
const (
	BountyView                Operation = "view"
	BountyWork                Operation = "work"
	BountyReview              Operation = "review"
	BountyEdit                Operation = "edit"
	BountyDelete              Operation = "delete"
	BountyLock                Operation = "lock"
	BountyApproveApplications Operation = "approve_applications"
	BountyGrantPermissions    Operation = "grant_permissions"
	BountyMarkPaid            Operation = "mark_paid"
)

// Bounty levels
const (
	BountyCreator   Level = "creator"
	BountyReviewer  Level = "reviewer"
	BountySubmitter Level = "submitter"
	BountyViewer    Level = "viewer"
)

// Page operations
const (
	PageRead             Operation = "read"
	PageComment          Operation = "comment"
	PageEditContent      Operation = "edit_content"
	PageEditPosition     Operation = "edit_position"
	PageDelete           Operation = "delete"
	PageGrantPermissions Operation = "grant_permissions"
	PageCreatePoll       Operation = "create_poll"
)

// Page levels
const (
	PageFullAccess  Level = "full_access"
	PageEditor      Level = "editor"
	PageViewComment Level = "view_comment"
	PageView        Level = "view"
)

// Space operations
const (
	SpaceCreatePage      Operation = "create_page"
	SpaceCreateBounty    Operation = "create_bounty"
	SpaceReviewProposals Operation = "review_proposals"
	SpaceModerateForums  Operation = "moderate_forums"
)

// Space levels
const (
	SpaceMember Level = "member"
	SpaceAdmin  Level = "admin"
)

var Bounty = newMapping("bounty",
	[]Operation{
		BountyView, BountyWork, BountyReview, BountyEdit, BountyDelete,
		BountyLock, BountyApproveApplications, BountyGrantPermissions, BountyMarkPaid,
	},
	map[Level][]Operation{
		BountyCreator: {
			BountyView, BountyEdit, BountyLock, BountyDelete, BountyApproveApplications,
			BountyGrantPermissions, BountyReview, BountyMarkPaid,
		},
		BountyReviewer:  {BountyView, BountyReview, BountyApproveApplications, BountyMarkPaid},
		BountySubmitter: {BountyView, BountyWork},
		BountyViewer:    {BountyView},
	},
)

var Page = newMapping("page",
	[]Operation{
		PageRead, PageComment, PageEditContent, PageEditPosition,
		PageDelete, PageGrantPermissions, PageCreatePoll,
	},
	map[Level][]Operation{
		PageFullAccess: {
			PageRead, PageComment, PageEditContent, PageEditPosition,
			PageDelete, PageGrantPermissions, PageCreatePoll,
		},
		PageEditor:      {PageRead, PageComment, PageEditContent, PageEditPosition, PageCreatePoll},
		PageViewComment: {PageRead, PageComment},
		PageView:        {PageRead},
	},
)

var Space = newMapping("space",
	[]Operation{SpaceCreatePage, SpaceCreateBounty, SpaceReviewProposals, SpaceModerateForums},
	map[Level][]Operation{
		SpaceMember: {SpaceCreatePage, SpaceCreateBounty},
		SpaceAdmin:  {SpaceCreatePage, SpaceCreateBounty, SpaceReviewProposals, SpaceModerateForums},
	},
)

// SpaceOperations returns the space operations of a member, or of an admin.
func SpaceOperations(isAdmin bool) OperationSet {
	if isAdmin {
		return mustOps(Space, SpaceAdmin)
	}
	return mustOps(Space, SpaceMember)
}
