package rbac

const (
	RoleLearner = "learner"
	RoleAdmin   = "admin"
)

const (
	PermCaseView         = "case:view"
	PermPlacementEdit    = "placement:edit"
	PermCaseSubmit       = "case:submit"
	PermExamSubmit       = "exam:submit"
	PermStageRecord      = "stage:record"
	PermProgressView     = "progress:view-own"
	PermProgressReset    = "progress:reset-own"
	PermProgressResetAny = "progress:reset-any"
	PermCompletionView   = "completion:view"
	PermCompletionReport = "completion:report"
	PermOutboxPoll       = "outbox:poll"
	PermLTILaunch        = "lti:launch"
)

var RolePermissions = map[string][]string{
	RoleLearner: {
		"case:*",
		"exam:*",
		PermPlacementEdit,
		PermStageRecord,
		PermProgressView,
		PermProgressReset,
		"completion:*",
		PermOutboxPoll,
		PermLTILaunch,
	},
	RoleAdmin: {
		"*", // everything
	},
}
