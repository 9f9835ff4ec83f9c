package dynamo

// DynamoDB attribute names used in key and condition expressions.
// User fields set through Update are named in the domain package.
const (
	fieldUserID    = "user_id"
	fieldUID       = "uid"
	fieldEmail     = "email"
	fieldCode      = "code"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
	fieldExpiresAt = "expires_at"
)

const (
	indexEmail = "email-index"
	indexUID   = "uid-index"
	indexCode  = "code-index"
)
